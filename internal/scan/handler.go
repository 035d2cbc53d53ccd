package scan

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ===== Error model (attendance/members と同型) =====
type Code string

const (
	CodeConflict    Code = "CONFLICT"
	CodeUnavailable Code = "CAPTURE_UNAVAILABLE"
	CodeInternal    Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func toAPIError(err error) (int, *APIError) {
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		return http.StatusConflict, &APIError{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, ErrCaptureUnavailable):
		return http.StatusServiceUnavailable, &APIError{Code: CodeUnavailable, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &APIError{Code: CodeInternal, Message: err.Error()}
	}
}

type Handler struct {
	session *Session
	hub     *Hub
}

func RegisterRoutes(r gin.IRoutes, session *Session, hub *Hub) {
	h := &Handler{session: session, hub: hub}
	r.POST("/scan/start", h.Start)
	r.POST("/scan/stop", h.Stop)
	r.GET("/scan/status", h.Status)
	r.GET("/scan/events", h.Events)
}

func (h *Handler) Start(c *gin.Context) {
	id, err := h.session.Start(c.Request.Context())
	if err != nil {
		status, api := toAPIError(err)
		c.JSON(status, gin.H{"error": api})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": id, "state": StateRunning})
}

// POST /scan/stop: カメラ解放まで待ってから返す
func (h *Handler) Stop(c *gin.Context) {
	h.session.Stop()
	c.JSON(http.StatusOK, h.session.Status())
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

// GET /scan/events: Server-Sent Events で判定結果を流す
func (h *Handler) Events(c *gin.Context) {
	ch, unsubscribe := h.hub.Subscribe(64)
	defer unsubscribe()

	log.Printf("[INFO] scan events: subscriber connected (%s)", c.ClientIP())
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
