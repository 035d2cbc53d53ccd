package attendance

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/attendance", h.List)
	r.POST("/attendance/reset", h.Reset)
	r.GET("/attendance/export", h.Download)
	r.POST("/attendance/export", h.ExportFile)
}

func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.List(c.Request.Context()))
}

func (h *Handler) Reset(c *gin.Context) {
	h.svc.Reset(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// GET /attendance/export: その場でダウンロード
func (h *Handler) Download(c *gin.Context) {
	name := fmt.Sprintf("attendance_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
	if _, err := h.svc.Export(c.Request.Context(), c.Writer); err != nil {
		// ヘッダ送出後なのでログのみ
		log.Printf("[ERROR] attendance download: %v", err)
	}
}

func (h *Handler) ExportFile(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrDTO(ErrInvalid("filename is required")))
		return
	}
	res, err := h.svc.ExportFile(c.Request.Context(), req.Filename)
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ===== helpers =====
type errDTO struct {
	Error *APIError `json:"error"`
}

func newErrDTO(err error) errDTO {
	if api, ok := err.(*APIError); ok {
		return errDTO{Error: api}
	}
	return errDTO{Error: ErrInternal(err.Error())}
}
