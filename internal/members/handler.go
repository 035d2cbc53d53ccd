package members

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// RegisterRoutes: adminOnly は一括削除にだけ掛ける
func RegisterRoutes(r gin.IRoutes, svc *Service, adminOnly gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.POST("/members", h.Create)
	r.GET("/members", h.List)
	r.GET("/members/export", h.Download)
	r.POST("/members/export", h.ExportFile)
	r.POST("/members/purge", adminOnly, h.Purge)
	r.GET("/members/:name", h.Get)
	r.GET("/members/:name/qrcode", h.QRCode)
	r.DELETE("/members/:name", h.Delete)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrDTO(ErrInvalid(err.Error())))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.Header("Location", "/api/v1/members/"+res.Name)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) List(c *gin.Context) {
	res, err := h.svc.List(c.Request.Context(), c.Query("sort"))
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) QRCode(c *gin.Context) {
	b, err := h.svc.QRCode(c.Request.Context(), c.Param("name"))
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("name")); err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Purge(c *gin.Context) {
	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, newErrDTO(ErrInvalid("pin is required")))
		return
	}
	res, err := h.svc.Purge(c.Request.Context(), req)
	if err != nil {
		c.JSON(toHTTPStatus(err), newErrDTO(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Download(c *gin.Context) {
	name := fmt.Sprintf("members_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Status(http.StatusOK)
	if _, err := h.svc.Export(c.Request.Context(), c.Writer); err != nil {
		log.Printf("[ERROR] members download: %v", err)
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
