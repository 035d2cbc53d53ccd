package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

// RegisterLogin: 認証不要のルート
func RegisterLogin(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.POST("/login", h.Login)
}

// RegisterOperators: 管理者のみ。adminOnly は RequireRole(RoleAdmin)
func RegisterOperators(r gin.IRoutes, svc *Service, adminOnly gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.POST("/operators", adminOnly, h.Register)
	r.DELETE("/operators/:id", adminOnly, h.Delete)
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role,omitempty"` // 未指定なら operator
}

func errBody(code, msg string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": msg}}
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody("INVALID_ARGUMENT", "id and password are required"))
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"token": token})
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrDisabled):
		c.JSON(http.StatusUnauthorized, errBody("UNAUTHENTICATED", "IDまたはパスワードが間違っています"))
	default:
		c.JSON(http.StatusInternalServerError, errBody("INTERNAL", "login failed"))
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBody("INVALID_ARGUMENT", err.Error()))
		return
	}
	role := req.Role
	if role == "" {
		role = RoleOperator
	}

	err := h.svc.Register(c.Request.Context(), req.ID, req.Password, role)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"id": req.ID, "role": role})
	case errors.Is(err, ErrInvalidRole):
		c.JSON(http.StatusBadRequest, errBody("INVALID_ARGUMENT", "role must be admin or operator"))
	case errors.Is(err, ErrAlreadyExists):
		c.JSON(http.StatusConflict, errBody("CONFLICT", "operator id already exists"))
	default:
		c.JSON(http.StatusInternalServerError, errBody("INTERNAL", "register failed"))
	}
}

func (h *Handler) Delete(c *gin.Context) {
	err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, errBody("NOT_FOUND", "operator not found"))
	default:
		c.JSON(http.StatusInternalServerError, errBody("INTERNAL", "delete failed"))
	}
}
