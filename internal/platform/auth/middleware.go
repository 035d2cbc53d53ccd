package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxOperatorKey = "operator_id"
	CtxRoleKey     = "role"
)

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": "UNAUTHENTICATED", "message": msg}})
}

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/role を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		scheme, tokenStr, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
			// EventSource はヘッダを付けられないので SSE 用にクエリも見る
			tokenStr = c.Query("access_token")
			if tokenStr == "" {
				abort(c, http.StatusUnauthorized, "missing bearer token")
				return
			}
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenStr), claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			abort(c, http.StatusUnauthorized, "invalid sub")
			return
		}
		role, _ := claims["role"].(string)

		c.Set(CtxOperatorKey, sub)
		c.Set(CtxRoleKey, role)
		c.Next()
	}
}

// RequireRole: RequireAuth の後ろに置く
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r != "" {
			allowed[r] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		role := c.GetString(CtxRoleKey)
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "FORBIDDEN", "message": "operator role not permitted"}})
			return
		}
		c.Next()
	}
}
