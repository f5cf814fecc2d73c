package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lekenzi/QuizNexus/pkg/auth"
)

// Ключи контекста gin с данными аутентифицированного пользователя
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

// TokenParser проверяет токен доступа
type TokenParser interface {
	ParseToken(tokenString string) (*auth.JWTCustomClaims, error)
}

// VisitTracker отмечает визит пользователя
type VisitTracker interface {
	TouchLastVisit(ctx context.Context, userID uint) error
}

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	tokens TokenParser
	visits VisitTracker
}

// NewAuthMiddleware создает middleware. visits может быть nil.
func NewAuthMiddleware(tokens TokenParser, visits VisitTracker) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, visits: visits}
}

// BearerToken извлекает токен из заголовка "Authorization: Bearer {token}"
func BearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth проверяет токен и кладет пользователя в контекст.
// Каждый аутентифицированный запрос обновляет last_visit.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required", "error_type": "token_missing"})
			return
		}
		token, ok := BearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
			return
		}

		claims, err := m.tokens.ParseToken(token)
		if err != nil {
			errorType := "token_invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				errorType = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": errorType})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)

		if m.visits != nil {
			if err := m.visits.TouchLastVisit(c.Request.Context(), claims.UserID); err != nil {
				log.Printf("[AuthMiddleware] Не удалось обновить last_visit пользователя %d: %v", claims.UserID, err)
			}
		}

		c.Next()
	}
}

// RequireRole пропускает только пользователей с указанной ролью. Применяется после RequireAuth.
func (m *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		if c.GetString(ContextRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role", "error_type": "forbidden"})
			return
		}
		c.Next()
	}
}

// UserID возвращает ID пользователя из контекста
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
