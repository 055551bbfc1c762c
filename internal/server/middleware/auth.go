// Package middleware содержит промежуточные обработчики HTTP:
// аутентификацию, логирование, восстановление после паники и rate-limiting.
// auth.go проверяет bearer-токен и кладёт личность в контекст запроса.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/habit-backend/internal/common"
	"serotonyl.ru/habit-backend/internal/features/auth"
)

const identityKey = "identity"

// RequireAuth проверяет заголовок Authorization и кладёт auth.Identity
// в контекст. Без валидного токена запрос обрывается с 401.
func RequireAuth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": common.ErrInvalidToken.Error()})
			return
		}

		ident, err := authService.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": common.ErrInvalidToken.Error()})
			return
		}

		c.Set(identityKey, ident)
		c.Next()
	}
}

// IdentityFrom возвращает личность из контекста. Вызывать только
// в ручках за RequireAuth — иначе личности там нет.
func IdentityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return &auth.Identity{}
	}
	ident, ok := v.(*auth.Identity)
	if !ok {
		return &auth.Identity{}
	}
	return ident
}

func extractBearer(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
