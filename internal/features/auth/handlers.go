// Package auth — handlers.go: HTTP-ручка логина.
package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/habit-backend/internal/common"
)

// Handler обрабатывает запросы аутентификации.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик аутентификации.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	UserID   int64  `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login — POST /api/auth/login. Возвращает bearer-токен.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	token, err := h.service.Login(c.Request.Context(), req.UserID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrUserNotFound), errors.Is(err, common.ErrWrongPassword):
			// Не раскрываем, существует ли пользователь
			c.JSON(http.StatusUnauthorized, gin.H{"error": common.ErrWrongPassword.Error()})
		case errors.Is(err, common.ErrTooManyAttempts):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		default:
			log.WithError(err).Error("Ошибка логина")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
