// Package trustflow — handlers.go: HTTP-ручки движка репутации.
// Личность вызывающего берётся из контекста (кладёт auth-middleware).
package trustflow

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/habit-backend/internal/common"
	"serotonyl.ru/habit-backend/internal/server/middleware"
)

// Handler обрабатывает HTTP-запросы Trust Flow.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик Trust Flow.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitPushRequest struct {
	ToUserID int64  `json:"toUserId" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

type eligibilityRequest struct {
	ToUserID int64 `json:"toUserId" binding:"required"`
}

// SubmitPush — POST /api/pushes. Отправитель — из токена.
// 400 с причиной при любой ошибке валидации или допуска.
func (h *Handler) SubmitPush(c *gin.Context) {
	ident := middleware.IdentityFrom(c)

	var req submitPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	push, rep, err := h.service.SubmitPush(c.Request.Context(), ident.UserID, req.ToUserID, req.Kind, req.Reason)
	if err != nil {
		switch {
		case isValidationErr(err), isEligibilityErr(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, common.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			log.WithError(err).Error("Ошибка сабмита пуша")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"pushId":    push.ID.String(),
		"value":     rep.Value,
		"colorBand": rep.ColorBand,
	})
}

// CheckEligibility — POST /api/pushes/eligibility.
// Консультативная проверка для UI; сабмит всё равно проверяется на сервере.
func (h *Handler) CheckEligibility(c *gin.Context) {
	ident := middleware.IdentityFrom(c)

	var req eligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	decision, err := h.service.CheckEligibility(c.Request.Context(), ident.UserID, req.ToUserID)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки допуска")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
		return
	}

	resp := gin.H{"canPush": decision.CanPush}
	if decision.Reason != "" {
		resp["reason"] = decision.Reason
	}
	c.JSON(http.StatusOK, resp)
}

// GetTrustFlow — GET /api/users/:id/trust-flow?recalculate=bool.
// Быстрый путь через кеш; recalculate=true форсирует пересчёт.
func (h *Handler) GetTrustFlow(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	force, _ := strconv.ParseBool(c.Query("recalculate"))

	rep, err := h.service.GetReputation(c.Request.Context(), userID, force)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения репутации")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"value":     rep.Value,
		"colorBand": rep.ColorBand,
	})
}

// GetHistory — GET /api/users/:id/trust-flow/history.
// Доступно себе и админам; админы дополнительно видят архив вкладов.
func (h *Handler) GetHistory(c *gin.Context) {
	ident := middleware.IdentityFrom(c)

	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	if ident.UserID != userID && !ident.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": common.ErrForbidden.Error()})
		return
	}

	entries, err := h.service.History(c.Request.Context(), userID, ident.IsAdmin)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения истории пушей")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка"})
		return
	}

	items := make([]gin.H, len(entries))
	for i, e := range entries {
		item := gin.H{
			"fromUserId": e.Push.FromUserID,
			"kind":       e.Push.Kind,
			"reason":     e.Push.Reason,
			"createdAt":  e.Push.CreatedAt.UTC().Format(time.RFC3339),
		}
		if e.Record != nil {
			item["contribution"] = gin.H{
				"baseWeight":      e.Record.BaseWeight,
				"repeatCount":     e.Record.RepeatCount,
				"effectiveWeight": e.Record.EffectiveWeight,
				"contribution":    e.Record.Contribution,
			}
		}
		items[i] = item
	}

	c.JSON(http.StatusOK, gin.H{"pushes": items})
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный id пользователя"})
		return 0, false
	}
	return userID, true
}

func isValidationErr(err error) bool {
	return errors.Is(err, common.ErrSelfPush) ||
		errors.Is(err, common.ErrReasonTooShort) ||
		errors.Is(err, common.ErrUnknownPushKind)
}

func isEligibilityErr(err error) bool {
	return errors.Is(err, common.ErrPushLimitTotal) ||
		errors.Is(err, common.ErrPushLimitPerTarget)
}
