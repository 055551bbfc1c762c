// Package server собирает HTTP-сервер: gin-роутер, маршруты и middleware.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/habit-backend/internal/config"
	"serotonyl.ru/habit-backend/internal/features/auth"
	"serotonyl.ru/habit-backend/internal/features/trustflow"
	"serotonyl.ru/habit-backend/internal/server/middleware"
)

// Server — HTTP-сервер приложения.
type Server struct {
	httpServer  *http.Server
	rateLimiter *middleware.RateLimiter
}

// New создаёт сервер и регистрирует все маршруты.
func New(
	cfg *config.Config,
	db *pgxpool.Pool,
	authService *auth.Service,
	authHandler *auth.Handler,
	trustflowHandler *trustflow.Handler,
) *Server {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)

	engine.Use(
		middleware.Recover(),
		middleware.LogRequests(),
		rateLimiter.Middleware(),
	)

	// Liveness: достаточно пинга базы
	engine.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db недоступна"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("", middleware.RequireAuth(authService))
	{
		authed.POST("/pushes", trustflowHandler.SubmitPush)
		authed.POST("/pushes/eligibility", trustflowHandler.CheckEligibility)
		authed.GET("/users/:id/trust-flow", trustflowHandler.GetTrustFlow)
		authed.GET("/users/:id/trust-flow/history", trustflowHandler.GetHistory)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler: engine,
		},
		rateLimiter: rateLimiter,
	}
}

// Run запускает сервер. Блокируется до остановки.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown останавливает сервер, давая активным запросам завершиться.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Close()
	return s.httpServer.Shutdown(ctx)
}
