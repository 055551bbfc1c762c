// Package members — service.go: тонкая обёртка над репозиторием.
package members

import (
	"context"

	"serotonyl.ru/habit-backend/internal/common"
)

// Service предоставляет доступ к участникам остальным модулям.
type Service struct {
	repo *Repository
}

// NewService создаёт сервис участников.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetByUserID возвращает участника или common.ErrUserNotFound.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// EnsureExists возвращает common.ErrUserNotFound, если участника нет.
func (s *Service) EnsureExists(ctx context.Context, userID int64) error {
	exists, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return common.ErrUserNotFound
	}
	return nil
}
