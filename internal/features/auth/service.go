// Package auth — service.go содержит логику аутентификации:
// проверку пароля Argon2id, защиту от brute-force и выдачу JWT.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"serotonyl.ru/habit-backend/internal/common"
	"serotonyl.ru/habit-backend/internal/config"
	"serotonyl.ru/habit-backend/internal/features/members"
)

// Identity — кто стоит за токеном.
type Identity struct {
	UserID  int64
	IsAdmin bool
}

// Service управляет аутентификацией.
type Service struct {
	repo    *Repository
	members *members.Service
	cfg     *config.Config
}

// NewService создаёт сервис аутентификации.
func NewService(repo *Repository, memberService *members.Service, cfg *config.Config) *Service {
	return &Service{repo: repo, members: memberService, cfg: cfg}
}

// Login проверяет пароль пользователя и выдаёт JWT.
// Защита от brute-force: 3 неудачные попытки = блокировка на 1 час.
func (s *Service) Login(ctx context.Context, userID int64, password string) (string, error) {
	member, err := s.members.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}

	// Проверяем лимит попыток
	attempts, err := s.repo.GetRecentAttempts(ctx, userID, 1*time.Hour)
	if err != nil {
		return "", err
	}
	if attempts >= 3 {
		return "", common.ErrTooManyAttempts
	}

	// Проверяем пароль
	match := verifyArgon2id(password, member.PasswordHash)

	// Логируем попытку
	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).Error("Ошибка записи попытки входа")
	}

	if !match {
		return "", common.ErrWrongPassword
	}

	return s.issueToken(member)
}

// issueToken выдаёт подписанный HS256-токен с user id и флагом админа.
func (s *Service) issueToken(m *members.Member) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": fmt.Sprintf("%d", m.UserID),
		"adm": m.IsAdmin,
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.JWTTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// ParseToken проверяет подпись и срок токена и возвращает личность.
func (s *Service) ParseToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, common.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, common.ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, common.ErrInvalidToken
	}
	var userID int64
	if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil || userID <= 0 {
		return nil, common.ErrInvalidToken
	}

	isAdmin, _ := claims["adm"].(bool)
	return &Identity{UserID: userID, IsAdmin: isAdmin}, nil
}

// --- Криптографические утилиты ---

// verifyArgon2id проверяет пароль по хешу Argon2id.
// Формат хеша: $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encodedHash string) bool {
	// Парсим хеш
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	// Извлекаем параметры
	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	// Декодируем соль
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}

	// Декодируем эталонный хеш
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	// Вычисляем хеш введённого пароля с теми же параметрами
	actual := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))

	// Сравниваем за константное время
	return subtle.ConstantTimeCompare(expected, actual) == 1
}
