// Package members управляет участниками приложения.
// Для движка Trust Flow это внешний коллаборатор: нам нужны только
// существование пользователя, флаг админа и хеш пароля для логина.
// models.go описывает структуру таблицы members.
package members

import "time"

// Member представляет участника приложения в базе данных.
type Member struct {
	ID           int64     `db:"id"`            // Автоинкрементный ID записи в БД
	UserID       int64     `db:"user_id"`       // Внешний ID пользователя (уникальный)
	Username     string    `db:"username"`      // Отображаемое имя (может быть пустым)
	PasswordHash string    `db:"password_hash"` // Argon2id-хеш пароля
	IsAdmin      bool      `db:"is_admin"`      // Флаг администратора
	IsBanned     bool      `db:"is_banned"`     // Флаг бана
	CreatedAt    time.Time `db:"created_at"`    // Когда запись создана в БД
	UpdatedAt    time.Time `db:"updated_at"`    // Последнее обновление записи
}
