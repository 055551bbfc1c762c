// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях сервиса.
// Эти ошибки позволяют обработчикам различать типы проблем
// и возвращать клиенту понятные сообщения и коды.
package common

import "errors"

// Ошибки валидации пуша (отклоняются синхронно, без повторов)
var (
	// ErrSelfPush — попытка дать пуш самому себе
	ErrSelfPush = errors.New("нельзя давать пуш самому себе")
	// ErrReasonTooShort — обоснование короче минимальной длины
	ErrReasonTooShort = errors.New("обоснование слишком короткое (минимум 100 символов)")
	// ErrUnknownPushKind — неизвестный тип пуша
	ErrUnknownPushKind = errors.New("тип пуша должен быть positive или negative")
)

// Ошибки допуска (rate limit, тоже без автоматических повторов)
var (
	// ErrPushLimitTotal — исчерпан общий лимит пушей в окне
	ErrPushLimitTotal = errors.New("лимит пушей на сегодня исчерпан")
	// ErrPushLimitPerTarget — исчерпан лимит пушей этому получателю в окне
	ErrPushLimitPerTarget = errors.New("вы уже давали пуш этому пользователю недавно")
)

// Ошибки участников и доступа
var (
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
	// ErrForbidden — нет прав на операцию (чужая история без админки)
	ErrForbidden = errors.New("недостаточно прав")
)

// Ошибки фоновых задач
var (
	// ErrSweepIncomplete — ночной пересчёт прошёл не по всем пользователям
	ErrSweepIncomplete = errors.New("ночной пересчёт завершился с ошибками")
)

// Ошибки аутентификации
var (
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrInvalidToken — токен отсутствует, истёк или не прошёл проверку
	ErrInvalidToken = errors.New("недействительный токен")
)
