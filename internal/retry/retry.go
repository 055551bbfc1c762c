// Package retry — ограниченный повторитель с фиксированной паузой.
// Вынесен в отдельный пакет, чтобы логику повторов можно было
// тестировать отдельно от скоринга.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do вызывает fn до attempts раз с паузой delay между попытками.
// Возвращает первый успешный результат или последнюю ошибку.
// Отмена контекста прерывает цикл; уже завершённые побочные
// эффекты fn при этом не откатываются.
func Do[T any](ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if attempts <= 0 {
		return zero, fmt.Errorf("retry: attempts должно быть > 0")
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// После последней попытки не ждём
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
