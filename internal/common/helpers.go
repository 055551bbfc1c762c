// Package common содержит общие утилиты, используемые во всём проекте.
package common

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// AppLocation загружает часовой пояс приложения (APP_TIMEZONE).
// Если зона не загрузилась — используем UTC+3 вручную, как и раньше.
func AppLocation(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить %s, используем UTC+3", tz)
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" для логов.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}
