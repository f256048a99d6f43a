// Package validation содержит функции валидации входных данных.
package validation

import (
	"time"

	"github.com/mmeshcher/salonbook-system/internal/model"
)

// DateLayout — формат календарной даты во входных данных API.
const DateLayout = "2006-01-02"

// MonthLayout — формат идентификатора месяца для отчётов.
const MonthLayout = "2006-01"

// ParseDate разбирает календарную дату в локальной тайм-зоне (полночь).
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.Local)
}

// ParseMonth разбирает идентификатор месяца в первую дату месяца.
func ParseMonth(s string) (time.Time, error) {
	return time.ParseInLocation(MonthLayout, s, time.Local)
}

// IsValidType проверяет допустимость типа бронирования.
func IsValidType(t model.ReservationType) bool {
	switch t {
	case model.TypeSalon, model.TypePatio, model.TypeMigrated:
		return true
	}
	return false
}

// IsValidStatus проверяет допустимость бизнес-статуса.
func IsValidStatus(s model.ReservationStatus) bool {
	switch s {
	case model.StatusInterested, model.StatusDeposited, model.StatusConfirmed, model.StatusTrashed:
		return true
	}
	return false
}

// IsValidActiveStatus проверяет статус, допустимый для прямого назначения.
// В корзину бронирование попадает только через отдельную операцию.
func IsValidActiveStatus(s model.ReservationStatus) bool {
	return IsValidStatus(s) && s != model.StatusTrashed
}

// IsValidDiscount проверяет процент скидки.
func IsValidDiscount(p float64) bool {
	return p >= 0 && p <= 100
}
