// Package model содержит доменные сущности сервиса бронирования салона.
package model

import (
	"encoding/json"
	"time"
)

// ReservationType определяет ценовую ветку бронирования.
type ReservationType string

const (
	TypeSalon    ReservationType = "salon"
	TypePatio    ReservationType = "patio"
	TypeMigrated ReservationType = "migrated"
)

// ReservationStatus описывает бизнес-статус бронирования.
// Статус оплаты от него не зависит.
type ReservationStatus string

const (
	StatusInterested ReservationStatus = "interested"
	StatusDeposited  ReservationStatus = "deposited"
	StatusConfirmed  ReservationStatus = "confirmed"
	StatusTrashed    ReservationStatus = "trashed"
)

// FixedAddon — дополнительная услуга с фиксированной ценой.
type FixedAddon struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
}

// QuantityItem — позиция каталога, тарифицируемая за единицу.
type QuantityItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPrice"`
}

// PricingConfig содержит действующую тарифную сетку.
// В хранилище существует ровно одна запись.
type PricingConfig struct {
	BaseWeekdayCents      int64
	BaseWeekendCents      int64
	PerPersonWeekdayCents int64
	PerPersonWeekendCents int64
	PatioBaseCents        int64
	DefaultCleaningCents  int64
	FixedAddons           []FixedAddon
	QuantityItems         []QuantityItem
	UpdatedAt             time.Time
}

// FindFixedAddon ищет услугу по идентификатору.
func (c *PricingConfig) FindFixedAddon(id string) (FixedAddon, bool) {
	for _, a := range c.FixedAddons {
		if a.ID == id {
			return a, true
		}
	}
	return FixedAddon{}, false
}

// FindQuantityItem ищет позицию каталога по идентификатору.
func (c *PricingConfig) FindQuantityItem(id string) (QuantityItem, bool) {
	for _, it := range c.QuantityItems {
		if it.ID == id {
			return it, true
		}
	}
	return QuantityItem{}, false
}

// DefaultPricingConfig возвращает стартовую тарифную сетку.
// Используется при первом обращении, когда запись конфигурации отсутствует.
func DefaultPricingConfig() *PricingConfig {
	return &PricingConfig{
		BaseWeekdayCents:      10000000,
		BaseWeekendCents:      14000000,
		PerPersonWeekdayCents: 300000,
		PerPersonWeekendCents: 400000,
		PatioBaseCents:        5000000,
		DefaultCleaningCents:  2000000,
		FixedAddons: []FixedAddon{
			{ID: "sound", Name: "Sound system", PriceCents: 5000000},
			{ID: "decoration", Name: "Decoration", PriceCents: 8000000},
			{ID: "projector", Name: "Projector", PriceCents: 3000000},
		},
		QuantityItems: []QuantityItem{
			{ID: "chair", Name: "Extra chair", UnitPriceCents: 50000},
			{ID: "table", Name: "Extra table", UnitPriceCents: 150000},
			{ID: "tablecloth", Name: "Tablecloth", UnitPriceCents: 80000},
		},
	}
}

// QuantitySelection — выбранное количество позиции каталога и зафиксированная
// на момент расчёта цена за единицу. Отсутствующий UnitPriceCents означает,
// что запись осталась в устаревшем скалярном формате и цена ещё не
// зафиксирована.
type QuantitySelection struct {
	Quantity       int64  `json:"quantity"`
	UnitPriceCents *int64 `json:"unitPrice,omitempty"`
}

// Legacy сообщает, что запись хранится в устаревшем формате без фиксации цены.
func (q QuantitySelection) Legacy() bool {
	return q.UnitPriceCents == nil
}

// UnmarshalJSON принимает как структурный формат {quantity, unitPrice},
// так и устаревший скалярный (голое число — количество без фиксации цены).
// Нечисловые значения дают нулевое количество, а не ошибку.
func (q *QuantitySelection) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		qty, err := n.Int64()
		if err != nil {
			if f, ferr := n.Float64(); ferr == nil {
				qty = int64(f)
			}
		}
		*q = QuantitySelection{Quantity: qty}
		return nil
	}

	type structured struct {
		Quantity       int64  `json:"quantity"`
		UnitPriceCents *int64 `json:"unitPrice"`
	}
	var s structured
	if err := json.Unmarshal(data, &s); err != nil {
		*q = QuantitySelection{}
		return nil
	}
	*q = QuantitySelection{Quantity: s.Quantity, UnitPriceCents: s.UnitPriceCents}
	return nil
}

// Payment — запись о частичной оплате бронирования.
type Payment struct {
	Date        time.Time `json:"date"`
	AmountCents int64     `json:"amount"`
}

// Reservation описывает бронирование зала со снимком рассчитанных цен.
// Поля *FixedCents фиксируются движком расчёта при создании или правке
// и не пересчитываются при чтении, даже если тарифы позже изменились.
type Reservation struct {
	ID                  string
	ClientName          string
	Phone               string
	Date                time.Time
	GuestCount          int
	Type                ReservationType
	Status              ReservationStatus
	SelectedFixedAddons []string
	QuantitySelections  map[string]QuantitySelection
	IncludeCleaning     bool
	CleaningCents       int64
	DiscountPercent     float64
	ExtraCents          int64

	BaseFixedCents               int64
	PerPersonFixedCents          int64
	FixedAddonsTotalFixedCents   int64
	QuantityItemsTotalFixedCents int64
	TotalCents                   int64
	TotalBeforeDiscountCents     int64
	IsWeekend                    bool

	PaidCents      int64
	PaymentHistory []Payment

	Notes     string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// Active сообщает, что бронирование не находится в корзине.
func (r *Reservation) Active() bool {
	return r.Status != StatusTrashed
}

// RemainingCents возвращает остаток к оплате.
func (r *Reservation) RemainingCents() int64 {
	return r.TotalCents - r.PaidCents
}

// FullyPaid сообщает, что бронирование оплачено полностью.
func (r *Reservation) FullyPaid() bool {
	return r.PaidCents >= r.TotalCents
}

// ReservationDraft — входные данные бронирования до расчёта цен.
type ReservationDraft struct {
	ClientName          string
	Phone               string
	Date                time.Time
	GuestCount          int
	Type                ReservationType
	Status              ReservationStatus
	SelectedFixedAddons []string
	QuantitySelections  map[string]QuantitySelection
	IncludeCleaning     bool
	CleaningCents       int64
	DiscountPercent     float64
	ExtraCents          int64
	Notes               string
}

// Expense — запись в журнале расходов.
type Expense struct {
	ID          string
	Name        string
	AmountCents int64
	Date        time.Time
	CreatedAt   time.Time
}

// MonthlyReport — сводка по активным бронированиям за календарный месяц.
type MonthlyReport struct {
	Month              string
	Reservations       []Reservation
	ReservationCount   int
	TotalGuests        int
	TotalExpectedCents int64
	TotalPaidCents     int64
}
