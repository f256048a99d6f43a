// Package service реализует бизнес-логику сервиса бронирования салона.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/salonbook-system/internal/model"
	"github.com/mmeshcher/salonbook-system/internal/pricing"
	"github.com/mmeshcher/salonbook-system/internal/repository"
	"github.com/mmeshcher/salonbook-system/internal/validation"
)

// ErrPaymentNotPositive возвращается при попытке записать неположительный платёж.
var (
	ErrPaymentNotPositive = errors.New("payment amount must be positive")
	// ErrPaymentExceedsBalance возвращается, если платёж превышает остаток к оплате.
	ErrPaymentExceedsBalance = errors.New("payment amount exceeds remaining balance")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetConfig(ctx context.Context) (*model.PricingConfig, error)
	SaveConfig(ctx context.Context, cfg *model.PricingConfig) error
	InsertReservation(ctx context.Context, res *model.Reservation) error
	UpdateReservation(ctx context.Context, res *model.Reservation) error
	UpdateReservationStatus(ctx context.Context, id string, status model.ReservationStatus, deletedAt *time.Time) error
	UpdateReservationPayment(ctx context.Context, id string, paidCents int64, history []model.Payment) error
	UpdateQuantitySelections(ctx context.Context, id string, selections map[string]model.QuantitySelection) error
	GetReservationByID(ctx context.Context, id string) (*model.Reservation, error)
	ListActive(ctx context.Context) ([]model.Reservation, error)
	ListActiveByDate(ctx context.Context, date time.Time) ([]model.Reservation, error)
	ListActiveByDateRange(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	ListTrashed(ctx context.Context) ([]model.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	PurgeTrashedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	InsertExpense(ctx context.Context, e *model.Expense) error
	DeleteExpense(ctx context.Context, id string) error
	ListExpenses(ctx context.Context) ([]model.Expense, error)
}

// Service содержит бизнес-логику сервиса бронирования салона.
type Service struct {
	repo          Repository
	logger        *zap.Logger
	retention     time.Duration
	purgeInterval time.Duration
	now           func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием.
// retention определяет срок хранения корзины, purgeInterval — период
// автоматической очистки.
func NewService(repo Repository, logger *zap.Logger, retention, purgeInterval time.Duration) *Service {
	return &Service{
		repo:          repo,
		logger:        logger,
		retention:     retention,
		purgeInterval: purgeInterval,
		now:           time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// GetConfig возвращает тарифную сетку, создавая запись с умолчаниями при
// первом обращении.
func (s *Service) GetConfig(ctx context.Context) (*model.PricingConfig, error) {
	cfg, err := s.repo.GetConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repository.ErrConfigNotFound) {
		return nil, err
	}

	cfg = model.DefaultPricingConfig()
	if err := s.repo.SaveConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed default config: %w", err)
	}

	return cfg, nil
}

// SaveConfig сохраняет тарифную сетку. Сохранение никогда не запускает
// пересчёт существующих бронирований: для этого есть RecalculateAll.
func (s *Service) SaveConfig(ctx context.Context, cfg *model.PricingConfig) error {
	return s.repo.SaveConfig(ctx, cfg)
}

// CreateReservation рассчитывает черновик по действующим тарифам и сохраняет
// бронирование со снимком цен.
//
// Для салона с ненулевой уборкой дополнительно создаётся запись о расходе.
// Её ошибка не отменяет созданное бронирование: сбой логируется, операция
// считается успешной.
func (s *Service) CreateReservation(ctx context.Context, draft model.ReservationDraft) (*model.Reservation, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	res := s.buildReservation(draft, cfg)

	if err := s.repo.InsertReservation(ctx, res); err != nil {
		return nil, err
	}

	s.recordCleaningExpense(ctx, res)

	return res, nil
}

func (s *Service) buildReservation(draft model.ReservationDraft, cfg *model.PricingConfig) *model.Reservation {
	computed := pricing.Compute(draft, cfg)

	status := draft.Status
	if status == "" {
		status = model.StatusInterested
	}
	resType := draft.Type
	if resType == "" {
		resType = model.TypeSalon
	}

	return &model.Reservation{
		ID:                  uuid.NewString(),
		ClientName:          draft.ClientName,
		Phone:               draft.Phone,
		Date:                draft.Date,
		GuestCount:          draft.GuestCount,
		Type:                resType,
		Status:              status,
		SelectedFixedAddons: computed.SelectedFixedAddons,
		QuantitySelections:  computed.QuantitySelections,
		IncludeCleaning:     draft.IncludeCleaning,
		CleaningCents:       computed.CleaningCents,
		DiscountPercent:     draft.DiscountPercent,
		ExtraCents:          computed.ExtraCents,

		BaseFixedCents:               computed.BaseCents,
		PerPersonFixedCents:          computed.PerPersonCents,
		FixedAddonsTotalFixedCents:   computed.FixedAddonsTotalCents,
		QuantityItemsTotalFixedCents: computed.QuantityItemsTotalCents,
		TotalCents:                   computed.TotalCents,
		TotalBeforeDiscountCents:     computed.TotalBeforeDiscountCents,
		IsWeekend:                    computed.IsWeekend,

		PaymentHistory: []model.Payment{},
		Notes:          draft.Notes,
		CreatedAt:      s.now(),
	}
}

func (s *Service) recordCleaningExpense(ctx context.Context, res *model.Reservation) {
	if res.Type != model.TypeSalon || res.CleaningCents <= 0 {
		return
	}

	expense := &model.Expense{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("Cleaning - %s (%s)", res.ClientName, res.Date.Format(validation.DateLayout)),
		AmountCents: res.CleaningCents,
		Date:        res.Date,
		CreatedAt:   s.now(),
	}

	if err := s.repo.InsertExpense(ctx, expense); err != nil {
		s.logger.Warn("cleaning expense not recorded",
			zap.Error(err),
			zap.String("reservation", res.ID),
		)
	}
}

// ReservationPatch — частичное обновление бронирования. Отсутствующие поля
// сохраняют прежние значения.
type ReservationPatch struct {
	ClientName          *string
	Phone               *string
	Date                *time.Time
	GuestCount          *int
	Type                *model.ReservationType
	Status              *model.ReservationStatus
	SelectedFixedAddons *[]string
	QuantitySelections  *map[string]model.QuantitySelection
	IncludeCleaning     *bool
	CleaningCents       *int64
	DiscountPercent     *float64
	ExtraCents          *int64
	PaidCents           *int64
	PaymentHistory      *[]model.Payment
	Notes               *string
}

// touchesPricing сообщает, затрагивает ли патч входные данные движка расчёта.
// Телефон, заметки, статус и поля оплаты меняются без пересчёта цен.
func (p *ReservationPatch) touchesPricing() bool {
	return p.Date != nil || p.GuestCount != nil || p.Type != nil ||
		p.SelectedFixedAddons != nil || p.QuantitySelections != nil ||
		p.IncludeCleaning != nil || p.CleaningCents != nil ||
		p.DiscountPercent != nil || p.ExtraCents != nil
}

func (p *ReservationPatch) apply(res *model.Reservation) {
	if p.ClientName != nil {
		res.ClientName = *p.ClientName
	}
	if p.Phone != nil {
		res.Phone = *p.Phone
	}
	if p.Date != nil {
		res.Date = *p.Date
	}
	if p.GuestCount != nil {
		res.GuestCount = *p.GuestCount
	}
	if p.Type != nil {
		res.Type = *p.Type
	}
	if p.Status != nil {
		res.Status = *p.Status
	}
	if p.SelectedFixedAddons != nil {
		res.SelectedFixedAddons = *p.SelectedFixedAddons
	}
	if p.QuantitySelections != nil {
		res.QuantitySelections = *p.QuantitySelections
	}
	if p.IncludeCleaning != nil {
		res.IncludeCleaning = *p.IncludeCleaning
	}
	if p.CleaningCents != nil {
		res.CleaningCents = *p.CleaningCents
	}
	if p.DiscountPercent != nil {
		res.DiscountPercent = *p.DiscountPercent
	}
	if p.ExtraCents != nil {
		res.ExtraCents = *p.ExtraCents
	}
	if p.PaidCents != nil {
		res.PaidCents = *p.PaidCents
	}
	if p.PaymentHistory != nil {
		res.PaymentHistory = *p.PaymentHistory
	}
	if p.Notes != nil {
		res.Notes = *p.Notes
	}
}

// UpdateReservation применяет частичное обновление.
//
// Если патч затрагивает ценовые входы, объединённый черновик пересчитывается
// по действующим тарифам; зафиксированные на позициях каталога цены при этом
// сохраняются, пока патч не заменил выборку явно. Патч, меняющий только
// телефон, заметки, статус или оплату, цены не трогает.
func (s *Service) UpdateReservation(ctx context.Context, id string, patch ReservationPatch) (*model.Reservation, error) {
	res, err := s.repo.GetReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.apply(res)

	if patch.touchesPricing() {
		cfg, err := s.GetConfig(ctx)
		if err != nil {
			return nil, err
		}

		computed := pricing.Compute(draftFromReservation(res, false), cfg)

		res.SelectedFixedAddons = computed.SelectedFixedAddons
		res.QuantitySelections = computed.QuantitySelections
		res.CleaningCents = computed.CleaningCents
		res.BaseFixedCents = computed.BaseCents
		res.PerPersonFixedCents = computed.PerPersonCents
		res.FixedAddonsTotalFixedCents = computed.FixedAddonsTotalCents
		res.QuantityItemsTotalFixedCents = computed.QuantityItemsTotalCents
		res.TotalCents = computed.TotalCents
		res.TotalBeforeDiscountCents = computed.TotalBeforeDiscountCents
		res.IsWeekend = computed.IsWeekend
	}

	if err := s.repo.UpdateReservation(ctx, res); err != nil {
		return nil, err
	}

	return res, nil
}

// draftFromReservation восстанавливает черновик из сохранённых полей.
// При dropSnapshots зафиксированные цены позиций каталога сбрасываются,
// чтобы движок заново взял их из действующих тарифов.
func draftFromReservation(res *model.Reservation, dropSnapshots bool) model.ReservationDraft {
	selections := make(map[string]model.QuantitySelection, len(res.QuantitySelections))
	for id, sel := range res.QuantitySelections {
		if dropSnapshots {
			sel.UnitPriceCents = nil
		}
		selections[id] = sel
	}

	return model.ReservationDraft{
		ClientName:          res.ClientName,
		Phone:               res.Phone,
		Date:                res.Date,
		GuestCount:          res.GuestCount,
		Type:                res.Type,
		Status:              res.Status,
		SelectedFixedAddons: res.SelectedFixedAddons,
		QuantitySelections:  selections,
		IncludeCleaning:     res.IncludeCleaning,
		CleaningCents:       res.CleaningCents,
		DiscountPercent:     res.DiscountPercent,
		ExtraCents:          res.ExtraCents,
		Notes:               res.Notes,
	}
}

// GetReservationByID возвращает бронирование по идентификатору.
func (s *Service) GetReservationByID(ctx context.Context, id string) (*model.Reservation, error) {
	return s.repo.GetReservationByID(ctx, id)
}

// ListActive возвращает активные бронирования.
func (s *Service) ListActive(ctx context.Context) ([]model.Reservation, error) {
	return s.repo.ListActive(ctx)
}

// ListActiveByDate возвращает активные бронирования на дату.
func (s *Service) ListActiveByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
	return s.repo.ListActiveByDate(ctx, date)
}

// ListActiveByMonth возвращает активные бронирования календарного месяца.
func (s *Service) ListActiveByMonth(ctx context.Context, month time.Time) ([]model.Reservation, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	return s.repo.ListActiveByDateRange(ctx, from, from.AddDate(0, 1, 0))
}

// ListTrashed возвращает содержимое корзины.
func (s *Service) ListTrashed(ctx context.Context) ([]model.Reservation, error) {
	return s.repo.ListTrashed(ctx)
}

// SetStatusByDate назначает статус для календарной даты.
//
// Если активных бронирований на дату нет, создаётся нулевая заглушка с
// запрошенным статусом. Иначе статус меняется у последнего созданного
// активного бронирования этой даты.
func (s *Service) SetStatusByDate(ctx context.Context, date time.Time, status model.ReservationStatus) (*model.Reservation, error) {
	existing, err := s.repo.ListActiveByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	if len(existing) == 0 {
		placeholder := &model.Reservation{
			ID:                  uuid.NewString(),
			ClientName:          "Interested",
			Date:                date,
			Type:                model.TypeSalon,
			Status:              status,
			SelectedFixedAddons: []string{},
			QuantitySelections:  map[string]model.QuantitySelection{},
			IsWeekend:           pricing.IsWeekend(date),
			PaymentHistory:      []model.Payment{},
			CreatedAt:           s.now(),
		}

		if err := s.repo.InsertReservation(ctx, placeholder); err != nil {
			return nil, err
		}

		return placeholder, nil
	}

	// Репозиторий сортирует по created_at по убыванию: первый — самый новый.
	target := existing[0]
	if err := s.repo.UpdateReservationStatus(ctx, target.ID, status, nil); err != nil {
		return nil, err
	}
	target.Status = status

	return &target, nil
}

// TrashReservation перемещает бронирование в корзину. Ценовые поля не меняются.
func (s *Service) TrashReservation(ctx context.Context, id string) error {
	deletedAt := s.now()
	return s.repo.UpdateReservationStatus(ctx, id, model.StatusTrashed, &deletedAt)
}

// RecoverReservation возвращает бронирование из корзины.
// Статус всегда становится confirmed: прежний статус не восстанавливается.
func (s *Service) RecoverReservation(ctx context.Context, id string) error {
	return s.repo.UpdateReservationStatus(ctx, id, model.StatusConfirmed, nil)
}

// DeleteReservation безвозвратно удаляет бронирование независимо от статуса
// и возраста.
func (s *Service) DeleteReservation(ctx context.Context, id string) error {
	return s.repo.DeleteReservation(ctx, id)
}

// PurgeExpiredTrash безвозвратно удаляет из корзины бронирования старше
// срока хранения и возвращает их число.
func (s *Service) PurgeExpiredTrash(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	return s.repo.PurgeTrashedBefore(ctx, cutoff)
}

// StartTrashPurger запускает фоновую периодическую очистку корзины.
func (s *Service) StartTrashPurger(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.purgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := s.PurgeExpiredTrash(ctx)
				if err != nil {
					s.logger.Warn("trash purge failed", zap.Error(err))
					continue
				}
				if purged > 0 {
					s.logger.Info("trash purged", zap.Int64("reservations", purged))
				}
			}
		}
	}()
}

// RecordPayment записывает частичную оплату бронирования.
//
// Платёж отклоняется, если сумма неположительна или превышает остаток к
// оплате; состояние бронирования при отказе не меняется.
func (s *Service) RecordPayment(ctx context.Context, id string, amountCents int64, date time.Time) (*model.Reservation, error) {
	if amountCents <= 0 {
		return nil, ErrPaymentNotPositive
	}

	res, err := s.repo.GetReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if amountCents > res.RemainingCents() {
		return nil, ErrPaymentExceedsBalance
	}

	res.PaymentHistory = append(res.PaymentHistory, model.Payment{Date: date, AmountCents: amountCents})
	res.PaidCents += amountCents

	if err := s.repo.UpdateReservationPayment(ctx, res.ID, res.PaidCents, res.PaymentHistory); err != nil {
		return nil, err
	}

	return res, nil
}

// BatchResult — итог пакетной операции. Ошибки отдельных строк накапливаются,
// не прерывая обработку остальных.
type BatchResult struct {
	Processed int
	Updated   int
	Errors    []string
}

// RecalculateAll пересчитывает все активные бронирования по действующим
// тарифам. Это единственный путь, которым изменение тарифов попадает в
// исторические суммы: зафиксированные цены позиций каталога сбрасываются,
// и строка перезаписывается только при изменении итога.
func (s *Service) RecalculateAll(ctx context.Context) (*BatchResult, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}

	reservations, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	result := &BatchResult{}
	for i := range reservations {
		res := reservations[i]
		result.Processed++

		computed := pricing.Compute(draftFromReservation(&res, true), cfg)
		if computed.TotalCents == res.TotalCents {
			continue
		}

		res.SelectedFixedAddons = computed.SelectedFixedAddons
		res.QuantitySelections = computed.QuantitySelections
		res.CleaningCents = computed.CleaningCents
		res.BaseFixedCents = computed.BaseCents
		res.PerPersonFixedCents = computed.PerPersonCents
		res.FixedAddonsTotalFixedCents = computed.FixedAddonsTotalCents
		res.QuantityItemsTotalFixedCents = computed.QuantityItemsTotalCents
		res.TotalCents = computed.TotalCents
		res.TotalBeforeDiscountCents = computed.TotalBeforeDiscountCents
		res.IsWeekend = computed.IsWeekend

		if err := s.repo.UpdateReservation(ctx, &res); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reservation %s: %v", res.ID, err))
			continue
		}
		result.Updated++
	}

	return result, nil
}

// MigrateQuantityFormats переводит устаревшие скалярные выборки каталога в
// структурный формат, фиксируя действующую цену за единицу. Позиции,
// отсутствующие в тарифах, отбрасываются. Итоговые суммы намеренно не
// пересчитываются: структурная миграция не должна менять исторические цены.
func (s *Service) MigrateQuantityFormats(ctx context.Context) (*BatchResult, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}

	reservations, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	result := &BatchResult{}
	for i := range reservations {
		res := reservations[i]
		result.Processed++

		migrated := make(map[string]model.QuantitySelection, len(res.QuantitySelections))
		changed := false

		for id, sel := range res.QuantitySelections {
			if !sel.Legacy() {
				migrated[id] = sel
				continue
			}

			changed = true
			item, ok := cfg.FindQuantityItem(id)
			if !ok {
				continue
			}
			price := item.UnitPriceCents
			migrated[id] = model.QuantitySelection{Quantity: sel.Quantity, UnitPriceCents: &price}
		}

		if !changed {
			continue
		}

		if err := s.repo.UpdateQuantitySelections(ctx, res.ID, migrated); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("reservation %s: %v", res.ID, err))
			continue
		}
		result.Updated++
	}

	return result, nil
}

// ImportDrafts проводит черновики из внешнего источника через обычный
// конвейер создания. Черновики без типа помечаются как migrated.
func (s *Service) ImportDrafts(ctx context.Context, drafts []model.ReservationDraft) (*BatchResult, error) {
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}

	result := &BatchResult{}
	for i, draft := range drafts {
		result.Processed++

		if draft.Type == "" {
			draft.Type = model.TypeMigrated
		}

		res := s.buildReservation(draft, cfg)
		if err := s.repo.InsertReservation(ctx, res); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("draft %d (%s): %v", i, draft.ClientName, err))
			continue
		}

		s.recordCleaningExpense(ctx, res)
		result.Updated++
	}

	return result, nil
}

// MonthlyReport возвращает активные бронирования месяца по возрастанию даты
// с финансовой сводкой.
func (s *Service) MonthlyReport(ctx context.Context, month time.Time) (*model.MonthlyReport, error) {
	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	to := from.AddDate(0, 1, 0)

	reservations, err := s.repo.ListActiveByDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &model.MonthlyReport{
		Month:            from.Format(validation.MonthLayout),
		Reservations:     reservations,
		ReservationCount: len(reservations),
	}
	for _, res := range reservations {
		report.TotalGuests += res.GuestCount
		report.TotalExpectedCents += res.TotalCents
		report.TotalPaidCents += res.PaidCents
	}

	return report, nil
}

// AddExpense записывает расход в журнал.
func (s *Service) AddExpense(ctx context.Context, name string, amountCents int64, date time.Time) (*model.Expense, error) {
	expense := &model.Expense{
		ID:          uuid.NewString(),
		Name:        name,
		AmountCents: amountCents,
		Date:        date,
		CreatedAt:   s.now(),
	}

	if err := s.repo.InsertExpense(ctx, expense); err != nil {
		return nil, err
	}

	return expense, nil
}

// DeleteExpense удаляет запись о расходе.
func (s *Service) DeleteExpense(ctx context.Context, id string) error {
	return s.repo.DeleteExpense(ctx, id)
}

// ListExpenses возвращает журнал расходов.
func (s *Service) ListExpenses(ctx context.Context) ([]model.Expense, error) {
	return s.repo.ListExpenses(ctx)
}
