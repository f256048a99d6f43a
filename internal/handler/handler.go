// Package handler реализует HTTP-интерфейс сервиса бронирования салона.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/salonbook-system/internal/middleware"
	"github.com/mmeshcher/salonbook-system/internal/model"
	"github.com/mmeshcher/salonbook-system/internal/repository"
	"github.com/mmeshcher/salonbook-system/internal/service"
	"github.com/mmeshcher/salonbook-system/internal/validation"
)

// Service описывает контракт бизнес-логики, используемый HTTP-обработчиками.
type Service interface {
	GetConfig(ctx context.Context) (*model.PricingConfig, error)
	SaveConfig(ctx context.Context, cfg *model.PricingConfig) error
	CreateReservation(ctx context.Context, draft model.ReservationDraft) (*model.Reservation, error)
	UpdateReservation(ctx context.Context, id string, patch service.ReservationPatch) (*model.Reservation, error)
	GetReservationByID(ctx context.Context, id string) (*model.Reservation, error)
	ListActive(ctx context.Context) ([]model.Reservation, error)
	ListActiveByDate(ctx context.Context, date time.Time) ([]model.Reservation, error)
	ListActiveByMonth(ctx context.Context, month time.Time) ([]model.Reservation, error)
	ListTrashed(ctx context.Context) ([]model.Reservation, error)
	SetStatusByDate(ctx context.Context, date time.Time, status model.ReservationStatus) (*model.Reservation, error)
	TrashReservation(ctx context.Context, id string) error
	RecoverReservation(ctx context.Context, id string) error
	DeleteReservation(ctx context.Context, id string) error
	PurgeExpiredTrash(ctx context.Context) (int64, error)
	RecordPayment(ctx context.Context, id string, amountCents int64, date time.Time) (*model.Reservation, error)
	RecalculateAll(ctx context.Context) (*service.BatchResult, error)
	MigrateQuantityFormats(ctx context.Context) (*service.BatchResult, error)
	ImportDrafts(ctx context.Context, drafts []model.ReservationDraft) (*service.BatchResult, error)
	MonthlyReport(ctx context.Context, month time.Time) (*model.MonthlyReport, error)
	AddExpense(ctx context.Context, name string, amountCents int64, date time.Time) (*model.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	ListExpenses(ctx context.Context) ([]model.Expense, error)
}

// Handler обрабатывает HTTP-запросы панели бронирования.
type Handler struct {
	service       Service
	logger        *zap.Logger
	auth          *middleware.AuthMiddleware
	adminPassword string
}

// NewHandler создаёт новый обработчик HTTP-запросов.
func NewHandler(svc Service, logger *zap.Logger, auth *middleware.AuthMiddleware, adminPassword string) *Handler {
	return &Handler{
		service:       svc,
		logger:        logger,
		auth:          auth,
		adminPassword: adminPassword,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeServiceError переводит ошибки бизнес-логики в HTTP-статусы.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, repository.ErrReservationNotFound),
		errors.Is(err, repository.ErrExpenseNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrPaymentNotPositive),
		errors.Is(err, service.ErrPaymentExceedsBalance):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.logger.Error(op, zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Login проверяет пароль администратора и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.adminPassword)) != 1 {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.auth.SetAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// Logout завершает сессию администратора.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// GetConfig возвращает действующую тарифную сетку.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to get config")
		return
	}

	h.writeJSON(w, http.StatusOK, configToPayload(cfg))
}

// SaveConfig сохраняет тарифную сетку. Существующие бронирования при этом
// не пересчитываются.
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var payload configPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	cfg := payload.toConfig()
	if err := h.service.SaveConfig(r.Context(), cfg); err != nil {
		h.writeServiceError(w, err, "failed to save config")
		return
	}

	h.writeJSON(w, http.StatusOK, configToPayload(cfg))
}

// ListReservations возвращает активные бронирования. Параметры date и month
// сужают выборку до одной даты или календарного месяца.
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	var (
		reservations []model.Reservation
		err          error
	)

	switch {
	case r.URL.Query().Get("date") != "":
		date, parseErr := validation.ParseDate(r.URL.Query().Get("date"))
		if parseErr != nil {
			http.Error(w, errInvalidDate.Error(), http.StatusBadRequest)
			return
		}
		reservations, err = h.service.ListActiveByDate(r.Context(), date)
	case r.URL.Query().Get("month") != "":
		month, parseErr := validation.ParseMonth(r.URL.Query().Get("month"))
		if parseErr != nil {
			http.Error(w, "invalid month, expected YYYY-MM", http.StatusBadRequest)
			return
		}
		reservations, err = h.service.ListActiveByMonth(r.Context(), month)
	default:
		reservations, err = h.service.ListActive(r.Context())
	}
	if err != nil {
		h.writeServiceError(w, err, "failed to list reservations")
		return
	}

	h.writeJSON(w, http.StatusOK, reservationsToResponse(reservations))
}

// CreateReservation создаёт бронирование с расчётом и фиксацией цен.
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.CreateReservation(r.Context(), draft)
	if err != nil {
		h.writeServiceError(w, err, "failed to create reservation")
		return
	}

	h.writeJSON(w, http.StatusCreated, reservationToResponse(res))
}

// GetReservation возвращает бронирование по идентификатору.
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetReservationByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to get reservation")
		return
	}

	h.writeJSON(w, http.StatusOK, reservationToResponse(res))
}

// PatchReservation применяет частичное обновление бронирования.
func (h *Handler) PatchReservation(w http.ResponseWriter, r *http.Request) {
	var req reservationPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	patch, err := req.toPatch()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.UpdateReservation(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeServiceError(w, err, "failed to update reservation")
		return
	}

	h.writeJSON(w, http.StatusOK, reservationToResponse(res))
}

// DeleteReservation безвозвратно удаляет бронирование.
func (h *Handler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteReservation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "failed to delete reservation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TrashReservation перемещает бронирование в корзину.
func (h *Handler) TrashReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.TrashReservation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "failed to trash reservation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecoverReservation возвращает бронирование из корзины со статусом confirmed.
func (h *Handler) RecoverReservation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RecoverReservation(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "failed to recover reservation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordPayment записывает частичную оплату бронирования.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	date, err := validation.ParseDate(req.Date)
	if err != nil {
		http.Error(w, errInvalidDate.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.RecordPayment(r.Context(), chi.URLParam(r, "id"), amountToCents(req.Amount), date)
	if err != nil {
		h.writeServiceError(w, err, "failed to record payment")
		return
	}

	h.writeJSON(w, http.StatusOK, reservationToResponse(res))
}

// SetStatusByDate назначает статус для календарной даты.
func (h *Handler) SetStatusByDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date   string `json:"date"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	date, err := validation.ParseDate(req.Date)
	if err != nil {
		http.Error(w, errInvalidDate.Error(), http.StatusBadRequest)
		return
	}
	status := model.ReservationStatus(req.Status)
	if !validation.IsValidActiveStatus(status) {
		http.Error(w, errInvalidStatus.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.service.SetStatusByDate(r.Context(), date, status)
	if err != nil {
		h.writeServiceError(w, err, "failed to set status by date")
		return
	}

	h.writeJSON(w, http.StatusOK, reservationToResponse(res))
}

// ListTrash возвращает содержимое корзины.
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.ListTrashed(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list trash")
		return
	}

	h.writeJSON(w, http.StatusOK, reservationsToResponse(reservations))
}

// PurgeTrash безвозвратно удаляет из корзины просроченные бронирования.
func (h *Handler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	purged, err := h.service.PurgeExpiredTrash(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to purge trash")
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Purged int64 `json:"purged"`
	}{Purged: purged})
}

// RecalculateAll пересчитывает все активные бронирования по действующим тарифам.
func (h *Handler) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecalculateAll(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to recalculate reservations")
		return
	}

	h.writeJSON(w, http.StatusOK, batchToResponse(result))
}

// MigrateQuantities переводит устаревший формат выборок каталога в структурный.
func (h *Handler) MigrateQuantities(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.MigrateQuantityFormats(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to migrate quantity formats")
		return
	}

	h.writeJSON(w, http.StatusOK, batchToResponse(result))
}

// ImportReservations проводит внешние черновики через конвейер создания.
func (h *Handler) ImportReservations(w http.ResponseWriter, r *http.Request) {
	var reqs []reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	drafts := make([]model.ReservationDraft, 0, len(reqs))
	for _, req := range reqs {
		draft, err := req.toDraft()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		drafts = append(drafts, draft)
	}

	result, err := h.service.ImportDrafts(r.Context(), drafts)
	if err != nil {
		h.writeServiceError(w, err, "failed to import reservations")
		return
	}

	h.writeJSON(w, http.StatusOK, batchToResponse(result))
}

// MonthlyReport возвращает сводку по бронированиям за месяц.
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	month, err := validation.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, "invalid month, expected YYYY-MM", http.StatusBadRequest)
		return
	}

	report, err := h.service.MonthlyReport(r.Context(), month)
	if err != nil {
		h.writeServiceError(w, err, "failed to build monthly report")
		return
	}

	h.writeJSON(w, http.StatusOK, monthlyReportResponse{
		Month:            report.Month,
		ReservationCount: report.ReservationCount,
		TotalGuests:      report.TotalGuests,
		TotalExpected:    centsToAmount(report.TotalExpectedCents),
		TotalPaid:        centsToAmount(report.TotalPaidCents),
		Reservations:     reservationsToResponse(report.Reservations),
	})
}

// ListExpenses возвращает журнал расходов.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.service.ListExpenses(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "failed to list expenses")
		return
	}

	resp := make([]expenseResponse, 0, len(expenses))
	for i := range expenses {
		resp = append(resp, expenseToResponse(&expenses[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AddExpense записывает расход в журнал.
func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Amount <= 0 {
		http.Error(w, "expense requires a name and a positive amount", http.StatusBadRequest)
		return
	}
	date, err := validation.ParseDate(req.Date)
	if err != nil {
		http.Error(w, errInvalidDate.Error(), http.StatusBadRequest)
		return
	}

	expense, err := h.service.AddExpense(r.Context(), req.Name, amountToCents(req.Amount), date)
	if err != nil {
		h.writeServiceError(w, err, "failed to add expense")
		return
	}

	h.writeJSON(w, http.StatusCreated, expenseToResponse(expense))
}

// DeleteExpense удаляет запись о расходе.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteExpense(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err, "failed to delete expense")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
