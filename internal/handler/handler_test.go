package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/salonbook-system/internal/middleware"
	"github.com/mmeshcher/salonbook-system/internal/model"
	"github.com/mmeshcher/salonbook-system/internal/repository"
	"github.com/mmeshcher/salonbook-system/internal/service"
)

type stubService struct {
	getConfigFn         func(ctx context.Context) (*model.PricingConfig, error)
	createReservationFn func(ctx context.Context, draft model.ReservationDraft) (*model.Reservation, error)
	getReservationFn    func(ctx context.Context, id string) (*model.Reservation, error)
	recordPaymentFn     func(ctx context.Context, id string, amountCents int64, date time.Time) (*model.Reservation, error)
	recalculateAllFn    func(ctx context.Context) (*service.BatchResult, error)
	monthlyReportFn     func(ctx context.Context, month time.Time) (*model.MonthlyReport, error)
}

func (s *stubService) GetConfig(ctx context.Context) (*model.PricingConfig, error) {
	if s.getConfigFn != nil {
		return s.getConfigFn(ctx)
	}
	return model.DefaultPricingConfig(), nil
}

func (s *stubService) SaveConfig(ctx context.Context, cfg *model.PricingConfig) error { return nil }

func (s *stubService) CreateReservation(ctx context.Context, draft model.ReservationDraft) (*model.Reservation, error) {
	if s.createReservationFn != nil {
		return s.createReservationFn(ctx, draft)
	}
	return nil, repository.ErrReservationNotFound
}

func (s *stubService) UpdateReservation(ctx context.Context, id string, patch service.ReservationPatch) (*model.Reservation, error) {
	return nil, repository.ErrReservationNotFound
}

func (s *stubService) GetReservationByID(ctx context.Context, id string) (*model.Reservation, error) {
	if s.getReservationFn != nil {
		return s.getReservationFn(ctx, id)
	}
	return nil, repository.ErrReservationNotFound
}

func (s *stubService) ListActive(ctx context.Context) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}

func (s *stubService) ListActiveByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}

func (s *stubService) ListActiveByMonth(ctx context.Context, month time.Time) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}

func (s *stubService) ListTrashed(ctx context.Context) ([]model.Reservation, error) {
	return []model.Reservation{}, nil
}

func (s *stubService) SetStatusByDate(ctx context.Context, date time.Time, status model.ReservationStatus) (*model.Reservation, error) {
	return nil, repository.ErrReservationNotFound
}

func (s *stubService) TrashReservation(ctx context.Context, id string) error   { return nil }
func (s *stubService) RecoverReservation(ctx context.Context, id string) error { return nil }
func (s *stubService) DeleteReservation(ctx context.Context, id string) error  { return nil }

func (s *stubService) PurgeExpiredTrash(ctx context.Context) (int64, error) { return 0, nil }

func (s *stubService) RecordPayment(ctx context.Context, id string, amountCents int64, date time.Time) (*model.Reservation, error) {
	if s.recordPaymentFn != nil {
		return s.recordPaymentFn(ctx, id, amountCents, date)
	}
	return nil, repository.ErrReservationNotFound
}

func (s *stubService) RecalculateAll(ctx context.Context) (*service.BatchResult, error) {
	if s.recalculateAllFn != nil {
		return s.recalculateAllFn(ctx)
	}
	return &service.BatchResult{}, nil
}

func (s *stubService) MigrateQuantityFormats(ctx context.Context) (*service.BatchResult, error) {
	return &service.BatchResult{}, nil
}

func (s *stubService) ImportDrafts(ctx context.Context, drafts []model.ReservationDraft) (*service.BatchResult, error) {
	return &service.BatchResult{Processed: len(drafts), Updated: len(drafts)}, nil
}

func (s *stubService) MonthlyReport(ctx context.Context, month time.Time) (*model.MonthlyReport, error) {
	if s.monthlyReportFn != nil {
		return s.monthlyReportFn(ctx, month)
	}
	return &model.MonthlyReport{Month: month.Format("2006-01"), Reservations: []model.Reservation{}}, nil
}

func (s *stubService) AddExpense(ctx context.Context, name string, amountCents int64, date time.Time) (*model.Expense, error) {
	return &model.Expense{ID: "e1", Name: name, AmountCents: amountCents, Date: date, CreatedAt: time.Now()}, nil
}

func (s *stubService) DeleteExpense(ctx context.Context, id string) error { return nil }

func (s *stubService) ListExpenses(ctx context.Context) ([]model.Expense, error) {
	return []model.Expense{}, nil
}

const testAdminPassword = "correct-password"

func newTestServer(svc Service) (*httptest.Server, *middleware.AuthMiddleware) {
	auth := middleware.NewAuthMiddleware("test-secret")
	h := NewHandler(svc, zap.NewNop(), auth, testAdminPassword)
	return httptest.NewServer(h.SetupRouter()), auth
}

func authCookie(auth *middleware.AuthMiddleware) *http.Cookie {
	rec := httptest.NewRecorder()
	auth.SetAuthCookie(rec)
	return rec.Result().Cookies()[0]
}

func doRequest(t *testing.T, srv *httptest.Server, cookie *http.Cookie, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return res
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(&stubService{})
	defer srv.Close()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCookie bool
	}{
		{name: "correct password", body: `{"password":"correct-password"}`, wantStatus: http.StatusOK, wantCookie: true},
		{name: "wrong password", body: `{"password":"nope"}`, wantStatus: http.StatusUnauthorized},
		{name: "empty body", body: `{}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := doRequest(t, srv, nil, http.MethodPost, "/api/login", tt.body)
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if tt.wantCookie && len(res.Cookies()) == 0 {
				t.Fatalf("expected auth cookie to be set")
			}
		})
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv, _ := newTestServer(&stubService{})
	defer srv.Close()

	res := doRequest(t, srv, nil, http.MethodGet, "/api/reservations", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateReservation(t *testing.T) {
	svc := &stubService{
		createReservationFn: func(ctx context.Context, draft model.ReservationDraft) (*model.Reservation, error) {
			return &model.Reservation{
				ID:                  "r1",
				ClientName:          draft.ClientName,
				Date:                draft.Date,
				GuestCount:          draft.GuestCount,
				Type:                model.TypeSalon,
				Status:              model.StatusInterested,
				SelectedFixedAddons: []string{},
				QuantitySelections:  map[string]model.QuantitySelection{},
				BaseFixedCents:      14000000,
				TotalCents:          34000000,
				IsWeekend:           true,
				PaymentHistory:      []model.Payment{},
				CreatedAt:           time.Now(),
			}, nil
		},
	}
	srv, auth := newTestServer(svc)
	defer srv.Close()
	cookie := authCookie(auth)

	body := `{"clientName":"Anna","date":"2024-06-15","guestCount":50}`
	res := doRequest(t, srv, cookie, http.MethodPost, "/api/reservations", body)
	defer res.Body.Close()

	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var got reservationResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "r1" || got.Total != 340000 || got.BaseFixed != 140000 || !got.IsWeekend {
		t.Fatalf("unexpected response: %+v", got)
	}
}

func TestCreateReservationInvalidDate(t *testing.T) {
	srv, auth := newTestServer(&stubService{})
	defer srv.Close()
	cookie := authCookie(auth)

	res := doRequest(t, srv, cookie, http.MethodPost, "/api/reservations", `{"clientName":"Anna","date":"15.06.2024"}`)
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestGetReservationNotFound(t *testing.T) {
	srv, auth := newTestServer(&stubService{})
	defer srv.Close()
	cookie := authCookie(auth)

	res := doRequest(t, srv, cookie, http.MethodGet, "/api/reservations/missing", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestRecordPaymentErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not positive", err: service.ErrPaymentNotPositive, wantStatus: http.StatusUnprocessableEntity},
		{name: "exceeds balance", err: service.ErrPaymentExceedsBalance, wantStatus: http.StatusUnprocessableEntity},
		{name: "not found", err: repository.ErrReservationNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				recordPaymentFn: func(ctx context.Context, id string, amountCents int64, date time.Time) (*model.Reservation, error) {
					return nil, tt.err
				},
			}
			srv, auth := newTestServer(svc)
			defer srv.Close()

			res := doRequest(t, srv, authCookie(auth), http.MethodPost,
				"/api/reservations/r1/payments", `{"date":"2024-06-15","amount":100}`)
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestRecalculateAllResponse(t *testing.T) {
	svc := &stubService{
		recalculateAllFn: func(ctx context.Context) (*service.BatchResult, error) {
			return &service.BatchResult{Processed: 3, Updated: 1, Errors: []string{"reservation r2: boom"}}, nil
		},
	}
	srv, auth := newTestServer(svc)
	defer srv.Close()

	res := doRequest(t, srv, authCookie(auth), http.MethodPost, "/api/reservations/recalculate", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var got batchResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Processed != 3 || got.Updated != 1 || len(got.Errors) != 1 {
		t.Fatalf("unexpected batch response: %+v", got)
	}
}

func TestMonthlyReportInvalidMonth(t *testing.T) {
	srv, auth := newTestServer(&stubService{})
	defer srv.Close()

	res := doRequest(t, srv, authCookie(auth), http.MethodGet, "/api/reports/monthly?month=June", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestMonthlyReport(t *testing.T) {
	svc := &stubService{
		monthlyReportFn: func(ctx context.Context, month time.Time) (*model.MonthlyReport, error) {
			return &model.MonthlyReport{
				Month:              "2024-06",
				Reservations:       []model.Reservation{},
				ReservationCount:   2,
				TotalGuests:        80,
				TotalExpectedCents: 50000000,
				TotalPaidCents:     10000000,
			}, nil
		},
	}
	srv, auth := newTestServer(svc)
	defer srv.Close()

	res := doRequest(t, srv, authCookie(auth), http.MethodGet, "/api/reports/monthly?month=2024-06", "")
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var got monthlyReportResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Month != "2024-06" || got.TotalExpected != 500000 || got.TotalPaid != 100000 || got.TotalGuests != 80 {
		t.Fatalf("unexpected report: %+v", got)
	}
}
