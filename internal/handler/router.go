package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/salonbook-system/internal/middleware"
)

// SetupRouter создаёт маршрутизатор со всеми эндпоинтами панели бронирования.
func (h *Handler) SetupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.GzipMiddleware)
	r.Use(middleware.Logger(h.logger))

	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)

		r.Get("/api/config", h.GetConfig)
		r.Put("/api/config", h.SaveConfig)

		r.Get("/api/reservations", h.ListReservations)
		r.Post("/api/reservations", h.CreateReservation)
		r.Post("/api/reservations/status-by-date", h.SetStatusByDate)
		r.Post("/api/reservations/recalculate", h.RecalculateAll)
		r.Post("/api/reservations/migrate-quantities", h.MigrateQuantities)
		r.Post("/api/reservations/import", h.ImportReservations)
		r.Get("/api/reservations/{id}", h.GetReservation)
		r.Patch("/api/reservations/{id}", h.PatchReservation)
		r.Delete("/api/reservations/{id}", h.DeleteReservation)
		r.Post("/api/reservations/{id}/trash", h.TrashReservation)
		r.Post("/api/reservations/{id}/recover", h.RecoverReservation)
		r.Post("/api/reservations/{id}/payments", h.RecordPayment)

		r.Get("/api/trash", h.ListTrash)
		r.Post("/api/trash/purge", h.PurgeTrash)

		r.Get("/api/reports/monthly", h.MonthlyReport)

		r.Get("/api/expenses", h.ListExpenses)
		r.Post("/api/expenses", h.AddExpense)
		r.Delete("/api/expenses/{id}", h.DeleteExpense)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
