package handler

import (
	"errors"
	"math"
	"time"

	"github.com/mmeshcher/salonbook-system/internal/model"
	"github.com/mmeshcher/salonbook-system/internal/service"
	"github.com/mmeshcher/salonbook-system/internal/validation"
)

// Денежные суммы хранятся в копейках, а в API отдаются в валютных единицах.
func centsToAmount(c int64) float64 {
	return float64(c) / 100
}

func amountToCents(a float64) int64 {
	return int64(math.Round(a * 100))
}

var (
	errInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	errInvalidType     = errors.New("invalid reservation type")
	errInvalidStatus   = errors.New("invalid reservation status")
	errInvalidDiscount = errors.New("discount percent must be between 0 and 100")
	errNegativeGuests  = errors.New("guest count must not be negative")
)

type addonPayload struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type quantityItemPayload struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
}

type configPayload struct {
	BaseWeekday         float64               `json:"baseWeekday"`
	BaseWeekend         float64               `json:"baseWeekend"`
	PerPersonWeekday    float64               `json:"perPersonWeekday"`
	PerPersonWeekend    float64               `json:"perPersonWeekend"`
	PatioBasePrice      float64               `json:"patioBasePrice"`
	DefaultCleaningCost float64               `json:"defaultCleaningCost"`
	FixedAddons         []addonPayload        `json:"fixedAddons"`
	QuantityItems       []quantityItemPayload `json:"quantityItems"`
	UpdatedAt           string                `json:"updatedAt,omitempty"`
}

func configToPayload(cfg *model.PricingConfig) configPayload {
	p := configPayload{
		BaseWeekday:         centsToAmount(cfg.BaseWeekdayCents),
		BaseWeekend:         centsToAmount(cfg.BaseWeekendCents),
		PerPersonWeekday:    centsToAmount(cfg.PerPersonWeekdayCents),
		PerPersonWeekend:    centsToAmount(cfg.PerPersonWeekendCents),
		PatioBasePrice:      centsToAmount(cfg.PatioBaseCents),
		DefaultCleaningCost: centsToAmount(cfg.DefaultCleaningCents),
		FixedAddons:         make([]addonPayload, 0, len(cfg.FixedAddons)),
		QuantityItems:       make([]quantityItemPayload, 0, len(cfg.QuantityItems)),
	}
	if !cfg.UpdatedAt.IsZero() {
		p.UpdatedAt = cfg.UpdatedAt.Format(time.RFC3339)
	}

	for _, a := range cfg.FixedAddons {
		p.FixedAddons = append(p.FixedAddons, addonPayload{
			ID: a.ID, Name: a.Name, Price: centsToAmount(a.PriceCents),
		})
	}
	for _, it := range cfg.QuantityItems {
		p.QuantityItems = append(p.QuantityItems, quantityItemPayload{
			ID: it.ID, Name: it.Name, UnitPrice: centsToAmount(it.UnitPriceCents),
		})
	}

	return p
}

func (p *configPayload) toConfig() *model.PricingConfig {
	cfg := &model.PricingConfig{
		BaseWeekdayCents:      amountToCents(p.BaseWeekday),
		BaseWeekendCents:      amountToCents(p.BaseWeekend),
		PerPersonWeekdayCents: amountToCents(p.PerPersonWeekday),
		PerPersonWeekendCents: amountToCents(p.PerPersonWeekend),
		PatioBaseCents:        amountToCents(p.PatioBasePrice),
		DefaultCleaningCents:  amountToCents(p.DefaultCleaningCost),
		FixedAddons:           make([]model.FixedAddon, 0, len(p.FixedAddons)),
		QuantityItems:         make([]model.QuantityItem, 0, len(p.QuantityItems)),
	}

	for _, a := range p.FixedAddons {
		cfg.FixedAddons = append(cfg.FixedAddons, model.FixedAddon{
			ID: a.ID, Name: a.Name, PriceCents: amountToCents(a.Price),
		})
	}
	for _, it := range p.QuantityItems {
		cfg.QuantityItems = append(cfg.QuantityItems, model.QuantityItem{
			ID: it.ID, Name: it.Name, UnitPriceCents: amountToCents(it.UnitPrice),
		})
	}

	return cfg
}

type quantitySelectionPayload struct {
	Quantity  int64    `json:"quantity"`
	UnitPrice *float64 `json:"unitPrice,omitempty"`
}

func selectionsFromPayload(in map[string]quantitySelectionPayload) map[string]model.QuantitySelection {
	out := make(map[string]model.QuantitySelection, len(in))
	for id, sel := range in {
		converted := model.QuantitySelection{Quantity: sel.Quantity}
		if sel.UnitPrice != nil {
			cents := amountToCents(*sel.UnitPrice)
			converted.UnitPriceCents = &cents
		}
		out[id] = converted
	}
	return out
}

func selectionsToPayload(in map[string]model.QuantitySelection) map[string]quantitySelectionPayload {
	out := make(map[string]quantitySelectionPayload, len(in))
	for id, sel := range in {
		converted := quantitySelectionPayload{Quantity: sel.Quantity}
		if sel.UnitPriceCents != nil {
			amount := centsToAmount(*sel.UnitPriceCents)
			converted.UnitPrice = &amount
		}
		out[id] = converted
	}
	return out
}

type paymentPayload struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type reservationRequest struct {
	ClientName          string                              `json:"clientName"`
	Phone               string                              `json:"phone"`
	Date                string                              `json:"date"`
	GuestCount          int                                 `json:"guestCount"`
	Type                string                              `json:"type"`
	Status              string                              `json:"status"`
	SelectedFixedAddons []string                            `json:"selectedFixedAddons"`
	QuantitySelections  map[string]quantitySelectionPayload `json:"quantitySelections"`
	IncludeCleaning     bool                                `json:"includeCleaning"`
	CleaningCost        float64                             `json:"cleaningCost"`
	DiscountPercent     float64                             `json:"discountPercent"`
	ExtraCost           float64                             `json:"extraCost"`
	Notes               string                              `json:"notes"`
}

func (r *reservationRequest) toDraft() (model.ReservationDraft, error) {
	date, err := validation.ParseDate(r.Date)
	if err != nil {
		return model.ReservationDraft{}, errInvalidDate
	}
	if r.Type != "" && !validation.IsValidType(model.ReservationType(r.Type)) {
		return model.ReservationDraft{}, errInvalidType
	}
	if r.Status != "" && !validation.IsValidActiveStatus(model.ReservationStatus(r.Status)) {
		return model.ReservationDraft{}, errInvalidStatus
	}
	if !validation.IsValidDiscount(r.DiscountPercent) {
		return model.ReservationDraft{}, errInvalidDiscount
	}
	if r.GuestCount < 0 {
		return model.ReservationDraft{}, errNegativeGuests
	}

	return model.ReservationDraft{
		ClientName:          r.ClientName,
		Phone:               r.Phone,
		Date:                date,
		GuestCount:          r.GuestCount,
		Type:                model.ReservationType(r.Type),
		Status:              model.ReservationStatus(r.Status),
		SelectedFixedAddons: r.SelectedFixedAddons,
		QuantitySelections:  selectionsFromPayload(r.QuantitySelections),
		IncludeCleaning:     r.IncludeCleaning,
		CleaningCents:       amountToCents(r.CleaningCost),
		DiscountPercent:     r.DiscountPercent,
		ExtraCents:          amountToCents(r.ExtraCost),
		Notes:               r.Notes,
	}, nil
}

type reservationPatchRequest struct {
	ClientName          *string                              `json:"clientName"`
	Phone               *string                              `json:"phone"`
	Date                *string                              `json:"date"`
	GuestCount          *int                                 `json:"guestCount"`
	Type                *string                              `json:"type"`
	Status              *string                              `json:"status"`
	SelectedFixedAddons *[]string                            `json:"selectedFixedAddons"`
	QuantitySelections  *map[string]quantitySelectionPayload `json:"quantitySelections"`
	IncludeCleaning     *bool                                `json:"includeCleaning"`
	CleaningCost        *float64                             `json:"cleaningCost"`
	DiscountPercent     *float64                             `json:"discountPercent"`
	ExtraCost           *float64                             `json:"extraCost"`
	PaidAmount          *float64                             `json:"paidAmount"`
	PaymentHistory      *[]paymentPayload                    `json:"paymentHistory"`
	Notes               *string                              `json:"notes"`
}

func (r *reservationPatchRequest) toPatch() (service.ReservationPatch, error) {
	patch := service.ReservationPatch{
		ClientName:          r.ClientName,
		Phone:               r.Phone,
		GuestCount:          r.GuestCount,
		SelectedFixedAddons: r.SelectedFixedAddons,
		IncludeCleaning:     r.IncludeCleaning,
		Notes:               r.Notes,
	}

	if r.Date != nil {
		date, err := validation.ParseDate(*r.Date)
		if err != nil {
			return service.ReservationPatch{}, errInvalidDate
		}
		patch.Date = &date
	}
	if r.Type != nil {
		t := model.ReservationType(*r.Type)
		if !validation.IsValidType(t) {
			return service.ReservationPatch{}, errInvalidType
		}
		patch.Type = &t
	}
	if r.Status != nil {
		// В корзину и обратно — только через отдельные операции.
		st := model.ReservationStatus(*r.Status)
		if !validation.IsValidActiveStatus(st) {
			return service.ReservationPatch{}, errInvalidStatus
		}
		patch.Status = &st
	}
	if r.GuestCount != nil && *r.GuestCount < 0 {
		return service.ReservationPatch{}, errNegativeGuests
	}
	if r.DiscountPercent != nil {
		if !validation.IsValidDiscount(*r.DiscountPercent) {
			return service.ReservationPatch{}, errInvalidDiscount
		}
		patch.DiscountPercent = r.DiscountPercent
	}
	if r.QuantitySelections != nil {
		converted := selectionsFromPayload(*r.QuantitySelections)
		patch.QuantitySelections = &converted
	}
	if r.CleaningCost != nil {
		cents := amountToCents(*r.CleaningCost)
		patch.CleaningCents = &cents
	}
	if r.ExtraCost != nil {
		cents := amountToCents(*r.ExtraCost)
		patch.ExtraCents = &cents
	}
	if r.PaidAmount != nil {
		cents := amountToCents(*r.PaidAmount)
		patch.PaidCents = &cents
	}
	if r.PaymentHistory != nil {
		history := make([]model.Payment, 0, len(*r.PaymentHistory))
		for _, p := range *r.PaymentHistory {
			date, err := validation.ParseDate(p.Date)
			if err != nil {
				return service.ReservationPatch{}, errInvalidDate
			}
			history = append(history, model.Payment{Date: date, AmountCents: amountToCents(p.Amount)})
		}
		patch.PaymentHistory = &history
	}

	return patch, nil
}

type reservationResponse struct {
	ID                  string                              `json:"id"`
	ClientName          string                              `json:"clientName"`
	Phone               string                              `json:"phone"`
	Date                string                              `json:"date"`
	GuestCount          int                                 `json:"guestCount"`
	Type                string                              `json:"type"`
	Status              string                              `json:"status"`
	SelectedFixedAddons []string                            `json:"selectedFixedAddons"`
	QuantitySelections  map[string]quantitySelectionPayload `json:"quantitySelections"`
	IncludeCleaning     bool                                `json:"includeCleaning"`
	CleaningCost        float64                             `json:"cleaningCost"`
	DiscountPercent     float64                             `json:"discountPercent"`
	ExtraCost           float64                             `json:"extraCost"`
	BaseFixed           float64                             `json:"baseFixed"`
	PerPersonFixed      float64                             `json:"perPersonFixed"`
	FixedAddonsTotal    float64                             `json:"fixedAddonsTotalFixed"`
	QuantityItemsTotal  float64                             `json:"quantityItemsTotalFixed"`
	Total               float64                             `json:"total"`
	TotalBeforeDiscount float64                             `json:"totalBeforeDiscount"`
	IsWeekend           bool                                `json:"isWeekend"`
	PaidAmount          float64                             `json:"paidAmount"`
	Remaining           float64                             `json:"remaining"`
	FullyPaid           bool                                `json:"fullyPaid"`
	PaymentHistory      []paymentPayload                    `json:"paymentHistory"`
	Notes               string                              `json:"notes"`
	CreatedAt           string                              `json:"createdAt"`
	DeletedAt           *string                             `json:"deletedAt,omitempty"`
}

func reservationToResponse(res *model.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:                  res.ID,
		ClientName:          res.ClientName,
		Phone:               res.Phone,
		Date:                res.Date.Format(validation.DateLayout),
		GuestCount:          res.GuestCount,
		Type:                string(res.Type),
		Status:              string(res.Status),
		SelectedFixedAddons: res.SelectedFixedAddons,
		QuantitySelections:  selectionsToPayload(res.QuantitySelections),
		IncludeCleaning:     res.IncludeCleaning,
		CleaningCost:        centsToAmount(res.CleaningCents),
		DiscountPercent:     res.DiscountPercent,
		ExtraCost:           centsToAmount(res.ExtraCents),
		BaseFixed:           centsToAmount(res.BaseFixedCents),
		PerPersonFixed:      centsToAmount(res.PerPersonFixedCents),
		FixedAddonsTotal:    centsToAmount(res.FixedAddonsTotalFixedCents),
		QuantityItemsTotal:  centsToAmount(res.QuantityItemsTotalFixedCents),
		Total:               centsToAmount(res.TotalCents),
		TotalBeforeDiscount: centsToAmount(res.TotalBeforeDiscountCents),
		IsWeekend:           res.IsWeekend,
		PaidAmount:          centsToAmount(res.PaidCents),
		Remaining:           centsToAmount(res.RemainingCents()),
		FullyPaid:           res.FullyPaid(),
		PaymentHistory:      make([]paymentPayload, 0, len(res.PaymentHistory)),
		Notes:               res.Notes,
		CreatedAt:           res.CreatedAt.Format(time.RFC3339),
	}

	if resp.SelectedFixedAddons == nil {
		resp.SelectedFixedAddons = []string{}
	}

	for _, p := range res.PaymentHistory {
		resp.PaymentHistory = append(resp.PaymentHistory, paymentPayload{
			Date:   p.Date.Format(validation.DateLayout),
			Amount: centsToAmount(p.AmountCents),
		})
	}

	if res.DeletedAt != nil {
		deleted := res.DeletedAt.Format(time.RFC3339)
		resp.DeletedAt = &deleted
	}

	return resp
}

func reservationsToResponse(reservations []model.Reservation) []reservationResponse {
	resp := make([]reservationResponse, 0, len(reservations))
	for i := range reservations {
		resp = append(resp, reservationToResponse(&reservations[i]))
	}
	return resp
}

type batchResponse struct {
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Errors    []string `json:"errors"`
}

func batchToResponse(result *service.BatchResult) batchResponse {
	resp := batchResponse{
		Processed: result.Processed,
		Updated:   result.Updated,
		Errors:    result.Errors,
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	return resp
}

type monthlyReportResponse struct {
	Month            string                `json:"month"`
	ReservationCount int                   `json:"reservationCount"`
	TotalGuests      int                   `json:"totalGuests"`
	TotalExpected    float64               `json:"totalExpected"`
	TotalPaid        float64               `json:"totalPaid"`
	Reservations     []reservationResponse `json:"reservations"`
}

type expenseRequest struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
}

type expenseResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	CreatedAt string  `json:"createdAt"`
}

func expenseToResponse(e *model.Expense) expenseResponse {
	return expenseResponse{
		ID:        e.ID,
		Name:      e.Name,
		Amount:    centsToAmount(e.AmountCents),
		Date:      e.Date.Format(validation.DateLayout),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
