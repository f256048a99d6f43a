// Package pricing реализует движок расчёта стоимости бронирования.
//
// Расчёт — чистая тотальная функция: для любой пары (черновик, тарифы)
// она возвращает результат и никогда не завершается ошибкой. Отсутствующие
// в тарифах позиции дают нулевой вклад в сумму.
package pricing

import (
	"math"
	"time"

	"github.com/mmeshcher/salonbook-system/internal/model"
)

// Result — разложение итоговой стоимости по компонентам.
//
// SelectedFixedAddons и QuantitySelections содержат нормализованные выборки:
// для патио они принудительно пусты, для остальных типов в каждой позиции
// зафиксирована цена за единицу (из черновика, если она там уже была, иначе
// из действующих тарифов). Именно эти значения сохраняются на бронировании
// как снимок.
type Result struct {
	TotalCents               int64
	TotalBeforeDiscountCents int64
	DiscountCents            int64

	BaseCents               int64
	PerPersonCents          int64
	FixedAddonsTotalCents   int64
	QuantityItemsTotalCents int64
	CleaningCents           int64
	ExtraCents              int64

	IsWeekend bool

	SelectedFixedAddons []string
	QuantitySelections  map[string]model.QuantitySelection
}

// IsWeekend сообщает, приходится ли дата на субботу или воскресенье
// по локальному календарю.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Compute рассчитывает стоимость бронирования по черновику и тарифной сетке.
//
// Для патио действует плоская ставка: услуги и позиции каталога обнуляются
// независимо от содержимого черновика, посадочная ставка не применяется.
// Скидка действует только для салона и применяется последней. Уборка в
// итоговую сумму клиента не входит никогда — это расход бизнеса, который
// учитывается отдельно.
func Compute(draft model.ReservationDraft, cfg *model.PricingConfig) Result {
	res := Result{
		IsWeekend:           IsWeekend(draft.Date),
		ExtraCents:          draft.ExtraCents,
		SelectedFixedAddons: []string{},
		QuantitySelections:  map[string]model.QuantitySelection{},
	}

	if draft.Type == model.TypePatio {
		res.BaseCents = cfg.PatioBaseCents
	} else {
		if res.IsWeekend {
			res.BaseCents = cfg.BaseWeekendCents
			res.PerPersonCents = int64(draft.GuestCount) * cfg.PerPersonWeekendCents
		} else {
			res.BaseCents = cfg.BaseWeekdayCents
			res.PerPersonCents = int64(draft.GuestCount) * cfg.PerPersonWeekdayCents
		}

		for _, id := range draft.SelectedFixedAddons {
			addon, ok := cfg.FindFixedAddon(id)
			if !ok {
				// Услуга могла быть удалена из тарифов: выбор сохраняется,
				// вклад в сумму нулевой.
				res.SelectedFixedAddons = append(res.SelectedFixedAddons, id)
				continue
			}
			res.SelectedFixedAddons = append(res.SelectedFixedAddons, id)
			res.FixedAddonsTotalCents += addon.PriceCents
		}

		for id, sel := range draft.QuantitySelections {
			unitPrice := int64(0)
			if sel.UnitPriceCents != nil {
				// Зафиксированная при прошлом расчёте цена важнее действующих
				// тарифов: исторические суммы не должны меняться молча.
				unitPrice = *sel.UnitPriceCents
			} else if item, ok := cfg.FindQuantityItem(id); ok {
				unitPrice = item.UnitPriceCents
			}

			price := unitPrice
			res.QuantitySelections[id] = model.QuantitySelection{
				Quantity:       sel.Quantity,
				UnitPriceCents: &price,
			}
			res.QuantityItemsTotalCents += unitPrice * sel.Quantity
		}

		if draft.IncludeCleaning && draft.Type == model.TypeSalon {
			res.CleaningCents = draft.CleaningCents
		}
	}

	res.TotalBeforeDiscountCents = res.BaseCents + res.PerPersonCents +
		res.FixedAddonsTotalCents + res.QuantityItemsTotalCents + res.ExtraCents

	if draft.Type == model.TypeSalon && draft.DiscountPercent != 0 {
		res.DiscountCents = int64(math.Round(float64(res.TotalBeforeDiscountCents) * draft.DiscountPercent / 100))
	}

	res.TotalCents = res.TotalBeforeDiscountCents - res.DiscountCents

	return res
}
