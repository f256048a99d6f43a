package pricing

import (
	"reflect"
	"testing"
	"time"

	"github.com/mmeshcher/salonbook-system/internal/model"
)

func testConfig() *model.PricingConfig {
	return &model.PricingConfig{
		BaseWeekdayCents:      10000000,
		BaseWeekendCents:      14000000,
		PerPersonWeekdayCents: 300000,
		PerPersonWeekendCents: 400000,
		PatioBaseCents:        5000000,
		DefaultCleaningCents:  2000000,
		FixedAddons: []model.FixedAddon{
			{ID: "sound", Name: "Sound system", PriceCents: 5000000},
			{ID: "decoration", Name: "Decoration", PriceCents: 8000000},
		},
		QuantityItems: []model.QuantityItem{
			{ID: "chair", Name: "Extra chair", UnitPriceCents: 50000},
			{ID: "table", Name: "Extra table", UnitPriceCents: 150000},
		},
	}
}

func date(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCompute(t *testing.T) {
	saturday := date("2024-06-15")
	friday := date("2024-06-14")

	tests := []struct {
		name  string
		draft model.ReservationDraft
		want  Result
	}{
		{
			name: "weekend salon base and per person",
			draft: model.ReservationDraft{
				Type:       model.TypeSalon,
				Date:       saturday,
				GuestCount: 50,
			},
			want: Result{
				BaseCents:                14000000,
				PerPersonCents:           20000000,
				TotalBeforeDiscountCents: 34000000,
				TotalCents:               34000000,
				IsWeekend:                true,
			},
		},
		{
			name: "weekday salon uses weekday rates",
			draft: model.ReservationDraft{
				Type:       model.TypeSalon,
				Date:       friday,
				GuestCount: 10,
			},
			want: Result{
				BaseCents:                10000000,
				PerPersonCents:           3000000,
				TotalBeforeDiscountCents: 13000000,
				TotalCents:               13000000,
			},
		},
		{
			name: "salon discount applied last",
			draft: model.ReservationDraft{
				Type:            model.TypeSalon,
				Date:            friday,
				DiscountPercent: 10,
			},
			want: Result{
				BaseCents:                10000000,
				TotalBeforeDiscountCents: 10000000,
				DiscountCents:            1000000,
				TotalCents:               9000000,
			},
		},
		{
			name: "migrated type ignores discount",
			draft: model.ReservationDraft{
				Type:            model.TypeMigrated,
				Date:            friday,
				DiscountPercent: 10,
			},
			want: Result{
				BaseCents:                10000000,
				TotalBeforeDiscountCents: 10000000,
				TotalCents:               10000000,
			},
		},
		{
			name: "patio overrides addons and quantities",
			draft: model.ReservationDraft{
				Type:                model.TypePatio,
				Date:                saturday,
				GuestCount:          30,
				SelectedFixedAddons: []string{"sound", "decoration"},
				QuantitySelections: map[string]model.QuantitySelection{
					"chair": {Quantity: 40},
				},
				IncludeCleaning: true,
				CleaningCents:   2000000,
				DiscountPercent: 10,
			},
			want: Result{
				BaseCents:                5000000,
				TotalBeforeDiscountCents: 5000000,
				TotalCents:               5000000,
				IsWeekend:                true,
			},
		},
		{
			name: "unknown addon id contributes zero",
			draft: model.ReservationDraft{
				Type:                model.TypeSalon,
				Date:                friday,
				SelectedFixedAddons: []string{"sound", "ghost"},
			},
			want: Result{
				BaseCents:                10000000,
				FixedAddonsTotalCents:    5000000,
				TotalBeforeDiscountCents: 15000000,
				TotalCents:               15000000,
			},
		},
		{
			name: "extra cost included before discount",
			draft: model.ReservationDraft{
				Type:            model.TypeSalon,
				Date:            friday,
				ExtraCents:      500000,
				DiscountPercent: 50,
			},
			want: Result{
				BaseCents:                10000000,
				ExtraCents:               500000,
				TotalBeforeDiscountCents: 10500000,
				DiscountCents:            5250000,
				TotalCents:               5250000,
			},
		},
		{
			name: "cleaning never billed to the client",
			draft: model.ReservationDraft{
				Type:            model.TypeSalon,
				Date:            friday,
				IncludeCleaning: true,
				CleaningCents:   2000000,
			},
			want: Result{
				BaseCents:                10000000,
				CleaningCents:            2000000,
				TotalBeforeDiscountCents: 10000000,
				TotalCents:               10000000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.draft, testConfig())

			got.SelectedFixedAddons = nil
			got.QuantitySelections = nil
			tt.want.SelectedFixedAddons = nil
			tt.want.QuantitySelections = nil

			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	draft := model.ReservationDraft{
		Type:                model.TypeSalon,
		Date:                date("2024-06-15"),
		GuestCount:          25,
		SelectedFixedAddons: []string{"sound"},
		QuantitySelections: map[string]model.QuantitySelection{
			"chair": {Quantity: 30},
		},
		DiscountPercent: 5,
		ExtraCents:      100000,
	}
	cfg := testConfig()

	a := Compute(draft, cfg)
	b := Compute(draft, cfg)

	if a.TotalCents != b.TotalCents || a.TotalBeforeDiscountCents != b.TotalBeforeDiscountCents {
		t.Fatalf("Compute is not deterministic: %+v vs %+v", a, b)
	}
}

func TestComputeQuantityItems(t *testing.T) {
	cfg := testConfig()
	frozen := int64(70000)

	draft := model.ReservationDraft{
		Type: model.TypeSalon,
		Date: date("2024-06-14"),
		QuantitySelections: map[string]model.QuantitySelection{
			"chair": {Quantity: 10, UnitPriceCents: &frozen},
			"table": {Quantity: 2},
			"ghost": {Quantity: 5},
		},
	}

	got := Compute(draft, cfg)

	// Для chair действует зафиксированная цена, а не тарифная,
	// для table — тарифная, ghost даёт нулевой вклад.
	wantItems := int64(10*70000 + 2*150000)
	if got.QuantityItemsTotalCents != wantItems {
		t.Fatalf("QuantityItemsTotalCents = %d, want %d", got.QuantityItemsTotalCents, wantItems)
	}

	chair := got.QuantitySelections["chair"]
	if chair.UnitPriceCents == nil || *chair.UnitPriceCents != frozen {
		t.Fatalf("chair snapshot = %v, want %d", chair.UnitPriceCents, frozen)
	}

	table := got.QuantitySelections["table"]
	if table.UnitPriceCents == nil || *table.UnitPriceCents != 150000 {
		t.Fatalf("table snapshot = %v, want 150000", table.UnitPriceCents)
	}

	ghost := got.QuantitySelections["ghost"]
	if ghost.UnitPriceCents == nil || *ghost.UnitPriceCents != 0 {
		t.Fatalf("ghost snapshot = %v, want 0", ghost.UnitPriceCents)
	}
}

func TestComputeNormalizesPatioSelections(t *testing.T) {
	draft := model.ReservationDraft{
		Type:                model.TypePatio,
		Date:                date("2024-06-14"),
		SelectedFixedAddons: []string{"sound"},
		QuantitySelections: map[string]model.QuantitySelection{
			"chair": {Quantity: 40},
		},
	}

	got := Compute(draft, testConfig())

	if len(got.SelectedFixedAddons) != 0 {
		t.Fatalf("patio must clear fixed addons, got %v", got.SelectedFixedAddons)
	}
	if len(got.QuantitySelections) != 0 {
		t.Fatalf("patio must clear quantity selections, got %v", got.QuantitySelections)
	}
}

func TestIsWeekend(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2024-06-14", false}, // пятница
		{"2024-06-15", true},  // суббота
		{"2024-06-16", true},  // воскресенье
		{"2024-06-17", false}, // понедельник
	}

	for _, tt := range tests {
		if got := IsWeekend(date(tt.date)); got != tt.want {
			t.Fatalf("IsWeekend(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}
