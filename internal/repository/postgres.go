// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/salonbook-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Идентификатор единственной строки тарифной сетки.
const pricingConfigID = 1

// ErrConfigNotFound возвращается, если запись тарифной сетки отсутствует.
var (
	ErrConfigNotFound = errors.New("pricing config not found")
	// ErrReservationNotFound возвращается, если бронирование не найдено.
	ErrReservationNotFound = errors.New("reservation not found")
	// ErrExpenseNotFound возвращается, если запись о расходе не найдена.
	ErrExpenseNotFound = errors.New("expense not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetConfig возвращает тарифную сетку.
func (r *PostgresRepository) GetConfig(ctx context.Context) (*model.PricingConfig, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT base_weekday, base_weekend, per_person_weekday, per_person_weekend,
		        patio_base_price, default_cleaning_cost, fixed_addons, quantity_items, updated_at
		 FROM pricing_config WHERE id = $1`,
		pricingConfigID,
	)

	var (
		cfg       model.PricingConfig
		addonsRaw []byte
		itemsRaw  []byte
	)
	err := row.Scan(
		&cfg.BaseWeekdayCents, &cfg.BaseWeekendCents,
		&cfg.PerPersonWeekdayCents, &cfg.PerPersonWeekendCents,
		&cfg.PatioBaseCents, &cfg.DefaultCleaningCents,
		&addonsRaw, &itemsRaw, &cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("get config: %w", err)
	}

	if err := json.Unmarshal(addonsRaw, &cfg.FixedAddons); err != nil {
		return nil, fmt.Errorf("decode fixed addons: %w", err)
	}
	if err := json.Unmarshal(itemsRaw, &cfg.QuantityItems); err != nil {
		return nil, fmt.Errorf("decode quantity items: %w", err)
	}

	return &cfg, nil
}

// SaveConfig сохраняет тарифную сетку (upsert единственной строки).
func (r *PostgresRepository) SaveConfig(ctx context.Context, cfg *model.PricingConfig) error {
	addonsRaw, err := json.Marshal(cfg.FixedAddons)
	if err != nil {
		return fmt.Errorf("encode fixed addons: %w", err)
	}
	itemsRaw, err := json.Marshal(cfg.QuantityItems)
	if err != nil {
		return fmt.Errorf("encode quantity items: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO pricing_config
		     (id, base_weekday, base_weekend, per_person_weekday, per_person_weekend,
		      patio_base_price, default_cleaning_cost, fixed_addons, quantity_items, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (id) DO UPDATE SET
		     base_weekday = EXCLUDED.base_weekday,
		     base_weekend = EXCLUDED.base_weekend,
		     per_person_weekday = EXCLUDED.per_person_weekday,
		     per_person_weekend = EXCLUDED.per_person_weekend,
		     patio_base_price = EXCLUDED.patio_base_price,
		     default_cleaning_cost = EXCLUDED.default_cleaning_cost,
		     fixed_addons = EXCLUDED.fixed_addons,
		     quantity_items = EXCLUDED.quantity_items,
		     updated_at = now()`,
		pricingConfigID,
		cfg.BaseWeekdayCents, cfg.BaseWeekendCents,
		cfg.PerPersonWeekdayCents, cfg.PerPersonWeekendCents,
		cfg.PatioBaseCents, cfg.DefaultCleaningCents,
		addonsRaw, itemsRaw,
	)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	return nil
}

const reservationColumns = `id, client_name, phone, date, guest_count, type, status,
	selected_fixed_addons, quantity_selections, include_cleaning, cleaning_cost,
	discount_percent, extra_cost, base_fixed, per_person_fixed,
	fixed_addons_total_fixed, quantity_items_total_fixed, total,
	total_before_discount, is_weekend, paid_amount, payment_history, notes,
	created_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res         model.Reservation
		addonsRaw   []byte
		selRaw      []byte
		paymentsRaw []byte
	)

	err := row.Scan(
		&res.ID, &res.ClientName, &res.Phone, &res.Date, &res.GuestCount,
		&res.Type, &res.Status, &addonsRaw, &selRaw, &res.IncludeCleaning,
		&res.CleaningCents, &res.DiscountPercent, &res.ExtraCents,
		&res.BaseFixedCents, &res.PerPersonFixedCents,
		&res.FixedAddonsTotalFixedCents, &res.QuantityItemsTotalFixedCents,
		&res.TotalCents, &res.TotalBeforeDiscountCents, &res.IsWeekend,
		&res.PaidCents, &paymentsRaw, &res.Notes, &res.CreatedAt, &res.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(addonsRaw, &res.SelectedFixedAddons); err != nil {
		return nil, fmt.Errorf("decode selected addons: %w", err)
	}
	if err := json.Unmarshal(selRaw, &res.QuantitySelections); err != nil {
		return nil, fmt.Errorf("decode quantity selections: %w", err)
	}
	if err := json.Unmarshal(paymentsRaw, &res.PaymentHistory); err != nil {
		return nil, fmt.Errorf("decode payment history: %w", err)
	}

	return &res, nil
}

func encodeReservationJSON(res *model.Reservation) (addons, selections, payments []byte, err error) {
	selectedAddons := res.SelectedFixedAddons
	if selectedAddons == nil {
		selectedAddons = []string{}
	}
	quantitySelections := res.QuantitySelections
	if quantitySelections == nil {
		quantitySelections = map[string]model.QuantitySelection{}
	}
	paymentHistory := res.PaymentHistory
	if paymentHistory == nil {
		paymentHistory = []model.Payment{}
	}

	addons, err = json.Marshal(selectedAddons)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode selected addons: %w", err)
	}
	selections, err = json.Marshal(quantitySelections)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode quantity selections: %w", err)
	}
	payments, err = json.Marshal(paymentHistory)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode payment history: %w", err)
	}

	return addons, selections, payments, nil
}

// InsertReservation сохраняет новое бронирование.
func (r *PostgresRepository) InsertReservation(ctx context.Context, res *model.Reservation) error {
	addonsRaw, selRaw, paymentsRaw, err := encodeReservationJSON(res)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO reservations (`+reservationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		         $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		res.ID, res.ClientName, res.Phone, res.Date, res.GuestCount,
		string(res.Type), string(res.Status), addonsRaw, selRaw, res.IncludeCleaning,
		res.CleaningCents, res.DiscountPercent, res.ExtraCents,
		res.BaseFixedCents, res.PerPersonFixedCents,
		res.FixedAddonsTotalFixedCents, res.QuantityItemsTotalFixedCents,
		res.TotalCents, res.TotalBeforeDiscountCents, res.IsWeekend,
		res.PaidCents, paymentsRaw, res.Notes, res.CreatedAt, res.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	return nil
}

// UpdateReservation перезаписывает изменяемые поля бронирования.
func (r *PostgresRepository) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	addonsRaw, selRaw, paymentsRaw, err := encodeReservationJSON(res)
	if err != nil {
		return err
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE reservations SET
		     client_name = $2, phone = $3, date = $4, guest_count = $5,
		     type = $6, status = $7, selected_fixed_addons = $8,
		     quantity_selections = $9, include_cleaning = $10, cleaning_cost = $11,
		     discount_percent = $12, extra_cost = $13, base_fixed = $14,
		     per_person_fixed = $15, fixed_addons_total_fixed = $16,
		     quantity_items_total_fixed = $17, total = $18,
		     total_before_discount = $19, is_weekend = $20, paid_amount = $21,
		     payment_history = $22, notes = $23, deleted_at = $24
		 WHERE id = $1`,
		res.ID, res.ClientName, res.Phone, res.Date, res.GuestCount,
		string(res.Type), string(res.Status), addonsRaw, selRaw,
		res.IncludeCleaning, res.CleaningCents, res.DiscountPercent,
		res.ExtraCents, res.BaseFixedCents, res.PerPersonFixedCents,
		res.FixedAddonsTotalFixedCents, res.QuantityItemsTotalFixedCents,
		res.TotalCents, res.TotalBeforeDiscountCents, res.IsWeekend,
		res.PaidCents, paymentsRaw, res.Notes, res.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// UpdateReservationStatus меняет статус бронирования и отметку удаления.
func (r *PostgresRepository) UpdateReservationStatus(ctx context.Context, id string, status model.ReservationStatus, deletedAt *time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE reservations SET status = $2, deleted_at = $3 WHERE id = $1`,
		id, string(status), deletedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// UpdateReservationPayment сохраняет накопленную оплату и историю платежей.
func (r *PostgresRepository) UpdateReservationPayment(ctx context.Context, id string, paidCents int64, history []model.Payment) error {
	if history == nil {
		history = []model.Payment{}
	}
	paymentsRaw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode payment history: %w", err)
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE reservations SET paid_amount = $2, payment_history = $3 WHERE id = $1`,
		id, paidCents, paymentsRaw,
	)
	if err != nil {
		return fmt.Errorf("update reservation payment: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// UpdateQuantitySelections перезаписывает только колонку выборок каталога.
// Используется миграцией формата: итоговые суммы при этом не меняются.
func (r *PostgresRepository) UpdateQuantitySelections(ctx context.Context, id string, selections map[string]model.QuantitySelection) error {
	if selections == nil {
		selections = map[string]model.QuantitySelection{}
	}
	selRaw, err := json.Marshal(selections)
	if err != nil {
		return fmt.Errorf("encode quantity selections: %w", err)
	}

	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE reservations SET quantity_selections = $2 WHERE id = $1`,
		id, selRaw,
	)
	if err != nil {
		return fmt.Errorf("update quantity selections: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// GetReservationByID возвращает бронирование по идентификатору.
func (r *PostgresRepository) GetReservationByID(ctx context.Context, id string) (*model.Reservation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`,
		id,
	)

	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	return res, nil
}

func (r *PostgresRepository) queryReservations(ctx context.Context, query string, args ...any) ([]model.Reservation, error) {
	var result []model.Reservation

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("select reservations: %w", err)
		}
		defer rows.Close()

		result = nil
		for rows.Next() {
			res, err := scanReservation(rows)
			if err != nil {
				return fmt.Errorf("scan reservation: %w", err)
			}
			result = append(result, *res)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListActive возвращает активные бронирования (не в корзине), новые первыми.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]model.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE status <> $1
		 ORDER BY created_at DESC`,
		string(model.StatusTrashed),
	)
}

// ListActiveByDate возвращает активные бронирования на дату, новые первыми.
func (r *PostgresRepository) ListActiveByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE status <> $1 AND date = $2
		 ORDER BY created_at DESC`,
		string(model.StatusTrashed), date,
	)
}

// ListActiveByDateRange возвращает активные бронирования в полуинтервале
// [from, to) по возрастанию даты.
func (r *PostgresRepository) ListActiveByDateRange(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE status <> $1 AND date >= $2 AND date < $3
		 ORDER BY date ASC, created_at ASC`,
		string(model.StatusTrashed), from, to,
	)
}

// ListTrashed возвращает содержимое корзины, недавно удалённые первыми.
func (r *PostgresRepository) ListTrashed(ctx context.Context) ([]model.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+`
		 FROM reservations
		 WHERE status = $1
		 ORDER BY deleted_at DESC`,
		string(model.StatusTrashed),
	)
}

// DeleteReservation безвозвратно удаляет бронирование.
func (r *PostgresRepository) DeleteReservation(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}

	return nil
}

// PurgeTrashedBefore удаляет из корзины бронирования старше отсечки
// и возвращает число удалённых строк.
func (r *PostgresRepository) PurgeTrashedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64

	err := r.withRetry(ctx, func() error {
		cmdTag, err := r.pool.Exec(ctx,
			`DELETE FROM reservations WHERE status = $1 AND deleted_at IS NOT NULL AND deleted_at < $2`,
			string(model.StatusTrashed), cutoff,
		)
		if err != nil {
			return fmt.Errorf("purge trashed: %w", err)
		}
		purged = cmdTag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return purged, nil
}

// InsertExpense сохраняет запись о расходе.
func (r *PostgresRepository) InsertExpense(ctx context.Context, e *model.Expense) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO expenses (id, name, amount, date, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Name, e.AmountCents, e.Date, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	return nil
}

// DeleteExpense удаляет запись о расходе.
func (r *PostgresRepository) DeleteExpense(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrExpenseNotFound
	}

	return nil
}

// ListExpenses возвращает журнал расходов, новые первыми.
func (r *PostgresRepository) ListExpenses(ctx context.Context) ([]model.Expense, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, amount, date, created_at FROM expenses ORDER BY date DESC, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select expenses: %w", err)
	}
	defer rows.Close()

	var res []model.Expense
	for rows.Next() {
		var e model.Expense
		if err := rows.Scan(&e.ID, &e.Name, &e.AmountCents, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
