// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a ledger transaction with tenant isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tenantID string, tx *domain.TargetTransaction) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction with an id is required", domain.ErrInvalidInput)
	}

	metadata, _ := json.Marshal(tx.Metadata)

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (
			id, tenant_id, vendor, amount, currency,
			date, description, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			vendor = excluded.vendor,
			amount = excluded.amount,
			currency = excluded.currency,
			date = excluded.date,
			description = excluded.description,
			metadata = excluded.metadata
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tenantID, tx.Vendor, tx.Amount, tx.Currency,
		tx.Date.UTC(), tx.Description, createdAt, string(metadata),
	)
	return err
}

// GetTransaction retrieves a ledger transaction by ID with tenant isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, tenantID string, txID string) (*domain.TargetTransaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, vendor, amount, currency,
			   date, description, created_at, metadata
		FROM transactions
		WHERE tenant_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransactionsByDateRange retrieves ledger transactions dated inside
// [from, to] with tenant isolation.
func (r *SQLRepository) GetTransactionsByDateRange(ctx context.Context, tenantID string, from, to time.Time) ([]*domain.TargetTransaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, vendor, amount, currency,
			   date, description, created_at, metadata
		FROM transactions
		WHERE tenant_id = ?
		  AND date >= ?
		  AND date <= ?
		ORDER BY date ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.TargetTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.TargetTransaction, error) {
	var tx domain.TargetTransaction
	var description sql.NullString
	var metadata string

	err := row.Scan(
		&tx.ID, &tx.TenantID, &tx.Vendor, &tx.Amount, &tx.Currency,
		&tx.Date, &description, &tx.CreatedAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	tx.Description = description.String
	if metadata != "" && metadata != "null" {
		json.Unmarshal([]byte(metadata), &tx.Metadata)
	}
	return &tx, nil
}

// SaveRate stores an exchange rate observation. Rates are market data and
// are not tenant scoped. Saving the same pair and date again overwrites
// the rate.
func (r *SQLRepository) SaveRate(ctx context.Context, quote *domain.RateQuote) error {
	if quote == nil || quote.FromCurrency == "" || quote.ToCurrency == "" {
		return fmt.Errorf("%w: rate quote with currency pair is required", domain.ErrInvalidInput)
	}
	if quote.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO exchange_rates (from_currency, to_currency, rate, date)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_currency, to_currency, date) DO UPDATE SET
			rate = excluded.rate
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		quote.FromCurrency, quote.ToCurrency, quote.Rate,
		quote.Date.UTC().Truncate(24*time.Hour),
	)
	return err
}

// GetRateOnOrBefore returns the most recent rate for a pair dated on or
// before date, no earlier than earliest. Returns nil, nil when no rate
// exists in the window.
func (r *SQLRepository) GetRateOnOrBefore(ctx context.Context, fromCurrency, toCurrency string, date, earliest time.Time) (*domain.RateQuote, error) {
	query := `
		SELECT from_currency, to_currency, rate, date
		FROM exchange_rates
		WHERE from_currency = ? AND to_currency = ?
		  AND date <= ? AND date >= ?
		ORDER BY date DESC
		LIMIT 1
	`
	return r.queryRate(ctx, query, fromCurrency, toCurrency, date.UTC(), earliest.UTC())
}

// GetRateAfter returns the earliest rate for a pair dated strictly after
// date, no later than latest. Returns nil, nil when no rate exists in the
// window.
func (r *SQLRepository) GetRateAfter(ctx context.Context, fromCurrency, toCurrency string, date, latest time.Time) (*domain.RateQuote, error) {
	query := `
		SELECT from_currency, to_currency, rate, date
		FROM exchange_rates
		WHERE from_currency = ? AND to_currency = ?
		  AND date > ? AND date <= ?
		ORDER BY date ASC
		LIMIT 1
	`
	return r.queryRate(ctx, query, fromCurrency, toCurrency, date.UTC(), latest.UTC())
}

func (r *SQLRepository) queryRate(ctx context.Context, query string, args ...any) (*domain.RateQuote, error) {
	var q domain.RateQuote
	err := r.db.QueryRowContext(ctx, r.rebind(query), args...).Scan(
		&q.FromCurrency, &q.ToCurrency, &q.Rate, &q.Date,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// SaveMatchResult stores a match outcome with tenant isolation.
func (r *SQLRepository) SaveMatchResult(ctx context.Context, tenantID string, rec *domain.MatchRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: match record with an id is required", domain.ErrInvalidInput)
	}

	source, err := json.Marshal(rec.Source)
	if err != nil {
		return fmt.Errorf("failed to encode source: %w", err)
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	isMatch := 0
	if rec.Result.IsMatch {
		isMatch = 1
	}

	query := `
		INSERT INTO match_results (
			id, tenant_id, target_id, score, is_match, source, result, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.Result.TargetID, rec.Result.Score, isMatch,
		string(source), string(result), createdAt,
	)
	return err
}

// GetMatchResult retrieves a match outcome by ID with tenant isolation.
func (r *SQLRepository) GetMatchResult(ctx context.Context, tenantID string, id string) (*domain.MatchRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, source, result, created_at
		FROM match_results
		WHERE tenant_id = ? AND id = ?
	`

	var rec domain.MatchRecord
	var source, result string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id).Scan(
		&rec.ID, &rec.TenantID, &source, &result, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(source), &rec.Source); err != nil {
		return nil, fmt.Errorf("failed to decode source: %w", err)
	}
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &rec, nil
}

// ListMatchResults retrieves match outcomes created since the given time,
// newest first, with tenant isolation.
func (r *SQLRepository) ListMatchResults(ctx context.Context, tenantID string, since time.Time) ([]*domain.MatchRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, source, result, created_at
		FROM match_results
		WHERE tenant_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.MatchRecord
	for rows.Next() {
		var rec domain.MatchRecord
		var source, result string

		if err := rows.Scan(&rec.ID, &rec.TenantID, &source, &result, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(source), &rec.Source); err != nil {
			return nil, fmt.Errorf("failed to decode source for %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode result for %s: %w", rec.ID, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
