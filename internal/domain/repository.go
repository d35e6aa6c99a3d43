// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Ledger target operations
	SaveTransaction(ctx context.Context, tenantID string, tx *TargetTransaction) error
	GetTransaction(ctx context.Context, tenantID string, txID string) (*TargetTransaction, error)
	GetTransactionsByDateRange(ctx context.Context, tenantID string, from, to time.Time) ([]*TargetTransaction, error)

	// Exchange rate history
	SaveRate(ctx context.Context, quote *RateQuote) error
	GetRateOnOrBefore(ctx context.Context, fromCurrency, toCurrency string, date, earliest time.Time) (*RateQuote, error)
	GetRateAfter(ctx context.Context, fromCurrency, toCurrency string, date, latest time.Time) (*RateQuote, error)

	// Match results
	SaveMatchResult(ctx context.Context, tenantID string, rec *MatchRecord) error
	GetMatchResult(ctx context.Context, tenantID string, id string) (*MatchRecord, error)
	ListMatchResults(ctx context.Context, tenantID string, since time.Time) ([]*MatchRecord, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MatchRecord is a persisted match outcome for audit and review.
type MatchRecord struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Source    SourceTransaction `json:"source"`
	Result    MatchResult       `json:"result"`
	CreatedAt time.Time         `json:"createdAt"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
