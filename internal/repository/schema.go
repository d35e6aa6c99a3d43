package repository

// Schema definitions for Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    vendor TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    description TEXT,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_tenant ON transactions(tenant_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(tenant_id, date);
CREATE INDEX IF NOT EXISTS idx_transactions_vendor ON transactions(tenant_id, vendor);
`

const schemaExchangeRates = `
CREATE TABLE IF NOT EXISTS exchange_rates (
    from_currency TEXT NOT NULL,
    to_currency TEXT NOT NULL,
    rate REAL NOT NULL,
    date TIMESTAMP NOT NULL,
    PRIMARY KEY (from_currency, to_currency, date)
);

CREATE INDEX IF NOT EXISTS idx_exchange_rates_pair ON exchange_rates(from_currency, to_currency, date);
`

const schemaMatchResults = `
CREATE TABLE IF NOT EXISTS match_results (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    target_id TEXT,
    score REAL NOT NULL,
    is_match INTEGER NOT NULL DEFAULT 0,
    source TEXT NOT NULL,
    result TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_results_tenant ON match_results(tenant_id);
CREATE INDEX IF NOT EXISTS idx_match_results_created ON match_results(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_match_results_target ON match_results(tenant_id, target_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaExchangeRates,
		schemaMatchResults,
	}
}
