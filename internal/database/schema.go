package database

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS projects (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name VARCHAR(100) NOT NULL,
		type VARCHAR(20) NOT NULL CHECK (type IN ('Income', 'Expenses', 'Savings'))
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		date VARCHAR(64) NOT NULL,
		type VARCHAR(20) NOT NULL CHECK (type IN ('Income', 'Expenses', 'Savings')),
		category VARCHAR(255) NOT NULL DEFAULT '',
		amount DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
		description TEXT NOT NULL DEFAULT '',
		month_key CHAR(7) NOT NULL,
		date_score BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_categories_project_type ON categories(project_id, type);
	CREATE INDEX IF NOT EXISTS idx_transactions_project_date ON transactions(project_id, date_score DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_project_month ON transactions(project_id, month_key);
`

// EnsureSchema creates the relational tables and indexes if missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
