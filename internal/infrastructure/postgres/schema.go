package postgres

import (
	"context"
	"fmt"
)

// schema DDL idempotente. Los saldos se guardan con dos decimales, igual que las
// cantidades del libro.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower_idx ON users (lower(username))`,

	`CREATE TABLE IF NOT EXISTS companies (
		id         UUID PRIMARY KEY,
		name       TEXT NOT NULL,
		type       TEXT NOT NULL DEFAULT 'company' CHECK (type IN ('company', 'person')),
		contact    TEXT NOT NULL DEFAULT '',
		address    TEXT NOT NULL DEFAULT '',
		notes      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS vault_transactions (
		id         UUID PRIMARY KEY,
		type       TEXT NOT NULL CHECK (type IN ('deposit', 'withdrawal')),
		amount     NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		karat      INTEGER NOT NULL CHECK (karat BETWEEN 1 AND 24),
		notes      TEXT NOT NULL DEFAULT '',
		user_id    UUID REFERENCES users(id) ON DELETE SET NULL,
		company_id UUID REFERENCES companies(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS vault_transactions_created_idx ON vault_transactions (created_at, id)`,
	`CREATE INDEX IF NOT EXISTS vault_transactions_karat_idx ON vault_transactions (karat, created_at, id)`,

	`CREATE TABLE IF NOT EXISTS vault_stock (
		karat      INTEGER PRIMARY KEY,
		amount     NUMERIC(14,2) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS transfers (
		id         UUID PRIMARY KEY,
		from_unit  VARCHAR(50) NOT NULL,
		to_unit    VARCHAR(50) NOT NULL CHECK (to_unit <> from_unit),
		amount     NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		karat      INTEGER NOT NULL CHECK (karat BETWEEN 1 AND 24),
		cinsi      TEXT NOT NULL DEFAULT '',
		notes      TEXT NOT NULL DEFAULT '',
		user_id    UUID REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS transfers_created_idx ON transfers (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS transfers_from_unit_idx ON transfers (from_unit)`,
	`CREATE INDEX IF NOT EXISTS transfers_to_unit_idx ON transfers (to_unit)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id          UUID PRIMARY KEY,
		username    TEXT NOT NULL DEFAULT '',
		action      TEXT NOT NULL,
		entity_type TEXT NOT NULL DEFAULT '',
		entity_name TEXT NOT NULL DEFAULT '',
		details     TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS audit_logs_created_idx ON audit_logs (created_at DESC)`,
}

// EnsureSchema crea las tablas si no existen.
func EnsureSchema(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema (%d): %w", i, err)
		}
	}
	return nil
}
