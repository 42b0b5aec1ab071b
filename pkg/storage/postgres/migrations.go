package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all billing migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create plans table",
			SQL: `
				CREATE TABLE IF NOT EXISTS plans (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(32) NOT NULL,
					billing_cycle VARCHAR(16) NOT NULL,
					price_cents BIGINT NOT NULL,
					currency CHAR(3) NOT NULL DEFAULT 'USD',
					max_students INT,
					max_teachers INT,
					max_departments INT,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX plans_active_code_cycle
					ON plans(code, billing_cycle) WHERE active;
			`,
		},
		{
			Version:     2,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL,
					plan_id BIGINT NOT NULL REFERENCES plans(id),
					billing_cycle VARCHAR(16) NOT NULL,
					status VARCHAR(16) NOT NULL,
					starts_at TIMESTAMPTZ NOT NULL,
					expires_at TIMESTAMPTZ NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_subscriptions_tenant_status
					ON subscriptions(tenant_id, status);
				CREATE INDEX idx_subscriptions_expires_at
					ON subscriptions(expires_at) WHERE status IN ('active', 'trial');
			`,
		},
		{
			Version:     3,
			Description: "Create invoices table",
			SQL: `
				CREATE TABLE IF NOT EXISTS invoices (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL,
					subscription_id BIGINT NOT NULL REFERENCES subscriptions(id),
					invoice_number VARCHAR(32) NOT NULL,
					amount_cents BIGINT NOT NULL,
					currency CHAR(3) NOT NULL DEFAULT 'USD',
					status VARCHAR(16) NOT NULL DEFAULT 'unpaid',
					due_date TIMESTAMPTZ NOT NULL,
					period_start TIMESTAMPTZ NOT NULL,
					period_end TIMESTAMPTZ NOT NULL,
					paid_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT invoices_number_unique UNIQUE (invoice_number)
				);

				CREATE UNIQUE INDEX invoices_one_unpaid_per_subscription
					ON invoices(subscription_id) WHERE status = 'unpaid';
				CREATE INDEX idx_invoices_tenant_status
					ON invoices(tenant_id, status);
				CREATE INDEX idx_invoices_due_date
					ON invoices(due_date) WHERE status = 'unpaid';
			`,
		},
		{
			Version:     4,
			Description: "Create payments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS payments (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL,
					invoice_id BIGINT NOT NULL REFERENCES invoices(id),
					gateway VARCHAR(32) NOT NULL,
					transaction_id VARCHAR(128) NOT NULL,
					amount_cents BIGINT NOT NULL,
					status VARCHAR(16) NOT NULL DEFAULT 'pending',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CONSTRAINT payments_transaction_unique UNIQUE (transaction_id)
				);

				CREATE INDEX idx_payments_invoice ON payments(invoice_id);
				CREATE INDEX idx_payments_tenant ON payments(tenant_id);
			`,
		},
		{
			Version:     5,
			Description: "Create student fee ledger table",
			SQL: `
				CREATE TABLE IF NOT EXISTS student_fees (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL,
					student_id BIGINT NOT NULL,
					description TEXT NOT NULL,
					amount_cents BIGINT NOT NULL,
					paid_cents BIGINT NOT NULL DEFAULT 0,
					status VARCHAR(16) NOT NULL DEFAULT 'pending',
					due_date TIMESTAMPTZ NOT NULL,
					last_notified_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_student_fees_tenant_status
					ON student_fees(tenant_id, status);
				CREATE INDEX idx_student_fees_due_date
					ON student_fees(due_date) WHERE status IN ('pending', 'partially_paid');
			`,
		},
		{
			Version:     6,
			Description: "Create campus resource tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS students (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL,
					name VARCHAR(255) NOT NULL,
					deleted_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS teachers (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL,
					name VARCHAR(255) NOT NULL,
					deleted_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS departments (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL,
					name VARCHAR(255) NOT NULL,
					deleted_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_students_tenant ON students(tenant_id) WHERE deleted_at IS NULL;
				CREATE INDEX idx_teachers_tenant ON teachers(tenant_id) WHERE deleted_at IS NULL;
				CREATE INDEX idx_departments_tenant ON departments(tenant_id) WHERE deleted_at IS NULL;
			`,
		},
	}
}

// RunMigrations applies pending billing migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS billing_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM billing_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO billing_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
