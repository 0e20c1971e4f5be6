// internal/db/schema.go
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// centralSchema is the DDL of the shared platform store: identities, plan
// catalog, tenant registry and the subscription billing ledger. Tenant
// voucher data never lives here.
const centralSchema = `
CREATE TABLE IF NOT EXISTS identities (
	id            BIGSERIAL PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	full_name     TEXT NOT NULL,
	role          TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS plans (
	id              BIGSERIAL PRIMARY KEY,
	name            TEXT NOT NULL UNIQUE,
	price_xaf       NUMERIC(12,2) NOT NULL DEFAULT 0,
	price_usd       NUMERIC(12,2) NOT NULL DEFAULT 0,
	max_tickets     INT NOT NULL DEFAULT -1,
	max_agents      INT NOT NULL DEFAULT -1,
	max_storage_mb  INT NOT NULL DEFAULT -1,
	max_zones       INT NOT NULL DEFAULT -1,
	commission_rate NUMERIC(5,2) NOT NULL DEFAULT 0,
	features        TEXT[] NOT NULL DEFAULT '{}',
	is_free         BOOLEAN NOT NULL DEFAULT FALSE,
	sort_order      INT NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tenants (
	id                BIGSERIAL PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	contact_email     TEXT NOT NULL UNIQUE,
	status            TEXT NOT NULL DEFAULT 'pending',
	plan_id           BIGINT NOT NULL REFERENCES plans(id),
	database_name     TEXT NOT NULL UNIQUE,
	owner_identity_id BIGINT NOT NULL REFERENCES identities(id),
	suspended_reason  TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id                   BIGSERIAL PRIMARY KEY,
	reference            TEXT NOT NULL UNIQUE,
	tenant_id            BIGINT NOT NULL REFERENCES tenants(id),
	plan_id              BIGINT NOT NULL REFERENCES plans(id),
	status               TEXT NOT NULL DEFAULT 'suspended',
	current_period_start TIMESTAMPTZ NOT NULL,
	current_period_end   TIMESTAMPTZ NOT NULL,
	next_payment_date    TIMESTAMPTZ,
	amount               NUMERIC(12,2) NOT NULL DEFAULT 0,
	currency             TEXT NOT NULL DEFAULT 'XAF',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_tenant
	ON subscriptions (tenant_id, status);

CREATE TABLE IF NOT EXISTS payments (
	id                BIGSERIAL PRIMARY KEY,
	reference         TEXT NOT NULL UNIQUE,
	tenant_id         BIGINT NOT NULL REFERENCES tenants(id),
	subscription_id   BIGINT NOT NULL REFERENCES subscriptions(id),
	plan_id           BIGINT NOT NULL REFERENCES plans(id),
	amount            NUMERIC(12,2) NOT NULL,
	currency          TEXT NOT NULL DEFAULT 'XAF',
	phone             TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	gateway_reference TEXT,
	failure_reason    TEXT,
	meta              JSONB,
	attempted_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_payments_status
	ON payments (status);
`

// seedPlans inserts the default catalog once; reruns are no-ops.
const seedPlans = `
INSERT INTO plans (name, price_xaf, price_usd, features, is_free, sort_order)
VALUES
	('Free',     0,     0,  '{"1 zone","50 vouchers"}',                  TRUE,  0),
	('Starter',  5000,  9,  '{"3 zones","500 vouchers","reports"}',      FALSE, 1),
	('Pro',      15000, 27, '{"unlimited zones","unlimited vouchers","reports","priority support"}', FALSE, 2)
ON CONFLICT (name) DO NOTHING;
`

// MigrateCentral applies the central schema and seeds the plan catalog.
func MigrateCentral(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, centralSchema); err != nil {
		return fmt.Errorf("failed to apply central schema: %w", err)
	}
	if _, err := pool.Exec(ctx, seedPlans); err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}
	return nil
}
