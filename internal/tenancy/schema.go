// internal/tenancy/schema.go
package tenancy

// tenantSchema is the DDL applied to every freshly provisioned tenant store.
const tenantSchema = `
CREATE TABLE IF NOT EXISTS wifi_packages (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	price          NUMERIC(12,2) NOT NULL,
	currency       TEXT NOT NULL DEFAULT 'XAF',
	duration_hours INT NOT NULL,
	data_cap_mb    INT NOT NULL DEFAULT 0,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wifi_vouchers (
	id                BIGSERIAL PRIMARY KEY,
	package_id        BIGINT NOT NULL REFERENCES wifi_packages(id),
	username          TEXT NOT NULL UNIQUE,
	password          TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'available',
	payment_reference TEXT,
	gateway_reference TEXT,
	purchased_at      TIMESTAMPTZ,
	purchase_amount   NUMERIC(12,2),
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_wifi_vouchers_claim
	ON wifi_vouchers (package_id) WHERE status = 'available';
CREATE INDEX IF NOT EXISTS idx_wifi_vouchers_gateway_ref
	ON wifi_vouchers (gateway_reference);

CREATE TABLE IF NOT EXISTS payment_attempts (
	id                BIGSERIAL PRIMARY KEY,
	reference         TEXT NOT NULL UNIQUE,
	package_id        BIGINT NOT NULL REFERENCES wifi_packages(id),
	voucher_id        BIGINT REFERENCES wifi_vouchers(id),
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

CREATE INDEX IF NOT EXISTS idx_payment_attempts_status
	ON payment_attempts (status);
`

// verifyTable is the known table checked after schema-apply; a missing
// relation means provisioning did not complete.
const verifyTable = "wifi_vouchers"

// seedPackages is the default catalog every new tenant starts with.
const seedPackages = `
INSERT INTO wifi_packages (name, price, currency, duration_hours, data_cap_mb) VALUES
	('1 Hour',  100, 'XAF', 1,   0),
	('1 Day',   500, 'XAF', 24,  0),
	('1 Week', 2500, 'XAF', 168, 0)
`
