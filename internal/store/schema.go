package store

import "context"

// Schema is applied by the seeder and by integration tests. Production
// deployments manage the same tables through the platform's migration
// tooling; the DDL here exists so a bare database can run the service.
const Schema = `
CREATE TABLE IF NOT EXISTS services (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	unit_price_usd NUMERIC(12,2) NOT NULL,
	unit_price_cdf NUMERIC(14,2) NOT NULL,
	active         BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS orders (
	id             BIGSERIAL PRIMARY KEY,
	order_number   TEXT NOT NULL UNIQUE,
	user_id        BIGINT,
	status         TEXT NOT NULL DEFAULT 'pending',
	payment_status TEXT NOT NULL DEFAULT 'pending',
	payment_method TEXT NOT NULL DEFAULT '',
	total_usd      NUMERIC(12,2) NOT NULL DEFAULT 0,
	total_cdf      NUMERIC(14,2) NOT NULL DEFAULT 0,
	customer_name  TEXT NOT NULL DEFAULT '',
	customer_email TEXT NOT NULL DEFAULT '',
	customer_phone TEXT NOT NULL DEFAULT '',
	admin_notes    TEXT NOT NULL DEFAULT '',
	paid_at        TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id             BIGSERIAL PRIMARY KEY,
	order_id       BIGINT NOT NULL REFERENCES orders(id),
	service_id     BIGINT NOT NULL,
	service_name   TEXT NOT NULL,
	quantity       BIGINT NOT NULL,
	target_link    TEXT NOT NULL DEFAULT '',
	unit_price_usd NUMERIC(12,2) NOT NULL,
	unit_price_cdf NUMERIC(14,2) NOT NULL,
	total_usd      NUMERIC(12,2) NOT NULL,
	total_cdf      NUMERIC(14,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	transaction_id    TEXT PRIMARY KEY,
	order_id          BIGINT REFERENCES orders(id),
	amount            NUMERIC(14,2) NOT NULL,
	currency          TEXT NOT NULL,
	payment_method    TEXT NOT NULL DEFAULT '',
	operator_id       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'PENDING',
	customer_name     TEXT NOT NULL DEFAULT '',
	customer_email    TEXT NOT NULL DEFAULT '',
	customer_phone    TEXT NOT NULL DEFAULT '',
	provider_metadata JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS webhook_events (
	id                 UUID PRIMARY KEY,
	provider           TEXT NOT NULL,
	transaction_id     TEXT,
	payload            TEXT NOT NULL,
	headers            TEXT NOT NULL DEFAULT '',
	client_ip          TEXT NOT NULL DEFAULT '',
	received_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed          BOOLEAN NOT NULL DEFAULT false,
	error_message      TEXT,
	processing_time_ms BIGINT,
	notes              TEXT NOT NULL DEFAULT '',
	processed_at       TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_webhook_events_transaction_id ON webhook_events (transaction_id);
`

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Db.Exec(ctx, Schema)
	return err
}
