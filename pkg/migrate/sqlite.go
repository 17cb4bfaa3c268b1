package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for local sqlite runs and
// repository tests. uuid and jsonb columns are TEXT; money is NUMERIC.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  sku_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  options TEXT,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS packaging_options (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  description TEXT,
  price NUMERIC NOT NULL DEFAULT 0,
  is_default INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS packaging_options_single_default
  ON packaging_options (is_default) WHERE is_default AND is_active`,
	`CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  discount_type TEXT NOT NULL,
  discount_value NUMERIC NOT NULL,
  maximum_discount_amount NUMERIC,
  minimum_order_amount NUMERIC,
  usage_limit INTEGER,
  usage_count INTEGER NOT NULL DEFAULT 0,
  first_time_only INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  created_by_id TEXT NOT NULL,
  cart_id TEXT,
  fulfillment_type TEXT NOT NULL,
  fulfillment_location TEXT,
  timing TEXT,
  address_id TEXT,
  payment_preference TEXT,
  subtotal NUMERIC NOT NULL DEFAULT 0,
  discounts NUMERIC NOT NULL DEFAULT 0,
  packaging_fee NUMERIC NOT NULL DEFAULT 0,
  scheduling_fee NUMERIC NOT NULL DEFAULT 0,
  delivery_fee NUMERIC NOT NULL DEFAULT 0,
  tax NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL DEFAULT 0,
  packaging TEXT,
  coupon TEXT,
  coupon_id TEXT,
  status TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  invoice_id TEXT,
  receipt_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  sku_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  title TEXT NOT NULL,
  options TEXT,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  line_total NUMERIC NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  number TEXT NOT NULL UNIQUE,
  line_items TEXT,
  subtotal NUMERIC NOT NULL,
  discounts NUMERIC NOT NULL DEFAULT 0,
  fees NUMERIC NOT NULL DEFAULT 0,
  tax NUMERIC NOT NULL DEFAULT 0,
  total NUMERIC NOT NULL,
  balance_due NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'KES',
  payment_status TEXT NOT NULL,
  receipt_id TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  method TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'KES',
  status TEXT NOT NULL,
  processor_refs TEXT,
  checkout_request_id TEXT UNIQUE,
  paystack_reference TEXT UNIQUE,
  payer_phone TEXT,
  payer_email TEXT,
  result_code TEXT,
  result_desc TEXT,
  raw_callback TEXT,
  recorded_by_id TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE IF NOT EXISTS receipts (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  invoice_id TEXT NOT NULL,
  payment_id TEXT,
  number TEXT NOT NULL UNIQUE,
  amount_paid NUMERIC NOT NULL,
  method TEXT NOT NULL,
  issued_at DATETIME NOT NULL,
  pdf_url TEXT,
  created_at DATETIME,
  CONSTRAINT receipts_invoice_id_key UNIQUE (invoice_id)
)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}

// ApplySQLiteSchema creates every table on a sqlite connection. Goose
// migrations are Postgres-only.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
