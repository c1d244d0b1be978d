// Package dbtest opens throwaway sqlite databases carrying the wallet
// schema. Tests get the same constraint surface the Postgres migrations
// build: unique idempotency keys, the (wallet, sequence) ledger index, and
// the single-active-hold-per-reference partial index.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/parcelgrid/wallet-backend/pkg/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  currency TEXT NOT NULL,
  available_cents INTEGER NOT NULL DEFAULT 0,
  reserved_cents INTEGER NOT NULL DEFAULT 0,
  total_credited_cents INTEGER NOT NULL DEFAULT 0,
  total_debited_cents INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  low_balance_threshold_cents INTEGER NOT NULL DEFAULT 0,
  low_balance_notified INTEGER NOT NULL DEFAULT 0,
  auto_topup_enabled INTEGER NOT NULL DEFAULT 0,
  auto_topup_amount_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_wallets_account_currency ON wallets(account_id, currency);

CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  sequence INTEGER NOT NULL,
  direction TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  running_balance_cents INTEGER NOT NULL,
  type TEXT NOT NULL,
  reference_type TEXT NOT NULL,
  reference_id TEXT NOT NULL,
  reversal_of TEXT,
  correlation_id TEXT NOT NULL,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_wallet_sequence ON ledger_entries(wallet_id, sequence);

CREATE TABLE IF NOT EXISTS holds (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  reference_type TEXT NOT NULL,
  reference_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  idempotency_key TEXT NOT NULL,
  expires_at DATETIME NOT NULL,
  captured_at DATETIME,
  released_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_holds_idempotency_key ON holds(idempotency_key);
CREATE UNIQUE INDEX IF NOT EXISTS uq_holds_active_reference
  ON holds(wallet_id, reference_type, reference_id) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS topups (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  idempotency_key TEXT NOT NULL,
  gateway TEXT NOT NULL,
  gateway_reference TEXT,
  failure_reason TEXT,
  expires_at DATETIME NOT NULL,
  confirmed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_topups_idempotency_key ON topups(idempotency_key);

CREATE TABLE IF NOT EXISTS refunds (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  original_entry_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'processed',
  reason TEXT NOT NULL,
  idempotency_key TEXT NOT NULL,
  ledger_entry_id TEXT NOT NULL,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_refunds_idempotency_key ON refunds(idempotency_key);

CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  effective_cents INTEGER NOT NULL,
  threshold_cents INTEGER NOT NULL,
  dispatched_at DATETIME,
  created_at DATETIME
);

CREATE TABLE IF NOT EXISTS reconciliation_reports (
  id TEXT PRIMARY KEY,
  gateway TEXT NOT NULL,
  report_date DATE NOT NULL,
  gateway_count INTEGER NOT NULL,
  ledger_count INTEGER NOT NULL,
  matched_count INTEGER NOT NULL,
  unmatched_gateway INTEGER NOT NULL,
  unmatched_ledger INTEGER NOT NULL,
  gateway_total_cents INTEGER NOT NULL,
  ledger_total_cents INTEGER NOT NULL,
  discrepancy_cents INTEGER NOT NULL,
  anomalies TEXT,
  created_at DATETIME
);
`

// Open returns a db.Client backed by a fresh in-memory sqlite database.
func Open(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec(schema).Error; err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, dbErr := conn.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	})

	return db.NewFromConn(conn, 3)
}
