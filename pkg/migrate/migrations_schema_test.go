package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parcelgrid/wallet-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestWalletsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_wallets.sql")

	checks := []string{
		"CREATE TABLE wallets",
		"CHECK (reserved_cents >= 0)",
		"CHECK (reserved_cents <= available_cents)",
		"CHECK (available_cents >= 0)",
		"CREATE UNIQUE INDEX uq_wallets_account_currency",
		"DROP TABLE IF EXISTS wallets",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestLedgerMigrationEnforcesSequenceUniqueness(t *testing.T) {
	content := readMigration(t, "*_create_ledger_entries.sql")

	checks := []string{
		"CREATE UNIQUE INDEX uq_ledger_wallet_sequence",
		"CHECK (amount_cents > 0)",
		"CHECK (sequence >= 1)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestHoldsMigrationHasPartialActiveIndex(t *testing.T) {
	content := readMigration(t, "*_create_holds.sql")

	checks := []string{
		"CREATE UNIQUE INDEX uq_holds_idempotency_key",
		"CREATE UNIQUE INDEX uq_holds_active_reference",
		"WHERE status = 'active'",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
