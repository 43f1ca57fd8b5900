package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders"), []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CHECK (status IN ('pending','confirmed','processing','shipped','delivered','completed','cancelled'))",
		"CHECK (payment_status IN ('pending','processing','approved','rejected'))",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE RESTRICT",
		"CHECK (quantity >= 1)",
		"DROP TABLE IF EXISTS orders",
	})
}

func TestAuditTablesAreAppendOnly(t *testing.T) {
	assertContains(t, readMigration(t, "create_order_status_changes"), []string{
		"BEFORE UPDATE OR DELETE ON order_status_changes",
		"reject_append_only_mutation",
	})
	assertContains(t, readMigration(t, "create_payment_accounts_and_logs"), []string{
		"BEFORE UPDATE OR DELETE ON payment_logs",
		"supplier_id uuid NOT NULL UNIQUE",
	})
}

func TestPayoutsMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_payouts"), []string{
		"CHECK (status IN ('pending','paid','failed','exhausted','cancelled'))",
		"PRIMARY KEY (payout_id, order_id)",
		"ux_supplier_wallets_primary ON supplier_wallets (supplier_id) WHERE is_primary",
	})
}

func TestOutboxMigrationHasOnceIndex(t *testing.T) {
	assertContains(t, readMigration(t, "create_notifications_and_outbox"), []string{
		"ux_outbox_events_once",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
	})
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestReconciliationLogKindIsAllowed(t *testing.T) {
	assertContains(t, readMigration(t, "add_reconciliation_payment_logs"), []string{
		"DROP CONSTRAINT IF EXISTS payment_logs_kind_check",
		"'preference','reconciliation'",
		"WHERE kind = 'reconciliation'",
	})
}
