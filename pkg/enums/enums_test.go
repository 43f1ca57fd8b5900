package enums

import "testing"

func TestOrderStatusTerminal(t *testing.T) {
	for _, status := range OrderStatuses() {
		want := status == OrderStatusCompleted || status == OrderStatusCancelled
		if status.IsTerminal() != want {
			t.Fatalf("status %s terminal=%v want %v", status, status.IsTerminal(), want)
		}
	}
	if len(OrderStatuses()) != 7 {
		t.Fatalf("expected seven order statuses")
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatalf("expected error for unknown order status")
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatalf("expected error for unknown payment status")
	}
	if _, err := ParsePayoutStatus("exhausted"); err != nil {
		t.Fatalf("exhausted should parse: %v", err)
	}
}

func TestParseActorRoleRejectsSystem(t *testing.T) {
	if _, err := ParseActorRole("system"); err == nil {
		t.Fatalf("system role must not be parseable from tokens")
	}
	role, err := ParseActorRole("supplier")
	if err != nil || role != ActorRoleSupplier {
		t.Fatalf("unexpected parse result %q %v", role, err)
	}
}

func TestParseCurrencyCaseInsensitive(t *testing.T) {
	c, err := ParseCurrency(" usd ")
	if err != nil || c != CurrencyUSD {
		t.Fatalf("expected USD, got %q %v", c, err)
	}
}

func TestPayoutTerminal(t *testing.T) {
	if !PayoutStatusPaid.IsTerminal() || !PayoutStatusCancelled.IsTerminal() {
		t.Fatalf("paid and cancelled are terminal")
	}
	if PayoutStatusExhausted.IsTerminal() {
		t.Fatalf("exhausted can still be released or cancelled")
	}
}
