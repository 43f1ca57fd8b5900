package enums

import "fmt"

type PaymentLogKind string

// Reconciliation entries mark processor payments the order lifecycle could
// not absorb. An operator settles them by hand.
const (
	PaymentLogKindWebhook        PaymentLogKind = "webhook"
	PaymentLogKindOAuthExchange  PaymentLogKind = "oauth_exchange"
	PaymentLogKindPayoutAttempt  PaymentLogKind = "payout_attempt"
	PaymentLogKindPreference     PaymentLogKind = "preference"
	PaymentLogKindReconciliation PaymentLogKind = "reconciliation"
)

var validPaymentLogKinds = []PaymentLogKind{
	PaymentLogKindWebhook,
	PaymentLogKindOAuthExchange,
	PaymentLogKindPayoutAttempt,
	PaymentLogKindPreference,
	PaymentLogKindReconciliation,
}

func (k PaymentLogKind) IsValid() bool {
	for _, candidate := range validPaymentLogKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParsePaymentLogKind(value string) (PaymentLogKind, error) {
	for _, candidate := range validPaymentLogKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment log kind %q", value)
}

// PaymentProvider names the external system a payment log entry talked to.
type PaymentProvider string

const (
	PaymentProviderSquare PaymentProvider = "square"
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderManual PaymentProvider = "manual"
)
