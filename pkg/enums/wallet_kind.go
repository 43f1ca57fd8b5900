package enums

import "fmt"

// WalletKind describes where a supplier payout is delivered.
type WalletKind string

const (
	WalletKindStripeAccount WalletKind = "stripe_account"
	WalletKindBankTransfer  WalletKind = "bank_transfer"
	WalletKindManual        WalletKind = "manual"
)

var validWalletKinds = []WalletKind{
	WalletKindStripeAccount,
	WalletKindBankTransfer,
	WalletKindManual,
}

func (k WalletKind) IsValid() bool {
	for _, candidate := range validWalletKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParseWalletKind(value string) (WalletKind, error) {
	for _, candidate := range validWalletKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet kind %q", value)
}
