package enums

import "fmt"

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusPaid      PayoutStatus = "paid"
	PayoutStatusFailed    PayoutStatus = "failed"
	PayoutStatusExhausted PayoutStatus = "exhausted"
	PayoutStatusCancelled PayoutStatus = "cancelled"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusPaid,
	PayoutStatusFailed,
	PayoutStatusExhausted,
	PayoutStatusCancelled,
}

func (p PayoutStatus) String() string {
	return string(p)
}

func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal is true for paid and cancelled payouts.
func (p PayoutStatus) IsTerminal() bool {
	return p == PayoutStatusPaid || p == PayoutStatusCancelled
}

func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
