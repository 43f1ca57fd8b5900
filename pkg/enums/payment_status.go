package enums

import "fmt"

// PaymentStatus mirrors the canonical processor state of an order's payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusApproved   PaymentStatus = "approved"
	PaymentStatusRejected   PaymentStatus = "rejected"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusApproved,
	PaymentStatusRejected,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsFinal reports whether the processor will not move the payment again.
func (p PaymentStatus) IsFinal() bool {
	return p == PaymentStatusApproved || p == PaymentStatusRejected
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// PaymentDiscrepancy names a processor payment the order lifecycle could not
// absorb. The empty value means none.
type PaymentDiscrepancy string

const (
	// PaymentDiscrepancyPaidAfterCancel is an approved payment on a cancelled order.
	PaymentDiscrepancyPaidAfterCancel PaymentDiscrepancy = "paid_after_cancel"
	// PaymentDiscrepancyDuplicate is a second approved payment for an order
	// that already holds a different approved payment.
	PaymentDiscrepancyDuplicate PaymentDiscrepancy = "duplicate_payment"
	// PaymentDiscrepancyRejectedAfterConfirm is a rejection for an order that
	// already left pending.
	PaymentDiscrepancyRejectedAfterConfirm PaymentDiscrepancy = "rejected_after_confirm"
)

// NeedsRefund reports whether money was captured that the order cannot keep.
func (d PaymentDiscrepancy) NeedsRefund() bool {
	return d == PaymentDiscrepancyPaidAfterCancel || d == PaymentDiscrepancyDuplicate
}
