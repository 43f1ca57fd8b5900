package orders

import "github.com/angelmondragon/marketplace-backend/pkg/enums"

// transitions lists every legal status edge. Anything absent is rejected.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {enums.OrderStatusCompleted},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidPath reports whether consecutive statuses form a walk of the state machine
// starting at pending.
func ValidPath(path []enums.OrderStatus) bool {
	if len(path) == 0 {
		return true
	}
	if path[0] != enums.OrderStatusPending {
		return false
	}
	for i := 1; i < len(path); i++ {
		if !CanTransition(path[i-1], path[i]) {
			return false
		}
	}
	return true
}

// timestampColumn names the column stamped when an order enters status.
func timestampColumn(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusConfirmed:
		return "confirmed_at"
	case enums.OrderStatusShipped:
		return "shipped_at"
	case enums.OrderStatusDelivered:
		return "delivered_at"
	case enums.OrderStatusCompleted:
		return "completed_at"
	case enums.OrderStatusCancelled:
		return "cancelled_at"
	}
	return ""
}
