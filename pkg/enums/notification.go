package enums

import "fmt"

// NotificationType groups in-app notifications by the aggregate that raised them.
type NotificationType string

const (
	NotificationTypeOrder   NotificationType = "order"
	NotificationTypePayment NotificationType = "payment"
	NotificationTypePayout  NotificationType = "payout"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypePayment,
	NotificationTypePayout,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
