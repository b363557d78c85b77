package enums

import "fmt"

// NotificationType classifies outbound user notifications.
type NotificationType string

const (
	NotificationOutbid       NotificationType = "OUTBID"
	NotificationAuctionWon   NotificationType = "AUCTION_WON"
	NotificationItemSold     NotificationType = "ITEM_SOLD"
	NotificationAuctionEnded NotificationType = "AUCTION_ENDED"
)

var validNotificationTypes = []NotificationType{
	NotificationOutbid,
	NotificationAuctionWon,
	NotificationItemSold,
	NotificationAuctionEnded,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
