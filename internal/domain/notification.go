package domain

import "time"

type NotificationType string

const (
	NotificationVerificationApproved     NotificationType = "verification_approved"
	NotificationVerificationRejected     NotificationType = "verification_rejected"
	NotificationVerificationSubmitted    NotificationType = "verification_submitted"
	NotificationVerificationStatusUpdate NotificationType = "verification_status_update"
	NotificationVerificationExpiry       NotificationType = "verification_expiry_warning"
	NotificationNewMessage               NotificationType = "new_message"
	NotificationNewComment               NotificationType = "new_comment"
)

// Title returns the display title for a notification type.
func (t NotificationType) Title() string {
	switch t {
	case NotificationVerificationApproved:
		return "Verification approved!"
	case NotificationVerificationRejected:
		return "Verification rejected"
	case NotificationVerificationSubmitted:
		return "Verification submitted"
	case NotificationVerificationExpiry:
		return "Verification expiring"
	case NotificationNewMessage:
		return "New message"
	case NotificationNewComment:
		return "New comment"
	default:
		return "Plated"
	}
}

type Notification struct {
	NotificationID string            `json:"id" dynamodbav:"notification_id"`
	UserID         string            `json:"user_id" dynamodbav:"user_id"`
	Type           NotificationType  `json:"type" dynamodbav:"type"`
	Content        string            `json:"content" dynamodbav:"content"`
	RelatedID      *string           `json:"related_id" dynamodbav:"related_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	Read           bool              `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time         `json:"created_at" dynamodbav:"created_at"`
}
