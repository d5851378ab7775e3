package domain

import "time"

// Device is a push-capable installation of the app. Enable doubles as the
// user's notifications toggle.
type Device struct {
	DeviceID    string    `json:"id" dynamodbav:"device_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	Token       *string   `json:"token" dynamodbav:"token,omitempty"`
	EndpointARN *string   `json:"-" dynamodbav:"endpoint_arn,omitempty"`
	Platform    string    `json:"platform" dynamodbav:"platform"`
	Enable      bool      `json:"enable" dynamodbav:"enable"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated" dynamodbav:"updated_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}
