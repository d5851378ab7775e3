package domain

import (
	"math"
	"time"
)

type VerificationStatus string

const (
	StatusNotVerified VerificationStatus = "not_verified"
	StatusPending     VerificationStatus = "pending"
	StatusVerified    VerificationStatus = "verified"
	StatusRejected    VerificationStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusNotVerified, StatusPending, StatusVerified, StatusRejected:
		return true
	}
	return false
}

// Locked reports whether the user may no longer regenerate the code or
// replace images.
func (s VerificationStatus) Locked() bool {
	return s == StatusPending || s == StatusVerified
}

// CanSubmit reports whether a user-initiated submit is allowed from s.
func (s VerificationStatus) CanSubmit() bool {
	return s == StatusNotVerified || s == StatusRejected || s == ""
}

// CanReview reports whether an administrative review may move s to target.
// Approve and reject require a pending submission; any other target is an
// administrative override and is accepted from every state.
func (s VerificationStatus) CanReview(target VerificationStatus) bool {
	switch target {
	case StatusVerified, StatusRejected:
		return s == StatusPending
	case StatusNotVerified, StatusPending:
		return true
	}
	return false
}

type ImageType string

const (
	ImageLicensePlate ImageType = "license_plate"
	ImageDashboard    ImageType = "dashboard"
)

// RequiredImageTypes lists the image types a submission needs.
var RequiredImageTypes = []ImageType{ImageLicensePlate, ImageDashboard}

func (t ImageType) Valid() bool {
	return t == ImageLicensePlate || t == ImageDashboard
}

// VerificationImage is one ownership photo. PK: user_id, SK: image_type.
// The photo lives in object storage (ImageURL, ImageKey) or, when no store is
// reachable and it is small enough, inline as ImageBase64.
type VerificationImage struct {
	ImageID     string    `json:"id" dynamodbav:"image_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	ImageType   ImageType `json:"image_type" dynamodbav:"image_type"`
	ImageBase64 string    `json:"image_base64,omitempty" dynamodbav:"image_base64,omitempty"`
	ImageURL    string    `json:"image_url,omitempty" dynamodbav:"image_url,omitempty"`
	ImageKey    string    `json:"-" dynamodbav:"image_key,omitempty"`
	CreatedAt   time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// VerificationInfo is the per-user view of the verification record.
type VerificationInfo struct {
	Code        string             `json:"code"`
	Status      VerificationStatus `json:"status"`
	GeneratedAt *time.Time         `json:"generated_at"`
	ExpiresAt   *time.Time         `json:"expires_at"`
	SubmittedAt *time.Time         `json:"submitted_at"`
	ReviewedAt  *time.Time         `json:"reviewed_at"`
	DaysLeft    *int               `json:"days_left"`
}

// DaysLeft returns the number of started days until expiresAt, or nil when
// no expiry is set.
func DaysLeft(expiresAt *time.Time, now time.Time) *int {
	if expiresAt == nil {
		return nil
	}
	days := int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
	return &days
}
