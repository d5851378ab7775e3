package domain

import (
	"strings"
	"time"
)

// Profile is the public user record. Verification state is stored inline.
type Profile struct {
	UserID       string  `json:"id" dynamodbav:"user_id"`
	Username     string  `json:"username" dynamodbav:"username"`
	LicensePlate string  `json:"license_plate" dynamodbav:"license_plate"`
	AvatarURL    *string `json:"avatar_url,omitempty" dynamodbav:"avatar_url,omitempty"`
	Email        string  `json:"-" dynamodbav:"email,omitempty"`

	VerificationCode        string             `json:"-" dynamodbav:"verification_code,omitempty"`
	VerificationStatus      VerificationStatus `json:"verification_status" dynamodbav:"verification_status,omitempty"`
	VerificationGeneratedAt *time.Time         `json:"-" dynamodbav:"verification_code_generated_at,omitempty"`
	VerificationExpiresAt   *time.Time         `json:"-" dynamodbav:"verification_expires_at,omitempty"`
	VerificationSubmittedAt *time.Time         `json:"-" dynamodbav:"verification_submitted_at,omitempty"`
	VerificationReviewedAt  *time.Time         `json:"-" dynamodbav:"verification_reviewed_at,omitempty"`
	VerificationReviewedBy  *string            `json:"-" dynamodbav:"verification_reviewed_by,omitempty"`
	ExpiryWarnedAt          *time.Time         `json:"-" dynamodbav:"expiry_warned_at,omitempty"`

	Enable    int        `json:"enable" dynamodbav:"enable"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// Status returns the verification status, treating an unset value as not_verified.
func (p *Profile) Status() VerificationStatus {
	if p.VerificationStatus == "" {
		return StatusNotVerified
	}
	return p.VerificationStatus
}

// Disabled reports whether the account has been switched off, typically by the
// verification expiry sweep.
func (p *Profile) Disabled() bool {
	return p.Enable == 0 || p.DeletedAt != nil
}

// CreateProfileRequest is the body of POST /v1/profiles.
type CreateProfileRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=30"`
	LicensePlate string `json:"license_plate" validate:"required,min=2,max=16"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
}

// Availability answers which of the requested values are still free. Fields
// that were not asked about are omitted.
type Availability struct {
	Username     *bool `json:"username,omitempty"`
	LicensePlate *bool `json:"license_plate,omitempty"`
	Email        *bool `json:"email,omitempty"`
}

// NormalizeUsername is the form usernames are compared in.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeLicensePlate upper-cases a plate and drops spaces and dashes, so
// "b-al 123" and "B AL123" are the same plate.
func NormalizeLicensePlate(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))
}

// NormalizeEmail is the form e-mail addresses are compared in.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ProfileSummary is the shape embedded in posts and conversation participants.
type ProfileSummary struct {
	Username     string  `json:"username"`
	LicensePlate string  `json:"license_plate"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
}

const (
	UnknownUsername     = "Unknown"
	UnknownLicensePlate = "???"
)

// Summary normalises a possibly missing profile into a summary with display
// defaults for empty fields.
func Summary(p *Profile) ProfileSummary {
	if p == nil {
		return ProfileSummary{Username: UnknownUsername, LicensePlate: UnknownLicensePlate}
	}
	s := ProfileSummary{Username: p.Username, LicensePlate: p.LicensePlate, AvatarURL: p.AvatarURL}
	if s.Username == "" {
		s.Username = UnknownUsername
	}
	if s.LicensePlate == "" {
		s.LicensePlate = UnknownLicensePlate
	}
	return s
}
