package dynamo

// DynamoDB attribute names used in update and condition expressions across repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable               = "enable"
	fieldDeletedAt            = "deleted_at"
	fieldRead                 = "read"
	fieldUpdatedAt            = "updated_at"
	fieldToken                = "token"
	fieldVerificationCode     = "verification_code"
	fieldVerificationStatus   = "verification_status"
	fieldVerificationGenAt    = "verification_code_generated_at"
	fieldVerificationExpires  = "verification_expires_at"
	fieldVerificationSubmit   = "verification_submitted_at"
	fieldVerificationReview   = "verification_reviewed_at"
	fieldVerificationReviewer = "verification_reviewed_by"
	fieldExpiryWarnedAt       = "expiry_warned_at"
)
