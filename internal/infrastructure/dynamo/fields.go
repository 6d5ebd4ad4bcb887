package dynamo

// DynamoDB attribute names used in keys and expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID          = "user_id"
	fieldEmail           = "email"
	fieldType            = "type"
	fieldExpiresAt       = "expires_at"
	fieldAttempts        = "attempts"
	fieldUpdatedAt       = "updated_at"
	fieldIsEmailVerified = "is_email_verified"
	fieldAvatarKey       = "avatar_key"

	emailIndex = "email-index"
)
