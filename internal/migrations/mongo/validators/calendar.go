package validators

// Tokens are opaque to the schema; only the refresh token is mandatory.
var CalendarCredentialValidator = document(
	[]string{"_id", "access_token", "refresh_token", "updated_at"},
	map[string]any{
		"_id":           nonEmpty(),
		"access_token":  text(),
		"refresh_token": nonEmpty(),
		"expiry":        date(),
		"updated_at":    date(),
	},
)

var CalendarChannelValidator = document(
	[]string{"_id", "tenant_id", "resource_id", "token", "created_at"},
	map[string]any{
		"_id":         nonEmpty(),
		"tenant_id":   nonEmpty(),
		"resource_id": text(),
		"token":       nonEmpty(),
		"sync_token":  text(),
		"expiration":  date(),
		"created_at":  date(),
	},
)
