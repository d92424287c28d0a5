package common

// AuthorizationHeader carries the bearer token on backupd requests.
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
)
