// File: utils/constants.go
package utils

import "time"

// AuthCachePrefix is the prefix used for Redis authorization cache keys.
const AuthCachePrefix = "auth:"

// AuthCacheTTL is the time-to-live for authorization cache entries.
const AuthCacheTTL = 10 * time.Minute

// SessionHeader carries the client session id on every request and response.
const SessionHeader = "X-Session-ID"

// Gin context keys populated by middleware.
const (
	CtxSessionID = "sessionID"
	CtxUserID    = "userID"
	CtxEmail     = "email"
)
