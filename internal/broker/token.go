package broker

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IsExpired reports whether the bearer token's exp claim lies in the past.
// The signature is not verified: the token was issued by the upstream and is
// only inspected for freshness. Tokens that fail to decode or carry no exp
// claim count as expired.
func IsExpired(token string) bool {
	return isExpiredAt(token, time.Now())
}

func isExpiredAt(token string, now time.Time) bool {
	if token == "" {
		return true
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return now.After(claims.ExpiresAt.Time)
}
