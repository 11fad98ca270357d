package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// credentialClaims reads the claims of a JWT bearer token without verifying
// its signature; only the backend can verify it. Opaque tokens report ok=false.
func credentialClaims(token string) (exp time.Time, subject string, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, "", false
	}
	if uid, found := claims["user_id"].(string); found {
		subject = uid
	} else if sub, err := claims.GetSubject(); err == nil {
		subject = sub
	}
	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, subject, true
	}
	return nd.Time, subject, true
}
