package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-admin-console/internal/utils"
)

// Claims are read without verifying the signature: the console only uses
// them for display and never to decide whether a token is sent.

func expiryOf(accessToken string) time.Time {
	claims, ok := parseClaims(accessToken)
	if !ok {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func rolesOf(accessToken string) []string {
	claims, ok := parseClaims(accessToken)
	if !ok {
		return nil
	}
	return utils.ToStringSlice(claims["roles"])
}

func parseClaims(accessToken string) (jwt.MapClaims, bool) {
	if accessToken == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, false
	}
	return claims, true
}
