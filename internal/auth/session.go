package auth

import (
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Session is a logged in user and the bearer token the backend issued.
type Session struct {
	Token string
	User  domain.User
}

// Expired reads the token's exp claim without verifying the signature; the
// backend stays the authority. Tokens that cannot be parsed count as
// expired, tokens without exp never expire.
func (s Session) Expired(now time.Time) bool {
	if s.Token == "" {
		return true
	}
	token, _, err := jwt.NewParser().ParseUnverified(s.Token, jwt.MapClaims{})
	if err != nil {
		return true
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Dashboard is where this session lands after login.
func (s Session) Dashboard() (domain.Dashboard, error) {
	return s.User.Role.Dashboard()
}
