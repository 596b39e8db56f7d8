package admin

import "errors"

var (
	ErrForbidden     = errors.New("admin role required")
	ErrInvalidRole   = errors.New("invalid role")
	ErrOrderNotFound = errors.New("order not found")
	ErrUserNotFound  = errors.New("user not found")
	// ErrInvalidProduct rejects product input before it is sent.
	ErrInvalidProduct = errors.New("invalid product")
)
