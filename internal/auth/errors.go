package auth

import "errors"

var (
	ErrEmailPasswordRequired = errors.New("email and password are required")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrNotAuthenticated      = errors.New("not authenticated")
)
