package user

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailRequired   = errors.New("email is required")
	ErrEmailTaken      = errors.New("email already exists")
	ErrInvalidPassword = errors.New("password must be at least 8 characters")
)
