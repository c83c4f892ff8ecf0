package enrollment

import "errors"

var (
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrProgressNotFound   = errors.New("student progress not found")
	ErrNotVerified        = errors.New("enrollment not verified in both tables")
)
