package accessrequest

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
)

// StubVerification replaces the enrollment verification step and returns a
// restore func, so tests can force a failed proof.
func StubVerification(fn func(tx *gorm.DB, userID, courseID uuid.UUID) (enrollment.Verification, error)) (restore func()) {
	prev := verifyEnrollment
	verifyEnrollment = fn
	return func() { verifyEnrollment = prev }
}
