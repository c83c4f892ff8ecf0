package progress

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/course"
	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/pkg/executor"
)

// Validator runs read-only precondition checks for progress operations
// against live persisted state. It never writes.
type Validator struct {
	db *gorm.DB
}

// NewValidator constructs a progress validator.
func NewValidator(db *gorm.DB) *Validator {
	return &Validator{db: db}
}

// ValidateParams are the parameters a progress operation is about to run with.
// ChapterID is optional; when set, chapter existence and course membership
// are checked too.
type ValidateParams struct {
	UserID    uuid.UUID
	CourseID  uuid.UUID
	Progress  *int
	ChapterID *uuid.UUID
}

// ValidateProgressUpdate collects every violation into one result rather than
// stopping at the first, so the caller sees a single coherent error.
func (v *Validator) ValidateProgressUpdate(ctx context.Context, params ValidateParams) executor.ValidationResult {
	db := v.db.WithContext(ctx)
	var errs []string
	var warnings []string

	if _, err := enrollment.GetProgress(db, params.UserID, params.CourseID); err != nil {
		if err == enrollment.ErrProgressNotFound {
			errs = append(errs, "student is not enrolled in this course")
		} else {
			errs = append(errs, fmt.Sprintf("enrollment lookup failed: %v", err))
		}
	}

	exists, err := course.Exists(db, params.CourseID)
	if err != nil {
		errs = append(errs, fmt.Sprintf("course lookup failed: %v", err))
	} else if !exists {
		errs = append(errs, "course not found")
	}

	if params.Progress != nil && (*params.Progress < 0 || *params.Progress > 100) {
		errs = append(errs, fmt.Sprintf("progress %d is outside [0,100]", *params.Progress))
	}

	if params.ChapterID != nil {
		inCourse, err := course.ChapterInCourse(db, *params.ChapterID, params.CourseID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("chapter lookup failed: %v", err))
		} else if !inCourse {
			errs = append(errs, "chapter does not belong to this course")
		}
	}

	return executor.ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}
