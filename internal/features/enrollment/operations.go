package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/pkg/events"
)

// EnrollInput carries the parameters of an enroll operation.
type EnrollInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	AdminID  *uuid.UUID
	Source   string
}

// EnrollResult reports which rows an enroll call actually created. A second
// call for the same pair yields all-false creation flags.
type EnrollResult struct {
	ProgressCreated       bool `json:"progressCreated"`
	EnrollmentCreated     bool `json:"enrollmentCreated"`
	EnrollmentReactivated bool `json:"enrollmentReactivated"`
	RequestDeleted        bool `json:"requestDeleted"`
}

// EnrollStudent is an idempotent upsert of the dual enrollment records.
// Missing rows are created, an inactive enrollment is reactivated, and any
// pending access request for the pair is removed — enrollment supersedes it.
func EnrollStudent(tx *gorm.DB, emitter *events.Emitter, input EnrollInput) (EnrollResult, error) {
	var result EnrollResult
	now := time.Now().UTC()

	sp, err := GetProgressForUpdate(tx, input.UserID, input.CourseID)
	if err == ErrProgressNotFound {
		sp = StudentProgress{
			UserID:            input.UserID,
			CourseID:          input.CourseID,
			CompletedChapters: ChapterSet{},
			WatchedVideos:     WatchedVideoMap{},
			QuizAttempts:      QuizAttemptLog{},
			TotalProgress:     0,
			LastAccessed:      now,
		}
		if err := tx.Create(&sp).Error; err != nil {
			return result, err
		}
		result.ProgressCreated = true
	} else if err != nil {
		return result, err
	}

	var enr Enrollment
	err = lockForUpdate(tx).First(&enr, "user_id = ? AND course_id = ?", input.UserID, input.CourseID).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		enr = Enrollment{
			UserID:     input.UserID,
			CourseID:   input.CourseID,
			Status:     StatusActive,
			Progress:   sp.TotalProgress,
			EnrolledAt: now,
		}
		if err := tx.Create(&enr).Error; err != nil {
			return result, err
		}
		result.EnrollmentCreated = true
	case err != nil:
		return result, err
	default:
		if enr.Status != StatusActive {
			enr.Status = StatusActive
			if err := tx.Save(&enr).Error; err != nil {
				return result, err
			}
			result.EnrollmentReactivated = true
		}
	}

	// The access request feature owns this table; a direct delete here avoids
	// an import cycle with the approve operation, which calls EnrollStudent.
	res := tx.Exec(
		`DELETE FROM access_requests WHERE student_id = ? AND course_id = ? AND status = ?`,
		input.UserID, input.CourseID, "pending",
	)
	if res.Error != nil {
		return result, res.Error
	}
	result.RequestDeleted = res.RowsAffected > 0

	metadata := map[string]interface{}{
		"source":            input.Source,
		"progressCreated":   result.ProgressCreated,
		"enrollmentCreated": result.EnrollmentCreated,
	}
	if input.AdminID != nil {
		metadata["adminId"] = input.AdminID.String()
	}
	emitter.Publish(events.New(events.EnrollmentCreated, input.UserID, input.CourseID, metadata))

	return result, nil
}

// UnenrollInput carries the parameters of an unenroll operation.
type UnenrollInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	AdminID  uuid.UUID
	Reason   string
}

// UnenrollStudent hard-deletes both enrollment records. Irreversible: all
// progress for the pair is gone afterwards.
func UnenrollStudent(tx *gorm.DB, emitter *events.Emitter, input UnenrollInput) error {
	progressRes := tx.Delete(&StudentProgress{}, "user_id = ? AND course_id = ?", input.UserID, input.CourseID)
	if progressRes.Error != nil {
		return progressRes.Error
	}
	enrollRes := tx.Delete(&Enrollment{}, "user_id = ? AND course_id = ?", input.UserID, input.CourseID)
	if enrollRes.Error != nil {
		return enrollRes.Error
	}
	if progressRes.RowsAffected == 0 && enrollRes.RowsAffected == 0 {
		return ErrEnrollmentNotFound
	}

	emitter.Publish(events.New(events.EnrollmentRemoved, input.UserID, input.CourseID, map[string]interface{}{
		"adminId": input.AdminID.String(),
		"reason":  input.Reason,
	}))
	return nil
}

// Verification is the outcome of a dual-table existence check.
type Verification struct {
	InProgress    bool `json:"inProgress"`
	InEnrollments bool `json:"inEnrollments"`
	Verified      bool `json:"verified"`
}

// VerifyEnrollmentExists checks both tables for the pair. It is a post-write
// assertion, never a precondition gate on its own.
func VerifyEnrollmentExists(tx *gorm.DB, userID, courseID uuid.UUID) (Verification, error) {
	var v Verification

	var progressCount int64
	if err := tx.Model(&StudentProgress{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&progressCount).Error; err != nil {
		return v, err
	}
	var enrollCount int64
	if err := tx.Model(&Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&enrollCount).Error; err != nil {
		return v, err
	}

	v.InProgress = progressCount > 0
	v.InEnrollments = enrollCount > 0
	v.Verified = v.InProgress && v.InEnrollments
	return v, nil
}

// MirrorProgress writes the authoritative progress value onto the Enrollment
// replica, creating the row if it is missing, and maintains the completed-at
// boundary: set exactly when progress reaches 100, cleared when it drops.
func MirrorProgress(tx *gorm.DB, userID, courseID uuid.UUID, progress int) (Enrollment, error) {
	now := time.Now().UTC()

	var enr Enrollment
	err := lockForUpdate(tx).First(&enr, "user_id = ? AND course_id = ?", userID, courseID).Error
	if err == gorm.ErrRecordNotFound {
		enr = Enrollment{
			UserID:     userID,
			CourseID:   courseID,
			Status:     StatusActive,
			Progress:   progress,
			EnrolledAt: now,
		}
		if progress >= 100 {
			enr.CompletedAt = &now
		}
		if err := tx.Create(&enr).Error; err != nil {
			return enr, err
		}
		return enr, nil
	}
	if err != nil {
		return enr, err
	}

	enr.Progress = progress
	if progress >= 100 {
		if enr.CompletedAt == nil {
			enr.CompletedAt = &now
		}
	} else {
		enr.CompletedAt = nil
	}
	if err := tx.Save(&enr).Error; err != nil {
		return enr, err
	}
	return enr, nil
}

// SyncResult reports what a reconciliation pass changed.
type SyncResult struct {
	ProgressCreated   bool `json:"progressCreated"`
	EnrollmentCreated bool `json:"enrollmentCreated"`
	MirrorRepaired    bool `json:"mirrorRepaired"`
	InSync            bool `json:"inSync"`
}

// SyncEnrollmentState repairs a half-written pair: if exactly one row exists
// the missing one is created seeded from the existing progress value, and a
// diverged mirror is overwritten from StudentProgress, which always wins.
// Maintenance only — this never runs on the primary write path.
func SyncEnrollmentState(tx *gorm.DB, userID, courseID uuid.UUID) (SyncResult, error) {
	var result SyncResult
	now := time.Now().UTC()

	sp, spErr := GetProgressForUpdate(tx, userID, courseID)
	if spErr != nil && spErr != ErrProgressNotFound {
		return result, spErr
	}
	var enr Enrollment
	enrErr := lockForUpdate(tx).First(&enr, "user_id = ? AND course_id = ?", userID, courseID).Error
	if enrErr != nil && enrErr != gorm.ErrRecordNotFound {
		return result, enrErr
	}

	hasProgress := spErr == nil
	hasEnrollment := enrErr == nil

	switch {
	case !hasProgress && !hasEnrollment:
		return result, ErrEnrollmentNotFound

	case hasProgress && !hasEnrollment:
		enr = Enrollment{
			UserID:     userID,
			CourseID:   courseID,
			Status:     StatusActive,
			Progress:   sp.TotalProgress,
			EnrolledAt: now,
		}
		if sp.TotalProgress >= 100 {
			enr.CompletedAt = &now
		}
		if err := tx.Create(&enr).Error; err != nil {
			return result, err
		}
		result.EnrollmentCreated = true

	case !hasProgress && hasEnrollment:
		sp = StudentProgress{
			UserID:            userID,
			CourseID:          courseID,
			CompletedChapters: ChapterSet{},
			WatchedVideos:     WatchedVideoMap{},
			QuizAttempts:      QuizAttemptLog{},
			TotalProgress:     enr.Progress,
			LastAccessed:      now,
		}
		if err := tx.Create(&sp).Error; err != nil {
			return result, err
		}
		result.ProgressCreated = true

	case enr.Progress != sp.TotalProgress:
		enr.Progress = sp.TotalProgress
		if sp.TotalProgress >= 100 {
			if enr.CompletedAt == nil {
				enr.CompletedAt = &now
			}
		} else {
			enr.CompletedAt = nil
		}
		if err := tx.Save(&enr).Error; err != nil {
			return result, err
		}
		result.MirrorRepaired = true

	default:
		result.InSync = true
	}

	return result, nil
}
