package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

// EnrollmentStatus represents the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	StatusActive   EnrollmentStatus = "active"
	StatusInactive EnrollmentStatus = "inactive"
)

// StudentProgress is the authoritative record of a student's progress within
// a course. One row per (user, course); created on first enrollment, deleted
// only on unenroll.
type StudentProgress struct {
	types.BaseModel

	UserID            uuid.UUID       `gorm:"type:uuid;not null;column:user_id;uniqueIndex:idx_progress_user_course" json:"userId"`
	CourseID          uuid.UUID       `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_progress_user_course" json:"courseId"`
	CompletedChapters ChapterSet      `gorm:"type:text;not null;column:completed_chapters" json:"completedChapters"`
	WatchedVideos     WatchedVideoMap `gorm:"type:text;not null;column:watched_videos" json:"watchedVideos"`
	QuizAttempts      QuizAttemptLog  `gorm:"type:text;not null;column:quiz_attempts" json:"quizAttempts"`
	TotalProgress     int             `gorm:"type:int;not null;default:0;column:total_progress" json:"totalProgress"`
	LastAccessed      time.Time       `gorm:"column:last_accessed" json:"lastAccessed"`
}

// TableName overrides the default table name.
func (StudentProgress) TableName() string { return "student_progress" }

// Enrollment is the read-optimized replica of the enrollment fact. At rest
// its progress column mirrors StudentProgress.TotalProgress.
type Enrollment struct {
	types.BaseModel

	UserID      uuid.UUID        `gorm:"type:uuid;not null;column:user_id;uniqueIndex:idx_enrollment_user_course" json:"userId"`
	CourseID    uuid.UUID        `gorm:"type:uuid;not null;column:course_id;uniqueIndex:idx_enrollment_user_course" json:"courseId"`
	Status      EnrollmentStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Progress    int              `gorm:"type:int;not null;default:0" json:"progress"`
	EnrolledAt  time.Time        `gorm:"column:enrolled_at" json:"enrolledAt"`
	CompletedAt *time.Time       `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

// TableName overrides the default table name.
func (Enrollment) TableName() string { return "enrollments" }

// GetProgress retrieves the progress row for a (user, course) pair.
func GetProgress(db *gorm.DB, userID, courseID uuid.UUID) (StudentProgress, error) {
	var sp StudentProgress
	if err := db.First(&sp, "user_id = ? AND course_id = ?", userID, courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return sp, ErrProgressNotFound
		}
		return sp, err
	}
	return sp, nil
}

// GetProgressForUpdate reads the progress row under a row-level lock. Every
// read-modify-write on the shared collections goes through this: without the
// lock two near-simultaneous chapter completions can each read the pre-update
// set and overwrite each other's result.
func GetProgressForUpdate(tx *gorm.DB, userID, courseID uuid.UUID) (StudentProgress, error) {
	var sp StudentProgress
	if err := lockForUpdate(tx).First(&sp, "user_id = ? AND course_id = ?", userID, courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return sp, ErrProgressNotFound
		}
		return sp, err
	}
	return sp, nil
}

// Get retrieves the enrollment row for a (user, course) pair.
func Get(db *gorm.DB, userID, courseID uuid.UUID) (Enrollment, error) {
	var e Enrollment
	if err := db.First(&e, "user_id = ? AND course_id = ?", userID, courseID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return e, ErrEnrollmentNotFound
		}
		return e, err
	}
	return e, nil
}

// ListByUser retrieves all enrollments for a user.
func ListByUser(db *gorm.DB, userID uuid.UUID) ([]Enrollment, error) {
	var rows []Enrollment
	err := db.Where("user_id = ?", userID).Order("enrolled_at ASC").Find(&rows).Error
	return rows, err
}

// ListByCourse retrieves all enrollments for a course.
func ListByCourse(db *gorm.DB, courseID uuid.UUID) ([]Enrollment, error) {
	var rows []Enrollment
	err := db.Where("course_id = ?", courseID).Order("enrolled_at ASC").Find(&rows).Error
	return rows, err
}

// lockForUpdate adds a FOR UPDATE clause on dialects that support it. The
// sqlite driver used in tests is single-writer, so the clause is skipped
// there rather than producing invalid SQL.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
