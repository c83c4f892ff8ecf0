package testutil

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"log/slog"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/enrollhub/enrollment-server-go/internal/features/accessrequest"
	"github.com/enrollhub/enrollment-server-go/internal/features/course"
	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/features/user"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

var dbCounter atomic.Uint64

// Logger returns a logger that discards everything.
func Logger(tb testing.TB) *slog.Logger {
	tb.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// DB opens a fresh in-memory sqlite database with the full schema migrated.
// Every call gets its own database, so tests never share state.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("failed to get sql db: %v", err)
	}
	// A shared-cache memory database lives as long as one connection holds
	// it open; a second connection would still race DDL, so pin to one.
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&user.User{},
		&course.Course{},
		&course.CourseModule{},
		&course.Chapter{},
		&enrollment.StudentProgress{},
		&enrollment.Enrollment{},
		&accessrequest.AccessRequest{},
	); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}

	return db
}

// Emitter returns an emitter with a recorder attached, for asserting on
// published events.
func Emitter(tb testing.TB) (*events.Emitter, *events.Recorder) {
	tb.Helper()
	emitter := events.NewEmitter(Logger(tb))
	return emitter, events.NewRecorder(emitter)
}

// CreateUser inserts a user with a fixed password hash.
func CreateUser(tb testing.TB, db *gorm.DB, userType types.UserType) user.User {
	tb.Helper()

	u := user.User{
		FullName: "Test " + string(userType),
		Email:    fmt.Sprintf("%s-%s@example.com", userType, uuid.NewString()[:8]),
		Password: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
		UserType: userType,
		Active:   true,
	}
	if err := db.Create(&u).Error; err != nil {
		tb.Fatalf("failed to create user: %v", err)
	}
	return u
}

// CreateCourse inserts a course with one module and the given number of
// chapters, and returns the course plus its chapters in order.
func CreateCourse(tb testing.TB, db *gorm.DB, chapterCount int) (course.Course, []course.Chapter) {
	tb.Helper()

	crs := course.Course{
		Name:   "Course " + uuid.NewString()[:8],
		Active: true,
	}
	if err := db.Create(&crs).Error; err != nil {
		tb.Fatalf("failed to create course: %v", err)
	}

	module := course.CourseModule{CourseID: crs.ID, Name: "Module 1"}
	if err := db.Create(&module).Error; err != nil {
		tb.Fatalf("failed to create module: %v", err)
	}

	chapters := make([]course.Chapter, 0, chapterCount)
	for i := 0; i < chapterCount; i++ {
		videoID := fmt.Sprintf("video-%d", i+1)
		quizID := uuid.New()
		ch := course.Chapter{
			ModuleID: module.ID,
			Name:     fmt.Sprintf("Chapter %d", i+1),
			VideoID:  &videoID,
			QuizID:   &quizID,
			Order:    i + 1,
		}
		if err := db.Create(&ch).Error; err != nil {
			tb.Fatalf("failed to create chapter: %v", err)
		}
		chapters = append(chapters, ch)
	}

	return crs, chapters
}

// Enroll runs the enroll operation for a pair inside a transaction.
func Enroll(tb testing.TB, db *gorm.DB, emitter *events.Emitter, userID, courseID uuid.UUID) {
	tb.Helper()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := enrollment.EnrollStudent(tx, emitter, enrollment.EnrollInput{
			UserID:   userID,
			CourseID: courseID,
			Source:   "test",
		})
		return err
	})
	if err != nil {
		tb.Fatalf("failed to enroll: %v", err)
	}
}
