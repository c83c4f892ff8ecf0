package jobs

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
)

// ReconcileJob sweeps for (user, course) pairs that exist in only one of the
// two enrollment tables, or whose mirrored progress diverged, and repairs
// them. StudentProgress always wins. It is a safety net behind the
// transactional write path, not part of it.
type ReconcileJob struct {
	db     *gorm.DB
	logger *slog.Logger
	limit  int
}

// NewReconcileJob creates an enrollment reconciliation job. limit caps how
// many broken pairs one sweep repairs; zero means the default of 500.
func NewReconcileJob(db *gorm.DB, logger *slog.Logger, limit int) *ReconcileJob {
	if limit <= 0 {
		limit = 500
	}
	return &ReconcileJob{db: db, logger: logger, limit: limit}
}

// Name returns the job name.
func (j *ReconcileJob) Name() string {
	return "enrollment_reconcile"
}

type brokenPair struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
}

// Execute finds broken pairs and repairs each in its own transaction so one
// failure does not abort the sweep.
func (j *ReconcileJob) Execute(ctx context.Context) error {
	var pairs []brokenPair
	err := j.db.WithContext(ctx).Raw(`
		SELECT sp.user_id, sp.course_id
		FROM student_progress sp
		LEFT JOIN enrollments e ON e.user_id = sp.user_id AND e.course_id = sp.course_id
		WHERE e.id IS NULL OR e.progress <> sp.total_progress
		UNION
		SELECT e.user_id, e.course_id
		FROM enrollments e
		LEFT JOIN student_progress sp ON sp.user_id = e.user_id AND sp.course_id = e.course_id
		WHERE sp.id IS NULL
		LIMIT ?`, j.limit).Scan(&pairs).Error
	if err != nil {
		return fmt.Errorf("failed to query broken enrollment pairs: %w", err)
	}

	if len(pairs) == 0 {
		j.logger.Debug("enrollment reconcile found nothing to repair")
		return nil
	}

	repaired := 0
	failed := 0
	for _, pair := range pairs {
		err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result, err := enrollment.SyncEnrollmentState(tx, pair.UserID, pair.CourseID)
			if err != nil {
				return err
			}
			if !result.InSync {
				j.logger.Info("repaired enrollment pair",
					slog.String("user_id", pair.UserID.String()),
					slog.String("course_id", pair.CourseID.String()),
					slog.Bool("progress_created", result.ProgressCreated),
					slog.Bool("enrollment_created", result.EnrollmentCreated),
					slog.Bool("mirror_repaired", result.MirrorRepaired),
				)
			}
			return nil
		})
		if err != nil {
			failed++
			j.logger.Error("failed to repair enrollment pair",
				slog.String("user_id", pair.UserID.String()),
				slog.String("course_id", pair.CourseID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		repaired++
	}

	j.logger.Info("enrollment reconcile completed",
		slog.Int("candidates", len(pairs)),
		slog.Int("repaired", repaired),
		slog.Int("failed", failed),
	)
	return nil
}
