package enrollment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/course"
	"github.com/enrollhub/enrollment-server-go/internal/features/user"
	"github.com/enrollhub/enrollment-server-go/internal/middleware"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/executor"
	"github.com/enrollhub/enrollment-server-go/pkg/response"
)

// Handler processes enrollment HTTP requests.
type Handler struct {
	db      *gorm.DB
	logger  *slog.Logger
	exec    *executor.Service
	emitter *events.Emitter
}

// NewHandler constructs an enrollment handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, exec *executor.Service, emitter *events.Emitter) *Handler {
	return &Handler{db: db, logger: logger, exec: exec, emitter: emitter}
}

// Enroll creates or repairs the dual enrollment records for a pair.
func (h *Handler) Enroll(c *gin.Context) {
	var req struct {
		UserID   uuid.UUID `json:"userId" binding:"required"`
		CourseID uuid.UUID `json:"courseId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid enrollment payload", err)
		return
	}

	input := EnrollInput{UserID: req.UserID, CourseID: req.CourseID, Source: "admin"}
	if adminID := middleware.CurrentUserID(c); adminID != uuid.Nil {
		input.AdminID = &adminID
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type:     "enrollment.enroll",
		Validate: h.validatePair(req.UserID, req.CourseID),
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return EnrollStudent(tx, h.emitter, input)
		},
	})
	executor.WriteResult(c, res, http.StatusCreated, statusForError)
}

// Unenroll hard-deletes both enrollment records for a pair.
func (h *Handler) Unenroll(c *gin.Context) {
	var req struct {
		UserID   uuid.UUID `json:"userId" binding:"required"`
		CourseID uuid.UUID `json:"courseId" binding:"required"`
		Reason   string    `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid unenrollment payload", err)
		return
	}

	input := UnenrollInput{
		UserID:   req.UserID,
		CourseID: req.CourseID,
		AdminID:  middleware.CurrentUserID(c),
		Reason:   req.Reason,
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "enrollment.unenroll",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return nil, UnenrollStudent(tx, h.emitter, input)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

// ListByUserID returns all enrollments for a user.
func (h *Handler) ListByUserID(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return
	}

	rows, err := ListByUser(h.db, userID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list enrollments", err)
		return
	}
	response.Success(c, http.StatusOK, rows, "", nil)
}

// ListByCourseID returns all enrollments for a course.
func (h *Handler) ListByCourseID(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	rows, err := ListByCourse(h.db, courseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list enrollments", err)
		return
	}
	response.Success(c, http.StatusOK, rows, "", nil)
}

// Verify reports which of the two tables hold the pair.
func (h *Handler) Verify(c *gin.Context) {
	userID, courseID, ok := h.pairParams(c)
	if !ok {
		return
	}

	v, err := VerifyEnrollmentExists(h.db, userID, courseID)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to verify enrollment", err)
		return
	}
	response.Success(c, http.StatusOK, v, "", nil)
}

// Sync repairs a half-written pair from the authoritative progress record.
func (h *Handler) Sync(c *gin.Context) {
	userID, courseID, ok := h.pairParams(c)
	if !ok {
		return
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "enrollment.sync",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return SyncEnrollmentState(tx, userID, courseID)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

func (h *Handler) pairParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
		return uuid.Nil, uuid.Nil, false
	}
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, courseID, true
}

// validatePair checks that the user and course exist before any write.
func (h *Handler) validatePair(userID, courseID uuid.UUID) func(ctx context.Context) executor.ValidationResult {
	return func(ctx context.Context) executor.ValidationResult {
		db := h.db.WithContext(ctx)
		var errs []string

		if _, err := user.Get(db, userID); err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				errs = append(errs, fmt.Sprintf("user %s does not exist", userID))
			} else {
				errs = append(errs, fmt.Sprintf("failed to check user: %v", err))
			}
		}
		exists, err := course.Exists(db, courseID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("failed to check course: %v", err))
		} else if !exists {
			errs = append(errs, fmt.Sprintf("course %s does not exist", courseID))
		}

		return executor.ValidationResult{Valid: len(errs) == 0, Errors: errs}
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrEnrollmentNotFound), errors.Is(err, ErrProgressNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotVerified):
		return http.StatusConflict
	}
	return 0
}
