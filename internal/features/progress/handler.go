package progress

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/middleware"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/executor"
	"github.com/enrollhub/enrollment-server-go/pkg/response"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

// Handler processes progress HTTP requests. Students act on their own
// progress; admins may pass an explicit userId to act on any student's.
type Handler struct {
	db        *gorm.DB
	logger    *slog.Logger
	exec      *executor.Service
	emitter   *events.Emitter
	validator *Validator
}

// NewHandler constructs a progress handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, exec *executor.Service, emitter *events.Emitter) *Handler {
	return &Handler{db: db, logger: logger, exec: exec, emitter: emitter, validator: NewValidator(db)}
}

// Get returns the authoritative progress record for a pair.
func (h *Handler) Get(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}
	userID, ok := h.subjectUser(c, c.Query("userId"))
	if !ok {
		return
	}

	sp, err := enrollment.GetProgress(h.db, userID, courseID)
	if err != nil {
		if errors.Is(err, enrollment.ErrProgressNotFound) {
			response.Error(c, http.StatusNotFound, "no progress record for this course", nil)
		} else {
			response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to load progress", err)
		}
		return
	}
	// Progress is per-user, live state; intermediaries must never cache it.
	response.SuccessNoCache(c, http.StatusOK, sp, "")
}

// Update writes an explicit progress value for a pair.
func (h *Handler) Update(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	var req struct {
		UserID   *uuid.UUID             `json:"userId"`
		Progress *int                   `json:"progress" binding:"required"`
		Source   string                 `json:"source"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid progress payload", err)
		return
	}

	userID, ok := h.subjectUserPtr(c, req.UserID)
	if !ok {
		return
	}

	input := UpdateProgressInput{
		UserID:   userID,
		CourseID: courseID,
		Progress: *req.Progress,
		Source:   req.Source,
		Metadata: req.Metadata,
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "progress.update",
		Validate: func(ctx context.Context) executor.ValidationResult {
			return h.validator.ValidateProgressUpdate(ctx, ValidateParams{
				UserID:   userID,
				CourseID: courseID,
				Progress: req.Progress,
			})
		},
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return UpdateProgress(tx, h.emitter, input)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

// CompleteChapter folds a chapter into the completed set.
func (h *Handler) CompleteChapter(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}
	chapterID, err := uuid.Parse(c.Param("chapterId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid chapter id", err)
		return
	}

	var req struct {
		UserID *uuid.UUID `json:"userId"`
	}
	_ = c.ShouldBindJSON(&req)

	userID, ok := h.subjectUserPtr(c, req.UserID)
	if !ok {
		return
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "progress.chapter.complete",
		Validate: func(ctx context.Context) executor.ValidationResult {
			return h.validator.ValidateProgressUpdate(ctx, ValidateParams{
				UserID:    userID,
				CourseID:  courseID,
				ChapterID: &chapterID,
			})
		},
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return MarkChapterComplete(tx, h.emitter, userID, courseID, chapterID)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

// VideoProgress replaces the watch record for a chapter's video.
func (h *Handler) VideoProgress(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}
	chapterID, err := uuid.Parse(c.Param("chapterId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid chapter id", err)
		return
	}

	var req struct {
		UserID   *uuid.UUID `json:"userId"`
		Progress *int       `json:"progress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid video progress payload", err)
		return
	}

	userID, ok := h.subjectUserPtr(c, req.UserID)
	if !ok {
		return
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "progress.video.update",
		Validate: func(ctx context.Context) executor.ValidationResult {
			return h.validator.ValidateProgressUpdate(ctx, ValidateParams{
				UserID:    userID,
				CourseID:  courseID,
				Progress:  req.Progress,
				ChapterID: &chapterID,
			})
		},
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return UpdateVideoProgress(tx, h.emitter, userID, courseID, chapterID, *req.Progress)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

// SubmitQuizAttempt appends a quiz attempt to the log.
func (h *Handler) SubmitQuizAttempt(c *gin.Context) {
	courseID, err := uuid.Parse(c.Param("courseId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid course id", err)
		return
	}

	var req struct {
		UserID    *uuid.UUID `json:"userId"`
		ChapterID uuid.UUID  `json:"chapterId" binding:"required"`
		QuizID    uuid.UUID  `json:"quizId" binding:"required"`
		Score     int        `json:"score"`
		Passed    bool       `json:"passed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid quiz payload", err)
		return
	}

	userID, ok := h.subjectUserPtr(c, req.UserID)
	if !ok {
		return
	}

	input := SubmitQuizInput{
		UserID:    userID,
		CourseID:  courseID,
		ChapterID: req.ChapterID,
		QuizID:    req.QuizID,
		Score:     req.Score,
		Passed:    req.Passed,
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "progress.quiz.submit",
		Validate: func(ctx context.Context) executor.ValidationResult {
			return h.validator.ValidateProgressUpdate(ctx, ValidateParams{
				UserID:    userID,
				CourseID:  courseID,
				ChapterID: &req.ChapterID,
			})
		},
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return SubmitQuiz(tx, h.emitter, input)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

// subjectUser resolves which student an operation targets. Staff may name any
// user; students are pinned to themselves.
func (h *Handler) subjectUser(c *gin.Context, queryID string) (uuid.UUID, bool) {
	var requested *uuid.UUID
	if queryID != "" {
		id, err := uuid.Parse(queryID)
		if err != nil {
			response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid user id", err)
			return uuid.Nil, false
		}
		requested = &id
	}
	return h.subjectUserPtr(c, requested)
}

func (h *Handler) subjectUserPtr(c *gin.Context, requested *uuid.UUID) (uuid.UUID, bool) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required", nil)
		return uuid.Nil, false
	}

	if requested == nil || *requested == usr.ID {
		return usr.ID, true
	}
	if usr.UserType == types.UserTypeStudent {
		response.Error(c, http.StatusForbidden, "Students may only modify their own progress", nil)
		return uuid.Nil, false
	}
	return *requested, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrChapterNotInCourse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrProgressOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, enrollment.ErrProgressNotFound), errors.Is(err, enrollment.ErrEnrollmentNotFound):
		return http.StatusNotFound
	}
	return 0
}
