package accessrequest

import (
	"errors"
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/middleware"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/executor"
	"github.com/enrollhub/enrollment-server-go/pkg/pagination"
	"github.com/enrollhub/enrollment-server-go/pkg/response"
)

// Handler processes access request HTTP endpoints.
type Handler struct {
	db      *gorm.DB
	logger  *slog.Logger
	exec    *executor.Service
	emitter *events.Emitter
}

// NewHandler constructs an access request handler instance.
func NewHandler(db *gorm.DB, logger *slog.Logger, exec *executor.Service, emitter *events.Emitter) *Handler {
	return &Handler{db: db, logger: logger, exec: exec, emitter: emitter}
}

// Create files a pending access request for the authenticated student.
func (h *Handler) Create(c *gin.Context) {
	usr, ok := middleware.GetUserFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req struct {
		CourseID uuid.UUID         `json:"courseId" binding:"required"`
		Reason   *string           `json:"reason"`
		Metadata datatypes.JSONMap `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid access request payload", err)
		return
	}

	input := CreateInput{StudentID: usr.ID, CourseID: req.CourseID, Reason: req.Reason, Metadata: req.Metadata}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "request.create",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return CreateRequest(tx, h.emitter, input)
		},
	})
	executor.WriteResult(c, res, http.StatusCreated, statusForError)
}

// ListPendingRequests returns pending requests for admin review.
func (h *Handler) ListPendingRequests(c *gin.Context) {
	params := pagination.Extract(c)

	rows, total, err := ListPending(h.db, params)
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusInternalServerError, "failed to list access requests", err)
		return
	}
	response.Success(c, http.StatusOK, rows, "", pagination.MetadataFrom(total, params))
}

// Approve converts a pending request into a verified enrollment.
func (h *Handler) Approve(c *gin.Context) {
	input, ok := h.reviewInput(c)
	if !ok {
		return
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "request.approve",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return ApproveRequest(tx, h.emitter, input)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

// Reject declines a pending request.
func (h *Handler) Reject(c *gin.Context) {
	input, ok := h.reviewInput(c)
	if !ok {
		return
	}

	res := h.exec.Execute(c.Request.Context(), executor.Operation{
		Type: "request.reject",
		Execute: func(tx *gorm.DB) (interface{}, error) {
			return nil, RejectRequest(tx, h.emitter, input)
		},
	})
	executor.WriteResult(c, res, http.StatusOK, statusForError)
}

func (h *Handler) reviewInput(c *gin.Context) (ReviewInput, bool) {
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		response.ErrorWithLog(h.logger, c, http.StatusBadRequest, "invalid request id", err)
		return ReviewInput{}, false
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	return ReviewInput{
		RequestID: requestID,
		AdminID:   middleware.CurrentUserID(c),
		Reason:    req.Reason,
	}, true
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRequestNotPending), errors.Is(err, ErrDuplicatePending):
		return http.StatusConflict
	case errors.Is(err, ErrNotStudent):
		return http.StatusForbidden
	case errors.Is(err, enrollment.ErrNotVerified):
		return http.StatusConflict
	}
	return 0
}
