package accessrequest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/enrollhub/enrollment-server-go/pkg/pagination"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

// RequestStatus represents the review state of an access request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// AccessRequest is a student-initiated, admin-reviewed request for
// enrollment. The row is deleted once processed; the event stream is the only
// durable trace of its lifecycle.
type AccessRequest struct {
	types.BaseModel

	StudentID   uuid.UUID         `gorm:"type:uuid;not null;column:student_id;index:idx_request_pair" json:"studentId"`
	CourseID    uuid.UUID         `gorm:"type:uuid;not null;column:course_id;index:idx_request_pair" json:"courseId"`
	Reason      *string           `gorm:"type:varchar(500)" json:"reason,omitempty"`
	Metadata    datatypes.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	Status      RequestStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RequestedAt time.Time         `gorm:"column:requested_at" json:"requestedAt"`
	ReviewedAt  *time.Time        `gorm:"column:reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy  *uuid.UUID        `gorm:"type:uuid;column:reviewed_by" json:"reviewedBy,omitempty"`
}

// TableName overrides the default table name.
func (AccessRequest) TableName() string { return "access_requests" }

// Get retrieves a request by ID.
func Get(db *gorm.DB, id uuid.UUID) (AccessRequest, error) {
	var req AccessRequest
	if err := db.First(&req, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return req, ErrRequestNotFound
		}
		return req, err
	}
	return req, nil
}

// GetPending retrieves the pending request for a (student, course) pair.
func GetPending(db *gorm.DB, studentID, courseID uuid.UUID) (AccessRequest, error) {
	var req AccessRequest
	err := db.First(&req, "student_id = ? AND course_id = ? AND status = ?",
		studentID, courseID, StatusPending).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return req, ErrRequestNotFound
		}
		return req, err
	}
	return req, nil
}

// ListPending retrieves pending requests, oldest first.
func ListPending(db *gorm.DB, params pagination.Params) ([]AccessRequest, int64, error) {
	query := db.Model(&AccessRequest{}).Where("status = ?", StatusPending)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []AccessRequest
	err := query.
		Order("requested_at ASC").
		Offset(params.Skip).
		Limit(params.Limit).
		Find(&rows).Error
	return rows, total, err
}

// getForUpdate reads a request under a row-level lock so two reviewers cannot
// process the same request concurrently.
func getForUpdate(tx *gorm.DB, id uuid.UUID) (AccessRequest, error) {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var req AccessRequest
	if err := q.First(&req, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return req, ErrRequestNotFound
		}
		return req, err
	}
	return req, nil
}
