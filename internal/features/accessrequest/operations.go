package accessrequest

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/course"
	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/features/user"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
)

// verifyEnrollment is swappable so tests can force a failed durability proof.
var verifyEnrollment = enrollment.VerifyEnrollmentExists

// CreateInput carries the parameters of a new access request.
type CreateInput struct {
	StudentID uuid.UUID
	CourseID  uuid.UUID
	Reason    *string
	Metadata  datatypes.JSONMap
}

// CreateRequest inserts a pending request. At most one pending request may
// exist per (student, course) pair; a duplicate is a non-retryable domain
// error, not a conflict to wait out.
func CreateRequest(tx *gorm.DB, emitter *events.Emitter, input CreateInput) (AccessRequest, error) {
	requester, err := user.Get(tx, input.StudentID)
	if err != nil {
		return AccessRequest{}, err
	}
	if !requester.IsStudent() {
		return AccessRequest{}, ErrNotStudent
	}

	if _, err := course.Get(tx, input.CourseID); err != nil {
		return AccessRequest{}, err
	}

	if _, err := GetPending(tx, input.StudentID, input.CourseID); err == nil {
		return AccessRequest{}, ErrDuplicatePending
	} else if err != ErrRequestNotFound {
		return AccessRequest{}, err
	}

	req := AccessRequest{
		StudentID:   input.StudentID,
		CourseID:    input.CourseID,
		Reason:      input.Reason,
		Metadata:    input.Metadata,
		Status:      StatusPending,
		RequestedAt: time.Now().UTC(),
	}
	if err := tx.Create(&req).Error; err != nil {
		return AccessRequest{}, err
	}

	metadata := map[string]interface{}{"requestId": req.ID.String()}
	if input.Reason != nil {
		metadata["reason"] = *input.Reason
	}
	emitter.Publish(events.New(events.RequestCreated, input.StudentID, input.CourseID, metadata))

	return req, nil
}

// ReviewInput carries the parameters of an approve or reject decision.
type ReviewInput struct {
	RequestID uuid.UUID
	AdminID   uuid.UUID
	Reason    string
}

// ApproveRequest converts a pending request into an enrollment. The request
// row is deleted only after the enrollment has been re-verified in both
// tables inside this same transaction; a failed proof rolls everything back,
// leaving the request pending for a future retry.
func ApproveRequest(tx *gorm.DB, emitter *events.Emitter, input ReviewInput) (enrollment.EnrollResult, error) {
	var enrollResult enrollment.EnrollResult

	req, err := getForUpdate(tx, input.RequestID)
	if err != nil {
		return enrollResult, err
	}
	if req.Status != StatusPending {
		return enrollResult, ErrRequestNotPending
	}

	now := time.Now().UTC()
	req.Status = StatusApproved
	req.ReviewedAt = &now
	req.ReviewedBy = &input.AdminID
	if err := tx.Save(&req).Error; err != nil {
		return enrollResult, err
	}

	enrollResult, err = enrollment.EnrollStudent(tx, emitter, enrollment.EnrollInput{
		UserID:   req.StudentID,
		CourseID: req.CourseID,
		AdminID:  &input.AdminID,
		Source:   "access_request",
	})
	if err != nil {
		return enrollResult, err
	}

	verification, err := verifyEnrollment(tx, req.StudentID, req.CourseID)
	if err != nil {
		return enrollResult, err
	}
	if !verification.Verified {
		return enrollResult, enrollment.ErrNotVerified
	}

	// Durability proven; the processed row can now go.
	if err := tx.Delete(&AccessRequest{}, "id = ?", req.ID).Error; err != nil {
		return enrollResult, err
	}

	emitter.Publish(events.New(events.RequestApproved, req.StudentID, req.CourseID, map[string]interface{}{
		"requestId": req.ID.String(),
		"adminId":   input.AdminID.String(),
		"reason":    input.Reason,
	}))

	return enrollResult, nil
}

// RejectRequest closes a pending request without any enrollment side effect.
func RejectRequest(tx *gorm.DB, emitter *events.Emitter, input ReviewInput) error {
	req, err := getForUpdate(tx, input.RequestID)
	if err != nil {
		return err
	}
	if req.Status != StatusPending {
		return ErrRequestNotPending
	}

	now := time.Now().UTC()
	req.Status = StatusRejected
	req.ReviewedAt = &now
	req.ReviewedBy = &input.AdminID
	if err := tx.Save(&req).Error; err != nil {
		return err
	}
	if err := tx.Delete(&AccessRequest{}, "id = ?", req.ID).Error; err != nil {
		return err
	}

	emitter.Publish(events.New(events.RequestRejected, req.StudentID, req.CourseID, map[string]interface{}{
		"requestId": req.ID.String(),
		"adminId":   input.AdminID.String(),
		"reason":    input.Reason,
	}))

	return nil
}
