package accessrequest_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/accessrequest"
	"github.com/enrollhub/enrollment-server-go/internal/features/course"
	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/testutil"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

func createRequest(t *testing.T, db *gorm.DB, emitter *events.Emitter, studentID, courseID uuid.UUID) accessrequest.AccessRequest {
	t.Helper()
	var req accessrequest.AccessRequest
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = accessrequest.CreateRequest(tx, emitter, accessrequest.CreateInput{
			StudentID: studentID,
			CourseID:  courseID,
		})
		return err
	})
	require.NoError(t, err)
	return req
}

func TestCreateRequest(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	req := createRequest(t, db, emitter, student.ID, crs.ID)
	require.Equal(t, accessrequest.StatusPending, req.Status)
	require.Len(t, recorder.ByType(events.RequestCreated), 1)
}

func TestCreateRequestRejectsNonStudents(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	admin := testutil.CreateUser(t, db, types.UserTypeAdmin)
	crs, _ := testutil.CreateCourse(t, db, 3)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := accessrequest.CreateRequest(tx, emitter, accessrequest.CreateInput{
			StudentID: admin.ID,
			CourseID:  crs.ID,
		})
		return err
	})
	require.ErrorIs(t, err, accessrequest.ErrNotStudent)
	require.Empty(t, recorder.Events())
}

func TestCreateRequestRejectsUnknownCourse(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := accessrequest.CreateRequest(tx, emitter, accessrequest.CreateInput{
			StudentID: student.ID,
			CourseID:  uuid.New(),
		})
		return err
	})
	require.ErrorIs(t, err, course.ErrCourseNotFound)
}

func TestCreateRequestRejectsDuplicatePending(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	createRequest(t, db, emitter, student.ID, crs.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := accessrequest.CreateRequest(tx, emitter, accessrequest.CreateInput{
			StudentID: student.ID,
			CourseID:  crs.ID,
		})
		return err
	})
	require.ErrorIs(t, err, accessrequest.ErrDuplicatePending)
}

func TestApproveRequestEnrollsAndDeletesRequest(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	admin := testutil.CreateUser(t, db, types.UserTypeAdmin)
	crs, _ := testutil.CreateCourse(t, db, 3)

	req := createRequest(t, db, emitter, student.ID, crs.ID)

	var result enrollment.EnrollResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = accessrequest.ApproveRequest(tx, emitter, accessrequest.ReviewInput{
			RequestID: req.ID,
			AdminID:   admin.ID,
		})
		return err
	})
	require.NoError(t, err)
	require.True(t, result.ProgressCreated)
	require.True(t, result.EnrollmentCreated)

	v, err := enrollment.VerifyEnrollmentExists(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.True(t, v.Verified)

	_, err = accessrequest.Get(db, req.ID)
	require.ErrorIs(t, err, accessrequest.ErrRequestNotFound)

	require.Len(t, recorder.ByType(events.RequestApproved), 1)
	require.Len(t, recorder.ByType(events.EnrollmentCreated), 1)
}

func TestApproveRequestFailedVerificationRollsBack(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	admin := testutil.CreateUser(t, db, types.UserTypeAdmin)
	crs, _ := testutil.CreateCourse(t, db, 3)

	req := createRequest(t, db, emitter, student.ID, crs.ID)
	recorder.Reset()

	restore := accessrequest.StubVerification(func(tx *gorm.DB, userID, courseID uuid.UUID) (enrollment.Verification, error) {
		return enrollment.Verification{}, nil
	})
	defer restore()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := accessrequest.ApproveRequest(tx, emitter, accessrequest.ReviewInput{
			RequestID: req.ID,
			AdminID:   admin.ID,
		})
		return err
	})
	require.ErrorIs(t, err, enrollment.ErrNotVerified)

	// The rolled-back approval leaves the request pending and the pair
	// unenrolled, and no approval event may have fired.
	kept, err := accessrequest.Get(db, req.ID)
	require.NoError(t, err)
	require.Equal(t, accessrequest.StatusPending, kept.Status)

	v, err := enrollment.VerifyEnrollmentExists(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.False(t, v.InProgress)
	require.False(t, v.InEnrollments)
	require.Empty(t, recorder.ByType(events.RequestApproved))
}

func TestApproveRequestAlreadyReviewed(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	admin := testutil.CreateUser(t, db, types.UserTypeAdmin)
	crs, _ := testutil.CreateCourse(t, db, 3)

	req := createRequest(t, db, emitter, student.ID, crs.ID)
	require.NoError(t, db.Model(&accessrequest.AccessRequest{}).
		Where("id = ?", req.ID).Update("status", accessrequest.StatusRejected).Error)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := accessrequest.ApproveRequest(tx, emitter, accessrequest.ReviewInput{
			RequestID: req.ID,
			AdminID:   admin.ID,
		})
		return err
	})
	require.ErrorIs(t, err, accessrequest.ErrRequestNotPending)
}

func TestRejectRequest(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	admin := testutil.CreateUser(t, db, types.UserTypeAdmin)
	crs, _ := testutil.CreateCourse(t, db, 3)

	req := createRequest(t, db, emitter, student.ID, crs.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		return accessrequest.RejectRequest(tx, emitter, accessrequest.ReviewInput{
			RequestID: req.ID,
			AdminID:   admin.ID,
			Reason:    "course not open",
		})
	})
	require.NoError(t, err)

	_, err = accessrequest.Get(db, req.ID)
	require.ErrorIs(t, err, accessrequest.ErrRequestNotFound)

	// Rejection never touches enrollment.
	v, err := enrollment.VerifyEnrollmentExists(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.False(t, v.Verified)

	rejected := recorder.ByType(events.RequestRejected)
	require.Len(t, rejected, 1)
	require.Equal(t, "course not open", rejected[0].Metadata["reason"])
}

func TestReviewUnknownRequest(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		return accessrequest.RejectRequest(tx, emitter, accessrequest.ReviewInput{
			RequestID: uuid.New(),
			AdminID:   uuid.New(),
		})
	})
	require.ErrorIs(t, err, accessrequest.ErrRequestNotFound)
}
