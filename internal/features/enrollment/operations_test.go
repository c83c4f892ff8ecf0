package enrollment_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/accessrequest"
	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/testutil"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

func TestEnrollStudentCreatesBothRecords(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	var result enrollment.EnrollResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = enrollment.EnrollStudent(tx, emitter, enrollment.EnrollInput{
			UserID:   student.ID,
			CourseID: crs.ID,
			Source:   "admin",
		})
		return err
	})
	require.NoError(t, err)
	require.True(t, result.ProgressCreated)
	require.True(t, result.EnrollmentCreated)
	require.False(t, result.EnrollmentReactivated)

	sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 0, sp.TotalProgress)
	require.Empty(t, sp.CompletedChapters)

	enr, err := enrollment.Get(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, enrollment.StatusActive, enr.Status)
	require.Equal(t, 0, enr.Progress)

	created := recorder.ByType(events.EnrollmentCreated)
	require.Len(t, created, 1)
	require.Equal(t, student.ID, created[0].UserID)
}

func TestEnrollStudentIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	var second enrollment.EnrollResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = enrollment.EnrollStudent(tx, emitter, enrollment.EnrollInput{
			UserID:   student.ID,
			CourseID: crs.ID,
			Source:   "admin",
		})
		return err
	})
	require.NoError(t, err)
	require.False(t, second.ProgressCreated)
	require.False(t, second.EnrollmentCreated)
	require.False(t, second.EnrollmentReactivated)

	var count int64
	require.NoError(t, db.Model(&enrollment.Enrollment{}).
		Where("user_id = ?", student.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestEnrollStudentReactivatesInactiveEnrollment(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	testutil.Enroll(t, db, emitter, student.ID, crs.ID)
	require.NoError(t, db.Model(&enrollment.Enrollment{}).
		Where("user_id = ? AND course_id = ?", student.ID, crs.ID).
		Update("status", enrollment.StatusInactive).Error)

	var result enrollment.EnrollResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = enrollment.EnrollStudent(tx, emitter, enrollment.EnrollInput{
			UserID:   student.ID,
			CourseID: crs.ID,
			Source:   "admin",
		})
		return err
	})
	require.NoError(t, err)
	require.True(t, result.EnrollmentReactivated)

	enr, err := enrollment.Get(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, enrollment.StatusActive, enr.Status)
}

func TestEnrollStudentRemovesPendingAccessRequest(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	var req accessrequest.AccessRequest
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = accessrequest.CreateRequest(tx, emitter, accessrequest.CreateInput{
			StudentID: student.ID,
			CourseID:  crs.ID,
		})
		return err
	})
	require.NoError(t, err)

	var result enrollment.EnrollResult
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = enrollment.EnrollStudent(tx, emitter, enrollment.EnrollInput{
			UserID:   student.ID,
			CourseID: crs.ID,
			Source:   "admin",
		})
		return err
	})
	require.NoError(t, err)
	require.True(t, result.RequestDeleted)

	_, err = accessrequest.Get(db, req.ID)
	require.ErrorIs(t, err, accessrequest.ErrRequestNotFound)
}

func TestUnenrollStudentDeletesBothRecords(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	admin := testutil.CreateUser(t, db, types.UserTypeAdmin)
	crs, _ := testutil.CreateCourse(t, db, 3)

	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		return enrollment.UnenrollStudent(tx, emitter, enrollment.UnenrollInput{
			UserID:   student.ID,
			CourseID: crs.ID,
			AdminID:  admin.ID,
			Reason:   "requested by student",
		})
	})
	require.NoError(t, err)

	_, err = enrollment.GetProgress(db, student.ID, crs.ID)
	require.ErrorIs(t, err, enrollment.ErrProgressNotFound)
	_, err = enrollment.Get(db, student.ID, crs.ID)
	require.ErrorIs(t, err, enrollment.ErrEnrollmentNotFound)
	require.Len(t, recorder.ByType(events.EnrollmentRemoved), 1)
}

func TestUnenrollStudentMissingPair(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		return enrollment.UnenrollStudent(tx, emitter, enrollment.UnenrollInput{
			UserID:   uuid.New(),
			CourseID: uuid.New(),
			AdminID:  uuid.New(),
		})
	})
	require.ErrorIs(t, err, enrollment.ErrEnrollmentNotFound)
	require.Empty(t, recorder.Events())
}

func TestVerifyEnrollmentExists(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	v, err := enrollment.VerifyEnrollmentExists(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.False(t, v.Verified)

	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	v, err = enrollment.VerifyEnrollmentExists(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.True(t, v.InProgress)
	require.True(t, v.InEnrollments)
	require.True(t, v.Verified)
}

func TestMirrorProgressCompletionBoundary(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)

	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := enrollment.MirrorProgress(tx, student.ID, crs.ID, 100)
		return err
	})
	require.NoError(t, err)

	enr, err := enrollment.Get(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 100, enr.Progress)
	require.NotNil(t, enr.CompletedAt)
	require.WithinDuration(t, time.Now().UTC(), *enr.CompletedAt, time.Minute)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := enrollment.MirrorProgress(tx, student.ID, crs.ID, 67)
		return err
	})
	require.NoError(t, err)

	enr, err = enrollment.Get(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 67, enr.Progress)
	require.Nil(t, enr.CompletedAt)
}

func TestSyncEnrollmentState(t *testing.T) {
	t.Run("missing enrollment row is recreated", func(t *testing.T) {
		db := testutil.DB(t)
		emitter, _ := testutil.Emitter(t)
		student := testutil.CreateUser(t, db, types.UserTypeStudent)
		crs, _ := testutil.CreateCourse(t, db, 3)

		testutil.Enroll(t, db, emitter, student.ID, crs.ID)
		require.NoError(t, db.Where("user_id = ?", student.ID).Delete(&enrollment.Enrollment{}).Error)
		require.NoError(t, db.Model(&enrollment.StudentProgress{}).
			Where("user_id = ?", student.ID).Update("total_progress", 40).Error)

		var result enrollment.SyncResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = enrollment.SyncEnrollmentState(tx, student.ID, crs.ID)
			return err
		})
		require.NoError(t, err)
		require.True(t, result.EnrollmentCreated)

		enr, err := enrollment.Get(db, student.ID, crs.ID)
		require.NoError(t, err)
		require.Equal(t, 40, enr.Progress)
	})

	t.Run("missing progress row is recreated from mirror", func(t *testing.T) {
		db := testutil.DB(t)
		emitter, _ := testutil.Emitter(t)
		student := testutil.CreateUser(t, db, types.UserTypeStudent)
		crs, _ := testutil.CreateCourse(t, db, 3)

		testutil.Enroll(t, db, emitter, student.ID, crs.ID)
		require.NoError(t, db.Model(&enrollment.Enrollment{}).
			Where("user_id = ?", student.ID).Update("progress", 25).Error)
		require.NoError(t, db.Where("user_id = ?", student.ID).Delete(&enrollment.StudentProgress{}).Error)

		var result enrollment.SyncResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = enrollment.SyncEnrollmentState(tx, student.ID, crs.ID)
			return err
		})
		require.NoError(t, err)
		require.True(t, result.ProgressCreated)

		sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
		require.NoError(t, err)
		require.Equal(t, 25, sp.TotalProgress)
	})

	t.Run("diverged mirror is overwritten from progress", func(t *testing.T) {
		db := testutil.DB(t)
		emitter, _ := testutil.Emitter(t)
		student := testutil.CreateUser(t, db, types.UserTypeStudent)
		crs, _ := testutil.CreateCourse(t, db, 3)

		testutil.Enroll(t, db, emitter, student.ID, crs.ID)
		require.NoError(t, db.Model(&enrollment.StudentProgress{}).
			Where("user_id = ?", student.ID).Update("total_progress", 80).Error)

		var result enrollment.SyncResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = enrollment.SyncEnrollmentState(tx, student.ID, crs.ID)
			return err
		})
		require.NoError(t, err)
		require.True(t, result.MirrorRepaired)

		enr, err := enrollment.Get(db, student.ID, crs.ID)
		require.NoError(t, err)
		require.Equal(t, 80, enr.Progress)
	})

	t.Run("consistent pair reports in sync", func(t *testing.T) {
		db := testutil.DB(t)
		emitter, _ := testutil.Emitter(t)
		student := testutil.CreateUser(t, db, types.UserTypeStudent)
		crs, _ := testutil.CreateCourse(t, db, 3)

		testutil.Enroll(t, db, emitter, student.ID, crs.ID)

		var result enrollment.SyncResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = enrollment.SyncEnrollmentState(tx, student.ID, crs.ID)
			return err
		})
		require.NoError(t, err)
		require.True(t, result.InSync)
	})

	t.Run("pair missing entirely", func(t *testing.T) {
		db := testutil.DB(t)

		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := enrollment.SyncEnrollmentState(tx, uuid.New(), uuid.New())
			return err
		})
		require.ErrorIs(t, err, enrollment.ErrEnrollmentNotFound)
	})
}
