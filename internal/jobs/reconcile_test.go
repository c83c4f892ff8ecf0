package jobs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/jobs"
	"github.com/enrollhub/enrollment-server-go/internal/testutil"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

func TestReconcileJobRepairsBrokenPairs(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	crs, _ := testutil.CreateCourse(t, db, 3)

	orphanProgress := testutil.CreateUser(t, db, types.UserTypeStudent)
	orphanMirror := testutil.CreateUser(t, db, types.UserTypeStudent)
	diverged := testutil.CreateUser(t, db, types.UserTypeStudent)
	healthy := testutil.CreateUser(t, db, types.UserTypeStudent)

	testutil.Enroll(t, db, emitter, orphanProgress.ID, crs.ID)
	testutil.Enroll(t, db, emitter, orphanMirror.ID, crs.ID)
	testutil.Enroll(t, db, emitter, diverged.ID, crs.ID)
	testutil.Enroll(t, db, emitter, healthy.ID, crs.ID)

	// Break each pair a different way.
	require.NoError(t, db.Where("user_id = ?", orphanProgress.ID).Delete(&enrollment.Enrollment{}).Error)
	require.NoError(t, db.Where("user_id = ?", orphanMirror.ID).Delete(&enrollment.StudentProgress{}).Error)
	require.NoError(t, db.Model(&enrollment.StudentProgress{}).
		Where("user_id = ?", diverged.ID).Update("total_progress", 60).Error)

	job := jobs.NewReconcileJob(db, testutil.Logger(t), 0)
	require.Equal(t, "enrollment_reconcile", job.Name())
	require.NoError(t, job.Execute(context.Background()))

	v, err := enrollment.VerifyEnrollmentExists(db, orphanProgress.ID, crs.ID)
	require.NoError(t, err)
	require.True(t, v.Verified)

	v, err = enrollment.VerifyEnrollmentExists(db, orphanMirror.ID, crs.ID)
	require.NoError(t, err)
	require.True(t, v.Verified)

	enr, err := enrollment.Get(db, diverged.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 60, enr.Progress)

	v, err = enrollment.VerifyEnrollmentExists(db, healthy.ID, crs.ID)
	require.NoError(t, err)
	require.True(t, v.Verified)
}
