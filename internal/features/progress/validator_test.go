package progress_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-server-go/internal/features/progress"
	"github.com/enrollhub/enrollment-server-go/internal/testutil"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

func TestValidateProgressUpdatePasses(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, chapters := testutil.CreateCourse(t, db, 3)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	value := 50
	result := progress.NewValidator(db).ValidateProgressUpdate(context.Background(), progress.ValidateParams{
		UserID:    student.ID,
		CourseID:  crs.ID,
		Progress:  &value,
		ChapterID: &chapters[0].ID,
	})
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
}

func TestValidateProgressUpdateCollectsAllViolations(t *testing.T) {
	db := testutil.DB(t)
	_, foreignChapters := testutil.CreateCourse(t, db, 1)

	value := 140
	result := progress.NewValidator(db).ValidateProgressUpdate(context.Background(), progress.ValidateParams{
		UserID:    uuid.New(),
		CourseID:  uuid.New(),
		Progress:  &value,
		ChapterID: &foreignChapters[0].ID,
	})
	require.False(t, result.Valid)
	// Missing enrollment, missing course, out-of-range value, and foreign
	// chapter must all be reported together.
	require.Len(t, result.Errors, 4)
}

func TestValidateProgressUpdateBoundsOnly(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	value := -1
	result := progress.NewValidator(db).ValidateProgressUpdate(context.Background(), progress.ValidateParams{
		UserID:   student.ID,
		CourseID: crs.ID,
		Progress: &value,
	})
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}
