package progress_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/features/progress"
	"github.com/enrollhub/enrollment-server-go/internal/testutil"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

func TestUpdateProgressWritesBothTables(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 5)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	var result progress.UpdateProgressResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = progress.UpdateProgress(tx, emitter, progress.UpdateProgressInput{
			UserID:   student.ID,
			CourseID: crs.ID,
			Progress: 42,
			Source:   "manual",
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.PreviousProgress)
	require.Equal(t, 42, result.NewProgress)

	sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 42, sp.TotalProgress)

	enr, err := enrollment.Get(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 42, enr.Progress)

	updated := recorder.ByType(events.ProgressUpdated)
	require.Len(t, updated, 1)
	require.Equal(t, "manual", updated[0].Metadata["source"])
}

func TestUpdateProgressClampsOutOfRangeValues(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 5)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	for _, tc := range []struct {
		input, want int
	}{
		{150, 100},
		{-10, 0},
	} {
		var result progress.UpdateProgressResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = progress.UpdateProgress(tx, emitter, progress.UpdateProgressInput{
				UserID:   student.ID,
				CourseID: crs.ID,
				Progress: tc.input,
			})
			return err
		})
		require.NoError(t, err)
		require.Equal(t, tc.want, result.NewProgress)
	}
}

func TestUpdateProgressRequiresEnrollment(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := progress.UpdateProgress(tx, emitter, progress.UpdateProgressInput{
			UserID:   uuid.New(),
			CourseID: uuid.New(),
			Progress: 50,
		})
		return err
	})
	require.ErrorIs(t, err, enrollment.ErrProgressNotFound)
	require.Empty(t, recorder.Events())
}

func TestMarkChapterCompleteAccumulatesProgress(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, chapters := testutil.CreateCourse(t, db, 10)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	// Completing chapter k of 10 lands total progress on 10*k.
	for i, ch := range chapters {
		var result progress.ChapterResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = progress.MarkChapterComplete(tx, emitter, student.ID, crs.ID, ch.ID)
			return err
		})
		require.NoError(t, err)
		require.True(t, result.Added)
		require.Equal(t, (i+1)*10, result.TotalProgress)
	}

	enr, err := enrollment.Get(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 100, enr.Progress)
	require.NotNil(t, enr.CompletedAt)
	require.Len(t, recorder.ByType(events.ChapterCompleted), 10)
}

func TestMarkChapterCompleteIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, chapters := testutil.CreateCourse(t, db, 4)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	for i := 0; i < 2; i++ {
		var result progress.ChapterResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = progress.MarkChapterComplete(tx, emitter, student.ID, crs.ID, chapters[0].ID)
			return err
		})
		require.NoError(t, err)
		require.Equal(t, i == 0, result.Added)
		require.Equal(t, 25, result.TotalProgress)
	}

	sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Len(t, sp.CompletedChapters, 1)
}

func TestMarkChapterCompleteRejectsForeignChapter(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, _ := testutil.CreateCourse(t, db, 3)
	_, otherChapters := testutil.CreateCourse(t, db, 2)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := progress.MarkChapterComplete(tx, emitter, student.ID, crs.ID, otherChapters[0].ID)
		return err
	})
	require.ErrorIs(t, err, progress.ErrChapterNotInCourse)
}

func TestUpdateVideoProgressBelowThreshold(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, chapters := testutil.CreateCourse(t, db, 5)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	var result progress.VideoResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = progress.UpdateVideoProgress(tx, emitter, student.ID, crs.ID, chapters[0].ID, 45)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, 45, result.VideoProgress)
	require.False(t, result.ChapterCompleted)
	require.Equal(t, 0, result.TotalProgress)

	sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 45, sp.WatchedVideos[chapters[0].ID].Progress)
	require.Empty(t, recorder.ByType(events.ChapterCompleted))
}

func TestUpdateVideoProgressCrossingThresholdCompletesChapter(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, chapters := testutil.CreateCourse(t, db, 5)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	var result progress.VideoResult
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = progress.UpdateVideoProgress(tx, emitter, student.ID, crs.ID, chapters[0].ID, 95)
		return err
	})
	require.NoError(t, err)
	require.True(t, result.ChapterCompleted)
	require.Equal(t, 20, result.TotalProgress)
	require.Len(t, recorder.ByType(events.ChapterCompleted), 1)

	// Rewatching keeps the chapter completed and replaces the watch record.
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = progress.UpdateVideoProgress(tx, emitter, student.ID, crs.ID, chapters[0].ID, 30)
		return err
	})
	require.NoError(t, err)
	require.False(t, result.ChapterCompleted)

	sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 30, sp.WatchedVideos[chapters[0].ID].Progress)
	require.Len(t, sp.WatchedVideos, 1)
	require.Len(t, sp.CompletedChapters, 1)
	require.Equal(t, 20, sp.TotalProgress)
}

func TestSubmitQuizAppendsEveryAttempt(t *testing.T) {
	db := testutil.DB(t)
	emitter, recorder := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, chapters := testutil.CreateCourse(t, db, 4)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	quizID := *chapters[0].QuizID

	submit := func(score int, passed bool) progress.QuizResult {
		var result progress.QuizResult
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = progress.SubmitQuiz(tx, emitter, progress.SubmitQuizInput{
				UserID:    student.ID,
				CourseID:  crs.ID,
				ChapterID: chapters[0].ID,
				QuizID:    quizID,
				Score:     score,
				Passed:    passed,
			})
			return err
		})
		require.NoError(t, err)
		return result
	}

	first := submit(40, false)
	require.Equal(t, 1, first.AttemptCount)
	require.False(t, first.ChapterCompleted)
	require.Equal(t, 0, first.TotalProgress)

	second := submit(85, true)
	require.Equal(t, 2, second.AttemptCount)
	require.True(t, second.ChapterCompleted)
	require.Equal(t, 25, second.TotalProgress)

	// A later repeat is still appended but cannot re-complete the chapter.
	third := submit(90, true)
	require.Equal(t, 3, third.AttemptCount)
	require.False(t, third.ChapterCompleted)
	require.Equal(t, 25, third.TotalProgress)

	sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Len(t, sp.QuizAttempts, 3)
	require.Equal(t, 40, sp.QuizAttempts[0].Score)
	require.Len(t, sp.CompletedChapters, 1)
	require.Len(t, recorder.ByType(events.QuizSubmitted), 3)
}

func TestHalfCompletedCourseWithQuizPass(t *testing.T) {
	db := testutil.DB(t)
	emitter, _ := testutil.Emitter(t)
	student := testutil.CreateUser(t, db, types.UserTypeStudent)
	crs, chapters := testutil.CreateCourse(t, db, 10)
	testutil.Enroll(t, db, emitter, student.ID, crs.ID)

	for _, ch := range chapters[:5] {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := progress.MarkChapterComplete(tx, emitter, student.ID, crs.ID, ch.ID)
			return err
		})
		require.NoError(t, err)
	}

	sp, err := enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 50, sp.TotalProgress)

	sixth := chapters[5]
	var result progress.QuizResult
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = progress.SubmitQuiz(tx, emitter, progress.SubmitQuizInput{
			UserID:    student.ID,
			CourseID:  crs.ID,
			ChapterID: sixth.ID,
			QuizID:    *sixth.QuizID,
			Score:     80,
			Passed:    true,
		})
		return err
	})
	require.NoError(t, err)
	require.True(t, result.ChapterCompleted)
	require.Equal(t, 60, result.TotalProgress)

	sp, err = enrollment.GetProgress(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.Equal(t, 60, sp.TotalProgress)
	require.Len(t, sp.QuizAttempts, 1)

	attempt := sp.QuizAttempts[0]
	require.Equal(t, *sixth.QuizID, attempt.QuizID)
	require.Equal(t, sixth.ID, attempt.ChapterID)
	require.Equal(t, 80, attempt.Score)
	require.True(t, attempt.Passed)

	// Both views must agree once the dust settles.
	verification, err := enrollment.VerifyEnrollmentExists(db, student.ID, crs.ID)
	require.NoError(t, err)
	require.True(t, verification.Verified)
}
