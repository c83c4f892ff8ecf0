package progress

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/course"
	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
)

// UpdateProgressInput carries the parameters of a direct progress write.
type UpdateProgressInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	Progress int
	Source   string
	Metadata map[string]interface{}
}

// UpdateProgressResult returns both sides of the write.
type UpdateProgressResult struct {
	PreviousProgress int `json:"previousProgress"`
	NewProgress      int `json:"newProgress"`
}

// UpdateProgress writes an explicit progress value, clamped to [0,100].
// Unlike enrollment, which self-creates its rows, this requires an existing
// StudentProgress: progress cannot precede enrollment.
func UpdateProgress(tx *gorm.DB, emitter *events.Emitter, input UpdateProgressInput) (UpdateProgressResult, error) {
	var result UpdateProgressResult

	sp, err := enrollment.GetProgressForUpdate(tx, input.UserID, input.CourseID)
	if err != nil {
		return result, err
	}

	value := clampProgress(input.Progress)
	result.PreviousProgress = sp.TotalProgress
	result.NewProgress = value

	sp.TotalProgress = value
	sp.LastAccessed = time.Now().UTC()
	if err := tx.Save(&sp).Error; err != nil {
		return result, err
	}

	if _, err := enrollment.MirrorProgress(tx, input.UserID, input.CourseID, value); err != nil {
		return result, err
	}

	metadata := map[string]interface{}{
		"previousProgress": result.PreviousProgress,
		"newProgress":      result.NewProgress,
		"source":           input.Source,
	}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	emitter.Publish(events.New(events.ProgressUpdated, input.UserID, input.CourseID, metadata))

	return result, nil
}

// ChapterResult reports the outcome of folding a chapter into the completed set.
type ChapterResult struct {
	Added         bool `json:"added"`
	TotalProgress int  `json:"totalProgress"`
}

// MarkChapterComplete inserts the chapter into the completed set if absent
// and recomputes total progress against the course's current chapter count.
// Replaying the call is a no-op for the set, which is what makes offline
// replays safe.
func MarkChapterComplete(tx *gorm.DB, emitter *events.Emitter, userID, courseID, chapterID uuid.UUID) (ChapterResult, error) {
	var result ChapterResult

	ok, err := course.ChapterInCourse(tx, chapterID, courseID)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, ErrChapterNotInCourse
	}

	sp, err := enrollment.GetProgressForUpdate(tx, userID, courseID)
	if err != nil {
		return result, err
	}

	result.Added = sp.CompletedChapters.Add(chapterID)

	total, err := recomputeTotal(tx, courseID, len(sp.CompletedChapters))
	if err != nil {
		return result, err
	}
	result.TotalProgress = total

	sp.TotalProgress = total
	sp.LastAccessed = time.Now().UTC()
	if err := tx.Save(&sp).Error; err != nil {
		return result, err
	}
	if _, err := enrollment.MirrorProgress(tx, userID, courseID, total); err != nil {
		return result, err
	}

	emitter.Publish(events.New(events.ChapterCompleted, userID, courseID, map[string]interface{}{
		"chapterId":     chapterID.String(),
		"totalProgress": total,
		"alreadyDone":   !result.Added,
	}))

	return result, nil
}

// VideoResult reports a video-progress write and any chapter completion it caused.
type VideoResult struct {
	VideoProgress    int  `json:"videoProgress"`
	ChapterCompleted bool `json:"chapterCompleted"`
	TotalProgress    int  `json:"totalProgress"`
}

// Watching at least this share of a chapter's video counts as completing the
// chapter.
const videoCompletionThreshold = 90

// UpdateVideoProgress replaces the watch record for the chapter (by key, not
// append). Crossing the completion threshold folds the chapter into the
// completed set inside the same transaction.
func UpdateVideoProgress(tx *gorm.DB, emitter *events.Emitter, userID, courseID, chapterID uuid.UUID, videoProgress int) (VideoResult, error) {
	var result VideoResult

	ok, err := course.ChapterInCourse(tx, chapterID, courseID)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, ErrChapterNotInCourse
	}

	sp, err := enrollment.GetProgressForUpdate(tx, userID, courseID)
	if err != nil {
		return result, err
	}

	value := clampProgress(videoProgress)
	result.VideoProgress = value
	result.TotalProgress = sp.TotalProgress

	if sp.WatchedVideos == nil {
		sp.WatchedVideos = enrollment.WatchedVideoMap{}
	}
	sp.WatchedVideos[chapterID] = enrollment.WatchedVideo{
		Progress:    value,
		LastWatched: time.Now().UTC(),
	}
	sp.LastAccessed = time.Now().UTC()
	if err := tx.Save(&sp).Error; err != nil {
		return result, err
	}

	if value >= videoCompletionThreshold {
		chapterResult, err := MarkChapterComplete(tx, emitter, userID, courseID, chapterID)
		if err != nil {
			return result, err
		}
		result.ChapterCompleted = true
		result.TotalProgress = chapterResult.TotalProgress
	}

	return result, nil
}

// SubmitQuizInput carries one graded quiz submission.
type SubmitQuizInput struct {
	UserID    uuid.UUID
	CourseID  uuid.UUID
	ChapterID uuid.UUID
	QuizID    uuid.UUID
	Score     int
	Passed    bool
}

// QuizResult reports the appended attempt and any chapter completion it caused.
type QuizResult struct {
	AttemptCount     int  `json:"attemptCount"`
	ChapterCompleted bool `json:"chapterCompleted"`
	TotalProgress    int  `json:"totalProgress"`
}

// SubmitQuiz appends to the attempt log — never merged, never deduplicated —
// and, on a pass, folds the chapter into the completed set the same way
// MarkChapterComplete does.
func SubmitQuiz(tx *gorm.DB, emitter *events.Emitter, input SubmitQuizInput) (QuizResult, error) {
	var result QuizResult

	ok, err := course.ChapterInCourse(tx, input.ChapterID, input.CourseID)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, ErrChapterNotInCourse
	}

	sp, err := enrollment.GetProgressForUpdate(tx, input.UserID, input.CourseID)
	if err != nil {
		return result, err
	}

	sp.QuizAttempts = append(sp.QuizAttempts, enrollment.QuizAttempt{
		QuizID:      input.QuizID,
		ChapterID:   input.ChapterID,
		Score:       input.Score,
		Passed:      input.Passed,
		AttemptedAt: time.Now().UTC(),
	})
	result.AttemptCount = len(sp.QuizAttempts)
	result.TotalProgress = sp.TotalProgress

	if input.Passed && sp.CompletedChapters.Add(input.ChapterID) {
		total, err := recomputeTotal(tx, input.CourseID, len(sp.CompletedChapters))
		if err != nil {
			return result, err
		}
		sp.TotalProgress = total
		result.ChapterCompleted = true
		result.TotalProgress = total
	}

	sp.LastAccessed = time.Now().UTC()
	if err := tx.Save(&sp).Error; err != nil {
		return result, err
	}
	if _, err := enrollment.MirrorProgress(tx, input.UserID, input.CourseID, sp.TotalProgress); err != nil {
		return result, err
	}

	emitter.Publish(events.New(events.QuizSubmitted, input.UserID, input.CourseID, map[string]interface{}{
		"quizId":        input.QuizID.String(),
		"chapterId":     input.ChapterID.String(),
		"score":         input.Score,
		"passed":        input.Passed,
		"totalProgress": sp.TotalProgress,
	}))

	return result, nil
}

// recomputeTotal derives the percentage from the live chapter count. A course
// with no chapters yet reports zero rather than dividing by it.
func recomputeTotal(tx *gorm.DB, courseID uuid.UUID, completed int) (int, error) {
	totalChapters, err := course.CountChapters(tx, courseID)
	if err != nil {
		return 0, err
	}
	if totalChapters <= 0 {
		return 0, nil
	}
	percent := int(math.Round(float64(completed) * 100 / float64(totalChapters)))
	return clampProgress(percent), nil
}

func clampProgress(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
