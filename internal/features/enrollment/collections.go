package enrollment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// The progress collections live as JSON text inside single columns of the
// student_progress row. Business logic only ever touches these typed forms;
// encoding happens here, at the storage boundary, and nowhere else.

// ChapterSet is the set of completed chapter IDs. No duplicates.
type ChapterSet []uuid.UUID

// Contains reports whether the chapter is in the set.
func (s ChapterSet) Contains(chapterID uuid.UUID) bool {
	for _, id := range s {
		if id == chapterID {
			return true
		}
	}
	return false
}

// Add inserts the chapter if absent and reports whether it was added.
func (s *ChapterSet) Add(chapterID uuid.UUID) bool {
	if s.Contains(chapterID) {
		return false
	}
	*s = append(*s, chapterID)
	return true
}

// Value implements driver.Valuer.
func (s ChapterSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *ChapterSet) Scan(value interface{}) error {
	return scanJSON(value, (*[]uuid.UUID)(s), "ChapterSet")
}

// WatchedVideo records how far a student got through one chapter's video.
type WatchedVideo struct {
	Progress    int       `json:"progress"`
	LastWatched time.Time `json:"lastWatched"`
}

// WatchedVideoMap maps chapter ID to the latest watch record. Writes replace
// by key; this is what makes video-progress replays idempotent.
type WatchedVideoMap map[uuid.UUID]WatchedVideo

// Value implements driver.Valuer.
func (m WatchedVideoMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *WatchedVideoMap) Scan(value interface{}) error {
	return scanJSON(value, (*map[uuid.UUID]WatchedVideo)(m), "WatchedVideoMap")
}

// QuizAttempt is one graded quiz submission.
type QuizAttempt struct {
	QuizID      uuid.UUID `json:"quizId"`
	ChapterID   uuid.UUID `json:"chapterId"`
	Score       int       `json:"score"`
	Passed      bool      `json:"passed"`
	AttemptedAt time.Time `json:"attemptedAt"`
}

// QuizAttemptLog is the append-only history of quiz submissions. Entries are
// never merged or deduplicated; replaying a submission appends again, so
// callers that replay must deduplicate beforehand.
type QuizAttemptLog []QuizAttempt

// Value implements driver.Valuer.
func (l QuizAttemptLog) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *QuizAttemptLog) Scan(value interface{}) error {
	return scanJSON(value, (*[]QuizAttempt)(l), "QuizAttemptLog")
}

func scanJSON(value interface{}, dest interface{}, kind string) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("enrollment.%s: unsupported scan type %T", kind, value)
	}
}
