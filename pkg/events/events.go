package events

import (
	"time"

	"github.com/google/uuid"
)

// Type classifies domain events for routing and filtering.
type Type string

// The closed set of domain events this server emits. Access request rows are
// deleted once processed, so for requests this stream is the only durable
// trace of the lifecycle.
const (
	EnrollmentCreated Type = "enrollment.created"
	EnrollmentRemoved Type = "enrollment.removed"
	ProgressUpdated   Type = "progress.updated"
	ChapterCompleted  Type = "progress.chapter.completed"
	QuizSubmitted     Type = "progress.quiz.submitted"
	RequestCreated    Type = "request.created"
	RequestApproved   Type = "request.approved"
	RequestRejected   Type = "request.rejected"
)

// Event is an immutable record of one domain mutation.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    uuid.UUID              `json:"userId"`
	CourseID  uuid.UUID              `json:"courseId,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// New builds an event stamped with the current UTC time.
func New(eventType Type, userID, courseID uuid.UUID, metadata map[string]interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		CourseID:  courseID,
		Metadata:  metadata,
	}
}
