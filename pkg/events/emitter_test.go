package events_test

import (
	"io"
	"testing"

	"log/slog"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollment-server-go/pkg/events"
)

func newEmitter() *events.Emitter {
	return events.NewEmitter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishReachesTypedSubscribers(t *testing.T) {
	emitter := newEmitter()

	var got []events.Event
	emitter.Subscribe(events.EnrollmentCreated, func(evt events.Event) {
		got = append(got, evt)
	})

	userID, courseID := uuid.New(), uuid.New()
	emitter.Publish(events.New(events.EnrollmentCreated, userID, courseID, map[string]interface{}{"source": "admin"}))
	emitter.Publish(events.New(events.EnrollmentRemoved, userID, courseID, nil))

	require.Len(t, got, 1)
	require.Equal(t, events.EnrollmentCreated, got[0].Type)
	require.Equal(t, userID, got[0].UserID)
	require.Equal(t, courseID, got[0].CourseID)
	require.Equal(t, "admin", got[0].Metadata["source"])
	require.False(t, got[0].Timestamp.IsZero())
}

func TestSubscribeAllSeesEveryType(t *testing.T) {
	emitter := newEmitter()

	count := 0
	emitter.SubscribeAll(func(events.Event) { count++ })

	for _, evtType := range []events.Type{
		events.EnrollmentCreated,
		events.ProgressUpdated,
		events.ChapterCompleted,
		events.QuizSubmitted,
		events.RequestCreated,
	} {
		emitter.Publish(events.New(evtType, uuid.New(), uuid.New(), nil))
	}
	require.Equal(t, 5, count)
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	emitter := newEmitter()

	delivered := false
	emitter.Subscribe(events.RequestApproved, func(events.Event) { panic("handler blew up") })
	emitter.Subscribe(events.RequestApproved, func(events.Event) { delivered = true })

	require.NotPanics(t, func() {
		emitter.Publish(events.New(events.RequestApproved, uuid.New(), uuid.New(), nil))
	})
	require.True(t, delivered)
}

func TestRecorder(t *testing.T) {
	emitter := newEmitter()
	recorder := events.NewRecorder(emitter)

	emitter.Publish(events.New(events.RequestCreated, uuid.New(), uuid.New(), nil))
	emitter.Publish(events.New(events.RequestRejected, uuid.New(), uuid.New(), nil))

	require.Len(t, recorder.Events(), 2)
	require.Len(t, recorder.ByType(events.RequestRejected), 1)

	recorder.Reset()
	require.Empty(t, recorder.Events())
}
