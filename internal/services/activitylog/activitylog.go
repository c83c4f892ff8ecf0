package activitylog

import (
	"context"
	"encoding/json"
	"time"

	"log/slog"

	"github.com/enrollhub/enrollment-server-go/pkg/cache"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/metrics"
)

// Recorder appends every domain event to a Redis stream for audit and
// downstream consumers. Best effort: a Redis outage drops entries, it never
// blocks or fails the originating operation.
type Recorder struct {
	redis  *cache.RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
}

// New constructs a recorder and subscribes it to every event type.
func New(redis *cache.RedisClient, stream string, logger *slog.Logger, emitter *events.Emitter) *Recorder {
	r := &Recorder{
		redis:  redis,
		stream: stream,
		maxLen: 100_000,
		logger: logger,
	}
	emitter.SubscribeAll(r.record)
	return r
}

func (r *Recorder) record(evt events.Event) {
	metrics.RecordEvent(string(evt.Type))

	metadata := "{}"
	if len(evt.Metadata) > 0 {
		if raw, err := json.Marshal(evt.Metadata); err == nil {
			metadata = string(raw)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := r.redis.AppendStream(ctx, r.stream, map[string]interface{}{
		"type":      string(evt.Type),
		"timestamp": evt.Timestamp.Format(time.RFC3339Nano),
		"userId":    evt.UserID.String(),
		"courseId":  evt.CourseID.String(),
		"metadata":  metadata,
	}, r.maxLen)
	if err != nil {
		r.logger.Warn("failed to append activity log entry",
			slog.String("event", string(evt.Type)),
			slog.String("error", err.Error()),
		)
	}
}
