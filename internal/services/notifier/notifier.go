package notifier

import (
	"fmt"

	"log/slog"

	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/user"
	"github.com/enrollhub/enrollment-server-go/pkg/email"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
)

// Notifier emails students about enrollment decisions. It consumes the event
// stream after commit, so a failed email never affects the write that caused
// it.
type Notifier struct {
	db     *gorm.DB
	client *email.Client
	logger *slog.Logger
}

// New constructs a notifier and subscribes it to the emitter.
func New(db *gorm.DB, client *email.Client, logger *slog.Logger, emitter *events.Emitter) *Notifier {
	n := &Notifier{db: db, client: client, logger: logger}
	emitter.Subscribe(events.RequestApproved, n.handleApproved)
	emitter.Subscribe(events.RequestRejected, n.handleRejected)
	emitter.Subscribe(events.EnrollmentCreated, n.handleEnrolled)
	return n
}

func (n *Notifier) handleApproved(evt events.Event) {
	n.send(evt, "Course access approved",
		"Your request for course access has been approved. You are now enrolled and can start learning.")
}

func (n *Notifier) handleRejected(evt events.Event) {
	body := "Your request for course access has been declined."
	if reason, ok := evt.Metadata["reason"].(string); ok && reason != "" {
		body = fmt.Sprintf("%s Reason: %s", body, reason)
	}
	n.send(evt, "Course access declined", body)
}

func (n *Notifier) handleEnrolled(evt events.Event) {
	// Approval-driven enrollments already get the approval email.
	if source, ok := evt.Metadata["source"].(string); ok && source == "access_request" {
		return
	}
	n.send(evt, "You have been enrolled",
		"You have been enrolled in a new course. It is now available in your course list.")
}

func (n *Notifier) send(evt events.Event, subject, body string) {
	usr, err := user.Get(n.db, evt.UserID)
	if err != nil {
		n.logger.Warn("notification skipped, user lookup failed",
			slog.String("event", string(evt.Type)),
			slog.String("user_id", evt.UserID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := n.client.SendNotification(usr.Email, subject, body); err != nil {
		n.logger.Error("failed to send notification email",
			slog.String("event", string(evt.Type)),
			slog.String("email", usr.Email),
			slog.String("error", err.Error()),
		)
		return
	}
	n.logger.Debug("notification email sent",
		slog.String("event", string(evt.Type)),
		slog.String("email", usr.Email),
	)
}
