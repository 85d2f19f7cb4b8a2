package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Action labels an audit entry.
type Action string

const (
	ActionRevealUpdate        Action = "reveal_update"
	ActionMilestoneCelebrated Action = "milestone_celebrated"
	ActionSobrietyDateSet     Action = "sobriety_date_set"
	ActionTrustUpdate         Action = "trust_update"
	ActionPhotoUpload         Action = "photo_upload"
)

// NATS subjects each action is published on.
const (
	SubjectRevealUpdated       = "veil.reveal.updated"
	SubjectMilestoneCelebrated = "veil.milestone.celebrated"
	SubjectSobrietySet         = "veil.sobriety.set"
	SubjectTrustUpdated        = "veil.trust.updated"
	SubjectPhotoUploaded       = "veil.photo.uploaded"
)

// Subject returns the bus subject for an action.
func (a Action) Subject() string {
	switch a {
	case ActionRevealUpdate:
		return SubjectRevealUpdated
	case ActionMilestoneCelebrated:
		return SubjectMilestoneCelebrated
	case ActionSobrietyDateSet:
		return SubjectSobrietySet
	case ActionTrustUpdate:
		return SubjectTrustUpdated
	case ActionPhotoUpload:
		return SubjectPhotoUploaded
	default:
		return "veil.event." + string(a)
	}
}

// Event is an immutable audit entry. Values are rendered as strings so one
// log can hold scores, percents and dates.
type Event struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Action      Action    `json:"action"`
	FromValue   string    `json:"from_value"`
	ToValue     string    `json:"to_value"`
	MilestoneID string    `json:"milestone_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// IntValue formats a score or percent for an event.
func IntValue(v int) string {
	return strconv.Itoa(v)
}

// DateValue formats an optional date for an event; nil renders empty.
func DateValue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.DateOnly)
}

// Appender persists events.
type Appender interface {
	AppendEvent(ctx context.Context, evt Event) error
}

// Publisher fans events out to subscribers.
type Publisher interface {
	Publish(subject string, data any) error
}

// Recorder writes events to the log and announces them on the bus.
type Recorder struct {
	store  Appender
	bus    Publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a recorder. bus may be nil.
func NewRecorder(store Appender, bus Publisher, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		bus:    bus,
		logger: logger,
		now:    time.Now,
	}
}

// Record appends evt and publishes it. A failed append is returned; a failed
// publish is only logged because the log is the source of truth.
func (r *Recorder) Record(ctx context.Context, evt Event) (Event, error) {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = r.now().UTC()
	}

	if err := r.store.AppendEvent(ctx, evt); err != nil {
		return evt, fmt.Errorf("append event: %w", err)
	}

	if r.bus != nil {
		if err := r.bus.Publish(evt.Action.Subject(), evt); err != nil {
			r.logger.Warn("failed to publish event",
				"action", string(evt.Action),
				"user_id", evt.UserID,
				"error", err,
			)
		}
	}
	return evt, nil
}
