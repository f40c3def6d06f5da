// Package tracking records action events and maintains the per-user
// transition graph derived from consecutive events.
package tracking

import (
	"context"
	"strings"
	"time"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
	"github.com/PratikDhanave/next-action-service/internal/logging"
	"github.com/PratikDhanave/next-action-service/internal/metrics"
	"github.com/PratikDhanave/next-action-service/internal/models"
	"github.com/PratikDhanave/next-action-service/internal/validation"
)

const (
	StatusSuccess  = "success"
	MessageTracked = "Action tracked successfully"
)

// Store is the part of the durable store the tracker writes to.
type Store interface {
	LastAction(ctx context.Context, userID string) (models.ActionEvent, bool, error)
	UpsertAction(ctx context.Context, ev models.ActionEvent) (bool, error)
	UpsertTransition(ctx context.Context, edge models.TransitionEdge) error
}

// Publisher receives a message for every newly stored event.
type Publisher interface {
	PublishActionTracked(ctx context.Context, msg models.ActionTrackedMessage) error
}

// Input is one track call. A zero Timestamp means now.
type Input struct {
	UserID     string `json:"user_id" validate:"required,max=255"`
	ActionName string `json:"action_name" validate:"required,max=255"`
	Timestamp  time.Time
	Metadata   map[string]any
}

// Service is the tracking service.
//
// Track is a read-modify-write over two tables and is not atomic across
// concurrent calls for the same user: two simultaneous calls may both read the
// same last action. Callers that need strict per-user ordering must serialize
// their calls for that user.
type Service struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for default timestamps and
// transition created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a tracker. pub may be nil.
func NewService(st Store, pub Publisher, opts ...Option) *Service {
	s := &Service{store: st, publisher: pub, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Track stores the event and, when the user has a previous event, records the
// previous -> current transition.
//
// The event write and the transition write are separate. If the second fails
// the event stays recorded without its edge and the error is returned; the next
// call treats the new event as the last action.
//
// Re-tracking an existing (user, action, timestamp) only refreshes metadata and
// records no transition, so client retries do not inflate frequencies.
func (s *Service) Track(ctx context.Context, in Input) (res models.TrackResult, err error) {
	defer func() { metrics.ActionsTracked.WithLabelValues(metrics.Outcome(err)).Inc() }()

	in.UserID = strings.TrimSpace(in.UserID)
	in.ActionName = strings.TrimSpace(in.ActionName)
	if err := validation.Struct(in); err != nil {
		return models.TrackResult{}, err
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	// Postgres keeps microseconds; truncating here keeps the uniqueness key
	// identical in every store.
	ts = ts.UTC().Truncate(time.Microsecond)

	last, hasLast, err := s.store.LastAction(ctx, in.UserID)
	if err != nil {
		return models.TrackResult{}, apperr.Storage(err, "failed to track action")
	}

	inserted, err := s.store.UpsertAction(ctx, models.ActionEvent{
		UserID:     in.UserID,
		ActionName: in.ActionName,
		Timestamp:  ts,
		Metadata:   in.Metadata,
	})
	if err != nil {
		return models.TrackResult{}, apperr.Storage(err, "failed to track action")
	}

	res = models.TrackResult{Status: StatusSuccess, Message: MessageTracked}

	// A replay is not a new step, so it has no previous action.
	if hasLast && inserted {
		res.PreviousAction = last.ActionName
		err = s.store.UpsertTransition(ctx, models.TransitionEdge{
			UserID:         in.UserID,
			ActionName:     last.ActionName,
			NextActionName: in.ActionName,
			CreatedAt:      s.now().UTC(),
		})
		if err != nil {
			return models.TrackResult{}, apperr.Storage(err, "failed to track action")
		}
		res.TransitionRecorded = true
		metrics.TransitionsRecorded.Inc()
	}

	logging.Ctx(ctx).Debug().
		Str("user_id", in.UserID).
		Str("action", in.ActionName).
		Str("previous_action", res.PreviousAction).
		Bool("inserted", inserted).
		Bool("transition_recorded", res.TransitionRecorded).
		Msg("action tracked")

	if inserted {
		s.publish(ctx, models.ActionTrackedMessage{
			UserID:         in.UserID,
			ActionName:     in.ActionName,
			PreviousAction: res.PreviousAction,
			Timestamp:      ts,
			Metadata:       in.Metadata,
		})
	}
	return res, nil
}

// publish is best effort: the event is already durable, so a broker failure is
// logged and counted but not returned or retried.
func (s *Service) publish(ctx context.Context, msg models.ActionTrackedMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishActionTracked(ctx, msg); err != nil {
		metrics.MessagesPublished.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", msg.UserID).Msg("publish action tracked failed")
		return
	}
	metrics.MessagesPublished.WithLabelValues("success").Inc()
}
