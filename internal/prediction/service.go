// Package prediction ranks a user's likely next actions from recorded
// transition frequencies. Every call reads the store; nothing is cached.
package prediction

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
	"github.com/PratikDhanave/next-action-service/internal/logging"
	"github.com/PratikDhanave/next-action-service/internal/metrics"
	"github.com/PratikDhanave/next-action-service/internal/models"
	"github.com/PratikDhanave/next-action-service/internal/validation"
)

// MessageNoData is returned when a (user, action) pair has no transitions.
const MessageNoData = "No data found for the given action and user."

// Reader reads transition counts.
type Reader interface {
	TransitionCounts(ctx context.Context, userID, actionName string) ([]models.TransitionCount, error)
}

// Input is one predict call. Limit > 0 keeps only the top Limit sequences;
// total occurrences still cover every candidate.
type Input struct {
	CurrentAction string `json:"current_action" validate:"required,max=255"`
	UserID        string `json:"user_id" validate:"required,max=255"`
	Limit         int    `json:"limit" validate:"gte=0,lte=1000"`
}

type Service struct {
	store Reader
}

func NewService(st Reader) *Service {
	return &Service{store: st}
}

// Predict returns the ranked next actions for in.CurrentAction. It fails with a
// not-found error rather than an empty result when nothing was recorded.
func (s *Service) Predict(ctx context.Context, in Input) (pred models.Prediction, err error) {
	defer func() { metrics.Predictions.WithLabelValues(metrics.Outcome(err)).Inc() }()

	in.UserID = strings.TrimSpace(in.UserID)
	in.CurrentAction = strings.TrimSpace(in.CurrentAction)
	if err := validation.Struct(in); err != nil {
		return models.Prediction{}, err
	}

	counts, err := s.store.TransitionCounts(ctx, in.UserID, in.CurrentAction)
	if err != nil {
		return models.Prediction{}, apperr.Storage(err, "database error")
	}

	total, seqs := Rank(counts)
	if total == 0 {
		return models.Prediction{}, apperr.NotFound(MessageNoData)
	}
	metrics.PredictionCandidates.Observe(float64(len(seqs)))

	if in.Limit > 0 && len(seqs) > in.Limit {
		seqs = seqs[:in.Limit]
	}

	pred = models.Prediction{
		CurrentAction:    in.CurrentAction,
		TotalOccurrences: total,
		Sequences:        seqs,
	}

	logging.Ctx(ctx).Debug().
		Str("user_id", in.UserID).
		Str("current_action", pred.CurrentAction).
		Int64("total_occurrences", total).
		Array("sequences", sequenceArray(seqs)).
		Msg("prediction computed")

	return pred, nil
}

type sequenceArray []models.Sequence

func (a sequenceArray) MarshalZerologArray(arr *zerolog.Array) {
	for _, s := range a {
		arr.Dict(zerolog.Dict().
			Str("next_action", s.NextAction).
			Int64("frequency", s.Frequency).
			Float64("probability", s.Probability))
	}
}
