package prediction

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
	"github.com/PratikDhanave/next-action-service/internal/models"
)

type fakeReader struct {
	counts map[string][]models.TransitionCount // key: user|action
	err    error
	calls  int
}

func (f *fakeReader) TransitionCounts(_ context.Context, userID, actionName string) ([]models.TransitionCount, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.counts[userID+"|"+actionName], nil
}

func TestPredict_EndToEndShape(t *testing.T) {
	svc := NewService(&fakeReader{counts: map[string][]models.TransitionCount{
		"user1|open": {{NextAction: "reply", Count: 1}},
	}})

	pred, err := svc.Predict(context.Background(), Input{CurrentAction: "open", UserID: "user1"})
	require.NoError(t, err)

	assert.Equal(t, models.Prediction{
		CurrentAction:    "open",
		TotalOccurrences: 1,
		Sequences:        []models.Sequence{{NextAction: "reply", Frequency: 1, Probability: 100.0}},
	}, pred)
}

func TestPredict_NotFound(t *testing.T) {
	svc := NewService(&fakeReader{})

	_, err := svc.Predict(context.Background(), Input{CurrentAction: "open", UserID: "user1"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Equal(t, MessageNoData, err.Error())
}

func TestPredict_Validation(t *testing.T) {
	r := &fakeReader{}
	svc := NewService(r)

	_, err := svc.Predict(context.Background(), Input{CurrentAction: " ", UserID: "u"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "current_action is required")

	_, err = svc.Predict(context.Background(), Input{CurrentAction: "open", UserID: "u", Limit: -1})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Zero(t, r.calls, "store is not queried for invalid input")
}

func TestPredict_StorageError(t *testing.T) {
	svc := NewService(&fakeReader{err: errors.New("connection reset")})

	_, err := svc.Predict(context.Background(), Input{CurrentAction: "open", UserID: "u"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPredict_LimitKeepsTotal(t *testing.T) {
	svc := NewService(&fakeReader{counts: map[string][]models.TransitionCount{
		"u|open": {
			{NextAction: "c", Count: 1},
			{NextAction: "a", Count: 3},
			{NextAction: "b", Count: 3},
		},
	}})

	pred, err := svc.Predict(context.Background(), Input{CurrentAction: "open", UserID: "u", Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(7), pred.TotalOccurrences)
	assert.Equal(t, []string{"a", "b"}, names(pred.Sequences))
}
