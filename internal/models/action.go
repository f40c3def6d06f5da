package models

import (
	"fmt"
	"strings"
	"time"
)

// ActionEvent is one tracked action. (UserID, ActionName, Timestamp) is unique;
// re-tracking the same key overwrites Metadata only.
type ActionEvent struct {
	UserID     string
	ActionName string
	Timestamp  time.Time
	Metadata   map[string]any
}

// TransitionEdge records that ActionName was immediately followed by
// NextActionName for UserID. Count is the number of observations.
type TransitionEdge struct {
	UserID         string
	ActionName     string
	NextActionName string
	Count          int64
	CreatedAt      time.Time
}

// TransitionCount is one row of the per-(user, action) aggregate.
type TransitionCount struct {
	NextAction string
	Count      int64
}

// TrackRequest is the POST /track_action payload.
// timestamp is optional ISO-8601; the server uses the current time when absent.
type TrackRequest struct {
	ActionName string         `json:"action_name"`
	UserID     string         `json:"user_id"`
	Timestamp  string         `json:"timestamp,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TrackResult reports a successful track call.
type TrackResult struct {
	Status             string `json:"status"`
	Message            string `json:"message"`
	PreviousAction     string `json:"previous_action,omitempty"`
	TransitionRecorded bool   `json:"transition_recorded"`
}

// TrackResponse is returned by POST /track_action: the tracking result plus a
// fresh prediction for the action just tracked.
type TrackResponse struct {
	Tracking        TrackResult `json:"tracking"`
	Predictions     *Prediction `json:"predictions"`
	PredictionError string      `json:"prediction_error,omitempty"`
}

// PredictRequest is the POST /predict_next_action payload.
type PredictRequest struct {
	CurrentAction string `json:"current_action"`
	UserID        string `json:"user_id"`
	Limit         int    `json:"limit,omitempty"`
}

// Sequence is one ranked next-action candidate. Probability is a percentage
// rounded to two decimals.
type Sequence struct {
	NextAction  string  `json:"next_action"`
	Frequency   int64   `json:"frequency"`
	Probability float64 `json:"probability"`
}

// Prediction is the ranked distribution over next actions.
type Prediction struct {
	CurrentAction    string     `json:"current_action"`
	TotalOccurrences int64      `json:"total_occurrences"`
	Sequences        []Sequence `json:"sequences"`
}

// ActionTrackedMessage is published to the broker after a new event is stored.
type ActionTrackedMessage struct {
	UserID         string         `json:"user_id"`
	ActionName     string         `json:"action_name"`
	PreviousAction string         `json:"previous_action,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO-8601 timestamps. Values
// without a zone are taken as UTC. The result is UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601", s)
}
