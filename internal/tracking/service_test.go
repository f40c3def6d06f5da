package tracking

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/next-action-service/internal/apperr"
	"github.com/PratikDhanave/next-action-service/internal/models"
)

type eventKey struct {
	user, action string
	ts           int64
}

type edgeKey struct {
	user, action, next string
}

// memStore mirrors the SQL upsert semantics in memory.
type memStore struct {
	events  map[eventKey]models.ActionEvent
	order   []eventKey
	edges   map[edgeKey]models.TransitionEdge
	lastErr error
	evErr   error
	edgeErr error
}

func newMemStore() *memStore {
	return &memStore{
		events: map[eventKey]models.ActionEvent{},
		edges:  map[edgeKey]models.TransitionEdge{},
	}
}

func (m *memStore) LastAction(_ context.Context, userID string) (models.ActionEvent, bool, error) {
	if m.lastErr != nil {
		return models.ActionEvent{}, false, m.lastErr
	}
	var (
		best  models.ActionEvent
		found bool
	)
	// order is insertion order, so a later entry wins a timestamp tie.
	for _, k := range m.order {
		if k.user != userID {
			continue
		}
		ev := m.events[k]
		if !found || !ev.Timestamp.Before(best.Timestamp) {
			best, found = ev, true
		}
	}
	return best, found, nil
}

func (m *memStore) UpsertAction(_ context.Context, ev models.ActionEvent) (bool, error) {
	if m.evErr != nil {
		return false, m.evErr
	}
	k := eventKey{ev.UserID, ev.ActionName, ev.Timestamp.UnixMicro()}
	if existing, ok := m.events[k]; ok {
		existing.Metadata = ev.Metadata
		m.events[k] = existing
		return false, nil
	}
	m.events[k] = ev
	m.order = append(m.order, k)
	return true, nil
}

func (m *memStore) UpsertTransition(_ context.Context, e models.TransitionEdge) error {
	if m.edgeErr != nil {
		return m.edgeErr
	}
	k := edgeKey{e.UserID, e.ActionName, e.NextActionName}
	cur, ok := m.edges[k]
	if ok {
		cur.Count++
		cur.CreatedAt = e.CreatedAt
		m.edges[k] = cur
		return nil
	}
	e.Count = 1
	m.edges[k] = e
	return nil
}

func (m *memStore) edgeList() []models.TransitionEdge {
	out := make([]models.TransitionEdge, 0, len(m.edges))
	for _, e := range m.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextActionName < out[j].NextActionName })
	return out
}

type recordingPublisher struct {
	msgs []models.ActionTrackedMessage
	err  error
}

func (r *recordingPublisher) PublishActionTracked(_ context.Context, msg models.ActionTrackedMessage) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

var fixedNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

func newTestService(st *memStore, pub Publisher) *Service {
	return NewService(st, pub, WithClock(func() time.Time { return fixedNow }))
}

func TestTrack_ValidationErrors(t *testing.T) {
	svc := newTestService(newMemStore(), nil)

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"missing user", Input{ActionName: "open"}, "user_id is required"},
		{"missing action", Input{UserID: "u1"}, "action_name is required"},
		{"blank action", Input{UserID: "u1", ActionName: "   "}, "action_name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Track(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTrack_FirstActionCreatesNoEdge(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)

	res, err := svc.Track(context.Background(), Input{UserID: "new-user", ActionName: "open"})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, MessageTracked, res.Message)
	assert.Empty(t, res.PreviousAction)
	assert.False(t, res.TransitionRecorded)
	assert.Len(t, st.events, 1)
	assert.Empty(t, st.edges)
}

func TestTrack_DefaultsTimestampToNow(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)

	_, err := svc.Track(context.Background(), Input{UserID: "u1", ActionName: "open"})
	require.NoError(t, err)

	for _, ev := range st.events {
		assert.True(t, fixedNow.Equal(ev.Timestamp))
	}
}

func TestTrack_SecondActionRecordsTransition(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	_, err := svc.Track(ctx, Input{UserID: "user1", ActionName: "open", Timestamp: fixedNow})
	require.NoError(t, err)
	res, err := svc.Track(ctx, Input{UserID: "user1", ActionName: "reply", Timestamp: fixedNow.Add(time.Second)})
	require.NoError(t, err)

	assert.Equal(t, "open", res.PreviousAction)
	assert.True(t, res.TransitionRecorded)
	require.Len(t, st.edges, 1)
	edge := st.edgeList()[0]
	assert.Equal(t, "open", edge.ActionName)
	assert.Equal(t, "reply", edge.NextActionName)
	assert.Equal(t, int64(1), edge.Count)
	assert.True(t, fixedNow.Equal(edge.CreatedAt))
}

func TestTrack_RepeatedTransitionIncrementsCount(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	seq := []string{"open", "reply", "open", "reply", "open", "archive"}
	for i, a := range seq {
		_, err := svc.Track(ctx, Input{UserID: "u1", ActionName: a, Timestamp: fixedNow.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	counts := map[string]int64{}
	for _, e := range st.edgeList() {
		counts[e.ActionName+"->"+e.NextActionName] = e.Count
	}
	assert.Equal(t, map[string]int64{
		"open->reply":   2,
		"reply->open":   2,
		"open->archive": 1,
	}, counts)
}

func TestTrack_ReplayOverwritesMetadataWithoutNewEdge(t *testing.T) {
	st := newMemStore()
	pub := &recordingPublisher{}
	svc := newTestService(st, pub)
	ctx := context.Background()
	ts := fixedNow.Add(time.Minute)

	_, err := svc.Track(ctx, Input{UserID: "u1", ActionName: "open", Timestamp: fixedNow})
	require.NoError(t, err)
	_, err = svc.Track(ctx, Input{UserID: "u1", ActionName: "reply", Timestamp: ts, Metadata: map[string]any{"v": 1}})
	require.NoError(t, err)

	res, err := svc.Track(ctx, Input{UserID: "u1", ActionName: "reply", Timestamp: ts, Metadata: map[string]any{"v": 2}})
	require.NoError(t, err)

	assert.False(t, res.TransitionRecorded)
	assert.Empty(t, res.PreviousAction, "replay reports no previous action")
	assert.Len(t, st.events, 2)
	assert.Equal(t, map[string]any{"v": 2}, st.events[eventKey{"u1", "reply", ts.UnixMicro()}].Metadata)
	require.Len(t, st.edges, 1)
	assert.Equal(t, int64(1), st.edgeList()[0].Count)
	assert.Len(t, pub.msgs, 2, "replay is not published again")
}

func TestTrack_TrimsNames(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)

	_, err := svc.Track(context.Background(), Input{UserID: " u1 ", ActionName: " open\t"})
	require.NoError(t, err)

	last, found, _ := st.LastAction(context.Background(), "u1")
	require.True(t, found)
	assert.Equal(t, "open", last.ActionName)
}

func TestTrack_StorageErrors(t *testing.T) {
	ctx := context.Background()

	st := newMemStore()
	st.lastErr = errors.New("connection refused")
	_, err := newTestService(st, nil).Track(ctx, Input{UserID: "u1", ActionName: "open"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
	assert.Contains(t, err.Error(), "connection refused")

	st = newMemStore()
	st.evErr = errors.New("disk full")
	_, err = newTestService(st, nil).Track(ctx, Input{UserID: "u1", ActionName: "open"})
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))
}

func TestTrack_EdgeFailureKeepsEvent(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st, nil)
	ctx := context.Background()

	_, err := svc.Track(ctx, Input{UserID: "u1", ActionName: "open", Timestamp: fixedNow})
	require.NoError(t, err)

	st.edgeErr = errors.New("constraint violation")
	_, err = svc.Track(ctx, Input{UserID: "u1", ActionName: "reply", Timestamp: fixedNow.Add(time.Second)})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindStorage))

	assert.Len(t, st.events, 2)
	assert.Empty(t, st.edges)
	last, _, _ := st.LastAction(ctx, "u1")
	assert.Equal(t, "reply", last.ActionName)
}

func TestTrack_PublishesNewEvents(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService(newMemStore(), pub)
	ctx := context.Background()

	_, err := svc.Track(ctx, Input{UserID: "u1", ActionName: "open", Timestamp: fixedNow})
	require.NoError(t, err)
	_, err = svc.Track(ctx, Input{UserID: "u1", ActionName: "reply", Timestamp: fixedNow.Add(time.Second)})
	require.NoError(t, err)

	require.Len(t, pub.msgs, 2)
	assert.Empty(t, pub.msgs[0].PreviousAction)
	assert.Equal(t, "open", pub.msgs[1].PreviousAction)
	assert.Equal(t, "reply", pub.msgs[1].ActionName)
}

func TestTrack_PublishFailureDoesNotFailTrack(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(newMemStore(), pub)

	res, err := svc.Track(context.Background(), Input{UserID: "u1", ActionName: "open"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
}
