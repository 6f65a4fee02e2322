package canvas

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/example/canvas-relay/domain/canvas"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingObserver struct {
	mu      sync.Mutex
	created []string
	reaped  []string
	joined  []string
	left    []string
}

func (o *recordingObserver) RoomCreated(roomID string, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created = append(o.created, roomID)
}

func (o *recordingObserver) RoomReaped(roomID string, _ time.Duration, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reaped = append(o.reaped, roomID)
}

func (o *recordingObserver) MemberJoined(roomID string, m domain.Member, _ int, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.joined = append(o.joined, roomID+"/"+m.SenderID)
}

func (o *recordingObserver) MemberLeft(roomID string, m domain.Member, _ int, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.left = append(o.left, roomID+"/"+m.SenderID)
}

type testEnv struct {
	registry *Registry
	router   *Router
	clock    *fakeClock
	observer *recordingObserver
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{
		router:   NewRouter(&mockLogger{}),
		clock:    newFakeClock(),
		observer: &recordingObserver{},
	}
	seq := 0
	var seqMu sync.Mutex
	if opts.NewID == nil {
		opts.NewID = func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return fmt.Sprintf("c%d", seq)
		}
	}
	opts.Clock = env.clock.Now
	opts.Observer = env.observer
	env.registry = NewRegistry(env.router, &mockLogger{}, opts)
	return env
}

// join connects a session and joins it to roomID, discarding the join replies.
func (e *testEnv) join(t *testing.T, roomID, userName string) *Session {
	t.Helper()
	s := e.registry.Connect()
	send(t, s, map[string]any{"type": TypeJoin, "roomId": roomID, "userName": userName})
	drain(t, s)
	return s
}

func send(t *testing.T, s *Session, msg map[string]any) error {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	return s.Handle(data)
}

// drain returns every frame currently queued for s, decoded.
func drain(t *testing.T, s *Session) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for {
		select {
		case data, ok := <-s.out:
			if !ok {
				return frames
			}
			var frame map[string]any
			require.NoError(t, json.Unmarshal(data, &frame))
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func frameTypes(frames []map[string]any) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		typ, _ := f["type"].(string)
		out = append(out, typ)
	}
	return out
}

func ids(t *testing.T, list any, field string) []string {
	t.Helper()
	items, ok := list.([]any)
	require.True(t, ok, "expected a list, got %T", list)
	out := make([]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		require.True(t, ok)
		id, _ := obj[field].(string)
		out = append(out, id)
	}
	return out
}

func fields(t *testing.T, v map[string]any) Fields {
	t.Helper()
	out := make(Fields, len(v))
	for k, val := range v {
		raw, err := json.Marshal(val)
		require.NoError(t, err)
		out[k] = raw
	}
	return out
}
