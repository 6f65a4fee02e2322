package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_JoinEmptyRoom(t *testing.T) {
	env := newTestEnv(t, Options{})
	s := env.registry.Connect()

	require.NoError(t, send(t, s, map[string]any{"type": "join", "roomId": "r", "userName": "Ana"}))

	frames := drain(t, s)
	require.Equal(t, []string{"welcome", "userList"}, frameTypes(frames))
	assert.Equal(t, "c1", frames[0]["clientId"])
	assert.Equal(t, "r", frames[0]["roomId"])
	assert.Empty(t, frames[1]["users"])
	assert.Equal(t, StateJoined, s.State())
	assert.Equal(t, "r", s.RoomID())
	assert.Equal(t, []string{"r"}, env.observer.created)
}

func TestSession_JoinDefaults(t *testing.T) {
	env := newTestEnv(t, Options{DefaultRoom: "lobby"})
	first := env.join(t, "lobby", "Ana")
	s := env.registry.Connect()

	require.NoError(t, send(t, s, map[string]any{"type": "join"}))

	assert.Equal(t, "lobby", s.RoomID())
	notice := drain(t, first)
	require.Len(t, notice, 1)
	assert.Equal(t, "join", notice[0]["type"])
	assert.Equal(t, DefaultUserName, notice[0]["userName"])
	assert.Equal(t, s.ID(), notice[0]["senderId"])
}

func TestSession_JoinDeliversSnapshotBeforeBroadcasts(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")
	b := env.join(t, "r", "Ben")
	drain(t, a)

	require.NoError(t, send(t, a, map[string]any{"type": "imageAdd", "imageId": "img1", "src": "a.png"}))
	require.NoError(t, send(t, b, map[string]any{"type": "textAdd", "textId": "txt1", "body": "hello"}))
	drain(t, a)
	drain(t, b)

	c := env.registry.Connect()
	require.NoError(t, send(t, c, map[string]any{"type": "join", "roomId": "r", "userName": "Cy"}))
	require.NoError(t, send(t, a, map[string]any{"type": "imageUpdate", "imageId": "img1", "x": 5}))

	frames := drain(t, c)
	require.Equal(t, []string{"welcome", "fullSync", "userList", "imageUpdate"}, frameTypes(frames))
	assert.Equal(t, []string{"img1"}, ids(t, frames[1]["images"], "imageId"))
	assert.Equal(t, []string{"txt1"}, ids(t, frames[1]["texts"], "textId"))

	users, ok := frames[2]["users"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{
		map[string]any{"senderId": a.ID(), "userName": "Ana"},
		map[string]any{"senderId": b.ID(), "userName": "Ben"},
	}, users)

	for _, other := range []*Session{a, b} {
		notices := drain(t, other)
		if other == a {
			require.Equal(t, []string{"join"}, frameTypes(notices))
		} else {
			require.Equal(t, []string{"join", "imageUpdate"}, frameTypes(notices))
		}
		assert.Equal(t, c.ID(), notices[0]["senderId"])
		assert.Equal(t, "Cy", notices[0]["userName"])
	}
}

func TestSession_RejectsMessagesBeforeJoin(t *testing.T) {
	env := newTestEnv(t, Options{})
	s := env.registry.Connect()

	err := send(t, s, map[string]any{"type": "imageAdd", "imageId": "x"})
	assert.ErrorIs(t, err, ErrNotJoined)

	frames := drain(t, s)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0]["type"])
	assert.Equal(t, "Must join a room first", frames[0]["message"])
	assert.Equal(t, StateUnjoined, s.State())
	assert.Equal(t, 0, env.registry.Snapshot().Rooms)
}

func TestSession_SecondJoinIsRejected(t *testing.T) {
	env := newTestEnv(t, Options{})
	s := env.join(t, "first", "Ana")
	other := env.join(t, "second", "Ben")

	err := send(t, s, map[string]any{"type": "join", "roomId": "second"})
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	frames := drain(t, s)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0]["type"])
	assert.Equal(t, "already joined room first", frames[0]["message"])
	assert.Equal(t, "first", s.RoomID())
	assert.Empty(t, drain(t, other))
}

func TestSession_MalformedFrameKeepsSession(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")
	b := env.join(t, "r", "Ben")
	drain(t, a)

	err := a.Handle([]byte(`{"type":"imageAdd",`))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, StateJoined, a.State())

	require.NoError(t, send(t, a, map[string]any{"type": "cursor", "x": 1}))
	assert.Equal(t, []string{"cursor"}, frameTypes(drain(t, b)))
}

func TestSession_ObjectWithoutIDIsDropped(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")
	b := env.join(t, "r", "Ben")
	drain(t, a)

	err := send(t, a, map[string]any{"type": "imageAdd", "src": "a.png"})
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Empty(t, drain(t, b))
}

func TestSession_BroadcastExcludesSenderAndOtherRooms(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")
	b := env.join(t, "r", "Ben")
	c := env.join(t, "r", "Cy")
	outsider := env.join(t, "elsewhere", "Dee")
	drain(t, a)
	drain(t, b)

	messages := []map[string]any{
		{"type": "imageAdd", "imageId": "i"},
		{"type": "imageUpdate", "imageId": "i", "x": 2},
		{"type": "imageRemove", "imageId": "i"},
		{"type": "textAdd", "textId": "t"},
		{"type": "textUpdate", "textId": "t", "body": "b"},
		{"type": "textRemove", "textId": "t"},
		{"type": "cursor", "x": 3, "y": 4},
		{"type": "laserPointer", "on": true},
	}
	for _, msg := range messages {
		require.NoError(t, send(t, a, msg))
	}

	assert.Empty(t, drain(t, a))
	assert.Empty(t, drain(t, outsider))
	want := []string{"imageAdd", "imageUpdate", "imageRemove", "textAdd", "textUpdate", "textRemove", "cursor", "laserPointer"}
	for _, member := range []*Session{b, c} {
		frames := drain(t, member)
		require.Equal(t, want, frameTypes(frames))
		for _, f := range frames {
			assert.Equal(t, a.ID(), f["senderId"])
		}
	}
}

func TestSession_IdempotentAddAndUpdate(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")

	require.NoError(t, send(t, a, map[string]any{"type": "imageAdd", "imageId": "x", "a": 1, "b": 2}))
	require.NoError(t, send(t, a, map[string]any{"type": "imageUpdate", "imageId": "x", "b": 9}))
	require.NoError(t, send(t, a, map[string]any{"type": "imageAdd", "imageId": "x", "a": 100}))
	require.NoError(t, send(t, a, map[string]any{"type": "requestSync"}))

	frames := drain(t, a)
	require.Equal(t, []string{"fullSync"}, frameTypes(frames))
	images := frames[0]["images"].([]any)
	require.Len(t, images, 1)
	assert.Equal(t, map[string]any{"imageId": "x", "a": float64(1), "b": float64(9)}, images[0])
}

func TestSession_RemoveIsComplete(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")

	require.NoError(t, send(t, a, map[string]any{"type": "imageAdd", "imageId": "x"}))
	require.NoError(t, send(t, a, map[string]any{"type": "imageAdd", "imageId": "y"}))
	require.NoError(t, send(t, a, map[string]any{"type": "imageRemove", "imageId": "x"}))
	require.NoError(t, send(t, a, map[string]any{"type": "requestSync"}))

	frames := drain(t, a)
	require.Len(t, frames, 1)
	assert.Equal(t, []string{"y"}, ids(t, frames[0]["images"], "imageId"))

	late := env.registry.Connect()
	require.NoError(t, send(t, late, map[string]any{"type": "join", "roomId": "r"}))
	joinFrames := drain(t, late)
	require.Equal(t, []string{"welcome", "fullSync", "userList"}, frameTypes(joinFrames))
	assert.Equal(t, []string{"y"}, ids(t, joinFrames[1]["images"], "imageId"))
}

func TestSession_CursorIsNotStored(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")

	require.NoError(t, send(t, a, map[string]any{"type": "cursor", "x": 1}))

	rm, ok := env.registry.Lookup("r")
	require.True(t, ok)
	images, texts := rm.Objects()
	assert.Empty(t, images)
	assert.Empty(t, texts)
}

func TestSession_PushSyncMerge(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")
	b := env.join(t, "r", "Ben")
	drain(t, a)

	// new object: pusher and everyone else get a fullSync
	require.NoError(t, send(t, a, map[string]any{
		"type":   "pushSync",
		"images": []any{map[string]any{"imageId": "y", "src": "y.png"}},
	}))

	pusher := drain(t, a)
	require.Equal(t, []string{"fullSync"}, frameTypes(pusher))
	assert.Equal(t, []string{"y"}, ids(t, pusher[0]["images"], "imageId"))
	assert.Empty(t, pusher[0]["texts"])

	others := drain(t, b)
	require.Equal(t, []string{"fullSync"}, frameTypes(others))
	assert.Equal(t, []string{"y"}, ids(t, others[0]["images"], "imageId"))

	// existing id: state unchanged, only the pusher hears back
	require.NoError(t, send(t, b, map[string]any{
		"type":   "pushSync",
		"images": []any{map[string]any{"imageId": "y", "src": "other.png"}},
		"texts":  []any{map[string]any{"body": "no id"}},
	}))

	again := drain(t, b)
	require.Equal(t, []string{"fullSync"}, frameTypes(again))
	images := again[0]["images"].([]any)
	require.Len(t, images, 1)
	assert.Equal(t, "y.png", images[0].(map[string]any)["src"])
	assert.Empty(t, again[0]["texts"])
	assert.Empty(t, drain(t, a))
}

func TestSession_CloseNotifiesRoom(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")
	b := env.join(t, "r", "Ben")
	drain(t, a)

	b.Close()

	frames := drain(t, a)
	require.Len(t, frames, 1)
	assert.Equal(t, "leave", frames[0]["type"])
	assert.Equal(t, b.ID(), frames[0]["senderId"])
	assert.Equal(t, "Ben", frames[0]["userName"])
	assert.Equal(t, StateClosed, b.State())

	_, open := <-b.Outbound()
	assert.False(t, open)

	rm, _ := env.registry.Lookup("r")
	assert.Equal(t, 1, rm.Summary().Members)
	assert.Equal(t, []string{"r/" + b.ID()}, env.observer.left)
}

func TestSession_DoubleCloseIsNoop(t *testing.T) {
	env := newTestEnv(t, Options{})
	a := env.join(t, "r", "Ana")
	b := env.join(t, "r", "Ben")
	drain(t, a)

	b.Close()
	b.Close()

	assert.Len(t, drain(t, a), 1)
	assert.Equal(t, 1, env.registry.Snapshot().Sessions)
	assert.Len(t, env.observer.left, 1)
}

func TestSession_CloseBeforeJoin(t *testing.T) {
	env := newTestEnv(t, Options{})
	s := env.registry.Connect()

	s.Close()

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, env.registry.Snapshot().Sessions)
	assert.ErrorIs(t, send(t, s, map[string]any{"type": "join", "roomId": "r"}), ErrSessionClosed)
	assert.Equal(t, 0, env.registry.Snapshot().Rooms)
}

func TestSession_JoinLosingRaceWithCloseReportsCreatedRoom(t *testing.T) {
	env := newTestEnv(t, Options{})
	s := env.registry.Connect()
	s.Close()

	// Close already ran, so the state re-check under the room lock fails.
	err := s.handleJoin(Message{Type: TypeJoin, Fields: fields(t, map[string]any{"roomId": "r"})}, nil)

	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, []string{"r"}, env.observer.created)
	assert.Empty(t, env.observer.joined)
	rm, ok := env.registry.Lookup("r")
	require.True(t, ok)
	assert.Equal(t, 0, rm.Summary().Members)
}

func TestSession_RejectSendsErrorFrame(t *testing.T) {
	env := newTestEnv(t, Options{})
	s := env.join(t, "r", "Ana")

	require.NoError(t, s.Reject("slow down"))

	frames := drain(t, s)
	require.Len(t, frames, 1)
	assert.Equal(t, map[string]any{"type": "error", "message": "slow down"}, frames[0])
}
