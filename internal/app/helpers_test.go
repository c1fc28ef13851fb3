package app

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Envelope
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnClosed
	}
	if f.full {
		return core.ErrBackpressure
	}
	env, err := core.Decode(fr)
	if err != nil {
		return err
	}
	f.frames = append(f.frames, env)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, e := range f.frames {
		out = append(out, e.Event)
	}
	return out
}

func (f *fakeConn) all(event string) []core.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Envelope
	for _, e := range f.frames {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeConn) last(t *testing.T, event string, v any) {
	t.Helper()
	got := f.all(event)
	require.NotEmpty(t, got, "no %s event", event)
	require.NoError(t, json.Unmarshal(got[len(got)-1].Data, v))
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRoom(clock *testClock, mutate func(*RoomOptions)) *Room {
	opts := RoomOptions{
		MaxHistory:       50,
		MaxMessageLength: 100,
		GracePeriod:      5 * time.Minute,
		HostFailover:     HostKeep,
		Now:              clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	meta := domain.Room{
		Code:               "ABC234",
		Name:               "Standup",
		HostLanguage:       "en",
		SupportedLanguages: []string{"en", "fr", "es"},
	}
	return NewRoom(meta, opts)
}

func joinReq(name, speak, listen string, host bool) JoinRequest {
	return JoinRequest{Username: name, SpeakLanguage: speak, ListenLanguage: listen, IsHost: host}
}
