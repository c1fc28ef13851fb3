package app

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom_HostAndGuestJoin(t *testing.T) {
	clock := newClock()
	r := newTestRoom(clock, nil)
	host, guest := &fakeConn{}, &fakeConn{}

	res, err := r.Join("h", host, joinReq("Alice", "en", "en", true))
	require.NoError(t, err)
	assert.False(t, res.Rejoined)
	assert.Equal(t, "h", res.Snapshot.HostID)
	require.Len(t, res.Snapshot.Participants, 1)
	assert.True(t, res.Snapshot.Participants[0].IsHost)

	clock.Advance(time.Second)
	res, err = r.Join("g", guest, joinReq("Bob", "fr", "fr", false))
	require.NoError(t, err)
	require.Len(t, res.Snapshot.Participants, 2)
	assert.Equal(t, "h", res.Snapshot.Participants[0].ID)
	assert.Equal(t, "g", res.Snapshot.Participants[1].ID)
	assert.False(t, res.Snapshot.Participants[1].IsHost)

	assert.Equal(t, []string{core.EvRoomJoined, core.EvUserJoined}, host.events())
	assert.Equal(t, []string{core.EvRoomJoined}, guest.events())

	var joined domain.Participant
	host.last(t, core.EvUserJoined, &joined)
	assert.Equal(t, "Bob", joined.Username)
	assert.Equal(t, domain.Connected, joined.State)
}

func TestRoom_ConcurrentJoinsAreSerialized(t *testing.T) {
	const n = 32
	r := newTestRoom(newClock(), nil)
	conns := make([]*fakeConn, n)
	snaps := make([]domain.RoomSnapshot, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		conns[i] = &fakeConn{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			sid := core.SessionID(fmt.Sprintf("s%02d", i))
			res, err := r.Join(sid, conns[i], joinReq(fmt.Sprintf("user%02d", i), "en", "en", false))
			if assert.NoError(t, err) {
				snaps[i] = res.Snapshot
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, n, r.ConnectedCount())
	final := r.Snapshot()
	require.Len(t, final.Participants, n)

	// Every joiner saw exactly the members admitted before it, in admission order.
	sort.Slice(snaps, func(i, j int) bool { return len(snaps[i].Participants) < len(snaps[j].Participants) })
	for k, snap := range snaps {
		require.Len(t, snap.Participants, k+1)
		for i, p := range snap.Participants {
			assert.Equal(t, final.Participants[i].ID, p.ID)
		}
	}

	// Each member hears user-joined once for every later arrival.
	for i, conn := range conns {
		joined := len(conn.all(core.EvRoomJoined))
		require.Equal(t, 1, joined)
		pos := -1
		for k, p := range final.Participants {
			if p.ID == fmt.Sprintf("s%02d", i) {
				pos = k
			}
		}
		require.NotEqual(t, -1, pos)
		assert.Len(t, conn.all(core.EvUserJoined), n-1-pos)
	}
}

func TestRoom_SecondHostClaimIgnored(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	_, err := r.Join("h", &fakeConn{}, joinReq("Alice", "en", "en", true))
	require.NoError(t, err)
	res, err := r.Join("x", &fakeConn{}, joinReq("Mallory", "en", "en", true))
	require.NoError(t, err)
	assert.Equal(t, "h", res.Snapshot.HostID)
	assert.False(t, res.Snapshot.Participants[1].IsHost)
}

func TestRoom_JoinValidation(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	_, err := r.Join("a", &fakeConn{}, joinReq("Ann", "en", "de", false))
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	_, err = r.Join("a", &fakeConn{}, joinReq("Ann", "en", "FR", false))
	assert.NoError(t, err, "listen language match is case-insensitive")
}

func TestRoom_JoinIsIdempotent(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	host, guest := &fakeConn{}, &fakeConn{}
	_, err := r.Join("h", host, joinReq("Alice", "en", "en", true))
	require.NoError(t, err)
	_, err = r.Join("g", guest, joinReq("Bob", "fr", "fr", false))
	require.NoError(t, err)

	res, err := r.Join("g", guest, joinReq("Bob", "fr", "fr", false))
	require.NoError(t, err)
	assert.True(t, res.Repeat)
	assert.Len(t, res.Snapshot.Participants, 2)
	assert.Len(t, host.all(core.EvUserJoined), 1)
	assert.Len(t, guest.all(core.EvRoomJoined), 2)
}

func TestRoom_RejoinKeepsRosterSize(t *testing.T) {
	clock := newClock()
	r := newTestRoom(clock, nil)
	host, guest := &fakeConn{}, &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g1", guest, joinReq("Bob", "fr", "fr", false))

	require.True(t, r.Leave("g1"))
	var left core.UserLeft
	host.last(t, core.EvUserLeft, &left)
	assert.Equal(t, "g1", left.UserID)

	snap := r.Snapshot()
	require.Len(t, snap.Participants, 2)
	assert.Equal(t, domain.Disconnected, snap.Participants[1].State)

	clock.Advance(30 * time.Second)
	guest2 := &fakeConn{}
	res, err := r.Join("g2", guest2, joinReq("Bob", "fr", "fr", false))
	require.NoError(t, err)
	assert.True(t, res.Rejoined)
	assert.Equal(t, core.SessionID("g1"), res.PreviousID)
	require.Len(t, res.Snapshot.Participants, 2)
	assert.Equal(t, "g2", res.Snapshot.Participants[1].ID)
	assert.Equal(t, domain.Connected, res.Snapshot.Participants[1].State)
}

func TestRoom_HostRejoinKeepsRole(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	_, _ = r.Join("h1", &fakeConn{}, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", &fakeConn{}, joinReq("Bob", "fr", "fr", false))
	r.Leave("h1")

	res, err := r.Join("h2", &fakeConn{}, joinReq("Alice", "en", "en", false))
	require.NoError(t, err)
	assert.Equal(t, "h2", res.Snapshot.HostID)
	assert.True(t, res.Snapshot.Participants[0].IsHost)
}

func TestRoom_RejoinOutsideGraceCreatesNewEntry(t *testing.T) {
	clock := newClock()
	r := newTestRoom(clock, nil)
	_, _ = r.Join("a1", &fakeConn{}, joinReq("Ann", "es", "es", false))
	r.Leave("a1")
	clock.Advance(6 * time.Minute)

	res, err := r.Join("a2", &fakeConn{}, joinReq("Ann", "es", "es", false))
	require.NoError(t, err)
	assert.False(t, res.Rejoined)
	assert.Len(t, res.Snapshot.Participants, 2)
}

func TestRoom_RejoinNewestMatchWins(t *testing.T) {
	clock := newClock()
	r := newTestRoom(clock, nil)
	_, _ = r.Join("old", &fakeConn{}, joinReq("Ann", "es", "es", false))
	clock.Advance(time.Second)
	_, _ = r.Join("new", &fakeConn{}, joinReq("Ann", "es", "es", false))
	r.Leave("old")
	r.Leave("new")

	res, err := r.Join("again", &fakeConn{}, joinReq("Ann", "es", "es", false))
	require.NoError(t, err)
	require.True(t, res.Rejoined)
	assert.Equal(t, core.SessionID("new"), res.PreviousID)
	assert.Len(t, res.Snapshot.Participants, 2)
}

func TestRoom_RejoinRequiresClientToken(t *testing.T) {
	r := newTestRoom(newClock(), func(o *RoomOptions) { o.RequireClientToken = true })
	req := joinReq("Ann", "es", "es", false)
	req.ClientToken = "browser-1"
	_, _ = r.Join("a1", &fakeConn{}, req)
	r.Leave("a1")

	other := joinReq("Ann", "es", "es", false)
	other.ClientToken = "browser-2"
	res, err := r.Join("a2", &fakeConn{}, other)
	require.NoError(t, err)
	assert.False(t, res.Rejoined)

	res, err = r.Join("a3", &fakeConn{}, req)
	require.NoError(t, err)
	assert.True(t, res.Rejoined)
	assert.Equal(t, core.SessionID("a1"), res.PreviousID)
}

func TestRoom_SameSessionRejoinsUnderNewName(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	_, _ = r.Join("a", &fakeConn{}, joinReq("Ann", "es", "es", false))
	r.Leave("a")
	res, err := r.Join("a", &fakeConn{}, joinReq("Annie", "es", "es", false))
	require.NoError(t, err)
	require.Len(t, res.Snapshot.Participants, 1)
	assert.Equal(t, "Annie", res.Snapshot.Participants[0].Username)
}

func TestRoom_LeaveIsIdempotent(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	host := &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", &fakeConn{}, joinReq("Bob", "fr", "fr", false))

	assert.True(t, r.Leave("g"))
	assert.False(t, r.Leave("g"))
	assert.False(t, r.Leave("nobody"))
	assert.Len(t, host.all(core.EvUserLeft), 1)
}

func TestRoom_NonHostCannotModerate(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	host, guest, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", guest, joinReq("Bob", "fr", "fr", false))
	_, _ = r.Join("o", other, joinReq("Cara", "es", "es", false))
	before := r.Snapshot()
	host.reset()
	other.reset()

	_, err := r.RemoveParticipant("g", "o")
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = r.End("g")
	assert.ErrorIs(t, err, ErrNotHost)

	assert.Equal(t, before, r.Snapshot())
	assert.Empty(t, host.events())
	assert.Empty(t, other.events())
	assert.Equal(t, domain.RoomActive, r.State())
}

func TestRoom_RemoveParticipant(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	host, guest, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", guest, joinReq("Bob", "fr", "fr", false))
	_, _ = r.Join("o", other, joinReq("Cara", "es", "es", false))

	tests := []struct {
		name   string
		target core.SessionID
		err    error
	}{
		{"unknown target", "zzz", ErrParticipantNotFound},
		{"host target", "h", ErrCannotRemoveHost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.RemoveParticipant("h", tt.target)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	removed, err := r.RemoveParticipant("h", "g")
	require.NoError(t, err)
	assert.Equal(t, "Bob", removed.Username)

	var rm core.RemovedFromMeeting
	guest.last(t, core.EvRemovedFromMeeting, &rm)
	assert.Equal(t, "Alice", rm.RemovedBy)
	assert.Empty(t, guest.all(core.EvUserLeft))

	var left core.UserLeft
	host.last(t, core.EvUserLeft, &left)
	assert.Equal(t, "g", left.UserID)
	other.last(t, core.EvUserLeft, &left)
	assert.Equal(t, "g", left.UserID)

	snap := r.Snapshot()
	assert.Len(t, snap.Participants, 2)
}

func TestRoom_EndMeeting(t *testing.T) {
	clock := newClock()
	r := newTestRoom(clock, nil)
	host, guest := &fakeConn{}, &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", guest, joinReq("Bob", "fr", "fr", false))

	sids, err := r.End("h")
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.SessionID{"h", "g"}, sids)

	for _, c := range []*fakeConn{host, guest} {
		var ended core.MeetingEnded
		c.last(t, core.EvMeetingEnded, &ended)
		assert.Equal(t, "Alice", ended.EndedBy)
	}
	assert.Equal(t, domain.RoomEnded, r.State())

	_, err = r.Join("late", &fakeConn{}, joinReq("Dan", "en", "en", false))
	assert.ErrorIs(t, err, ErrRoomEnded)
	assert.EqualError(t, err, "meeting has ended")
	assert.False(t, r.Summary().Exists)

	_, err = r.End("h")
	assert.ErrorIs(t, err, ErrRoomEnded)
}

func TestRoom_Chat(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	host, guest := &fakeConn{}, &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", guest, joinReq("Bob", "fr", "fr", false))

	tests := []struct {
		name string
		sid  core.SessionID
		text string
		err  error
	}{
		{"empty", "g", "   ", ErrEmptyMessage},
		{"too long", "g", strings.Repeat("x", 101), ErrMessageTooLong},
		{"outsider", "zzz", "hi", ErrNotInRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.AppendMessage(tt.sid, tt.text)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	msg, err := r.AppendMessage("g", "  bonjour  ")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", msg.Text)
	assert.Equal(t, domain.MessageUser, msg.Type)

	for _, c := range []*fakeConn{host, guest} {
		var got domain.ChatMessage
		c.last(t, core.EvNewMessage, &got)
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "Bob", got.SenderName)
	}
	assert.Len(t, r.Snapshot().Messages, 1)
}

func TestRoom_HistoryIsBounded(t *testing.T) {
	r := newTestRoom(newClock(), func(o *RoomOptions) { o.MaxHistory = 3 })
	_, _ = r.Join("h", &fakeConn{}, joinReq("Alice", "en", "en", true))
	for i := 0; i < 5; i++ {
		_, err := r.AppendMessage("h", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	msgs := r.Snapshot().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "m2", msgs[0].Text)
	assert.Equal(t, "m4", msgs[2].Text)
}

func TestRoom_SystemMessages(t *testing.T) {
	r := newTestRoom(newClock(), func(o *RoomOptions) { o.SystemMessages = true })
	host := &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", &fakeConn{}, joinReq("Bob", "fr", "fr", false))
	r.Leave("g")

	msgs := r.Snapshot().Messages
	require.Len(t, msgs, 3)
	for _, m := range msgs {
		assert.Equal(t, domain.MessageSystem, m.Type)
		assert.Empty(t, m.SenderID)
	}
	assert.Contains(t, msgs[1].Text, "Bob")
}

func TestRoom_RosterIsStable(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	host := &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", &fakeConn{}, joinReq("Bob", "fr", "fr", false))
	_, _ = r.AppendMessage("g", "hello")

	_, err := r.RequestRoster("h")
	require.NoError(t, err)
	_, err = r.RequestRoster("h")
	require.NoError(t, err)

	lists := host.all(core.EvParticipantsList)
	require.Len(t, lists, 2)
	assert.JSONEq(t, string(lists[0].Data), string(lists[1].Data))
	assert.Equal(t, string(lists[0].Data), string(lists[1].Data))

	_, err = r.RequestRoster("zzz")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestRoom_RelayPreservesOrder(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	a, b := &fakeConn{}, &fakeConn{}
	_, _ = r.Join("a", a, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("b", b, joinReq("Bob", "fr", "fr", false))
	b.reset()

	for i := 0; i < 50; i++ {
		payload := json.RawMessage(fmt.Sprintf(`{"seq":%d}`, i))
		require.NoError(t, r.Relay("a", "b", core.EvUserSignaling, payload))
	}
	got := b.all(core.EvUserSignaling)
	require.Len(t, got, 50)
	for i, env := range got {
		var out struct {
			Signal struct {
				Seq int `json:"seq"`
			} `json:"signal"`
			CallerID string `json:"callerID"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &out))
		assert.Equal(t, i, out.Signal.Seq)
		assert.Equal(t, "a", out.CallerID)
	}
}

func TestRoom_RelayValidation(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	_, _ = r.Join("a", &fakeConn{}, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("b", &fakeConn{}, joinReq("Bob", "fr", "fr", false))
	r.Leave("b")

	assert.ErrorIs(t, r.Relay("a", "b", core.EvUserSignaling, json.RawMessage(`{}`)), ErrPeerNotFound)
	assert.ErrorIs(t, r.Relay("a", "zzz", core.EvUserSignaling, json.RawMessage(`{}`)), ErrPeerNotFound)
	assert.ErrorIs(t, r.Relay("zzz", "a", core.EvUserSignaling, json.RawMessage(`{}`)), ErrNotInRoom)
}

func TestRoom_HostPromotion(t *testing.T) {
	clock := newClock()
	r := newTestRoom(clock, func(o *RoomOptions) { o.HostFailover = HostPromote })
	host, g1, g2 := &fakeConn{}, &fakeConn{}, &fakeConn{}
	_, _ = r.Join("h", host, joinReq("Alice", "en", "en", true))
	clock.Advance(time.Second)
	_, _ = r.Join("g1", g1, joinReq("Bob", "fr", "fr", false))
	clock.Advance(time.Second)
	_, _ = r.Join("g2", g2, joinReq("Cara", "es", "es", false))

	r.Leave("h")
	var changed core.HostChanged
	g2.last(t, core.EvHostChanged, &changed)
	assert.Equal(t, "g1", changed.HostID)

	snap := r.Snapshot()
	assert.Equal(t, "g1", snap.HostID)
	assert.False(t, snap.Participants[0].IsHost)
	assert.True(t, snap.Participants[1].IsHost)

	_, err := r.RemoveParticipant("g1", "g2")
	assert.NoError(t, err)
}

func TestRoom_HostKeptWhenDisconnected(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	_, _ = r.Join("h", &fakeConn{}, joinReq("Alice", "en", "en", true))
	g := &fakeConn{}
	_, _ = r.Join("g", g, joinReq("Bob", "fr", "fr", false))
	r.Leave("h")

	assert.Equal(t, "h", r.Snapshot().HostID)
	assert.Empty(t, g.all(core.EvHostChanged))
	_, err := r.End("g")
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestRoom_BackpressureReportsDroppedSession(t *testing.T) {
	var dropped []core.SessionID
	r := newTestRoom(newClock(), func(o *RoomOptions) {
		o.OnDrop = func(_ *Room, sid core.SessionID, _ core.SignalConnection) {
			dropped = append(dropped, sid)
		}
	})
	slow := &fakeConn{}
	_, _ = r.Join("h", &fakeConn{}, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("s", slow, joinReq("Bob", "fr", "fr", false))
	slow.full = true

	_, err := r.AppendMessage("h", "hi")
	require.NoError(t, err)
	assert.Equal(t, []core.SessionID{"s"}, dropped)
}

func TestRoom_AudioPlan(t *testing.T) {
	r := newTestRoom(newClock(), nil)
	_, _ = r.Join("h", &fakeConn{}, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("f", &fakeConn{}, joinReq("Bob", "fr", "fr", false))
	_, _ = r.Join("s", &fakeConn{}, joinReq("Cara", "es", "es", false))
	_, _ = r.Join("x", &fakeConn{}, joinReq("Dan", "en", "fr", false))
	r.Leave("s")

	plan, err := r.AudioPlan("h")
	require.NoError(t, err)
	assert.Equal(t, "Alice", plan.SpeakerName)
	assert.Equal(t, "en", plan.SourceLanguage)
	assert.Equal(t, []Listener{{SID: "f", Language: "fr"}, {SID: "x", Language: "fr"}}, plan.Listeners)

	_, err = r.AudioPlan("s")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestRoom_PurgeAndExpiry(t *testing.T) {
	clock := newClock()
	r := newTestRoom(clock, nil)
	_, _ = r.Join("h", &fakeConn{}, joinReq("Alice", "en", "en", true))
	_, _ = r.Join("g", &fakeConn{}, joinReq("Bob", "fr", "fr", false))
	r.Leave("g")

	assert.Equal(t, 0, r.PurgeDisconnected(clock.Now().Add(time.Minute)))
	assert.Equal(t, 1, r.PurgeDisconnected(clock.Now().Add(6*time.Minute)))
	assert.Len(t, r.Snapshot().Participants, 1)

	assert.False(t, r.Expired(clock.Now().Add(time.Hour), 10*time.Minute, time.Minute))
	r.Leave("h")
	assert.False(t, r.Expired(clock.Now().Add(5*time.Minute), 10*time.Minute, time.Minute))
	assert.True(t, r.Expired(clock.Now().Add(10*time.Minute), 10*time.Minute, time.Minute))
}
