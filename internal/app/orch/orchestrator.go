package orch

import (
	"context"

	"github.com/dkeye/voxbridge/internal/app"
	"github.com/dkeye/voxbridge/internal/core"
	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator glues sessions, rooms and the audio relay together.
// Transport adapters talk only to it.
type Orchestrator struct {
	Sessions *app.Sessions
	Rooms    *app.RoomRegistry
	Policy   app.Policy
	Audio    *app.AudioRelay
}

func New(sessions *app.Sessions, rooms *app.RoomRegistry, policy app.Policy, audio *app.AudioRelay) *Orchestrator {
	o := &Orchestrator{Sessions: sessions, Rooms: rooms, Policy: policy, Audio: audio}
	rooms.SetDropHandler(o.HandleDrop)
	return o
}

// Connect registers a fresh socket session.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc, clientToken string) {
	o.Sessions.Bind(sid, conn, cancel, clientToken)
}

// OnDisconnect is the transport-loss path: an implicit leave with nothing sent to the lost session.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) {
	o.Leave(sid)
	o.Sessions.Unbind(sid)
}

// HandleDrop applies the backpressure policy to a session whose buffer overflowed.
func (o *Orchestrator) HandleDrop(room *app.Room, sid core.SessionID, conn core.SignalConnection) {
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(room, sid) {
	case app.KickMember:
		log.Warn().Str("module", "orch").Str("room", string(room.Code())).Str("sid", string(sid)).Msg("slow consumer kicked")
		conn.Close()
		o.Sessions.Cancel(sid)
	case app.MarkSlow, app.DropFrame, app.NoAction:
	}
}

// ForgetRoom detaches any session still pointing at a room the registry dropped.
func (o *Orchestrator) ForgetRoom(code domain.RoomCode) {
	for _, sid := range o.Sessions.InRoom(code) {
		o.Sessions.DetachFrom(sid, code)
	}
}

// Run drives the registry sweeper until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	return o.Rooms.Run(ctx, o.ForgetRoom)
}

// roomFor resolves the room sid is bound to. A non-empty code must match it.
func (o *Orchestrator) roomFor(sid core.SessionID, code string) (*app.Room, error) {
	bound, ok := o.Sessions.RoomOf(sid)
	if !ok {
		return nil, app.ErrNotInRoom
	}
	if code != "" && domain.NormalizeCode(code) != bound {
		return nil, app.ErrNotInRoom
	}
	return o.Rooms.Get(string(bound))
}
