package orch

import (
	"github.com/dkeye/voxbridge/internal/app"
	"github.com/dkeye/voxbridge/internal/core"
	"github.com/dkeye/voxbridge/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinParams struct {
	Code           string
	Username       string
	SpeakLanguage  string
	ListenLanguage string
	IsHost         bool
}

func (o *Orchestrator) Join(sid core.SessionID, p JoinParams) (domain.RoomSnapshot, error) {
	name, err := domain.CleanUsername(p.Username)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	if err := app.CheckLanguage(p.SpeakLanguage); err != nil {
		return domain.RoomSnapshot{}, err
	}
	if err := app.CheckLanguage(p.ListenLanguage); err != nil {
		return domain.RoomSnapshot{}, err
	}
	conn, ok := o.Sessions.Get(sid)
	if !ok {
		return domain.RoomSnapshot{}, app.ErrSessionNotFound
	}
	room, err := o.Rooms.Get(p.Code)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}

	prev, bound := o.Sessions.RoomOf(sid)
	res, err := room.Join(sid, conn, app.JoinRequest{
		Username:       name,
		SpeakLanguage:  p.SpeakLanguage,
		ListenLanguage: p.ListenLanguage,
		IsHost:         p.IsHost,
		ClientToken:    o.Sessions.ClientToken(sid),
	})
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	// The previous room is left only once the new one accepted the session.
	if bound && prev != room.Code() {
		if old, err := o.Rooms.Get(string(prev)); err == nil {
			old.Leave(sid)
		}
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(prev)).Msg("left previous room")
	}
	o.Sessions.Attach(sid, room.Code())
	if res.Rejoined {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("previous", string(res.PreviousID)).Msg("rejoined")
	}
	return res.Snapshot, nil
}

// Leave is an explicit or implicit departure. Unknown sessions are ignored.
func (o *Orchestrator) Leave(sid core.SessionID) {
	code, ok := o.Sessions.RoomOf(sid)
	if !ok {
		return
	}
	if room, err := o.Rooms.Get(string(code)); err == nil {
		room.Leave(sid)
	}
	o.Sessions.DetachFrom(sid, code)
}

// LeaveRoom is the explicit leave-room event. A non-empty code must match the bound room.
func (o *Orchestrator) LeaveRoom(sid core.SessionID, code string) error {
	bound, ok := o.Sessions.RoomOf(sid)
	if !ok {
		return app.ErrNotInRoom
	}
	if code != "" && domain.NormalizeCode(code) != bound {
		return app.ErrNotInRoom
	}
	o.Leave(sid)
	return nil
}

func (o *Orchestrator) EndMeeting(sid core.SessionID, code string) error {
	room, err := o.roomFor(sid, code)
	if err != nil {
		return err
	}
	sids, err := room.End(sid)
	if err != nil {
		return err
	}
	for _, s := range sids {
		o.Sessions.DetachFrom(s, room.Code())
	}
	return nil
}

func (o *Orchestrator) RemoveParticipant(sid core.SessionID, code string, target core.SessionID) error {
	room, err := o.roomFor(sid, code)
	if err != nil {
		return err
	}
	if _, err := room.RemoveParticipant(sid, target); err != nil {
		return err
	}
	o.Sessions.DetachFrom(target, room.Code())
	return nil
}

func (o *Orchestrator) Roster(sid core.SessionID, code string) error {
	room, err := o.roomFor(sid, code)
	if err != nil {
		return err
	}
	_, err = room.RequestRoster(sid)
	return err
}
