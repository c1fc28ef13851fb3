package signal

import (
	"encoding/json"

	"github.com/dkeye/voxbridge/internal/app/orch"
	"github.com/dkeye/voxbridge/internal/core"
	"github.com/rs/zerolog/log"
)

type joinPayload struct {
	RoomCode       string `json:"roomCode" validate:"required"`
	Username       string `json:"username" validate:"required"`
	SpeakLanguage  string `json:"speakLanguage" validate:"required"`
	ListenLanguage string `json:"listenLanguage" validate:"required"`
	IsHost         bool   `json:"isHost"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type removePayload struct {
	RoomCode      string `json:"roomCode"`
	ParticipantID string `json:"participantId" validate:"required"`
}

func (ctl *SignalWSController) handleJoin(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p joinPayload
	if err := ctl.decode(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad join payload")
		ctl.sendError(c, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomCode).Msg("join")
	if _, err := ctl.Orch.Join(sid, orch.JoinParams{
		Code:           p.RoomCode,
		Username:       p.Username,
		SpeakLanguage:  p.SpeakLanguage,
		ListenLanguage: p.ListenLanguage,
		IsHost:         p.IsHost,
	}); err != nil {
		ctl.sendError(c, err)
	}
}

// handleLeave leaves the current room; the socket stays open.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p roomPayload
	if len(data) > 0 {
		if err := ctl.decode(data, &p); err != nil {
			ctl.sendError(c, err)
			return
		}
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if err := ctl.Orch.LeaveRoom(sid, p.RoomCode); err != nil {
		ctl.sendError(c, err)
	}
}

func (ctl *SignalWSController) handleEndMeeting(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p roomPayload
	if len(data) > 0 {
		if err := ctl.decode(data, &p); err != nil {
			ctl.sendError(c, err)
			return
		}
	}
	if err := ctl.Orch.EndMeeting(sid, p.RoomCode); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("end meeting rejected")
		ctl.sendError(c, err)
	}
}

func (ctl *SignalWSController) handleRemoveParticipant(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p removePayload
	if err := ctl.decode(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Orch.RemoveParticipant(sid, p.RoomCode, core.SessionID(p.ParticipantID)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("target", p.ParticipantID).Msg("remove rejected")
		ctl.sendError(c, err)
	}
}

func (ctl *SignalWSController) handleRequestParticipants(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p roomPayload
	if len(data) > 0 {
		if err := ctl.decode(data, &p); err != nil {
			ctl.sendError(c, err)
			return
		}
	}
	if err := ctl.Orch.Roster(sid, p.RoomCode); err != nil {
		ctl.sendError(c, err)
	}
}
