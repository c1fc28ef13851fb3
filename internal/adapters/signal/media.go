package signal

import (
	"encoding/json"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/rs/zerolog/log"
)

type messagePayload struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

type audioPayload struct {
	RoomCode  string          `json:"roomCode"`
	AudioData json.RawMessage `json:"audioData" validate:"required"`
}

func (ctl *SignalWSController) handleSendMessage(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p messagePayload
	if err := ctl.decode(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Orch.SendMessage(sid, p.RoomCode, p.Message); err != nil {
		ctl.sendError(c, err)
	}
}

// handleAudioData returns immediately; translation runs off the read loop.
func (ctl *SignalWSController) handleAudioData(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p audioPayload
	if err := ctl.decode(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Orch.SendAudio(sid, p.RoomCode, p.AudioData); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("audio rejected")
		ctl.sendError(c, err)
	}
}
