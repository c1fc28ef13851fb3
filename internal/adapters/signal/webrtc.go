package signal

import (
	"encoding/json"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/rs/zerolog/log"
)

// Signaling payloads are opaque SDP/ICE blobs; they are never inspected.
type sendSignalPayload struct {
	UserToSignal string          `json:"userToSignal" validate:"required"`
	Signal       json.RawMessage `json:"signal" validate:"required"`
}

type returnSignalPayload struct {
	CallerID string          `json:"callerID" validate:"required"`
	Signal   json.RawMessage `json:"signal" validate:"required"`
}

func (ctl *SignalWSController) handleSendSignal(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p sendSignalPayload
	if err := ctl.decode(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Orch.Signal(sid, core.SessionID(p.UserToSignal), p.Signal); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("to", p.UserToSignal).Msg("send-signal rejected")
		ctl.sendError(c, err)
	}
}

func (ctl *SignalWSController) handleReturnSignal(sid core.SessionID, c *WsSignalConn, data json.RawMessage) {
	var p returnSignalPayload
	if err := ctl.decode(data, &p); err != nil {
		ctl.sendError(c, err)
		return
	}
	if err := ctl.Orch.ReturnSignal(sid, core.SessionID(p.CallerID), p.Signal); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("to", p.CallerID).Msg("return-signal rejected")
		ctl.sendError(c, err)
	}
}
