package signal

import (
	"encoding/json"

	"github.com/dkeye/voxbridge/internal/core"
)

func (ctl *SignalWSController) handlePing(_ core.SessionID, c *WsSignalConn, _ json.RawMessage) {
	ctl.sendEvent(c, core.EvPong, struct{}{})
}
