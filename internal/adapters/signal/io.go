package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/voxbridge/internal/core"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBadPayload = errors.New("invalid payload")

type handlerFunc func(ctl *SignalWSController, sid core.SessionID, c *WsSignalConn, data json.RawMessage)

var routes = map[string]handlerFunc{
	core.EvJoinRoom:            (*SignalWSController).handleJoin,
	core.EvLeaveRoom:           (*SignalWSController).handleLeave,
	core.EvEndMeeting:          (*SignalWSController).handleEndMeeting,
	core.EvRemoveParticipant:   (*SignalWSController).handleRemoveParticipant,
	core.EvRequestParticipants: (*SignalWSController).handleRequestParticipants,
	core.EvSendSignal:          (*SignalWSController).handleSendSignal,
	core.EvReturnSignal:        (*SignalWSController).handleReturnSignal,
	core.EvSendMessage:         (*SignalWSController).handleSendMessage,
	core.EvAudioData:           (*SignalWSController).handleAudioData,
	core.EvPing:                (*SignalWSController).handlePing,
}

func (ctl *SignalWSController) writePump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(ctl.opts.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, clientToken string, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(sid)
		cancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
			ctl.dispatch(sid, clientToken, c, data)
		}
	}
}

func (ctl *SignalWSController) dispatch(sid core.SessionID, clientToken string, c *WsSignalConn, data []byte) {
	env, err := core.Decode(data)
	if err != nil || env.Event == "" {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad envelope")
		ctl.sendError(c, fmt.Errorf("%w: malformed message", ErrBadPayload))
		return
	}
	h, ok := routes[env.Event]
	if !ok {
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown event")
		ctl.sendError(c, fmt.Errorf("unknown event %q", env.Event))
		return
	}
	if env.Event == core.EvJoinRoom {
		key := clientToken
		if key == "" {
			key = string(sid)
		}
		if !ctl.limiter.Allow(key) {
			log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("join rate limited")
			ctl.sendError(c, ErrTooManyJoins)
			return
		}
	}
	h(ctl, sid, c, env.Data)
}

// decode unmarshals data into v and runs struct validation.
func (ctl *SignalWSController) decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrBadPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if err := ctl.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrBadPayload, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func (ctl *SignalWSController) sendEvent(c *WsSignalConn, event string, v any) {
	frame, err := core.Encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendEvent encode")
		return
	}
	_ = c.TrySend(frame)
}

// sendError reports err to this session only.
func (ctl *SignalWSController) sendError(c *WsSignalConn, err error) {
	log.Debug().Err(err).Str("module", "signal").Msg("room-error")
	ctl.sendEvent(c, core.EvRoomError, core.RoomError{Message: err.Error()})
}
