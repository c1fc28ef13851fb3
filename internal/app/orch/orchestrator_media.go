package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/voxbridge/internal/app"
	"github.com/dkeye/voxbridge/internal/core"
)

// Signal forwards an offer-direction blob to target as user-signaling.
func (o *Orchestrator) Signal(sid, target core.SessionID, payload json.RawMessage) error {
	room, err := o.roomFor(sid, "")
	if err != nil {
		return err
	}
	return room.Relay(sid, target, core.EvUserSignaling, payload)
}

// ReturnSignal answers caller; the caller sees the answering session as callerID.
func (o *Orchestrator) ReturnSignal(sid, caller core.SessionID, payload json.RawMessage) error {
	room, err := o.roomFor(sid, "")
	if err != nil {
		return err
	}
	return room.Relay(sid, caller, core.EvSignalReturned, payload)
}

func (o *Orchestrator) SendMessage(sid core.SessionID, code, text string) error {
	room, err := o.roomFor(sid, code)
	if err != nil {
		return err
	}
	_, err = room.AppendMessage(sid, text)
	return err
}

// SendAudio hands a frame to the relay. A saturated relay drops silently.
func (o *Orchestrator) SendAudio(sid core.SessionID, code string, audio json.RawMessage) error {
	room, err := o.roomFor(sid, code)
	if err != nil {
		return err
	}
	if o.Audio == nil {
		return core.ErrTranslatorDisabled
	}
	if err := o.Audio.Submit(room, sid, audio); err != nil && !errors.Is(err, app.ErrAudioBusy) {
		return err
	}
	return nil
}
