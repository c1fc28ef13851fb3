package core

import (
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	EvJoinRoom            = "join-room"
	EvLeaveRoom           = "leave-room"
	EvEndMeeting          = "end-meeting"
	EvRemoveParticipant   = "remove-participant"
	EvSendSignal          = "send-signal"
	EvReturnSignal        = "return-signal"
	EvSendMessage         = "send-message"
	EvAudioData           = "audio-data"
	EvRequestParticipants = "request-participants"
	EvPing                = "ping"
)

// Outbound event names.
const (
	EvUserJoined         = "user-joined"
	EvUserLeft           = "user-left"
	EvRoomJoined         = "room-joined"
	EvParticipantsList   = "participants-list"
	EvRoomError          = "room-error"
	EvUserSignaling      = "user-signaling"
	EvSignalReturned     = "signal-returned"
	EvNewMessage         = "new-message"
	EvTranslatedAudio    = "translated-audio"
	EvTranslationError   = "translation-error"
	EvMeetingEnded       = "meeting-ended"
	EvRemovedFromMeeting = "removed-from-meeting"
	EvHostChanged        = "host-changed"
	EvPong               = "pong"
)

// Envelope is the wire shape of every socket message, both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, data any) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return b, nil
}

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

type UserLeft struct {
	UserID string `json:"userId"`
}

type RoomError struct {
	Message string `json:"message"`
}

type SignalOut struct {
	Signal   json.RawMessage `json:"signal"`
	CallerID string          `json:"callerID"`
}

type MeetingEnded struct {
	EndedBy string `json:"endedBy"`
}

type RemovedFromMeeting struct {
	RemovedBy string `json:"removedBy"`
}

type HostChanged struct {
	HostID string `json:"hostId"`
}

type TranslatedAudio struct {
	FromUser       string          `json:"fromUser"`
	FromUserID     string          `json:"fromUserId"`
	SourceLanguage string          `json:"sourceLanguage"`
	TargetLanguage string          `json:"targetLanguage"`
	Audio          json.RawMessage `json:"audio"`
	Translated     bool            `json:"translated"`
}

type TranslationError struct {
	Message        string `json:"message"`
	TargetLanguage string `json:"targetLanguage"`
}
