package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type ConnectionState string

const (
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
)

// Participant is one roster entry. ID is the session currently bound to it.
type Participant struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	SpeakLanguage  string          `json:"speakLanguage"`
	ListenLanguage string          `json:"listenLanguage"`
	IsHost         bool            `json:"isHost"`
	State          ConnectionState `json:"connectionState"`
	JoinedAt       time.Time       `json:"joinedAt"`
}

// CleanUsername trims and checks a display name.
func CleanUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrUsernameEmpty
	}
	if utf8.RuneCountInString(name) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}

// SameIdentity is the rejoin match: the tuple a client persists and replays.
func (p *Participant) SameIdentity(username, speak, listen string) bool {
	return p.Username == username &&
		strings.EqualFold(p.SpeakLanguage, speak) &&
		strings.EqualFold(p.ListenLanguage, listen)
}
