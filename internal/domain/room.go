// Package domain contains entities without transport or lifecycle logic.
package domain

import (
	"strings"
	"time"
)

type RoomCode string

// NormalizeCode returns the canonical (upper-case, trimmed) form of a room code.
func NormalizeCode(raw string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(raw)))
}

type RoomState string

const (
	RoomActive RoomState = "active"
	RoomEnded  RoomState = "ended"
)

type Room struct {
	Code               RoomCode  `json:"roomCode"`
	Name               string    `json:"meetingName"`
	HostLanguage       string    `json:"hostLanguage"`
	SupportedLanguages []string  `json:"supportedLanguages"`
	CreatedAt          time.Time `json:"-"`
}

// Supports reports whether lang is one of the room's listening languages.
func (r *Room) Supports(lang string) bool {
	for _, l := range r.SupportedLanguages {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}

// RoomSnapshot is the full view handed to a member on join and on roster refresh.
type RoomSnapshot struct {
	Code               RoomCode      `json:"roomCode"`
	Name               string        `json:"meetingName"`
	HostLanguage       string        `json:"hostLanguage"`
	SupportedLanguages []string      `json:"supportedLanguages"`
	State              RoomState     `json:"state"`
	HostID             string        `json:"hostId,omitempty"`
	Participants       []Participant `json:"participants"`
	Messages           []ChatMessage `json:"messages"`
}

// ConnectedCount counts participants currently connected.
func (s RoomSnapshot) ConnectedCount() int {
	n := 0
	for _, p := range s.Participants {
		if p.State == Connected {
			n++
		}
	}
	return n
}

// RoomSummary is what an unauthenticated lookup may see.
type RoomSummary struct {
	Exists             bool     `json:"exists"`
	Name               string   `json:"meetingName,omitempty"`
	ParticipantsCount  *int     `json:"participantsCount,omitempty"`
	SupportedLanguages []string `json:"supportedLanguages,omitempty"`
}
