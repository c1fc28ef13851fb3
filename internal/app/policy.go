package app

import "github.com/dkeye/voxbridge/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose send buffer overflowed.
type Policy interface {
	OnBackPressure(room *Room, sid core.SessionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room *Room, sid core.SessionID) BackpressureAction {
	return KickMember
}

// HostFailover controls what happens to the host role when the host disconnects.
type HostFailover string

const (
	// HostKeep leaves the role with the disconnected host until it rejoins.
	HostKeep HostFailover = "keep"
	// HostPromote hands the role to the longest-present connected participant.
	HostPromote HostFailover = "promote"
)

// SameLanguage controls audio for listeners whose listen language equals the speaker's.
type SameLanguage string

const (
	SameLanguageSkip      SameLanguage = "skip"
	SameLanguageRaw       SameLanguage = "raw"
	SameLanguageTranslate SameLanguage = "translate"
)
