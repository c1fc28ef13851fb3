package app

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomEnded           = errors.New("meeting has ended")
	ErrNotHost             = errors.New("only the host can do that")
	ErrCannotRemoveHost    = errors.New("the host cannot be removed")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrPeerNotFound        = errors.New("peer is not connected to this room")
	ErrNotInRoom           = errors.New("not a member of this room")
	ErrSessionNotFound     = errors.New("session not found")
	ErrEmptyMessage        = errors.New("message is empty")
	ErrMessageTooLong      = errors.New("message too long")
	ErrInvalidLanguage     = errors.New("invalid language tag")
	ErrUnsupportedLanguage = errors.New("language not supported by this room")
	ErrMeetingNameTooLong  = errors.New("meeting name too long")
	ErrCodeSpaceExhausted  = errors.New("could not allocate a room code")
	ErrRegistryFull        = errors.New("room capacity reached")
)

// IsUnavailable reports errors that mean "try again later" rather than "bad request".
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrCodeSpaceExhausted) || errors.Is(err, ErrRegistryFull)
}
