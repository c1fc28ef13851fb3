package core

import "errors"

// Frame is one encoded outbound event.
type Frame []byte

type SessionID string

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts the per-session messaging transport.
// Owned by the adapter; the adapter must Close() it.
// TrySend never blocks: a full buffer yields ErrBackpressure.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
