package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoMediaStream     = errors.New("no media stream")
	ErrSessionActive     = errors.New("session already active")
	ErrMismatchedSession = errors.New("mismatched session")
	ErrNoPendingOffer    = errors.New("no pending offer")
	ErrUnknownPeer       = errors.New("unknown peer")
	ErrNotConnected      = errors.New("not connected to server")
	ErrChannelNotOpen    = errors.New("channel not open")
	ErrClosed            = errors.New("client closed")
)

// Error carries the failing operation and, where relevant, the peer it
// concerned.
type Error struct {
	Op   string
	Peer string
	Err  error
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func newPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}
