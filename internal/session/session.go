// Package session implements the client side of the signaling protocol: the
// connection to the server, the peer roster, and the state machine that
// drives one negotiation at a time.
package session

import (
	"encoding/json"

	"github.com/hashicorp/go-multierror"

	"github.com/SitePen/webrtc-blog/internal/protocol"
	"github.com/SitePen/webrtc-blog/internal/rtc"
)

// State is the negotiation state of the client.
type State int

const (
	// StateIdle means no session exists. An incoming offer waiting for an
	// Accept/Reject decision does not leave Idle.
	StateIdle State = iota

	// StateOffering means a local invite is outstanding.
	StateOffering

	// StateConnected means a negotiation completed and the session is live.
	StateConnected

	// StateClosed is transient during teardown and folds back to Idle.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session holds everything tied to one negotiation with one peer. At most
// one Session exists per client; that is the central invariant of this
// package.
type Session struct {
	Peer      protocol.Peer
	transport rtc.Transport
	channel   rtc.DataChannel

	// pendingICE queues candidates that arrived before the remote
	// description was applied. It is drained exactly once, in arrival
	// order, the moment the remote description is set.
	pendingICE []json.RawMessage

	// localICE buffers candidates the transport gathered before the
	// negotiation reached Connected. Flushed in gathering order at that
	// transition; emitICE marks the flush as done.
	localICE []json.RawMessage
	emitICE  bool
}

// closeSession releases the session's transport resources. Close failures
// are collected rather than short-circuiting, so the transport is always
// closed even when the channel close fails.
func closeSession(sess *Session) error {
	var errs *multierror.Error
	if sess.channel != nil {
		errs = multierror.Append(errs, sess.channel.Close())
	}
	errs = multierror.Append(errs, sess.transport.Close())
	sess.pendingICE = nil
	return errs.ErrorOrNil()
}
