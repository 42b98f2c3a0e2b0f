// Package rtc wraps the WebRTC transport behind a small negotiation surface.
// The session layer only ever sees the Transport interface; the pion-backed
// implementation lives in peer.go.
package rtc

import "encoding/json"

// Description is a local or remote session description. Type is "offer" or
// "answer"; the SDP body is opaque above this package.
type Description struct {
	Type string
	SDP  string
}

// ConnState is the coarse transport connection lifecycle the session layer
// reacts to.
type ConnState int

const (
	StateNew ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Down reports whether the state means the transport is gone for good.
func (s ConnState) Down() bool {
	return s == StateDisconnected || s == StateFailed || s == StateClosed
}

// DataChannel is one negotiated channel on a transport.
type DataChannel interface {
	Label() string
	Send(data []byte) error
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	Close() error
}

// Transport is the negotiation surface of one peer connection. Candidate
// payloads stay raw JSON end to end; only the implementation interprets
// them.
type Transport interface {
	CreateOffer() (Description, error)
	CreateAnswer() (Description, error)
	SetLocalDescription(desc Description) error
	SetRemoteDescription(desc Description) error
	// RemoteDescriptionSet reports whether a remote description has been
	// applied, which decides whether inbound candidates apply immediately
	// or queue.
	RemoteDescriptionSet() bool
	AddICECandidate(candidate json.RawMessage) error
	CreateDataChannel(label string) (DataChannel, error)
	OnICECandidate(fn func(candidate json.RawMessage))
	OnConnectionStateChange(fn func(state ConnState))
	OnDataChannel(fn func(ch DataChannel))
	Close() error
}
