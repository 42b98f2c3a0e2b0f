// Package protocol defines the wire messages exchanged between clients and
// the signaling server over the websocket connection.
package protocol

import "encoding/json"

// Message type constants.
const (
	// Server to client.
	TypeReady = "ready"
	TypePeer  = "peer"

	// Client to server.
	TypeIdentify = "identify"

	// Client to client, routed by the server.
	TypeOffer        = "offer"
	TypeAccept       = "accept"
	TypeReject       = "reject"
	TypeICECandidate = "icecandidate"
)

// Message is the envelope for every websocket frame. A "ready" frame carries
// its fields at the top level; every other type nests its payload under Data.
// The server forwards routed payloads without decoding them, so Data stays a
// raw message until someone actually needs it.
type Message struct {
	Type    string          `json:"type"`
	Version string          `json:"version,omitempty"`
	ID      string          `json:"id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Peer is the payload of "identify" and "peer" frames. Remove is only set on
// "peer" frames announcing that a party left.
type Peer struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Remove bool   `json:"remove,omitempty"`
}

// SessionDescription is the payload of "offer" and "accept" frames. Type and
// SDP are opaque to the server; Source and Target drive routing.
type SessionDescription struct {
	Type   string `json:"type"`
	SDP    string `json:"sdp"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Reject is the payload of a "reject" frame.
type Reject struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ICECandidate is the payload of an "icecandidate" frame. ID names the
// sending peer. Candidate is opaque to everything except the RTC transport.
type ICECandidate struct {
	ID        string          `json:"id"`
	Target    string          `json:"target"`
	Candidate json.RawMessage `json:"candidate"`
}

// Routing is the slice of a routed payload the server cares about: which
// peer sent it and which peer it is addressed to. Offer, accept and reject
// payloads name their sender in "source"; icecandidate payloads in "id".
type Routing struct {
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
	Target string `json:"target"`
}

// From returns the sending peer id regardless of which field carried it.
func (r Routing) From() string {
	if r.Source != "" {
		return r.Source
	}
	return r.ID
}

// NewReady builds the frame the server sends once per connection.
func NewReady(version, id string) *Message {
	return &Message{Type: TypeReady, Version: version, ID: id}
}

// NewIdentify builds the frame a client sends to register its peer record.
func NewIdentify(id, name string) *Message {
	return envelope(TypeIdentify, Peer{ID: id, Name: name})
}

// NewPeer builds a peer announcement.
func NewPeer(id, name string) *Message {
	return envelope(TypePeer, Peer{ID: id, Name: name})
}

// NewPeerRemoved builds a peer removal announcement.
func NewPeerRemoved(id, name string) *Message {
	return envelope(TypePeer, Peer{ID: id, Name: name, Remove: true})
}

// NewOffer builds an offer frame addressed to target.
func NewOffer(desc SessionDescription) *Message {
	return envelope(TypeOffer, desc)
}

// NewAccept builds an accept frame addressed to target.
func NewAccept(desc SessionDescription) *Message {
	return envelope(TypeAccept, desc)
}

// NewReject builds a reject frame addressed to target.
func NewReject(source, target string) *Message {
	return envelope(TypeReject, Reject{Source: source, Target: target})
}

// NewICECandidate builds an icecandidate frame addressed to target.
func NewICECandidate(id, target string, candidate json.RawMessage) *Message {
	return envelope(TypeICECandidate, ICECandidate{ID: id, Target: target, Candidate: candidate})
}

func envelope(t string, payload any) *Message {
	// The payload structs above cannot fail to marshal.
	data, _ := json.Marshal(payload)
	return &Message{Type: t, Data: data}
}

// DecodeData unmarshals the frame payload into v.
func (m *Message) DecodeData(v any) error {
	return json.Unmarshal(m.Data, v)
}

// DecodeRouting extracts the routing fields from the payload without
// touching the rest of it.
func (m *Message) DecodeRouting() (Routing, error) {
	var r Routing
	err := json.Unmarshal(m.Data, &r)
	return r, err
}
