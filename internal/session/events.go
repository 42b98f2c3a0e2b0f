package session

import "github.com/SitePen/webrtc-blog/internal/protocol"

// Event kinds delivered to listeners.
const (
	// EventPeers fires whenever the known peer set changes.
	EventPeers = "peers"

	// EventOffer fires when another peer invites us; the caller decides
	// between Accept and Reject.
	EventOffer = "offer"

	// EventConnected fires when a negotiation completes.
	EventConnected = "connected"

	// EventRejected fires when the invited peer turned us down.
	EventRejected = "rejected"

	// EventDisconnected fires when an active session ends, locally or
	// remotely.
	EventDisconnected = "disconnected"

	// EventChat fires for every chat line received on the data channel.
	EventChat = "chat"

	// EventReset fires after a server version mismatch forced a full local
	// reset.
	EventReset = "reset"
)

// Event is what listeners receive. Only the fields relevant to the kind are
// populated.
type Event struct {
	Kind  string
	Peer  protocol.Peer
	Peers []protocol.Peer
	Offer *protocol.SessionDescription
	Text  string
}

// Listener receives events. Listeners run on the client's event loop, so
// they must not call back into the client synchronously.
type Listener func(Event)

// emit invokes every listener registered for the event's kind. No ordering
// is promised across listeners.
func (c *Client) emit(ev Event) {
	for _, fn := range c.listeners[ev.Kind] {
		fn(ev)
	}
}

// On registers a listener for one event kind.
func (c *Client) On(kind string, fn Listener) {
	c.do(func() error {
		c.listeners[kind] = append(c.listeners[kind], fn)
		return nil
	})
}
