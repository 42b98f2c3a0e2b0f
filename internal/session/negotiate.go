package session

import (
	"encoding/json"

	"github.com/SitePen/webrtc-blog/internal/chat"
	"github.com/SitePen/webrtc-blog/internal/protocol"
	"github.com/SitePen/webrtc-blog/internal/rtc"
)

// Invite starts a negotiation with peerID: create the transport and chat
// channel, produce an offer, apply it locally and send it. The client moves
// to Offering until the peer accepts or rejects.
func (c *Client) Invite(peerID string) error {
	return c.do(func() error { return c.invite(peerID) })
}

func (c *Client) invite(peerID string) error {
	if !c.mediaOpen {
		return newError("invite", ErrNoMediaStream)
	}
	if c.session != nil {
		return newError("invite", ErrSessionActive)
	}
	if c.link == nil {
		return newError("invite", ErrNotConnected)
	}
	peer, ok := c.peers[peerID]
	if !ok {
		return newPeerError("invite", peerID, ErrUnknownPeer)
	}

	transport, err := c.newTransport()
	if err != nil {
		return newPeerError("invite", peerID, err)
	}
	sess := &Session{Peer: peer, transport: transport}

	ch, err := transport.CreateDataChannel("chat")
	if err != nil {
		transport.Close()
		return newPeerError("invite", peerID, err)
	}
	c.attachChannel(sess, ch)
	c.watchTransport(sess)
	c.captureICE(sess)

	offer, err := transport.CreateOffer()
	if err != nil {
		transport.Close()
		return newPeerError("invite", peerID, err)
	}
	if err := transport.SetLocalDescription(offer); err != nil {
		transport.Close()
		return newPeerError("invite", peerID, err)
	}

	c.session = sess
	c.state = StateOffering
	c.link.Send(protocol.NewOffer(protocol.SessionDescription{
		Type:   offer.Type,
		SDP:    offer.SDP,
		Source: c.id,
		Target: peerID,
	}))
	c.log.Info("invited peer", "peer", peerID)
	return nil
}

// Accept answers the pending incoming offer: apply it as the remote
// description, drain any queued candidates, produce and send the answer.
// The session is live as soon as the accept frame is on its way.
func (c *Client) Accept() error {
	return c.do(c.accept)
}

func (c *Client) accept() error {
	if c.pendingOffer == nil {
		return newError("accept", ErrNoPendingOffer)
	}
	if c.session != nil {
		return newError("accept", ErrSessionActive)
	}
	if !c.mediaOpen {
		return newError("accept", ErrNoMediaStream)
	}
	if c.link == nil {
		return newError("accept", ErrNotConnected)
	}

	offer := c.pendingOffer
	c.pendingOffer = nil

	peer, ok := c.peers[offer.Source]
	if !ok {
		// The roster may lag behind a fast inviter; the source id is
		// enough to negotiate.
		peer = protocol.Peer{ID: offer.Source}
	}

	transport, err := c.newTransport()
	if err != nil {
		return newPeerError("accept", peer.ID, err)
	}
	sess := &Session{Peer: peer, transport: transport}
	c.watchTransport(sess)
	c.captureICE(sess)

	if err := transport.SetRemoteDescription(rtc.Description{Type: offer.Type, SDP: offer.SDP}); err != nil {
		transport.Close()
		return newPeerError("accept", peer.ID, err)
	}
	c.drainPendingICE(sess)

	answer, err := transport.CreateAnswer()
	if err != nil {
		transport.Close()
		return newPeerError("accept", peer.ID, err)
	}
	if err := transport.SetLocalDescription(answer); err != nil {
		transport.Close()
		return newPeerError("accept", peer.ID, err)
	}

	c.session = sess
	c.state = StateConnected
	c.link.Send(protocol.NewAccept(protocol.SessionDescription{
		Type:   answer.Type,
		SDP:    answer.SDP,
		Source: c.id,
		Target: peer.ID,
	}))
	c.beginICE(sess)
	c.log.Info("accepted offer", "peer", peer.ID)
	c.emit(Event{Kind: EventConnected, Peer: peer})
	return nil
}

// Reject declines the pending incoming offer.
func (c *Client) Reject() error {
	return c.do(c.rejectOffer)
}

func (c *Client) rejectOffer() error {
	if c.pendingOffer == nil {
		return newError("reject", ErrNoPendingOffer)
	}
	if c.link == nil {
		return newError("reject", ErrNotConnected)
	}
	offer := c.pendingOffer
	c.pendingOffer = nil
	c.link.Send(protocol.NewReject(c.id, offer.Source))
	c.log.Info("rejected offer", "peer", offer.Source)
	return nil
}

// Disconnect ends the active session, telling the peer first so both sides
// converge. With no session it just clears any pending offer.
func (c *Client) Disconnect() error {
	return c.do(func() error {
		c.pendingOffer = nil
		if c.session == nil {
			return nil
		}
		c.sendBye()
		c.teardown("local disconnect")
		return nil
	})
}

// SendChat sends one chat line over the session's data channel.
func (c *Client) SendChat(body string) error {
	return c.do(func() error {
		if c.session == nil || c.state != StateConnected {
			return newError("send chat", ErrNotConnected)
		}
		if c.session.channel == nil {
			return newError("send chat", ErrChannelNotOpen)
		}
		raw, err := chat.EncodeText(c.id, body)
		if err != nil {
			return newError("send chat", err)
		}
		if err := c.session.channel.Send(raw); err != nil {
			return newError("send chat", err)
		}
		return nil
	})
}

func (c *Client) sendBye() {
	if c.session == nil || c.session.channel == nil {
		return
	}
	if raw, err := chat.EncodeBye(); err == nil {
		c.session.channel.Send(raw)
	}
}

// teardown closes the current session and folds back to Idle, emitting a
// disconnect notification. Anything the dead session still has in flight is
// ignored from here on.
func (c *Client) teardown(reason string) {
	sess := c.session
	if sess == nil {
		c.state = StateIdle
		return
	}
	c.state = StateClosed
	if err := closeSession(sess); err != nil {
		c.log.Warn("session teardown incomplete", "err", err)
	}
	c.session = nil
	c.state = StateIdle
	c.log.Info("session closed", "peer", sess.Peer.ID, "reason", reason)
	c.emit(Event{Kind: EventDisconnected, Peer: sess.Peer, Text: reason})
}

// attachChannel wires a data channel into the session and routes its
// messages through the event loop.
func (c *Client) attachChannel(sess *Session, ch rtc.DataChannel) {
	sess.channel = ch
	ch.OnMessage(func(data []byte) {
		c.enqueue(func() { c.handleChannelMessage(sess, data) })
	})
}

// watchTransport subscribes to the transport signals the state machine cares
// about. Callbacks capture the session, so events from a torn-down session
// are recognized and dropped.
func (c *Client) watchTransport(sess *Session) {
	sess.transport.OnConnectionStateChange(func(state rtc.ConnState) {
		if !state.Down() {
			return
		}
		c.enqueue(func() {
			if c.session != sess {
				return
			}
			c.teardown("transport " + state.String())
		})
	})
	sess.transport.OnDataChannel(func(ch rtc.DataChannel) {
		c.enqueue(func() {
			if c.session != sess || sess.channel != nil {
				return
			}
			c.attachChannel(sess, ch)
		})
	})
}

// captureICE collects local candidates from the moment the transport exists.
// Gathering starts with the local description, long before the peer answers,
// and the transport does not replay candidates to a late subscriber, so the
// callback must be in place at creation. Candidates are held on the session
// until the negotiation reaches Connected.
func (c *Client) captureICE(sess *Session) {
	sess.transport.OnICECandidate(func(candidate json.RawMessage) {
		c.enqueue(func() {
			if c.session != sess {
				return
			}
			if !sess.emitICE || c.link == nil {
				sess.localICE = append(sess.localICE, candidate)
				return
			}
			c.link.Send(protocol.NewICECandidate(c.id, sess.Peer.ID, candidate))
		})
	})
}

// beginICE starts forwarding local candidates to the peer, flushing whatever
// gathered while the negotiation was in flight. It is only called once a
// negotiation reaches Connected, on both sides.
func (c *Client) beginICE(sess *Session) {
	sess.emitICE = true
	if c.link == nil {
		return
	}
	buffered := sess.localICE
	sess.localICE = nil
	for _, cand := range buffered {
		c.link.Send(protocol.NewICECandidate(c.id, sess.Peer.ID, cand))
	}
}

// drainPendingICE applies every queued candidate in arrival order. A single
// bad candidate is logged and skipped; the drain never stops early and the
// queue is never left partially drained.
func (c *Client) drainPendingICE(sess *Session) {
	for _, cand := range sess.pendingICE {
		if err := sess.transport.AddICECandidate(cand); err != nil {
			c.log.Warn("apply queued candidate failed", "peer", sess.Peer.ID, "err", err)
		}
	}
	sess.pendingICE = nil
}
