package session

import (
	"github.com/SitePen/webrtc-blog/internal/chat"
	"github.com/SitePen/webrtc-blog/internal/protocol"
	"github.com/SitePen/webrtc-blog/internal/rtc"
)

// handleMessage dispatches one frame from the signaling server. It runs on
// the event loop.
func (c *Client) handleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeReady:
		c.handleReady(msg)
	case protocol.TypePeer:
		c.handlePeer(msg)
	case protocol.TypeOffer:
		c.handleOffer(msg)
	case protocol.TypeAccept:
		c.handleAccept(msg)
	case protocol.TypeReject:
		c.handleReject(msg)
	case protocol.TypeICECandidate:
		c.handleCandidate(msg)
	default:
		c.log.Warn("unknown frame type dropped", "type", msg.Type)
	}
}

// handleReady runs the version handshake. A version differing from the one
// cached on a previous connection means the server restarted with new code;
// reconciling is not worth attempting, so the client resets as a fresh
// process would and does not identify on this connection.
func (c *Client) handleReady(msg *protocol.Message) {
	if c.serverVersion != "" && msg.Version != c.serverVersion {
		c.log.Warn("server version changed, resetting",
			"cached", c.serverVersion, "got", msg.Version)
		c.hardReset()
		return
	}
	c.serverVersion = msg.Version
	c.id = msg.ID
	c.link.Send(protocol.NewIdentify(c.id, c.name))
}

// hardReset discards all local state. Closing the link makes the normal
// reconnect path bring up a clean connection, whose ready frame is then
// adopted like a first run.
func (c *Client) hardReset() {
	c.teardown("server restarted")
	c.pendingOffer = nil
	c.peers = make(map[string]protocol.Peer)
	c.id = ""
	c.serverVersion = ""
	if c.link != nil {
		c.link.Close()
	}
	c.emit(Event{Kind: EventReset})
}

func (c *Client) handlePeer(msg *protocol.Message) {
	var p protocol.Peer
	if err := msg.DecodeData(&p); err != nil {
		c.log.Warn("malformed peer frame dropped", "err", err)
		return
	}
	if p.Remove {
		delete(c.peers, p.ID)
	} else {
		c.peers[p.ID] = protocol.Peer{ID: p.ID, Name: p.Name}
	}
	c.emit(Event{Kind: EventPeers, Peers: c.peerList()})
}

// handleOffer surfaces an incoming offer to the caller. No state changes
// until the caller decides; the client stays Idle, awaiting Accept or
// Reject.
func (c *Client) handleOffer(msg *protocol.Message) {
	var desc protocol.SessionDescription
	if err := msg.DecodeData(&desc); err != nil {
		c.log.Warn("malformed offer dropped", "err", err)
		return
	}
	if c.session != nil {
		c.log.Warn("offer ignored during active session", "source", desc.Source)
		return
	}
	c.pendingOffer = &desc
	peer, ok := c.peers[desc.Source]
	if !ok {
		peer = protocol.Peer{ID: desc.Source}
	}
	c.emit(Event{Kind: EventOffer, Peer: peer, Offer: &desc})
}

// handleAccept completes a local invite: the answer becomes the remote
// description, the candidate queue drains, and the session goes live.
func (c *Client) handleAccept(msg *protocol.Message) {
	var desc protocol.SessionDescription
	if err := msg.DecodeData(&desc); err != nil {
		c.log.Warn("malformed accept dropped", "err", err)
		return
	}
	if c.state != StateOffering || c.session == nil || desc.Source != c.session.Peer.ID {
		c.log.Warn("accept dropped", "err", ErrMismatchedSession, "source", desc.Source, "state", c.state.String())
		return
	}

	sess := c.session
	if err := sess.transport.SetRemoteDescription(rtc.Description{Type: desc.Type, SDP: desc.SDP}); err != nil {
		c.log.Error("apply answer failed", "peer", sess.Peer.ID, "err", err)
		c.teardown("bad answer")
		return
	}
	c.drainPendingICE(sess)
	c.state = StateConnected
	c.beginICE(sess)
	c.log.Info("peer accepted", "peer", sess.Peer.ID)
	c.emit(Event{Kind: EventConnected, Peer: sess.Peer})
}

// handleReject ends an outstanding invite. Unlike a disconnect, nothing was
// ever live, so listeners get a rejected event instead.
func (c *Client) handleReject(msg *protocol.Message) {
	var rej protocol.Reject
	if err := msg.DecodeData(&rej); err != nil {
		c.log.Warn("malformed reject dropped", "err", err)
		return
	}
	if c.state != StateOffering || c.session == nil || rej.Source != c.session.Peer.ID {
		c.log.Warn("reject dropped", "err", ErrMismatchedSession, "source", rej.Source, "state", c.state.String())
		return
	}

	sess := c.session
	c.session = nil
	c.state = StateIdle
	if err := closeSession(sess); err != nil {
		c.log.Warn("session teardown incomplete", "err", err)
	}
	c.log.Info("peer rejected", "peer", sess.Peer.ID)
	c.emit(Event{Kind: EventRejected, Peer: sess.Peer})
}

// handleCandidate applies or queues one remote candidate. Candidates that
// do not belong to the active session never enter the queue.
func (c *Client) handleCandidate(msg *protocol.Message) {
	var cand protocol.ICECandidate
	if err := msg.DecodeData(&cand); err != nil {
		c.log.Warn("malformed candidate dropped", "err", err)
		return
	}
	if c.session == nil || cand.ID != c.session.Peer.ID {
		c.log.Warn("candidate for wrong session dropped", "from", cand.ID)
		return
	}

	sess := c.session
	if sess.transport.RemoteDescriptionSet() {
		if err := sess.transport.AddICECandidate(cand.Candidate); err != nil {
			c.log.Warn("apply candidate failed", "peer", sess.Peer.ID, "err", err)
		}
		return
	}
	sess.pendingICE = append(sess.pendingICE, cand.Candidate)
}

// handleChannelMessage handles one data channel frame from the peer.
func (c *Client) handleChannelMessage(sess *Session, data []byte) {
	if c.session != sess {
		// The session this channel belonged to is gone.
		return
	}
	msg, err := chat.Decode(data)
	if err != nil {
		c.log.Warn("malformed channel frame dropped", "err", err)
		return
	}
	switch msg.Type {
	case chat.TypeText:
		var p chat.TextPayload
		if err := msg.DecodePayload(&p); err != nil {
			c.log.Warn("malformed chat payload dropped", "err", err)
			return
		}
		c.emit(Event{Kind: EventChat, Peer: sess.Peer, Text: p.Body})
	case chat.TypeBye:
		c.teardown("peer hung up")
	default:
		c.log.Warn("unknown channel message dropped", "type", msg.Type)
	}
}
