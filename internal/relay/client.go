package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SitePen/webrtc-blog/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum frame size allowed from a peer. SDP payloads stay well under
	// this.
	maxMessageSize = 64 * 1024

	// Outbound frames queued per connection before sends start dropping.
	sendBuffer = 256
)

// Client is the server half of one websocket connection. Frames for the
// socket go through a buffered channel drained by writePump, so a slow or
// dead peer never blocks the rest of the server.
type Client struct {
	id       string
	registry *Registry
	conn     *websocket.Conn
	log      *slog.Logger
	send     chan *protocol.Message
}

func newClient(id string, registry *Registry, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		id:       id,
		registry: registry,
		conn:     conn,
		log:      log.With("conn", id),
		send:     make(chan *protocol.Message, sendBuffer),
	}
}

// ID returns the server-assigned connection id.
func (c *Client) ID() string { return c.id }

// TrySend queues msg for delivery, dropping it if the connection's buffer is
// full. Delivery is best-effort throughout the protocol; there is no error
// path back to any sender.
func (c *Client) TrySend(msg *protocol.Message) {
	select {
	case c.send <- msg:
	default:
		c.log.Warn("send buffer full, dropping frame", "type", msg.Type)
	}
}

// readPump reads frames off the socket and dispatches them until the
// connection dies, then unregisters the client. Message handling for one
// connection is serialized here; connections run concurrently.
func (c *Client) readPump() {
	defer func() {
		c.registry.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read failed", "err", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Malformed frames are dropped; the connection stays up.
			c.log.Warn("malformed frame dropped", "err", err)
			continue
		}
		c.handle(&msg)
	}
}

func (c *Client) handle(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeIdentify:
		var p protocol.Peer
		if err := msg.DecodeData(&p); err != nil {
			c.log.Warn("malformed identify dropped", "err", err)
			return
		}
		if err := c.registry.RegisterOrUpdate(c, PeerRecord{ID: p.ID, Name: p.Name}); err != nil {
			c.log.Warn("identify rejected", "id", p.ID, "err", err)
			return
		}
		c.log.Info("peer identified", "id", p.ID, "name", p.Name)

	case protocol.TypeOffer, protocol.TypeAccept, protocol.TypeReject, protocol.TypeICECandidate:
		rt, err := msg.DecodeRouting()
		if err != nil || rt.Target == "" {
			c.log.Warn("unroutable frame dropped", "type", msg.Type, "err", err)
			return
		}
		if !c.registry.Route(rt.Target, msg) {
			// Best-effort delivery: an unknown target is not an error.
			c.log.Debug("no such target, frame dropped", "type", msg.Type, "target", rt.Target)
		}

	default:
		c.log.Warn("unknown frame type dropped", "type", msg.Type)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("write failed", "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
