package session

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/SitePen/webrtc-blog/internal/config"
	"github.com/SitePen/webrtc-blog/internal/protocol"
	"github.com/SitePen/webrtc-blog/internal/rtc"
)

// Client owns the connection to the signaling server and the negotiation
// state machine. All state below the constructor-set fields belongs to the
// run loop; public methods hand work to that loop and wait for the result,
// so inbound frames, transport callbacks and local calls never touch a
// session concurrently.
type Client struct {
	cfg  *config.Config
	log  *slog.Logger
	name string

	dial         func() (Link, error)
	newTransport func() (rtc.Transport, error)

	// Run-loop-owned state.
	link          Link
	id            string
	serverVersion string
	peers         map[string]protocol.Peer
	listeners     map[string][]Listener
	state         State
	session       *Session
	pendingOffer  *protocol.SessionDescription
	mediaOpen     bool
	shutdown      bool
	reconnect     *time.Timer

	calls     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client and starts its event loop. The client is not
// connected until Connect is called.
func New(cfg *config.Config, name string) *Client {
	c := newClient(cfg, name)
	c.dial = func() (Link, error) { return Dial(cfg.ServerURL) }
	c.newTransport = func() (rtc.Transport, error) { return rtc.NewTransport(cfg) }
	return c
}

func newClient(cfg *config.Config, name string) *Client {
	c := &Client{
		cfg:       cfg,
		log:       slog.Default().With("component", "session"),
		name:      name,
		peers:     make(map[string]protocol.Peer),
		listeners: make(map[string][]Listener),
		calls:     make(chan func(), 64),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

// run is the client's single event loop. The select over a freshly read
// Incoming channel means a link swap takes effect on the next iteration.
func (c *Client) run() {
	for {
		var in <-chan *protocol.Message
		if c.link != nil {
			in = c.link.Incoming()
		}
		select {
		case fn := <-c.calls:
			fn()
		case msg, ok := <-in:
			if !ok {
				c.linkDown()
				continue
			}
			c.handleMessage(msg)
		case <-c.done:
			return
		}
	}
}

// do runs fn on the event loop and returns its result.
func (c *Client) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case c.calls <- func() { errc <- fn() }:
	case <-c.done:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-c.done:
		return ErrClosed
	}
}

// enqueue hands fn to the event loop without waiting. Used by transport and
// channel callbacks; work for a closed client is dropped.
func (c *Client) enqueue(fn func()) {
	select {
	case c.calls <- fn:
	case <-c.done:
	}
}

// Connect dials the signaling server. If a connection already exists the
// new one is discarded, which also makes a user-triggered connect racing a
// scheduled reconnect harmless.
func (c *Client) Connect() error {
	l, err := c.dial()
	if err != nil {
		return newError("connect", err)
	}
	return c.do(func() error {
		if c.shutdown {
			l.Close()
			return ErrClosed
		}
		if c.link != nil {
			l.Close()
			return nil
		}
		c.link = l
		return nil
	})
}

// OpenMedia marks the media capability open. Invite and Accept require it,
// and the reconnect supervisor only runs while it is open.
func (c *Client) OpenMedia() {
	c.do(func() error { c.mediaOpen = true; return nil })
}

// CloseMedia marks the media capability closed.
func (c *Client) CloseMedia() {
	c.do(func() error { c.mediaOpen = false; return nil })
}

// SetName changes the display name and re-identifies if connected.
func (c *Client) SetName(name string) {
	c.do(func() error {
		c.name = name
		if c.link != nil && c.id != "" {
			c.link.Send(protocol.NewIdentify(c.id, c.name))
		}
		return nil
	})
}

// ID returns the server-assigned id, empty until the ready handshake.
func (c *Client) ID() string {
	var id string
	c.do(func() error { id = c.id; return nil })
	return id
}

// State returns the current negotiation state.
func (c *Client) State() State {
	var s State
	c.do(func() error { s = c.state; return nil })
	return s
}

// Peers returns a snapshot of the known peer set.
func (c *Client) Peers() []protocol.Peer {
	var out []protocol.Peer
	c.do(func() error { out = c.peerList(); return nil })
	return out
}

func (c *Client) peerList() []protocol.Peer {
	out := make([]protocol.Peer, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// linkDown runs when the server connection dies. The roster is gone with
// the connection; an active peer session survives on its own transport.
func (c *Client) linkDown() {
	c.link = nil
	c.id = ""
	c.peers = make(map[string]protocol.Peer)
	c.emit(Event{Kind: EventPeers})
	if c.shutdown || !c.mediaOpen {
		return
	}
	c.scheduleReconnect()
}

// scheduleReconnect arms exactly one reconnection attempt after the
// configured delay.
func (c *Client) scheduleReconnect() {
	if c.reconnect != nil {
		return
	}
	c.log.Info("connection lost, scheduling reconnect", "delay", c.cfg.ReconnectDelay)
	c.reconnect = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.enqueue(c.tryReconnect)
	})
}

func (c *Client) tryReconnect() {
	c.reconnect = nil
	if c.shutdown || c.link != nil {
		// A user-triggered connect won the race; nothing to do.
		return
	}
	go func() {
		l, err := c.dial()
		if err != nil {
			c.log.Warn("reconnect failed", "err", err)
			c.enqueue(func() {
				if !c.shutdown && c.link == nil && c.mediaOpen {
					c.scheduleReconnect()
				}
			})
			return
		}
		c.enqueue(func() {
			if c.shutdown || c.link != nil {
				l.Close()
				return
			}
			c.link = l
		})
	}()
}

// Close shuts the client down: cancels any pending reconnect, tears down
// the session, closes the server connection and stops the event loop.
func (c *Client) Close() error {
	err := c.do(func() error {
		c.shutdown = true
		if c.reconnect != nil {
			c.reconnect.Stop()
			c.reconnect = nil
		}
		if c.session != nil {
			c.sendBye()
			c.teardown("client shutdown")
		}
		if c.link != nil {
			c.link.Close()
			c.link = nil
		}
		return nil
	})
	c.closeOnce.Do(func() { close(c.done) })
	if err == ErrClosed {
		return nil
	}
	return err
}
