package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/SitePen/webrtc-blog/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Link is one live connection to the signaling server. Incoming is closed
// when the connection dies, however it dies.
type Link interface {
	Send(msg *protocol.Message)
	Incoming() <-chan *protocol.Message
	Close() error
}

// wsLink is the gorilla-backed Link used outside of tests.
type wsLink struct {
	conn     *websocket.Conn
	incoming chan *protocol.Message
	outgoing chan *protocol.Message
	done     chan struct{}
}

// Dial connects to the signaling server and starts the connection's pumps.
func Dial(serverURL string) (Link, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	l := &wsLink{
		conn:     conn,
		incoming: make(chan *protocol.Message, 32),
		outgoing: make(chan *protocol.Message, 32),
		done:     make(chan struct{}),
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go l.readPump()
	go l.writePump()

	return l, nil
}

func (l *wsLink) readPump() {
	defer func() {
		l.conn.Close()
		close(l.incoming)
	}()

	l.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, raw, err := l.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Malformed frames are dropped; the connection stays up.
			slog.Warn("malformed frame dropped", "err", err)
			continue
		}
		select {
		case l.incoming <- &msg:
		case <-l.done:
			return
		}
	}
}

func (l *wsLink) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		l.conn.Close()
	}()

	for {
		select {
		case msg := <-l.outgoing:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-l.done:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			l.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues msg for delivery; like everything else in the protocol it is
// fire-and-forget.
func (l *wsLink) Send(msg *protocol.Message) {
	select {
	case l.outgoing <- msg:
	case <-l.done:
	}
}

func (l *wsLink) Incoming() <-chan *protocol.Message {
	return l.incoming
}

func (l *wsLink) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}
