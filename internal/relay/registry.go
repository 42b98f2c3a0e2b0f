package relay

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/SitePen/webrtc-blog/internal/protocol"
)

// ErrDuplicateID is returned when an identify presents an id that is already
// registered under a different connection.
var ErrDuplicateID = errors.New("peer id already registered")

// PeerRecord is what the server knows about one identified connection.
type PeerRecord struct {
	ID   string
	Name string
}

// Sender delivers one frame to a connection without blocking. *Client
// implements it; tests substitute a recorder.
type Sender interface {
	TrySend(msg *protocol.Message)
}

// Registry maps live connections to the peer records they presented.
// Mutations are linearized under the mutex; sends to sockets happen outside
// it and are fire-and-forget.
type Registry struct {
	log *slog.Logger

	mu    sync.Mutex
	peers map[Sender]PeerRecord
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		peers: make(map[Sender]PeerRecord),
	}
}

type registryEntry struct {
	conn Sender
	rec  PeerRecord
}

// RegisterOrUpdate stores rec under conn. A connection identifying for the
// first time is sent one announcement per already-registered entry,
// reflecting the registry at call time. Every other connection is then told
// about rec, except ones already presenting rec.ID. All announcements are
// joined before the record is committed, so a concurrent newcomer's snapshot
// can never observe a half-announced peer.
func (r *Registry) RegisterOrUpdate(conn Sender, rec PeerRecord) error {
	r.mu.Lock()
	for c, existing := range r.peers {
		if c != conn && existing.ID == rec.ID {
			r.mu.Unlock()
			return ErrDuplicateID
		}
	}
	_, known := r.peers[conn]
	others := make([]registryEntry, 0, len(r.peers))
	for c, e := range r.peers {
		if c != conn {
			others = append(others, registryEntry{conn: c, rec: e})
		}
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	if !known {
		for _, e := range others {
			wg.Add(1)
			go func(dst Sender, p PeerRecord) {
				defer wg.Done()
				dst.TrySend(protocol.NewPeer(p.ID, p.Name))
			}(conn, e.rec)
		}
	}
	announcement := protocol.NewPeer(rec.ID, rec.Name)
	for _, e := range others {
		if e.rec.ID == rec.ID {
			continue
		}
		wg.Add(1)
		go func(dst Sender) {
			defer wg.Done()
			dst.TrySend(announcement)
		}(e.conn)
	}
	wg.Wait()

	// The announcement phase ran unlocked, so another connection may have
	// claimed the id in the meantime. The commit re-checks under the lock;
	// only one claimant can win.
	r.mu.Lock()
	for c, existing := range r.peers {
		if c != conn && existing.ID == rec.ID {
			r.mu.Unlock()
			return ErrDuplicateID
		}
	}
	r.peers[conn] = rec
	r.mu.Unlock()
	return nil
}

// Route forwards msg verbatim to the connection whose record matches
// targetID. An unknown target is a documented no-op: the frame is dropped
// and the sender is not told. The return value exists for logging and tests.
func (r *Registry) Route(targetID string, msg *protocol.Message) bool {
	r.mu.Lock()
	var dst Sender
	for c, rec := range r.peers {
		if rec.ID == targetID {
			dst = c
			break
		}
	}
	r.mu.Unlock()

	if dst == nil {
		return false
	}
	dst.TrySend(msg)
	return true
}

// Unregister drops conn's record, if any, and announces the removal to every
// remaining connection.
func (r *Registry) Unregister(conn Sender) {
	r.mu.Lock()
	rec, ok := r.peers[conn]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.peers, conn)
	rest := make([]Sender, 0, len(r.peers))
	for c := range r.peers {
		rest = append(rest, c)
	}
	r.mu.Unlock()

	r.log.Info("peer unregistered", "id", rec.ID, "name", rec.Name)
	removal := protocol.NewPeerRemoved(rec.ID, rec.Name)
	for _, c := range rest {
		c.TrySend(removal)
	}
}

// Len reports how many identified connections are registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}
