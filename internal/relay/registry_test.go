package relay

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/SitePen/webrtc-blog/internal/protocol"
)

// fakeConn records every frame handed to it. Registry sends may run
// concurrently, so the slice is guarded.
type fakeConn struct {
	mu     sync.Mutex
	frames []*protocol.Message
}

func (f *fakeConn) TrySend(msg *protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, msg)
}

// peerFrames decodes every "peer" frame received so far.
func (f *fakeConn) peerFrames(t *testing.T) []protocol.Peer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Peer
	for _, msg := range f.frames {
		if msg.Type != protocol.TypePeer {
			continue
		}
		var p protocol.Peer
		if err := msg.DecodeData(&p); err != nil {
			t.Fatalf("decode peer frame: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func testRegistry() *Registry {
	return NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewcomerReceivesOneAnnouncementPerExistingPeer(t *testing.T) {
	reg := testRegistry()
	first, second, third := &fakeConn{}, &fakeConn{}, &fakeConn{}

	if err := reg.RegisterOrUpdate(first, PeerRecord{ID: "p1", Name: "One"}); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := reg.RegisterOrUpdate(second, PeerRecord{ID: "p2", Name: "Two"}); err != nil {
		t.Fatalf("register second: %v", err)
	}
	if err := reg.RegisterOrUpdate(third, PeerRecord{ID: "p3", Name: "Three"}); err != nil {
		t.Fatalf("register third: %v", err)
	}

	got := third.peerFrames(t)
	if len(got) != 2 {
		t.Fatalf("newcomer got %d announcements, want 2: %+v", len(got), got)
	}
	seen := map[string]bool{}
	for _, p := range got {
		if p.Remove {
			t.Fatalf("snapshot announcement carries remove flag: %+v", p)
		}
		seen[p.ID] = true
	}
	if !seen["p1"] || !seen["p2"] {
		t.Fatalf("snapshot missing peers: %+v", got)
	}
}

func TestScenarioA_AliceAndBobSeeEachOther(t *testing.T) {
	reg := testRegistry()
	alice, bob := &fakeConn{}, &fakeConn{}

	if err := reg.RegisterOrUpdate(alice, PeerRecord{ID: "a1", Name: "Alice"}); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := reg.RegisterOrUpdate(bob, PeerRecord{ID: "b1", Name: "Bob"}); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	aliceSees := alice.peerFrames(t)
	if len(aliceSees) != 1 || aliceSees[0].ID != "b1" || aliceSees[0].Name != "Bob" {
		t.Fatalf("alice's peer set = %+v, want {b1 Bob}", aliceSees)
	}
	bobSees := bob.peerFrames(t)
	if len(bobSees) != 1 || bobSees[0].ID != "a1" || bobSees[0].Name != "Alice" {
		t.Fatalf("bob's peer set = %+v, want {a1 Alice}", bobSees)
	}
}

func TestNameUpdateAnnouncesWithoutResendingSnapshot(t *testing.T) {
	reg := testRegistry()
	alice, bob := &fakeConn{}, &fakeConn{}

	reg.RegisterOrUpdate(alice, PeerRecord{ID: "a1", Name: "Alice"})
	reg.RegisterOrUpdate(bob, PeerRecord{ID: "b1", Name: "Bob"})

	before := alice.frameCount()
	if err := reg.RegisterOrUpdate(bob, PeerRecord{ID: "b1", Name: "Bobby"}); err != nil {
		t.Fatalf("update bob: %v", err)
	}

	got := alice.peerFrames(t)
	last := got[len(got)-1]
	if last.ID != "b1" || last.Name != "Bobby" {
		t.Fatalf("alice did not see the name change: %+v", last)
	}
	if bob.frameCount() != 1 {
		// Only the original snapshot of alice; no second snapshot on update.
		t.Fatalf("bob got %d frames after re-identify, want 1", bob.frameCount())
	}
	if alice.frameCount() != before+1 {
		t.Fatalf("alice got %d new frames for one update", alice.frameCount()-before)
	}
}

func TestDuplicateIDFromOtherConnectionRejected(t *testing.T) {
	reg := testRegistry()
	alice, imposter := &fakeConn{}, &fakeConn{}

	reg.RegisterOrUpdate(alice, PeerRecord{ID: "a1", Name: "Alice"})
	err := reg.RegisterOrUpdate(imposter, PeerRecord{ID: "a1", Name: "Mallory"})
	if err != ErrDuplicateID {
		t.Fatalf("err = %v, want ErrDuplicateID", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", reg.Len())
	}
	if n := alice.frameCount(); n != 0 {
		t.Fatalf("alice received %d frames from rejected identify", n)
	}
}

func TestConcurrentDuplicateIDClaimsCommitOnce(t *testing.T) {
	reg := testRegistry()
	// A pre-existing peer keeps the announcement phase, and therefore the
	// scan-to-commit window, open on both claimants.
	reg.RegisterOrUpdate(&fakeConn{}, PeerRecord{ID: "z1", Name: "Zed"})

	first, second := &fakeConn{}, &fakeConn{}
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, conn := range []*fakeConn{first, second} {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			errs <- reg.RegisterOrUpdate(c, PeerRecord{ID: "a1", Name: "Alice"})
		}(conn)
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		switch err {
		case nil:
			ok++
		case ErrDuplicateID:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("got %d commits and %d rejections, want 1 and 1", ok, rejected)
	}
	if reg.Len() != 2 {
		t.Fatalf("registry len = %d, want 2", reg.Len())
	}
}

func TestRouteForwardsVerbatimAndDropsUnknownTargets(t *testing.T) {
	reg := testRegistry()
	alice, bob := &fakeConn{}, &fakeConn{}

	reg.RegisterOrUpdate(alice, PeerRecord{ID: "a1", Name: "Alice"})
	reg.RegisterOrUpdate(bob, PeerRecord{ID: "b1", Name: "Bob"})

	offer := protocol.NewOffer(protocol.SessionDescription{Type: "offer", SDP: "v=0", Source: "a1", Target: "b1"})
	if !reg.Route("b1", offer) {
		t.Fatal("route to known target failed")
	}
	bob.mu.Lock()
	delivered := bob.frames[len(bob.frames)-1]
	bob.mu.Unlock()
	if delivered != offer {
		t.Fatalf("frame not forwarded verbatim: %+v", delivered)
	}

	before := alice.frameCount() + bob.frameCount()
	if reg.Route("nobody", offer) {
		t.Fatal("route to unknown target reported success")
	}
	if alice.frameCount()+bob.frameCount() != before {
		t.Fatal("routing to an unknown target must be a silent no-op")
	}
}

func TestUnregisterBroadcastsOneRemovalPerRemainingConnection(t *testing.T) {
	reg := testRegistry()
	alice, bob, carol := &fakeConn{}, &fakeConn{}, &fakeConn{}

	reg.RegisterOrUpdate(alice, PeerRecord{ID: "a1", Name: "Alice"})
	reg.RegisterOrUpdate(bob, PeerRecord{ID: "b1", Name: "Bob"})
	reg.RegisterOrUpdate(carol, PeerRecord{ID: "c1", Name: "Carol"})

	reg.Unregister(bob)

	for name, conn := range map[string]*fakeConn{"alice": alice, "carol": carol} {
		var removals int
		for _, p := range conn.peerFrames(t) {
			if p.Remove && p.ID == "b1" {
				removals++
			}
		}
		if removals != 1 {
			t.Fatalf("%s saw %d removals of b1, want 1", name, removals)
		}
	}

	// A later newcomer must not see b1 in its snapshot.
	late := &fakeConn{}
	reg.RegisterOrUpdate(late, PeerRecord{ID: "d1", Name: "Dave"})
	for _, p := range late.peerFrames(t) {
		if p.ID == "b1" {
			t.Fatalf("unregistered peer leaked into snapshot: %+v", p)
		}
	}
}

func TestUnregisterUnknownConnIsNoOp(t *testing.T) {
	reg := testRegistry()
	alice := &fakeConn{}
	reg.RegisterOrUpdate(alice, PeerRecord{ID: "a1", Name: "Alice"})

	reg.Unregister(&fakeConn{})

	if reg.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", reg.Len())
	}
	if n := alice.frameCount(); n != 0 {
		t.Fatalf("alice received %d frames from a no-op unregister", n)
	}
}
