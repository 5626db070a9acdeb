package coordinator

import (
	"errors"
	"testing"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

func TestSingleAckDoesNotEstablish(t *testing.T) {
	c, notifier := newTestCoordinator(t)
	ha, hb, sessionID := signalingPair(t, c)

	if err := c.MarkConnected("a", sessionID); err != nil {
		t.Fatalf("MarkConnected failed: %v", err)
	}

	if state, _ := c.SessionState(sessionID); state != StateSignaling {
		t.Fatalf("expected SIGNALING after one ack, got %v", state)
	}
	if ha.count(protocol.MsgConnectionEstablished) != 0 || hb.count(protocol.MsgConnectionEstablished) != 0 {
		t.Error("expected no establishment notifications after one ack")
	}
	if _, ok := c.ActivePeer("a"); ok {
		t.Error("expected no active connection entry after one ack")
	}
	if len(notifier.modes("a")) != 0 {
		t.Error("expected no mode change after one ack")
	}
}

func TestBothAcksEstablish(t *testing.T) {
	c, notifier := newTestCoordinator(t)
	ha, hb, sessionID := signalingPair(t, c)

	if err := c.MarkConnected("a", sessionID); err != nil {
		t.Fatalf("MarkConnected(a) failed: %v", err)
	}
	if err := c.MarkConnected("b", sessionID); err != nil {
		t.Fatalf("MarkConnected(b) failed: %v", err)
	}

	if state, _ := c.SessionState(sessionID); state != StateEstablished {
		t.Fatalf("expected ESTABLISHED, got %v", state)
	}

	for id, h := range map[string]*fakeHandle{"a": ha, "b": hb} {
		if h.count(protocol.MsgConnectionEstablished) != 1 {
			t.Errorf("expected one establishment notification for %s", id)
		}
	}
	if peer, _ := c.ActivePeer("a"); peer != "b" {
		t.Errorf("expected a->b in active map, got %q", peer)
	}
	if peer, _ := c.ActivePeer("b"); peer != "a" {
		t.Errorf("expected b->a in active map, got %q", peer)
	}

	modesA := notifier.modes("a")
	if len(modesA) != 1 || modesA[0] != ModeP2P {
		t.Errorf("expected one P2P mode change for a, got %v", modesA)
	}
}

func TestDuplicateAckIsIdempotent(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ha, hb, sessionID := establishedPair(t, c)

	if err := c.MarkConnected("a", sessionID); err != nil {
		t.Fatalf("repeat ack failed: %v", err)
	}
	if ha.count(protocol.MsgConnectionEstablished) != 1 || hb.count(protocol.MsgConnectionEstablished) != 1 {
		t.Error("expected no extra establishment notifications")
	}
}

func TestAckValidation(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, _, sessionID := signalingPair(t, c)
	enable(t, c, "c", "Carol")

	if err := c.MarkConnected("c", sessionID); !errors.Is(err, ErrNotAParticipant) {
		t.Errorf("expected NotAParticipant, got %v", err)
	}
	if err := c.MarkConnected("a", "sess-nope"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("expected UnknownSession, got %v", err)
	}

	c.TriggerFallback(sessionID, protocol.ReasonTimeout)
	if err := c.MarkConnected("a", sessionID); !errors.Is(err, ErrSessionNotSignaling) {
		t.Errorf("expected SessionNotSignaling on terminal session, got %v", err)
	}
}

func TestCloseSessionReleasesPair(t *testing.T) {
	c, notifier := newTestCoordinator(t)
	_, _, sessionID := establishedPair(t, c)

	if err := c.CloseSession(sessionID); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}

	if state, _ := c.SessionState(sessionID); state != StateClosed {
		t.Fatalf("expected CLOSED, got %v", state)
	}
	if _, ok := c.ActivePeer("a"); ok {
		t.Error("expected active map entry for a to be released")
	}
	if _, ok := c.ActivePeer("b"); ok {
		t.Error("expected active map entry for b to be released")
	}

	modesA := notifier.modes("a")
	if len(modesA) != 2 || modesA[1] != ModeServer {
		t.Errorf("expected P2P then SERVER for a, got %v", modesA)
	}

	// The pair is free again.
	if _, err := c.RequestConnection("a", "b"); err != nil {
		t.Errorf("expected a fresh request to succeed after close, got %v", err)
	}
}

func TestCloseSessionRequiresEstablished(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, _, sessionID := signalingPair(t, c)

	if err := c.CloseSession(sessionID); !errors.Is(err, ErrSessionNotSignaling) {
		t.Errorf("expected CloseSession to reject a non-established session, got %v", err)
	}
}

// Active-map entries and ESTABLISHED sessions imply each other.
func TestNoOrphanedConnectionEntries(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, _, sessionID := establishedPair(t, c)

	c.TriggerFallback(sessionID, protocol.ReasonICEFailed)

	if _, ok := c.ActivePeer("a"); ok {
		t.Error("expected no active entry for a after fallback")
	}
	if _, ok := c.ActivePeer("b"); ok {
		t.Error("expected no active entry for b after fallback")
	}
	if state, _ := c.SessionState(sessionID); state != StateFailed {
		t.Errorf("expected FAILED, got %v", state)
	}
}
