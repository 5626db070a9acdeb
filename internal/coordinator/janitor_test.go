package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

func TestDeadlineHeapOrdering(t *testing.T) {
	j := newJanitor()
	now := time.Now()

	j.schedule(entryRequest, "late", now.Add(30*time.Millisecond))
	j.schedule(entryRequest, "early", now.Add(5*time.Millisecond))
	j.schedule(entrySession, "mid", now.Add(15*time.Millisecond))

	at, ok := j.next()
	if !ok || !at.Equal(now.Add(5*time.Millisecond)) {
		t.Errorf("expected the earliest deadline first, got %v", at)
	}

	due := j.popDue(now.Add(20 * time.Millisecond))
	if len(due) != 2 {
		t.Fatalf("expected 2 due entries, got %d", len(due))
	}
	if due[0].id != "early" || due[1].id != "mid" {
		t.Errorf("expected deadline order, got %q then %q", due[0].id, due[1].id)
	}

	if len(j.popDue(now)) != 0 {
		t.Error("expected no more due entries before the last deadline")
	}
}

func TestSignalingInactivityTimeout(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, hb, sessionID := signalingPair(t, c)

	time.Sleep(40 * time.Millisecond)
	c.sweep(time.Now())

	if state, _ := c.SessionState(sessionID); state != StateFailed {
		t.Fatalf("expected FAILED after inactivity, got %v", state)
	}
	resume, ok := hb.last(protocol.MsgResumeServerMode).(*protocol.ResumeServerMode)
	if !ok {
		t.Fatal("expected a resume notice")
	}
	if resume.Reason != protocol.ReasonTimeout {
		t.Errorf("unexpected reason: %q", resume.Reason)
	}
}

func TestActiveSignalingIsNotReaped(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, _, sessionID := signalingPair(t, c)

	// Activity keeps pushing the real deadline forward; the stale heap
	// entry must be re-armed, not acted on.
	for i := 0; i < 3; i++ {
		time.Sleep(15 * time.Millisecond)
		if err := c.Forward(sessionID, "a", protocol.MsgICECandidate, []byte(`{}`)); err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		c.sweep(time.Now())
	}

	if state, _ := c.SessionState(sessionID); state != StateSignaling {
		t.Fatalf("expected the active session to survive sweeps, got %v", state)
	}
}

func TestEstablishedSessionSurvivesSweep(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, _, sessionID := establishedPair(t, c)

	time.Sleep(40 * time.Millisecond)
	c.sweep(time.Now())

	if state, _ := c.SessionState(sessionID); state != StateEstablished {
		t.Fatalf("expected ESTABLISHED to be exempt from inactivity, got %v", state)
	}
}

func TestDisconnectDuringSignaling(t *testing.T) {
	c, _ := newTestCoordinator(t)
	_, hb, sessionID := signalingPair(t, c)

	c.HandleDisconnect("a")

	resume, ok := hb.last(protocol.MsgResumeServerMode).(*protocol.ResumeServerMode)
	if !ok {
		t.Fatal("expected Bob to be told to resume server mode")
	}
	if resume.SessionID != sessionID || resume.Reason != protocol.ReasonPeerDisconnected {
		t.Errorf("unexpected resume notice: %+v", resume)
	}

	for _, d := range c.Devices() {
		if d.ID == "a" {
			t.Error("expected Alice to be removed from the registry")
		}
	}
}

func TestJanitorLoopExpiresRequest(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ha := enable(t, c, "a", "Alice")
	enable(t, c, "b", "Bob")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	if _, err := c.RequestConnection("a", "b"); err != nil {
		t.Fatalf("RequestConnection failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ha.count(protocol.MsgRequestExpired) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected the janitor loop to expire the request, got %d notifications", ha.count(protocol.MsgRequestExpired))
}
