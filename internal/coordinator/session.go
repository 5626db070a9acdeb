package coordinator

import (
	"time"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

type SessionState int

const (
	StateInitializing SessionState = iota
	StateSignaling
	StateEstablished
	StateFailed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateSignaling:
		return "SIGNALING"
	case StateEstablished:
		return "ESTABLISHED"
	case StateFailed:
		return "FAILED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state is absorbing.
func (s SessionState) Terminal() bool {
	return s == StateFailed || s == StateClosed
}

type Role int

const (
	RoleInitiator Role = iota + 1
	RoleResponder
)

// Session is the per-pair signaling lifecycle. The initiator is the
// device that sent the original request and is the only side allowed to
// believe it creates the WebRTC offer.
type Session struct {
	ID           string
	Initiator    string
	Responder    string
	State        SessionState
	MessageCount int
	LastActivity time.Time

	acks             map[string]bool
	deliveryFailures map[string]int
}

func (s *Session) roleOf(deviceID string) (Role, bool) {
	switch deviceID {
	case s.Initiator:
		return RoleInitiator, true
	case s.Responder:
		return RoleResponder, true
	default:
		return 0, false
	}
}

func (s *Session) peerOf(deviceID string) string {
	if deviceID == s.Initiator {
		return s.Responder
	}
	return s.Initiator
}

// createSessionLocked registers a new INITIALIZING session for an
// accepted request. Exactly one non-terminal session may exist per
// unordered pair; the per-device index enforces this.
func (c *Coordinator) createSessionLocked(req *ConnectionRequest) (*Session, error) {
	if _, busy := c.sessionByDevice[req.From]; busy {
		return nil, ErrAlreadyConnected
	}
	if _, busy := c.sessionByDevice[req.To]; busy {
		return nil, ErrAlreadyConnected
	}

	sess := &Session{
		ID:               protocol.SessionIDFor(req.ID),
		Initiator:        req.From,
		Responder:        req.To,
		State:            StateInitializing,
		LastActivity:     time.Now(),
		acks:             make(map[string]bool),
		deliveryFailures: make(map[string]int),
	}
	c.sessions[sess.ID] = sess
	c.sessionByDevice[req.From] = sess.ID
	c.sessionByDevice[req.To] = sess.ID
	c.janitor.schedule(entrySession, sess.ID, sess.LastActivity.Add(c.cfg.SignalingTTL))
	return sess, nil
}

// MarkConnected records a p2p_connected_ack from one participant. The
// session reaches ESTABLISHED only once both sides have acked; a single
// ack changes nothing observable, which keeps the two ends from ever
// disagreeing about being connected.
func (c *Coordinator) MarkConnected(deviceID, sessionID string) error {
	c.mu.Lock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSession
	}
	if _, ok := sess.roleOf(deviceID); !ok {
		c.mu.Unlock()
		return ErrNotAParticipant
	}
	if sess.State == StateEstablished {
		c.mu.Unlock()
		return nil
	}
	if sess.State.Terminal() {
		c.mu.Unlock()
		return ErrSessionNotSignaling
	}

	sess.acks[deviceID] = true
	sess.LastActivity = time.Now()
	if !sess.acks[sess.Initiator] || !sess.acks[sess.Responder] {
		c.mu.Unlock()
		return nil
	}

	sess.State = StateEstablished
	c.activeConns[sess.Initiator] = sess.Responder
	c.activeConns[sess.Responder] = sess.Initiator

	outs := make([]outbound, 0, 2)
	changes := make([]modeChange, 0, 2)
	for _, id := range []string{sess.Initiator, sess.Responder} {
		peerID := sess.peerOf(id)
		d, ok := c.devices[id]
		if !ok {
			continue
		}
		peerName := ""
		if peer, ok := c.devices[peerID]; ok {
			peerName = peer.DisplayName
		}
		outs = append(outs, outbound{
			deviceID:  id,
			handle:    d.handle,
			sessionID: sess.ID,
			msg: &protocol.ConnectionEstablished{
				SessionID:    sess.ID,
				PeerDeviceID: peerID,
				PeerName:     peerName,
			},
		})
		changes = append(changes, modeChange{deviceID: id, mode: ModeP2P, peer: peerID})
	}
	c.mu.Unlock()

	c.logger.WithField("session", sessionID).Info("Connection established")

	c.deliver(outs)
	c.notifyModes(changes)
	return nil
}

// CloseSession gracefully tears down an ESTABLISHED session on behalf
// of either party and reverts both devices to server-relayed transfer.
func (c *Coordinator) CloseSession(sessionID string) error {
	c.mu.Lock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSession
	}
	if sess.State != StateEstablished {
		c.mu.Unlock()
		return ErrSessionNotSignaling
	}

	sess.State = StateClosed
	changes := c.releasePairLocked(sess)
	c.mu.Unlock()

	c.logger.WithField("session", sessionID).Info("Session closed")

	c.notifyModes(changes)
	return nil
}

// releasePairLocked drops the active-connection and per-device session
// entries for a session entering a terminal state, and composes the
// SERVER-mode notifications for both participants.
func (c *Coordinator) releasePairLocked(sess *Session) []modeChange {
	changes := make([]modeChange, 0, 2)
	for _, id := range []string{sess.Initiator, sess.Responder} {
		delete(c.activeConns, id)
		if c.sessionByDevice[id] == sess.ID {
			delete(c.sessionByDevice, id)
		}
		changes = append(changes, modeChange{deviceID: id, mode: ModeServer})
	}
	// Arm the reap deadline; the janitor deletes terminal sessions.
	c.janitor.schedule(entrySession, sess.ID, time.Now().Add(c.cfg.SignalingTTL))
	return changes
}

// SessionState reports the state of a session, mainly for callers that
// embed the coordinator (and for tests).
func (c *Coordinator) SessionState(sessionID string) (SessionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[sessionID]
	if !ok {
		return 0, false
	}
	return sess.State, true
}

// ActivePeer returns the peer a device is P2P-connected to, if any.
func (c *Coordinator) ActivePeer(deviceID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	peer, ok := c.activeConns[deviceID]
	return peer, ok
}
