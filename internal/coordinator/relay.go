package coordinator

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

// Forward routes a signaling payload to the other participant of the
// session. The relay never looks inside the payload; it re-tags the
// envelope with the sender and delivers it. Forwarding the first offer
// moves the session from INITIALIZING to SIGNALING.
func (c *Coordinator) Forward(sessionID, fromDeviceID string, kind protocol.MessageType, payload json.RawMessage) error {
	switch kind {
	case protocol.MsgWebRTCOffer, protocol.MsgWebRTCAnswer, protocol.MsgICECandidate:
	default:
		return ErrSessionNotSignaling
	}

	c.mu.Lock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownSession
	}
	if _, ok := sess.roleOf(fromDeviceID); !ok {
		c.mu.Unlock()
		return ErrNotAParticipant
	}
	if sess.State != StateInitializing && sess.State != StateSignaling {
		c.mu.Unlock()
		return ErrSessionNotSignaling
	}

	if kind == protocol.MsgWebRTCOffer && sess.State == StateInitializing {
		sess.State = StateSignaling
	}
	sess.MessageCount++
	sess.LastActivity = time.Now()

	peerID := sess.peerOf(fromDeviceID)
	peer, ok := c.devices[peerID]
	if !ok {
		c.mu.Unlock()
		return ErrTargetNotEligible
	}

	out := outbound{
		deviceID:  peerID,
		handle:    peer.handle,
		sessionID: sess.ID,
		msg: &protocol.Signal{
			Kind:         kind,
			SessionID:    sess.ID,
			FromDeviceID: fromDeviceID,
			Payload:      payload,
		},
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"from":    fromDeviceID,
		"to":      peerID,
		"type":    kind,
	}).Debug("Forwarded signaling message")

	c.deliver([]outbound{out})
	return nil
}
