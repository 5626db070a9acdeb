package coordinator

import (
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

// ReportFailure handles an explicit p2p_connection_failed from a
// participant and reverts the pair to server-relayed transfer.
func (c *Coordinator) ReportFailure(deviceID, sessionID, reason string) error {
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
	if reason == "" {
		reason = protocol.ReasonDataChannelError
	}
	outs, changes := c.triggerFallbackLocked(sessionID, reason)
	c.mu.Unlock()

	c.deliver(outs)
	c.notifyModes(changes)
	return nil
}

// TriggerFallback moves the session to FAILED, releases the pair, and
// instructs both devices to resume server-relayed transfer. Idempotent:
// a session already in a terminal state is left alone and nobody is
// notified a second time.
func (c *Coordinator) TriggerFallback(sessionID, reason string) {
	c.mu.Lock()
	outs, changes := c.triggerFallbackLocked(sessionID, reason)
	c.mu.Unlock()

	c.deliver(outs)
	c.notifyModes(changes)
}

func (c *Coordinator) triggerFallbackLocked(sessionID, reason string) ([]outbound, []modeChange) {
	sess, ok := c.sessions[sessionID]
	if !ok || sess.State.Terminal() {
		return nil, nil
	}

	sess.State = StateFailed
	changes := c.releasePairLocked(sess)

	outs := make([]outbound, 0, 2)
	for _, id := range []string{sess.Initiator, sess.Responder} {
		d, ok := c.devices[id]
		if !ok {
			continue
		}
		outs = append(outs, outbound{
			deviceID: id,
			handle:   d.handle,
			// No sessionID here: the session is already terminal, so a
			// failed delivery of the fallback notice has nothing left
			// to escalate.
			msg: &protocol.ResumeServerMode{
				SessionID: sess.ID,
				Reason:    reason,
			},
		})
	}

	c.logger.WithFields(logrus.Fields{
		"session": sessionID,
		"reason":  reason,
	}).Info("Fallback to server-relayed transfer")

	return outs, changes
}
