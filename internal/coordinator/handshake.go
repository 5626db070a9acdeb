package coordinator

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

type RequestStatus int

const (
	RequestPending RequestStatus = iota
	RequestAccepted
	RequestDeclined
	RequestExpired
)

func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "PENDING"
	case RequestAccepted:
		return "ACCEPTED"
	case RequestDeclined:
		return "DECLINED"
	case RequestExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// ConnectionRequest is the pending half of the two-party handshake.
// Terminal requests are deleted, never archived.
type ConnectionRequest struct {
	ID        string
	From      string
	To        string
	Status    RequestStatus
	CreatedAt time.Time
}

// RequestConnection creates a PENDING request from -> to, notifies the
// target, and arms the expiry deadline. At most one pending request may
// exist per ordered pair, per initiator, and per responder.
func (c *Coordinator) RequestConnection(from, to string) (string, error) {
	c.mu.Lock()

	initiator, ok := c.devices[from]
	if !ok {
		c.mu.Unlock()
		return "", ErrNotEnabled
	}
	target, ok := c.devices[to]
	if !ok || from == to {
		c.mu.Unlock()
		return "", ErrTargetNotEligible
	}

	if _, busy := c.activeConns[from]; busy {
		c.mu.Unlock()
		return "", ErrAlreadyConnected
	}
	if _, busy := c.activeConns[to]; busy {
		c.mu.Unlock()
		return "", ErrAlreadyConnected
	}
	if _, busy := c.sessionByDevice[from]; busy {
		c.mu.Unlock()
		return "", ErrAlreadyConnected
	}
	if _, busy := c.sessionByDevice[to]; busy {
		c.mu.Unlock()
		return "", ErrAlreadyConnected
	}

	if _, dup := c.pendingByPair[pairKey{from, to}]; dup {
		c.mu.Unlock()
		return "", ErrDuplicatePending
	}
	if _, dup := c.pendingByPair[pairKey{to, from}]; dup {
		c.mu.Unlock()
		return "", ErrDuplicatePending
	}
	// One outstanding request per initiator, and one pending incoming
	// request per responder.
	if _, dup := c.pendingOutgoing[from]; dup {
		c.mu.Unlock()
		return "", ErrDuplicatePending
	}
	if _, dup := c.pendingIncoming[to]; dup {
		c.mu.Unlock()
		return "", ErrDuplicatePending
	}

	req := &ConnectionRequest{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Status:    RequestPending,
		CreatedAt: time.Now(),
	}
	c.requests[req.ID] = req
	c.pendingByPair[pairKey{from, to}] = req.ID
	c.pendingOutgoing[from] = req.ID
	c.pendingIncoming[to] = req.ID
	c.janitor.schedule(entryRequest, req.ID, req.CreatedAt.Add(c.cfg.RequestTTL))

	out := outbound{
		deviceID: to,
		handle:   target.handle,
		msg: &protocol.RequestReceived{
			RequestID: req.ID,
			From:      initiator.ID,
			FromName:  initiator.DisplayName,
		},
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"request": req.ID,
		"from":    from,
		"to":      to,
	}).Info("Connection requested")

	c.deliver([]outbound{out})
	return req.ID, nil
}

// RespondToRequest resolves a pending request. Only the request's
// target may respond. On accept the request becomes a signaling session
// and the original requester is designated the WebRTC offer-initiator,
// which rules out glare. On decline the initiator is notified and the
// request deleted; no session is created.
func (c *Coordinator) RespondToRequest(responderID, requestID string, accepted bool) error {
	c.mu.Lock()

	req, ok := c.requests[requestID]
	if !ok || req.Status != RequestPending || req.To != responderID {
		c.mu.Unlock()
		return ErrUnknownRequest
	}

	initiator := c.devices[req.From]

	if !accepted {
		req.Status = RequestDeclined
		c.removeRequestLocked(req)
		var outs []outbound
		if initiator != nil {
			outs = append(outs, outbound{
				deviceID: req.From,
				handle:   initiator.handle,
				msg:      &protocol.RequestDeclined{RequestID: req.ID},
			})
		}
		c.mu.Unlock()

		c.logger.WithField("request", req.ID).Info("Request declined")
		c.deliver(outs)
		return nil
	}

	req.Status = RequestAccepted
	c.removeRequestLocked(req)

	sess, err := c.createSessionLocked(req)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	responder := c.devices[req.To]
	outs := make([]outbound, 0, 2)
	if initiator != nil {
		outs = append(outs, outbound{
			deviceID:  req.From,
			handle:    initiator.handle,
			sessionID: sess.ID,
			msg: &protocol.RequestAccepted{
				RequestID:   req.ID,
				StartWebRTC: true,
				IsInitiator: true,
			},
		})
	}
	if responder != nil {
		outs = append(outs, outbound{
			deviceID:  req.To,
			handle:    responder.handle,
			sessionID: sess.ID,
			msg: &protocol.RequestAccepted{
				RequestID:   req.ID,
				StartWebRTC: true,
				IsInitiator: false,
			},
		})
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"request": req.ID,
		"session": sess.ID,
	}).Info("Request accepted, signaling session created")

	c.deliver(outs)
	return nil
}

// expireRequest resolves a pending request that timed out, notifying
// the initiator exactly once. The janitor calls this; it is safe to
// call for requests that were already resolved.
func (c *Coordinator) expireRequest(requestID string) {
	c.mu.Lock()
	outs := c.expireRequestLocked(requestID)
	c.mu.Unlock()

	c.deliver(outs)
}

func (c *Coordinator) expireRequestLocked(requestID string) []outbound {
	req, ok := c.requests[requestID]
	if !ok || req.Status != RequestPending {
		return nil
	}
	req.Status = RequestExpired
	c.removeRequestLocked(req)

	c.logger.WithField("request", req.ID).Info("Request expired")

	initiator, ok := c.devices[req.From]
	if !ok {
		return nil
	}
	return []outbound{{
		deviceID: req.From,
		handle:   initiator.handle,
		msg:      &protocol.RequestExpired{RequestID: req.ID},
	}}
}

func (c *Coordinator) removeRequestLocked(req *ConnectionRequest) {
	delete(c.requests, req.ID)
	delete(c.pendingByPair, pairKey{req.From, req.To})
	if c.pendingOutgoing[req.From] == req.ID {
		delete(c.pendingOutgoing, req.From)
	}
	if c.pendingIncoming[req.To] == req.ID {
		delete(c.pendingIncoming, req.To)
	}
}
