package node

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v3"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

// startWebRTC sets up the peer connection for the session negotiated by
// the handshake. Only the designated initiator creates the data channel
// and the offer; the responder waits for both.
func (n *Node) startWebRTC() error {
	pc, err := webrtc.NewPeerConnection(STUNConfig(n.opts.STUNServers))
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	n.mu.Lock()
	n.pc = pc
	isInitiator := n.isInitiator
	n.mu.Unlock()

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		n.logger.WithField("state", s.String()).Debug("Peer connection state changed")
		if s == webrtc.PeerConnectionStateFailed {
			n.reportFailure(protocol.ReasonICEFailed)
		}
	})

	pc.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			return
		}
		payload, err := json.Marshal(ice.ToJSON())
		if err != nil {
			n.logger.WithError(err).Warn("Failed to marshal ICE candidate")
			return
		}
		n.sendSignal(protocol.MsgICECandidate, payload)
	})

	if isInitiator {
		dc, err := pc.CreateDataChannel("data", DefaultDataChannelConfig())
		if err != nil {
			return fmt.Errorf("failed to create data channel: %w", err)
		}
		n.setupDataChannel(dc)

		offer, err := pc.CreateOffer(nil)
		if err != nil {
			return fmt.Errorf("failed to create offer: %w", err)
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			return fmt.Errorf("failed to set local description: %w", err)
		}

		payload, err := json.Marshal(offer)
		if err != nil {
			return err
		}
		n.sendSignal(protocol.MsgWebRTCOffer, payload)
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			n.setupDataChannel(dc)
		})
	}

	return nil
}

func (n *Node) setupDataChannel(dc *webrtc.DataChannel) {
	n.mu.Lock()
	n.dc = dc
	sessionID := n.sessionID
	n.mu.Unlock()

	dc.OnOpen(func() {
		n.logger.WithField("label", dc.Label()).Info("Data channel open")
		if err := n.send(&protocol.ConnectedAck{SessionID: sessionID}); err != nil {
			n.logger.WithError(err).Warn("Failed to send connected ack")
		}
	})

	dc.OnError(func(err error) {
		n.logger.WithError(err).Error("Data channel error")
		n.reportFailure(protocol.ReasonDataChannelError)
	})

	dc.OnClose(func() {
		n.logger.WithField("label", dc.Label()).Info("Data channel closed")
	})
}

func (n *Node) handleSignal(sig *protocol.Signal) error {
	n.mu.Lock()
	pc := n.pc
	n.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("no peer connection for session %s", sig.SessionID)
	}

	switch sig.Kind {
	case protocol.MsgWebRTCOffer:
		var offer webrtc.SessionDescription
		if err := json.Unmarshal(sig.Payload, &offer); err != nil {
			return err
		}
		if err := pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}

		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("failed to create answer: %w", err)
		}
		if err := pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("failed to set local description: %w", err)
		}

		payload, err := json.Marshal(answer)
		if err != nil {
			return err
		}
		n.sendSignal(protocol.MsgWebRTCAnswer, payload)

	case protocol.MsgWebRTCAnswer:
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(sig.Payload, &answer); err != nil {
			return err
		}
		if err := pc.SetRemoteDescription(answer); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}

	case protocol.MsgICECandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Payload, &candidate); err != nil {
			return err
		}
		if err := pc.AddICECandidate(candidate); err != nil {
			return fmt.Errorf("failed to add ICE candidate: %w", err)
		}
	}

	return nil
}

func (n *Node) sendSignal(kind protocol.MessageType, payload json.RawMessage) {
	n.mu.Lock()
	sessionID := n.sessionID
	peerID := n.peerID
	n.mu.Unlock()
	if sessionID == "" {
		return
	}

	msg := &protocol.Signal{
		Kind:           kind,
		SessionID:      sessionID,
		TargetDeviceID: peerID,
		Payload:        payload,
	}
	if err := n.send(msg); err != nil {
		n.logger.WithError(err).Warn("Failed to send signaling message")
	}
}

// reportFailure tells the coordinator the direct path broke. Reported
// once per session; the coordinator's fallback is idempotent anyway.
func (n *Node) reportFailure(reason string) {
	n.mu.Lock()
	if n.failed || n.sessionID == "" {
		n.mu.Unlock()
		return
	}
	n.failed = true
	sessionID := n.sessionID
	n.mu.Unlock()

	if err := n.send(&protocol.ConnectionFailed{SessionID: sessionID, Reason: reason}); err != nil {
		n.logger.WithError(err).Warn("Failed to report connection failure")
	}
}

func (n *Node) teardown() {
	n.mu.Lock()
	pc := n.pc
	n.pc = nil
	n.dc = nil
	n.sessionID = ""
	n.peerID = ""
	n.isInitiator = false
	n.mu.Unlock()

	if pc != nil {
		_ = pc.Close()
	}
}
