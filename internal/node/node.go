// Package node is the device-side counterpart of the coordinator: it
// keeps the persistent channel open, tracks the eligible device list,
// runs the handshake, and drives the WebRTC peer connection for an
// accepted pair. Actual file bytes never pass through here; the open
// data channel is handed to the caller.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

type Options struct {
	CoordinatorURL    string
	DeviceName        string
	STUNServers       []string
	HeartbeatInterval time.Duration
	Logger            *logrus.Logger

	// AcceptIncoming decides whether an incoming connection request is
	// accepted. Nil declines everything.
	AcceptIncoming func(fromID, fromName string) bool
	// OnDataChannel fires once both sides confirmed the open channel.
	OnDataChannel func(peerID string, dc *webrtc.DataChannel)
	// OnServerMode fires when the pair reverts to server-relayed
	// transfer.
	OnServerMode func(reason string)
	// OnDevicesUpdate fires with each device list broadcast.
	OnDevicesUpdate func(devices []protocol.DeviceInfo)
}

type Node struct {
	opts   Options
	logger *logrus.Logger
	ws     *websocket.Conn
	codec  *protocol.Codec

	writeMu sync.Mutex

	mu          sync.Mutex
	devices     []protocol.DeviceInfo
	pendingTo   string // target of our outstanding request
	pendingFrom string // initiator of the incoming request we accepted
	sessionID   string
	isInitiator bool
	peerID      string
	pc          *webrtc.PeerConnection
	dc          *webrtc.DataChannel
	failed      bool
}

func New(opts Options) (*Node, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}

	ws, _, err := websocket.DefaultDialer.Dial(opts.CoordinatorURL, nil)
	if err != nil {
		return nil, err
	}

	return &Node{
		opts:   opts,
		logger: log,
		ws:     ws,
		codec:  protocol.NewCodec(),
	}, nil
}

// Run enables P2P and processes coordinator messages until ctx is
// cancelled or the channel drops.
func (n *Node) Run(ctx context.Context) error {
	if err := n.send(&protocol.EnableP2P{DeviceName: n.opts.DeviceName}); err != nil {
		return err
	}

	go n.heartbeatLoop(ctx)
	go func() {
		<-ctx.Done()
		_ = n.ws.Close()
	}()

	for {
		_, data, err := n.ws.ReadMessage()
		if err != nil {
			n.teardown()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		msg, err := n.codec.DecodeFromBytes(data)
		if err != nil {
			n.logger.WithError(err).Warn("Dropping undecodable message")
			continue
		}

		n.handleMessage(msg)
	}
}

// Devices returns the last broadcast device list.
func (n *Node) Devices() []protocol.DeviceInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]protocol.DeviceInfo, len(n.devices))
	copy(out, n.devices)
	return out
}

// RequestConnection asks the coordinator to propose a direct connection
// to the target device.
func (n *Node) RequestConnection(targetID string) error {
	n.mu.Lock()
	n.pendingTo = targetID
	n.mu.Unlock()
	return n.send(&protocol.ConnectRequest{To: targetID})
}

func (n *Node) send(msg protocol.Message) error {
	data, err := n.codec.EncodeToBytes(msg)
	if err != nil {
		return err
	}
	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	return n.ws.WriteMessage(websocket.TextMessage, data)
}

func (n *Node) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(n.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.send(&protocol.Heartbeat{}); err != nil {
				return
			}
		}
	}
}

func (n *Node) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.DevicesUpdate:
		n.mu.Lock()
		n.devices = m.Devices
		n.mu.Unlock()
		n.logger.WithField("count", len(m.Devices)).Debug("Device list updated")
		if n.opts.OnDevicesUpdate != nil {
			n.opts.OnDevicesUpdate(m.Devices)
		}

	case *protocol.RequestReceived:
		accept := n.opts.AcceptIncoming != nil && n.opts.AcceptIncoming(m.From, m.FromName)
		if !accept {
			n.logger.WithField("from", m.FromName).Info("Declining connection request")
			if err := n.send(&protocol.DeclineRequest{RequestID: m.RequestID}); err != nil {
				n.logger.WithError(err).Warn("Failed to send decline")
			}
			return
		}
		n.mu.Lock()
		n.pendingFrom = m.From
		n.mu.Unlock()
		n.logger.WithField("from", m.FromName).Info("Accepting connection request")
		if err := n.send(&protocol.AcceptRequest{RequestID: m.RequestID}); err != nil {
			n.logger.WithError(err).Warn("Failed to send accept")
		}

	case *protocol.RequestAccepted:
		n.mu.Lock()
		n.sessionID = protocol.SessionIDFor(m.RequestID)
		n.isInitiator = m.IsInitiator
		n.failed = false
		if m.IsInitiator {
			n.peerID = n.pendingTo
		} else {
			n.peerID = n.pendingFrom
		}
		n.pendingTo = ""
		n.pendingFrom = ""
		n.mu.Unlock()

		if m.StartWebRTC {
			if err := n.startWebRTC(); err != nil {
				n.logger.WithError(err).Error("Failed to start WebRTC")
				n.reportFailure(protocol.ReasonDataChannelError)
			}
		}

	case *protocol.RequestDeclined:
		n.mu.Lock()
		n.pendingTo = ""
		n.mu.Unlock()
		n.logger.WithField("request", m.RequestID).Info("Request was declined")

	case *protocol.RequestExpired:
		n.mu.Lock()
		n.pendingTo = ""
		n.mu.Unlock()
		n.logger.WithField("request", m.RequestID).Info("Request expired")

	case *protocol.Signal:
		if err := n.handleSignal(m); err != nil {
			n.logger.WithError(err).Warn("Failed to handle signaling message")
			n.reportFailure(protocol.ReasonDataChannelError)
		}

	case *protocol.ConnectionEstablished:
		n.logger.WithFields(logrus.Fields{
			"session": m.SessionID,
			"peer":    m.PeerName,
		}).Info("Direct connection established")
		n.mu.Lock()
		dc := n.dc
		n.mu.Unlock()
		if n.opts.OnDataChannel != nil && dc != nil {
			n.opts.OnDataChannel(m.PeerDeviceID, dc)
		}

	case *protocol.ResumeServerMode:
		n.logger.WithFields(logrus.Fields{
			"session": m.SessionID,
			"reason":  m.Reason,
		}).Warn("Reverting to server-relayed transfer")
		n.teardown()
		if n.opts.OnServerMode != nil {
			n.opts.OnServerMode(m.Reason)
		}

	case *protocol.ErrorNotice:
		n.logger.WithFields(logrus.Fields{
			"code":   m.Code,
			"reason": m.Reason,
		}).Warn("Coordinator rejected message")

	default:
		n.logger.WithField("type", msg.Type()).Warn("Unhandled message type")
	}
}
