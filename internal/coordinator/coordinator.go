// Package coordinator mediates direct WebRTC connections between pairs
// of devices: discovery broadcasts, the two-party handshake, blind
// signaling relay, per-pair connection state, and deterministic
// fallback to server-relayed transfer when the direct path cannot be
// established or breaks.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

// Handle pushes messages to one connected device. Handles are owned by
// the registry entry for that device and must not be cached elsewhere.
// Send must be non-blocking or time-bounded; a failure never rolls back
// committed state.
type Handle interface {
	Send(msg protocol.Message) error
}

type TransferMode string

const (
	ModeP2P    TransferMode = "P2P"
	ModeServer TransferMode = "SERVER"
)

// TransferModeNotifier is the surface exposed to the file-transfer
// engine. The coordinator calls it once per relevant state transition;
// the engine decides how to route bytes.
type TransferModeNotifier interface {
	NotifyTransferModeChanged(deviceID string, mode TransferMode, peerDeviceID string)
}

type logNotifier struct {
	logger *logrus.Logger
}

func (n *logNotifier) NotifyTransferModeChanged(deviceID string, mode TransferMode, peerDeviceID string) {
	n.logger.WithFields(logrus.Fields{
		"device": deviceID,
		"mode":   mode,
		"peer":   peerDeviceID,
	}).Debug("Transfer mode changed")
}

type Config struct {
	RequestTTL       time.Duration
	SignalingTTL     time.Duration
	HeartbeatTimeout time.Duration
	JanitorInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestTTL:       30 * time.Second,
		SignalingTTL:     60 * time.Second,
		HeartbeatTimeout: 30 * time.Second,
		JanitorInterval:  30 * time.Second,
	}
}

type Options struct {
	Config   Config
	Notifier TransferModeNotifier
	Logger   *logrus.Logger
}

// Coordinator owns all shared coordination state: the device registry,
// the pending-request table and the session table. A single mutex
// guards everything; state-transition methods acquire it, commit the
// transition, release it, and only then perform outbound delivery so a
// slow device never blocks other pairs.
type Coordinator struct {
	mu sync.Mutex

	devices         map[string]*Device
	requests        map[string]*ConnectionRequest
	pendingByPair   map[pairKey]string
	pendingIncoming map[string]string
	pendingOutgoing map[string]string
	sessions        map[string]*Session
	sessionByDevice map[string]string
	activeConns     map[string]string

	janitor  *janitor
	cfg      Config
	notifier TransferModeNotifier
	logger   *logrus.Logger
}

type pairKey struct {
	from string
	to   string
}

func New(opts Options) *Coordinator {
	cfg := opts.Config
	if cfg.RequestTTL == 0 {
		cfg = DefaultConfig()
	}

	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = &logNotifier{logger: log}
	}

	return &Coordinator{
		devices:         make(map[string]*Device),
		requests:        make(map[string]*ConnectionRequest),
		pendingByPair:   make(map[pairKey]string),
		pendingIncoming: make(map[string]string),
		pendingOutgoing: make(map[string]string),
		sessions:        make(map[string]*Session),
		sessionByDevice: make(map[string]string),
		activeConns:     make(map[string]string),
		janitor:         newJanitor(),
		cfg:             cfg,
		notifier:        notifier,
		logger:          log,
	}
}

// HandleMessage is the single dispatch entry the transport calls for
// every decoded inbound envelope. Validation errors are answered with a
// p2p_error rejection on the sender's handle.
func (c *Coordinator) HandleMessage(deviceID string, handle Handle, msg protocol.Message) {
	c.touch(deviceID)

	var err error
	var requestID string

	switch m := msg.(type) {
	case *protocol.EnableP2P:
		c.Enable(deviceID, m.DeviceName, handle)
		return
	case *protocol.DisableP2P:
		c.Disable(deviceID)
		return
	case *protocol.Heartbeat:
		c.Heartbeat(deviceID)
		return
	case *protocol.ConnectRequest:
		_, err = c.RequestConnection(deviceID, m.To)
	case *protocol.AcceptRequest:
		requestID = m.RequestID
		err = c.RespondToRequest(deviceID, m.RequestID, true)
	case *protocol.DeclineRequest:
		requestID = m.RequestID
		err = c.RespondToRequest(deviceID, m.RequestID, false)
	case *protocol.Signal:
		err = c.Forward(m.SessionID, deviceID, m.Kind, m.Payload)
	case *protocol.ConnectedAck:
		err = c.MarkConnected(deviceID, m.SessionID)
	case *protocol.ConnectionFailed:
		err = c.ReportFailure(deviceID, m.SessionID, m.Reason)
	default:
		c.logger.WithFields(logrus.Fields{
			"device": deviceID,
			"type":   msg.Type(),
		}).Warn("Unhandled message type")
		c.reject(deviceID, handle, &protocol.ErrorNotice{
			Code:   protocol.ErrInvalidMessage,
			Reason: "unhandled message type: " + msg.Type().String(),
		})
		return
	}

	if err != nil {
		notice := &protocol.ErrorNotice{
			Code:      protocol.ErrInvalidMessage,
			Reason:    err.Error(),
			RequestID: requestID,
		}
		if cerr, ok := err.(*Error); ok {
			notice.Code = cerr.Code
		}
		c.reject(deviceID, handle, notice)
	}
}

// HandleDisconnect is the transport's disconnect callback. A vanished
// device behaves exactly like one that sent disable_p2p.
func (c *Coordinator) HandleDisconnect(deviceID string) {
	c.Disable(deviceID)
}

// Run drives the session janitor until ctx is cancelled. The loop wakes
// on the earliest scheduled deadline, capped by the janitor interval
// which also paces the heartbeat sweep.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("Coordinator janitor started")
	for {
		wait := c.cfg.JanitorInterval
		if at, ok := c.janitor.next(); ok {
			if d := time.Until(at); d < wait {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info("Coordinator janitor stopped")
			return
		case <-c.janitor.wake:
			timer.Stop()
		case <-timer.C:
		}

		c.sweep(time.Now())
	}
}

type outbound struct {
	deviceID  string
	handle    Handle
	sessionID string
	msg       protocol.Message
}

type modeChange struct {
	deviceID string
	mode     TransferMode
	peer     string
}

// deliver pushes composed notifications outside the lock. A failure for
// one device is logged and never blocks the rest; repeated failures for
// a device inside a session escalate to fallback.
func (c *Coordinator) deliver(outs []outbound) {
	for _, out := range outs {
		if out.handle == nil {
			continue
		}
		if err := out.handle.Send(out.msg); err != nil {
			c.logger.WithFields(logrus.Fields{
				"device": out.deviceID,
				"type":   out.msg.Type(),
			}).WithError(err).Warn("Failed to deliver message")
			if out.sessionID != "" {
				c.recordDeliveryFailure(out.sessionID, out.deviceID)
			}
		}
	}
}

func (c *Coordinator) notifyModes(changes []modeChange) {
	for _, ch := range changes {
		c.notifier.NotifyTransferModeChanged(ch.deviceID, ch.mode, ch.peer)
	}
}

// Two failed deliveries to the same device within one session mean the
// device is effectively unreachable for signaling purposes.
const deliveryFailureLimit = 2

func (c *Coordinator) recordDeliveryFailure(sessionID, deviceID string) {
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	if !ok || sess.State.Terminal() {
		c.mu.Unlock()
		return
	}
	sess.deliveryFailures[deviceID]++
	escalate := sess.deliveryFailures[deviceID] >= deliveryFailureLimit
	c.mu.Unlock()

	if escalate {
		c.TriggerFallback(sessionID, protocol.ReasonDeliveryFailed)
	}
}

func (c *Coordinator) reject(deviceID string, handle Handle, notice *protocol.ErrorNotice) {
	if handle == nil {
		c.mu.Lock()
		if d, ok := c.devices[deviceID]; ok {
			handle = d.handle
		}
		c.mu.Unlock()
	}
	if handle == nil {
		return
	}
	if err := handle.Send(notice); err != nil {
		c.logger.WithField("device", deviceID).WithError(err).Debug("Failed to deliver rejection")
	}
}

// touch refreshes the heartbeat timestamp on any inbound traffic so an
// actively signaling device is never reaped for missing heartbeats.
func (c *Coordinator) touch(deviceID string) {
	c.mu.Lock()
	if d, ok := c.devices[deviceID]; ok {
		d.LastHeartbeat = time.Now()
	}
	c.mu.Unlock()
}
