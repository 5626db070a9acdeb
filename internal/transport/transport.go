// Package transport provides the persistent per-device message channel
// the coordinator pushes notifications through, implemented over
// WebSocket.
package transport

import (
	"github.com/rudransh-shrivastava/peer-link/internal/coordinator"
	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

// Handler consumes decoded inbound envelopes and disconnects. The
// coordinator implements it.
type Handler interface {
	HandleMessage(deviceID string, handle coordinator.Handle, msg protocol.Message)
	HandleDisconnect(deviceID string)
}
