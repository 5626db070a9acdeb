package coordinator

import "github.com/rudransh-shrivastava/peer-link/internal/protocol"

// Error is a validation failure surfaced to the originating device as a
// p2p_error rejection. Validation always happens before any state
// mutation, so returning one of these never leaves shared state dirty.
type Error struct {
	Code   protocol.ErrorCode
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

var (
	ErrTargetNotEligible   = &Error{protocol.ErrTargetNotEligible, "target device has not enabled p2p"}
	ErrAlreadyConnected    = &Error{protocol.ErrAlreadyConnected, "device already has an active connection"}
	ErrDuplicatePending    = &Error{protocol.ErrDuplicatePending, "a pending request already exists"}
	ErrUnknownRequest      = &Error{protocol.ErrUnknownRequest, "request not found or already resolved"}
	ErrUnknownSession      = &Error{protocol.ErrUnknownSession, "session not found"}
	ErrNotAParticipant     = &Error{protocol.ErrNotAParticipant, "sender is not a participant of this session"}
	ErrSessionNotSignaling = &Error{protocol.ErrSessionNotSignaling, "session is not in a signaling state"}
	ErrNotEnabled          = &Error{protocol.ErrInvalidMessage, "device has not enabled p2p"}
)
