package protocol

// MessageType tags every envelope on the per-device channel.
type MessageType string

// Inbound (device -> coordinator).
const (
	MsgEnableP2P        MessageType = "enable_p2p"
	MsgDisableP2P       MessageType = "disable_p2p"
	MsgHeartbeat        MessageType = "heartbeat"
	MsgP2PRequest       MessageType = "p2p_request"
	MsgP2PAccept        MessageType = "p2p_accept"
	MsgP2PDecline       MessageType = "p2p_decline"
	MsgConnectedAck     MessageType = "p2p_connected_ack"
	MsgConnectionFailed MessageType = "p2p_connection_failed"
)

// Relayed in both directions.
const (
	MsgWebRTCOffer  MessageType = "webrtc_offer"
	MsgWebRTCAnswer MessageType = "webrtc_answer"
	MsgICECandidate MessageType = "ice_candidate"
)

// Outbound (coordinator -> device).
const (
	MsgDevicesUpdate         MessageType = "p2p_devices_update"
	MsgRequestReceived       MessageType = "p2p_request_received"
	MsgRequestAccepted       MessageType = "p2p_request_accepted"
	MsgRequestDeclined       MessageType = "p2p_request_declined"
	MsgRequestExpired        MessageType = "p2p_request_expired"
	MsgConnectionEstablished MessageType = "p2p_connection_established"
	MsgResumeServerMode      MessageType = "resume_server_mode"
	MsgError                 MessageType = "p2p_error"
)

func (t MessageType) String() string {
	return string(t)
}

// ErrorCode is the machine-readable code carried by p2p_error messages.
type ErrorCode string

const (
	ErrTargetNotEligible   ErrorCode = "target_not_eligible"
	ErrAlreadyConnected    ErrorCode = "already_connected"
	ErrDuplicatePending    ErrorCode = "duplicate_pending"
	ErrUnknownRequest      ErrorCode = "unknown_request"
	ErrUnknownSession      ErrorCode = "unknown_session"
	ErrNotAParticipant     ErrorCode = "not_a_participant"
	ErrSessionNotSignaling ErrorCode = "session_not_signaling"
	ErrDeliveryFailed      ErrorCode = "delivery_failed"
	ErrInvalidMessage      ErrorCode = "invalid_message"
)

func (e ErrorCode) String() string {
	return string(e)
}

// Fallback reasons carried by resume_server_mode.
const (
	ReasonTimeout          = "timeout"
	ReasonICEFailed        = "ice_failed"
	ReasonPeerDisconnected = "peer_disconnected"
	ReasonDeclined         = "declined"
	ReasonDataChannelError = "data_channel_error"
	ReasonDeliveryFailed   = "delivery_failed"
)
