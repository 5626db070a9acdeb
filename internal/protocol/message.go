package protocol

import "encoding/json"

type Message interface {
	Type() MessageType
}

type EnableP2P struct {
	DeviceName string `json:"device_name"`
}

func (*EnableP2P) Type() MessageType { return MsgEnableP2P }

type DisableP2P struct{}

func (*DisableP2P) Type() MessageType { return MsgDisableP2P }

type Heartbeat struct{}

func (*Heartbeat) Type() MessageType { return MsgHeartbeat }

type ConnectRequest struct {
	To string `json:"to"`
}

func (*ConnectRequest) Type() MessageType { return MsgP2PRequest }

type AcceptRequest struct {
	RequestID string `json:"request_id"`
}

func (*AcceptRequest) Type() MessageType { return MsgP2PAccept }

type DeclineRequest struct {
	RequestID string `json:"request_id"`
}

func (*DeclineRequest) Type() MessageType { return MsgP2PDecline }

// Signal carries a webrtc_offer, webrtc_answer or ice_candidate envelope.
// The payload is opaque to the coordinator; it only reads the routing
// fields and re-tags the message with the sender before forwarding.
type Signal struct {
	Kind           MessageType     `json:"-"`
	SessionID      string          `json:"session_id"`
	TargetDeviceID string          `json:"target_device_id,omitempty"`
	FromDeviceID   string          `json:"from_device_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

func (s *Signal) Type() MessageType { return s.Kind }

type ConnectedAck struct {
	SessionID string `json:"session_id"`
}

func (*ConnectedAck) Type() MessageType { return MsgConnectedAck }

type ConnectionFailed struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

func (*ConnectionFailed) Type() MessageType { return MsgConnectionFailed }

type DeviceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type DevicesUpdate struct {
	Devices []DeviceInfo `json:"devices"`
}

func (*DevicesUpdate) Type() MessageType { return MsgDevicesUpdate }

type RequestReceived struct {
	RequestID string `json:"request_id"`
	From      string `json:"from"`
	FromName  string `json:"from_name"`
}

func (*RequestReceived) Type() MessageType { return MsgRequestReceived }

type RequestAccepted struct {
	RequestID   string `json:"request_id"`
	StartWebRTC bool   `json:"start_webrtc"`
	IsInitiator bool   `json:"is_initiator"`
}

func (*RequestAccepted) Type() MessageType { return MsgRequestAccepted }

type RequestDeclined struct {
	RequestID string `json:"request_id"`
}

func (*RequestDeclined) Type() MessageType { return MsgRequestDeclined }

type RequestExpired struct {
	RequestID string `json:"request_id"`
}

func (*RequestExpired) Type() MessageType { return MsgRequestExpired }

type ConnectionEstablished struct {
	SessionID    string `json:"session_id"`
	PeerDeviceID string `json:"peer_device_id"`
	PeerName     string `json:"peer_name"`
}

func (*ConnectionEstablished) Type() MessageType { return MsgConnectionEstablished }

type ResumeServerMode struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

func (*ResumeServerMode) Type() MessageType { return MsgResumeServerMode }

type ErrorNotice struct {
	Code      ErrorCode `json:"code"`
	Reason    string    `json:"reason"`
	RequestID string    `json:"request_id,omitempty"`
}

func (*ErrorNotice) Type() MessageType { return MsgError }
