package protocol

import (
	"encoding/json"
	"fmt"
)

// registry maps an envelope type tag to a constructor for the concrete
// message. Signal kinds preset Kind so a decoded Signal round-trips.
var registry = map[MessageType]func() Message{
	MsgEnableP2P:             func() Message { return &EnableP2P{} },
	MsgDisableP2P:            func() Message { return &DisableP2P{} },
	MsgHeartbeat:             func() Message { return &Heartbeat{} },
	MsgP2PRequest:            func() Message { return &ConnectRequest{} },
	MsgP2PAccept:             func() Message { return &AcceptRequest{} },
	MsgP2PDecline:            func() Message { return &DeclineRequest{} },
	MsgConnectedAck:          func() Message { return &ConnectedAck{} },
	MsgConnectionFailed:      func() Message { return &ConnectionFailed{} },
	MsgWebRTCOffer:           func() Message { return &Signal{Kind: MsgWebRTCOffer} },
	MsgWebRTCAnswer:          func() Message { return &Signal{Kind: MsgWebRTCAnswer} },
	MsgICECandidate:          func() Message { return &Signal{Kind: MsgICECandidate} },
	MsgDevicesUpdate:         func() Message { return &DevicesUpdate{} },
	MsgRequestReceived:       func() Message { return &RequestReceived{} },
	MsgRequestAccepted:       func() Message { return &RequestAccepted{} },
	MsgRequestDeclined:       func() Message { return &RequestDeclined{} },
	MsgRequestExpired:        func() Message { return &RequestExpired{} },
	MsgConnectionEstablished: func() Message { return &ConnectionEstablished{} },
	MsgResumeServerMode:      func() Message { return &ResumeServerMode{} },
	MsgError:                 func() Message { return &ErrorNotice{} },
}

type envelope struct {
	Type MessageType `json:"type"`
}

type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// EncodeToBytes flattens the message fields into a single JSON object
// with the "type" tag alongside them.
func (c *Codec) EncodeToBytes(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}

	tag, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag

	return json.Marshal(fields)
}

func (c *Codec) DecodeFromBytes(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	construct, ok := registry[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %q", env.Type)
	}

	msg := construct()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
