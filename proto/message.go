package proto

import (
	"encoding/json"
	"time"
)

// Message types carried on the wire.
const (
	TypeRequest     = "request"     // expects replies on ReplyTo
	TypeReply       = "reply"       // answer to a request, correlated by CorrID
	TypePublish     = "publish"     // plain fan-out, no reply path
	TypeSubscribe   = "subscribe"   // control: add topic patterns for the sender
	TypeUnsubscribe = "unsubscribe" // control: remove topic patterns for the sender
)

// Error kinds carried in a failure ReplyPayload.
const (
	ErrKindUnknownAction  = "unknown_action"
	ErrKindExecutionError = "execution_error"
)

// HubService is the mDNS service type under which a hub advertises its
// TCP endpoint, shared by the hub and the client-side lookup.
const HubService = "_orbcomm._tcp"

type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic,omitempty"`    // routing key (e.g. "orb/abc123/name")
	Sender    string          `json:"sender,omitempty"`   // session id, injected by the hub transport
	ReplyTo   string          `json:"reply_to,omitempty"` // inbox topic for replies (requests only)
	CorrID    string          `json:"corr_id,omitempty"`  // correlates replies to their request
	Payload   json.RawMessage `json:"payload,omitempty"`  // raw JSON; schema depends on Type/Topic
	Timestamp int64           `json:"timestamp"`          // UNIX timestamp in seconds
}

// ReplyPayload is the success/failure envelope every query and command
// answer carries.
type ReplyPayload struct {
	OK        bool   `json:"ok"`
	Value     string `json:"value,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// IdentityPayload describes a device. Sent in discovery replies and
// presence broadcasts.
type IdentityPayload struct {
	ID              string `json:"id"`
	Name            string `json:"name,omitempty"`
	HardwareVersion string `json:"hardware_version,omitempty"`
}

type SubscriptionPayload struct {
	Topics []string `json:"topics"` // e.g. ["orb/discover", "orb/abc123/#"]
}

func SuccessReply(value string) ReplyPayload {
	return ReplyPayload{OK: true, Value: value}
}

func FailureReply(kind, message string) ReplyPayload {
	return ReplyPayload{OK: false, ErrorKind: kind, Error: message}
}

// NewReply builds the reply message for a request, addressed to the
// requester's inbox and carrying the request's correlation id.
func NewReply(req Message, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:      TypeReply,
		Topic:     req.ReplyTo,
		CorrID:    req.CorrID,
		Payload:   raw,
		Timestamp: time.Now().Unix(),
	}, nil
}

// NewSubscribe builds the control message registering topic patterns for
// the sending session.
func NewSubscribe(topics []string) (Message, error) {
	raw, err := json.Marshal(SubscriptionPayload{Topics: topics})
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeSubscribe, Payload: raw, Timestamp: time.Now().Unix()}, nil
}

func NewUnsubscribe(topics []string) (Message, error) {
	raw, err := json.Marshal(SubscriptionPayload{Topics: topics})
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeUnsubscribe, Payload: raw, Timestamp: time.Now().Unix()}, nil
}
