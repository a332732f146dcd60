package hub

import (
	"time"

	"github.com/google/uuid"

	"github.com/orbgrid/orbcomm/proto"
)

// Transport accepts connections and turns them into sessions. The
// coordinator wires the callbacks before Start.
type Transport interface {
	Start() error
	Shutdown() error
	OnMessage(func(proto.Message))
	OnConnect(func(Session) error)
	OnDisconnect(func(Session))
	Meta() TransportMetadata
}

type TransportMetadata struct {
	Protocol  string `json:"protocol"` // "tcp" or "websocket"
	Address   string `json:"address"`  // bind address
	Sessions  int    `json:"sessions"` // current session count
	Connected bool   `json:"connected"`
}

// SessionInfo is the per-connection metadata kept by the hub.
type SessionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	Protocol    string    `json:"protocol"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Session is one connected peer (controller or device agent).
type Session interface {
	Send(proto.Message) error
	Info() *SessionInfo
}

func newSessionID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
