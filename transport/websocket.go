package transport

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/orbgrid/orbcomm/proto"
)

// WSConn speaks JSON text frames to the hub's WebSocket transport.
type WSConn struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func NewWSConn() *WSConn {
	return &WSConn{}
}

func (t *WSConn) Connect(addr string) error {
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("invalid WebSocket URL: %w", err)
	}

	// Accept bare host:port addresses.
	if u.Scheme == "" || u.Scheme == "tcp" {
		u, err = url.Parse("ws://" + addr)
		if err != nil {
			return fmt.Errorf("invalid WebSocket URL: %w", err)
		}
	}
	if u.Path == "" {
		u.Path = "/"
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket server: %w", err)
	}
	t.conn = conn
	return nil
}

func (t *WSConn) Send(msg proto.Message) error {
	if t.conn == nil {
		return fmt.Errorf("transport is not connected")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	t.wmu.Lock()
	defer t.wmu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send WebSocket message: %w", err)
	}
	return nil
}

func (t *WSConn) Read() (proto.Message, error) {
	if t.conn == nil {
		return proto.Message{}, fmt.Errorf("transport is not connected")
	}

	_, messageBytes, err := t.conn.ReadMessage()
	if err != nil {
		return proto.Message{}, fmt.Errorf("connection closed: %w", err)
	}

	var msg proto.Message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return proto.Message{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return msg, nil
}

func (t *WSConn) Close() error {
	if t.conn == nil {
		return nil
	}

	err := t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		// Still close the underlying connection.
		return t.conn.Close()
	}
	return t.conn.Close()
}
