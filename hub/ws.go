package hub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbgrid/orbcomm/proto"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // fleet network is flat and unauthenticated by design
	},
}

// WSTransport speaks JSON text frames over WebSocket.
type WSTransport struct {
	Addr         string
	server       *http.Server
	onMessage    func(proto.Message)
	onConnect    func(Session) error
	onDisconnect func(Session)

	sessions map[string]Session
	smu      sync.RWMutex

	// mu guards connected: Start runs on its own goroutine while
	// Shutdown and Meta are called from others.
	mu        sync.Mutex
	connected bool

	maxSessions int
}

func NewWSTransport(addr string) *WSTransport {
	t := &WSTransport{
		Addr:        addr,
		maxSessions: 64,
		sessions:    make(map[string]Session),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", t.handleWebSocket)
	t.server = &http.Server{Addr: addr, Handler: mux}
	return t
}

func (t *WSTransport) Start() error {
	slog.Info("Starting websocket transport", "addr", t.Addr)

	if t.onConnect == nil || t.onDisconnect == nil || t.onMessage == nil {
		return fmt.Errorf("transport callbacks are not wired; register it with a coordinator first")
	}

	t.mu.Lock()
	t.connected = true
	t.mu.Unlock()

	err := t.server.ListenAndServe()

	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()

	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (t *WSTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	t.smu.RLock()
	count := len(t.sessions)
	t.smu.RUnlock()

	if count >= t.maxSessions {
		slog.Warn("Max sessions reached, rejecting connection", "remote_addr", r.RemoteAddr)
		conn.Close()
		return
	}

	go t.handleConnection(conn, r.RemoteAddr)
}

func (t *WSTransport) handleConnection(conn *websocket.Conn, remoteAddr string) {
	slog.Info("WebSocket peer connected", "addr", remoteAddr)

	session := newWSSession(conn, remoteAddr)

	defer func() {
		t.smu.Lock()
		delete(t.sessions, session.info.ID)
		t.smu.Unlock()

		t.onDisconnect(session)

		conn.Close()
		slog.Info("WebSocket peer disconnected", "addr", remoteAddr, "id", session.info.ID)
	}()

	if err := t.onConnect(session); err != nil {
		slog.Error("Failed to register websocket session", "addr", remoteAddr, "error", err.Error())
		return
	}
	t.smu.Lock()
	t.sessions[session.info.ID] = session
	t.smu.Unlock()

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket connection error", "addr", remoteAddr, "error", err)
			}
			break
		}

		var msg proto.Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Warn("Invalid JSON message received", "error", err, "data", string(messageBytes))
			continue
		}
		msg.Sender = session.info.ID
		slog.Debug("WebSocket message received", "type", msg.Type, "topic", msg.Topic, "sender", msg.Sender, "size", len(msg.Payload))
		t.onMessage(msg)
	}
}

func (t *WSTransport) Shutdown() error {
	slog.Info("Shutting down websocket transport", "addr", t.Addr)
	t.mu.Lock()
	t.connected = false
	t.mu.Unlock()
	return t.server.Close()
}

func (t *WSTransport) OnMessage(fn func(proto.Message)) {
	t.onMessage = fn
}

func (t *WSTransport) OnConnect(fn func(Session) error) {
	t.onConnect = fn
}

func (t *WSTransport) OnDisconnect(fn func(Session)) {
	t.onDisconnect = fn
}

func (t *WSTransport) Meta() TransportMetadata {
	t.smu.RLock()
	count := len(t.sessions)
	t.smu.RUnlock()
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	return TransportMetadata{
		Protocol:  "websocket",
		Address:   t.Addr,
		Sessions:  count,
		Connected: connected,
	}
}

func (t *WSTransport) SetMaxSessions(n int) {
	t.maxSessions = n
}

type wsSession struct {
	info SessionInfo
	conn *websocket.Conn
	wmu  sync.Mutex // gorilla allows one concurrent writer
}

func newWSSession(conn *websocket.Conn, remoteAddr string) *wsSession {
	return &wsSession{
		conn: conn,
		info: SessionInfo{
			ID:          newSessionID("ws"),
			RemoteAddr:  remoteAddr,
			Protocol:    "websocket",
			ConnectedAt: time.Now(),
		},
	}
}

func (s *wsSession) Send(msg proto.Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	s.wmu.Lock()
	err = s.conn.WriteMessage(websocket.TextMessage, jsonData)
	s.wmu.Unlock()
	if err != nil {
		return err
	}

	slog.Debug("Sent websocket message", "to", s.info.ID, "type", msg.Type, "topic", msg.Topic, "size", len(msg.Payload))
	return nil
}

func (s *wsSession) Info() *SessionInfo {
	return &s.info
}
