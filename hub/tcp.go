package hub

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/orbgrid/orbcomm/proto"
)

// TCPTransport speaks newline-delimited JSON over plain TCP.
type TCPTransport struct {
	Addr         string
	onMessage    func(proto.Message)
	onConnect    func(Session) error
	onDisconnect func(Session)

	sessions map[string]Session
	smu      sync.RWMutex

	// mu guards listener and connected: Start runs on its own goroutine
	// while Shutdown and Meta are called from others.
	mu        sync.Mutex
	listener  net.Listener
	connected bool

	maxSessions int
}

func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{Addr: addr, maxSessions: 64, sessions: make(map[string]Session)}
}

func (t *TCPTransport) Start() error {
	slog.Info("Starting tcp transport", "addr", t.Addr)

	if t.onConnect == nil || t.onDisconnect == nil || t.onMessage == nil {
		return fmt.Errorf("transport callbacks are not wired; register it with a coordinator first")
	}

	l, err := net.Listen("tcp", t.Addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = l
	t.connected = true
	t.mu.Unlock()
	defer func() {
		l.Close()
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			return err // exits when the listener is closed
		}

		t.smu.RLock()
		count := len(t.sessions)
		t.smu.RUnlock()

		if count >= t.maxSessions {
			slog.Warn("Max sessions reached, rejecting connection", "remote_addr", conn.RemoteAddr())
			conn.Close()
			continue
		}

		go t.handleConnection(conn)
	}
}

// ListenAddr returns the bound address, useful when Addr was ":0".
func (t *TCPTransport) ListenAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *TCPTransport) handleConnection(c net.Conn) {
	addr := c.RemoteAddr().String()
	slog.Info("Peer connected", "addr", addr)

	session := newTCPSession(c)

	defer func() {
		t.smu.Lock()
		delete(t.sessions, session.info.ID)
		t.smu.Unlock()

		t.onDisconnect(session)

		c.Close()
		slog.Info("Peer disconnected", "addr", addr, "id", session.info.ID)
	}()

	if err := t.onConnect(session); err != nil {
		slog.Error("Failed to register session", "addr", addr, "error", err.Error())
		return
	}
	t.smu.Lock()
	t.sessions[session.info.ID] = session
	t.smu.Unlock()

	reader := bufio.NewScanner(c)
	for reader.Scan() {
		line := reader.Bytes()
		var msg proto.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Warn("Invalid JSON message received", "error", err, "data", string(line))
			continue
		}
		// The hub, not the peer, decides the sender id.
		msg.Sender = session.info.ID
		slog.Debug("Message received", "type", msg.Type, "topic", msg.Topic, "sender", msg.Sender, "size", len(msg.Payload))
		t.onMessage(msg)
	}

	if err := reader.Err(); err != nil {
		slog.Warn("Connection error", "addr", addr, "error", err)
	}
}

func (t *TCPTransport) Shutdown() error {
	slog.Info("Shutting down tcp transport", "addr", t.Addr)
	t.mu.Lock()
	l := t.listener
	t.connected = false
	t.mu.Unlock()
	if l != nil {
		return l.Close()
	}
	return nil
}

func (t *TCPTransport) OnMessage(fn func(proto.Message)) {
	t.onMessage = fn
}

func (t *TCPTransport) OnConnect(fn func(Session) error) {
	t.onConnect = fn
}

func (t *TCPTransport) OnDisconnect(fn func(Session)) {
	t.onDisconnect = fn
}

func (t *TCPTransport) Meta() TransportMetadata {
	t.smu.RLock()
	count := len(t.sessions)
	t.smu.RUnlock()
	t.mu.Lock()
	connected := t.connected
	t.mu.Unlock()
	return TransportMetadata{
		Protocol:  "tcp",
		Address:   t.Addr,
		Sessions:  count,
		Connected: connected,
	}
}

func (t *TCPTransport) SetMaxSessions(n int) {
	t.maxSessions = n
}

type tcpSession struct {
	info SessionInfo
	conn net.Conn
	wmu  sync.Mutex
}

func newTCPSession(conn net.Conn) *tcpSession {
	return &tcpSession{
		conn: conn,
		info: SessionInfo{
			ID:          newSessionID("tcp"),
			RemoteAddr:  conn.RemoteAddr().String(),
			Protocol:    "tcp",
			ConnectedAt: time.Now(),
		},
	}
}

func (s *tcpSession) Send(msg proto.Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	jsonData = append(jsonData, '\n')

	s.wmu.Lock()
	_, err = s.conn.Write(jsonData)
	s.wmu.Unlock()

	slog.Debug("Sent message", "to", s.info.ID, "type", msg.Type, "topic", msg.Topic, "size", len(msg.Payload))
	return err
}

func (s *tcpSession) Info() *SessionInfo {
	return &s.info
}
