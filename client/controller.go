// Package client implements the controller side of the orbcomm
// protocol: fleet discovery and addressed queries and commands.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbgrid/orbcomm/action"
	"github.com/orbgrid/orbcomm/proto"
	"github.com/orbgrid/orbcomm/transport"
)

// Device is one discovered fleet member.
type Device struct {
	ID   string
	Name string
}

// Controller issues discovery probes, queries and commands over a hub
// connection. All replies come back on a private inbox topic and are
// demultiplexed to the waiting call by correlation id.
type Controller struct {
	conn  transport.Conn
	inbox string

	mu      sync.Mutex
	pending map[string]chan proto.Message
	closed  bool
}

// NewController validates the action registry and wraps the connection.
// Call Connect before issuing requests.
func NewController(conn transport.Conn) (*Controller, error) {
	if err := action.Validate(); err != nil {
		return nil, fmt.Errorf("action registry: %w", err)
	}
	return &Controller{
		conn:    conn,
		inbox:   "_reply/" + uuid.NewString(),
		pending: make(map[string]chan proto.Message),
	}, nil
}

// Connect dials the hub, subscribes the reply inbox and starts the
// read loop.
func (c *Controller) Connect(addr string) error {
	if err := c.conn.Connect(addr); err != nil {
		return &TransportError{Err: err}
	}

	sub, err := proto.NewSubscribe([]string{c.inbox})
	if err != nil {
		return err
	}
	if err := c.conn.Send(sub); err != nil {
		return &TransportError{Err: err}
	}

	go c.readLoop()
	return nil
}

func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Controller) readLoop() {
	for {
		msg, err := c.conn.Read()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				slog.Warn("Read loop ended", "error", err.Error())
			}
			return
		}
		if msg.Type != proto.TypeReply {
			slog.Debug("Ignoring non-reply message", "type", msg.Type, "topic", msg.Topic)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.CorrID]
		c.mu.Unlock()
		if !ok {
			// Late or duplicate reply to a finished request.
			slog.Debug("Dropping uncorrelated reply", "corr_id", msg.CorrID)
			continue
		}
		select {
		case ch <- msg:
		default:
			slog.Warn("Reply channel full, dropping reply", "corr_id", msg.CorrID)
		}
	}
}

func (c *Controller) register(corrID string, buffer int) chan proto.Message {
	ch := make(chan proto.Message, buffer)
	c.mu.Lock()
	c.pending[corrID] = ch
	c.mu.Unlock()
	return ch
}

func (c *Controller) unregister(corrID string) {
	c.mu.Lock()
	delete(c.pending, corrID)
	c.mu.Unlock()
}

// Discover broadcasts one probe and collects every identity reply that
// arrives within the timeout. The number of devices is unknown in
// advance, so the full window is always waited out. Replies are
// deduplicated by device id; an empty fleet yields an empty slice, not
// an error.
func (c *Controller) Discover(ctx context.Context, timeout time.Duration) ([]Device, error) {
	corrID := uuid.NewString()
	ch := c.register(corrID, 64)
	defer c.unregister(corrID)

	if err := c.sendRequest(action.DiscoverTopic, corrID); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	seen := make(map[string]struct{})
	var devices []Device
	for {
		select {
		case msg := <-ch:
			var identity proto.IdentityPayload
			if err := json.Unmarshal(msg.Payload, &identity); err != nil {
				slog.Warn("Invalid identity payload in discovery reply", "error", err.Error())
				continue
			}
			if identity.ID == "" {
				continue
			}
			if _, dup := seen[identity.ID]; dup {
				continue
			}
			seen[identity.ID] = struct{}{}
			devices = append(devices, Device{ID: identity.ID, Name: identity.Name})

		case <-timer.C:
			return devices, nil

		case <-ctx.Done():
			return devices, ctx.Err()
		}
	}
}

// Query sends one addressed read-only request and waits for exactly one
// reply. A timeout yields ErrNoResponse; a failure reply from the
// device comes back as a *RemoteError.
func (c *Controller) Query(ctx context.Context, deviceID string, kind action.QueryKind, timeout time.Duration) (string, error) {
	return c.request(ctx, kind.Topic(deviceID), timeout, ErrNoResponse)
}

// Command sends one addressed side-effecting request. Identical
// mechanics to Query, but a timeout yields ErrAmbiguousOutcome: the
// device may have executed the command and died before replying.
func (c *Controller) Command(ctx context.Context, deviceID string, kind action.CommandKind, timeout time.Duration) (string, error) {
	return c.request(ctx, kind.Topic(deviceID), timeout, ErrAmbiguousOutcome)
}

func (c *Controller) request(ctx context.Context, topic string, timeout time.Duration, timeoutErr error) (string, error) {
	corrID := uuid.NewString()
	ch := c.register(corrID, 1)
	defer c.unregister(corrID)

	if err := c.sendRequest(topic, corrID); err != nil {
		return "", err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		var reply proto.ReplyPayload
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return "", fmt.Errorf("invalid reply payload: %w", err)
		}
		if !reply.OK {
			return "", &RemoteError{Kind: reply.ErrorKind, Message: reply.Error}
		}
		return reply.Value, nil

	case <-timer.C:
		return "", timeoutErr

	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Controller) sendRequest(topic, corrID string) error {
	msg := proto.Message{
		Type:      proto.TypeRequest,
		Topic:     topic,
		ReplyTo:   c.inbox,
		CorrID:    corrID,
		Timestamp: time.Now().Unix(),
	}
	if err := c.conn.Send(msg); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}
