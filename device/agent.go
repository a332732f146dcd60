// Package device implements the per-orb agent: it advertises the
// device on discovery probes, answers identity queries and executes
// addressed commands.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/orbgrid/orbcomm/action"
	"github.com/orbgrid/orbcomm/proto"
	"github.com/orbgrid/orbcomm/transport"
)

// Agent is the device-side dispatcher. Each inbound request is handled
// on its own goroutine; handlers only read the immutable identity and
// the runner, so no locking is needed.
type Agent struct {
	identity Identity
	conn     transport.Conn
	runner   Runner
	values   map[action.QueryKind]string

	// presence > 0 enables periodic identity broadcasts on
	// action.PresenceTopic.
	presence time.Duration
}

type AgentOption func(*Agent)

// WithPresence enables the unsolicited presence broadcast at the given
// interval.
func WithPresence(interval time.Duration) AgentOption {
	return func(a *Agent) { a.presence = interval }
}

func NewAgent(identity Identity, conn transport.Conn, runner Runner, opts ...AgentOption) (*Agent, error) {
	if err := action.Validate(); err != nil {
		return nil, fmt.Errorf("action registry: %w", err)
	}
	if identity.ID == "" {
		return nil, fmt.Errorf("device identity needs an id")
	}
	if runner == nil {
		runner = ShellRunner{}
	}

	a := &Agent{
		identity: identity,
		conn:     conn,
		runner:   runner,
		values: map[action.QueryKind]string{
			action.QueryName:            identity.Name,
			action.QueryID:              identity.ID,
			action.QueryHardwareVersion: identity.HardwareVersion,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run connects to the hub and serves requests until the context is
// cancelled or the connection drops.
func (a *Agent) Run(ctx context.Context, addr string) error {
	if err := a.conn.Connect(addr); err != nil {
		return fmt.Errorf("connect to hub: %w", err)
	}

	sub, err := proto.NewSubscribe([]string{
		action.DiscoverTopic,
		action.DeviceTopicPattern(a.identity.ID),
	})
	if err != nil {
		return err
	}
	if err := a.conn.Send(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	slog.Info("Agent online", "id", a.identity.ID, "name", a.identity.Name, "hw", a.identity.HardwareVersion)

	if a.presence > 0 {
		go a.broadcastPresence(ctx)
	}

	// Close the connection when the context ends so the read loop
	// unblocks. In-flight handlers finish or are abandoned; they touch
	// no shared mutable state.
	go func() {
		<-ctx.Done()
		a.conn.Close()
	}()

	for {
		msg, err := a.conn.Read()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("Agent shutting down", "id", a.identity.ID)
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if msg.Type != proto.TypeRequest {
			slog.Debug("Ignoring non-request message", "type", msg.Type, "topic", msg.Topic)
			continue
		}
		go a.handleRequest(ctx, msg)
	}
}

func (a *Agent) handleRequest(ctx context.Context, msg proto.Message) {
	slog.Debug("Request received", "topic", msg.Topic, "sender", msg.Sender, "corr_id", msg.CorrID)

	if msg.Topic == action.DiscoverTopic {
		a.handleDiscover(msg)
		return
	}

	act, err := action.ParseRequestTopic(a.identity.ID, msg.Topic)
	if err != nil {
		slog.Warn("Request for unknown action", "topic", msg.Topic)
		a.reply(msg, proto.FailureReply(proto.ErrKindUnknownAction, err.Error()))
		return
	}

	switch kind := act.(type) {
	case action.QueryKind:
		a.reply(msg, proto.SuccessReply(a.values[kind]))
	case action.CommandKind:
		a.handleCommand(ctx, msg, kind)
	}
}

// handleDiscover answers every probe with exactly one identity reply.
// Probes are idempotent: a redelivered probe just earns another reply.
func (a *Agent) handleDiscover(msg proto.Message) {
	identity := proto.IdentityPayload{
		ID:              a.identity.ID,
		Name:            a.identity.Name,
		HardwareVersion: a.identity.HardwareVersion,
	}
	reply, err := proto.NewReply(msg, identity)
	if err != nil {
		slog.Warn("Failed to build discovery reply", "error", err.Error())
		return
	}
	if err := a.conn.Send(reply); err != nil {
		slog.Warn("Failed to send discovery reply", "error", err.Error())
	}
}

func (a *Agent) handleCommand(ctx context.Context, msg proto.Message, kind action.CommandKind) {
	slog.Info("Command received", "command", kind.Token(), "sender", msg.Sender)

	if kind.Disruptive() {
		// Reply before the effect, best-effort: the effect may take the
		// process down before a confirmation could ever be sent.
		a.reply(msg, proto.SuccessReply(kind.Token()+" initiated"))
		if out, err := a.runner.Run(ctx, kind); err != nil {
			slog.Error("Command execution failed after ack", "command", kind.Token(), "error", err.Error())
		} else {
			slog.Info("Command executed", "command", kind.Token(), "output", out)
		}
		return
	}

	out, err := a.runner.Run(ctx, kind)
	if err != nil {
		slog.Warn("Command execution failed", "command", kind.Token(), "error", err.Error())
		a.reply(msg, proto.FailureReply(proto.ErrKindExecutionError, err.Error()))
		return
	}
	a.reply(msg, proto.SuccessReply(out))
}

func (a *Agent) reply(req proto.Message, payload proto.ReplyPayload) {
	if req.ReplyTo == "" {
		slog.Debug("Request has no reply inbox, dropping reply", "topic", req.Topic)
		return
	}
	msg, err := proto.NewReply(req, payload)
	if err != nil {
		slog.Warn("Failed to build reply", "topic", req.Topic, "error", err.Error())
		return
	}
	if err := a.conn.Send(msg); err != nil {
		slog.Warn("Failed to send reply", "topic", req.Topic, "error", err.Error())
	}
}

func (a *Agent) broadcastPresence(ctx context.Context) {
	raw, err := json.Marshal(proto.IdentityPayload{
		ID:              a.identity.ID,
		Name:            a.identity.Name,
		HardwareVersion: a.identity.HardwareVersion,
	})
	if err != nil {
		slog.Warn("Failed to marshal presence payload", "error", err.Error())
		return
	}

	ticker := time.NewTicker(a.presence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := proto.Message{
				Type:      proto.TypePublish,
				Topic:     action.PresenceTopic,
				Payload:   raw,
				Timestamp: time.Now().Unix(),
			}
			if err := a.conn.Send(msg); err != nil {
				slog.Warn("Failed to publish presence", "error", err.Error())
			}
		}
	}
}
