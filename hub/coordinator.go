package hub

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/orbgrid/orbcomm/proto"
)

// Coordinator owns the broker and the transports and routes every
// inbound message. Requests, replies and publishes all fan out through
// the broker; a reply reaches its requester because the requester
// subscribed its own inbox topic before sending.
type Coordinator struct {
	Registry   *SessionRegistry
	Broker     *Broker
	Transports []Transport
}

func NewCoordinator(registry *SessionRegistry, broker *Broker) *Coordinator {
	if registry == nil {
		registry = NewSessionRegistry()
	}
	if broker == nil {
		broker = NewBroker()
	}
	return &Coordinator{Registry: registry, Broker: broker}
}

// RegisterTransport wires a transport's lifecycle callbacks into the
// registry and broker. Must be called before Start.
func (c *Coordinator) RegisterTransport(t Transport) {
	t.OnMessage(c.Handle)
	t.OnConnect(func(session Session) error {
		c.Registry.Store(session)
		slog.Info("Registered session", "id", session.Info().ID, "addr", session.Info().RemoteAddr)
		return nil
	})
	t.OnDisconnect(func(session Session) {
		c.Registry.Delete(session.Info().ID)
		c.Broker.DropSession(session)
	})
	c.Transports = append(c.Transports, t)
}

// Start runs every registered transport until the context is cancelled,
// then shuts them down.
func (c *Coordinator) Start(ctx context.Context) error {
	for _, t := range c.Transports {
		go func(t Transport) {
			if err := t.Start(); err != nil {
				slog.Error("Transport stopped", "protocol", t.Meta().Protocol, "error", err.Error())
			}
		}(t)
	}

	<-ctx.Done()
	slog.Info("Shutting down transports")
	for _, t := range c.Transports {
		if err := t.Shutdown(); err != nil {
			slog.Error("Error shutting down transport", "protocol", t.Meta().Protocol, "error", err.Error())
		}
	}
	return nil
}

// Handle dispatches one inbound message.
func (c *Coordinator) Handle(msg proto.Message) {
	switch msg.Type {
	case proto.TypeRequest, proto.TypeReply, proto.TypePublish:
		// A request to a topic nobody subscribes is dropped here; the
		// requester observes that as a timeout.
		c.Broker.Publish(msg)

	case proto.TypeSubscribe, proto.TypeUnsubscribe:
		c.handleSubscription(msg)

	default:
		slog.Warn("Unhandled message type", "type", msg.Type, "sender", msg.Sender)
	}
}

func (c *Coordinator) handleSubscription(msg proto.Message) {
	session, ok := c.Registry.Get(msg.Sender)
	if !ok {
		slog.Warn("Session ID not found", "sender", msg.Sender)
		return
	}
	var sub proto.SubscriptionPayload
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		slog.Warn("Invalid subscription payload", "sender", msg.Sender, "error", err.Error())
		return
	}
	for _, pattern := range sub.Topics {
		if msg.Type == proto.TypeSubscribe {
			c.Broker.Subscribe(pattern, session)
		} else {
			c.Broker.Unsubscribe(pattern, session)
		}
	}
}
