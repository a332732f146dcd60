package hub

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/orbgrid/orbcomm/proto"
)

// Broker fans messages out to the sessions whose subscription patterns
// match the message topic.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[Session]struct{} // pattern -> set of sessions
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[Session]struct{}),
	}
}

func (b *Broker) Subscribe(pattern string, session Session) {
	slog.Debug("Subscribing", "pattern", pattern, "sessionId", session.Info().ID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[pattern] == nil {
		b.subs[pattern] = make(map[Session]struct{})
	}
	b.subs[pattern][session] = struct{}{}
}

func (b *Broker) Unsubscribe(pattern string, session Session) {
	slog.Debug("Unsubscribing", "pattern", pattern, "sessionId", session.Info().ID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subs[pattern]; ok {
		delete(subs, session)
		if len(subs) == 0 {
			delete(b.subs, pattern)
		}
	}
}

// DropSession removes a session from every pattern it is subscribed to.
// Called when its connection goes away.
func (b *Broker) DropSession(session Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for pattern, subs := range b.subs {
		delete(subs, session)
		if len(subs) == 0 {
			delete(b.subs, pattern)
		}
	}
}

// Publish delivers the message to every session with a matching
// subscription and returns how many deliveries succeeded. A session
// matching several patterns receives the message once.
func (b *Broker) Publish(msg proto.Message) int {
	b.mu.RLock()
	targets := make(map[Session]struct{})
	for pattern, subs := range b.subs {
		if !TopicMatches(pattern, msg.Topic) {
			continue
		}
		for session := range subs {
			targets[session] = struct{}{}
		}
	}
	b.mu.RUnlock()

	sent := 0
	for session := range targets {
		if err := session.Send(msg); err != nil {
			slog.Warn("Failed to deliver message to subscriber",
				"type", msg.Type, "topic", msg.Topic, "sessionId", session.Info().ID, "error", err.Error())
			continue
		}
		sent++
	}
	slog.Debug("Message published",
		"type", msg.Type,
		"topic", msg.Topic,
		"sender", msg.Sender,
		"subscribers", sent,
		"size", len(msg.Payload),
	)
	return sent
}

// Subscribers returns the sessions whose patterns match the topic.
func (b *Broker) Subscribers(topic string) []Session {
	b.mu.RLock()
	defer b.mu.RUnlock()

	targets := make(map[Session]struct{})
	for pattern, subs := range b.subs {
		if !TopicMatches(pattern, topic) {
			continue
		}
		for session := range subs {
			targets[session] = struct{}{}
		}
	}
	sessions := make([]Session, 0, len(targets))
	for session := range targets {
		sessions = append(sessions, session)
	}
	return sessions
}

// Topics returns the current subscription table as pattern -> session
// ids, for the status API.
func (b *Broker) Topics() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]string, len(b.subs))
	for pattern, subs := range b.subs {
		ids := make([]string, 0, len(subs))
		for session := range subs {
			ids = append(ids, session.Info().ID)
		}
		out[pattern] = ids
	}
	return out
}

// TopicMatches reports whether a subscription pattern covers a concrete
// topic. Patterns are slash-separated; "+" matches exactly one segment
// and a trailing "#" matches one or more remaining segments, so
// "orb/abc123/#" covers "orb/abc123/name" and "orb/abc123/command/reboot"
// but not the bare "orb/abc123".
func TopicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")

	for i, seg := range pp {
		if i >= len(tp) {
			return false
		}
		if seg == "#" {
			return i == len(pp)-1
		}
		if seg != "+" && seg != tp[i] {
			return false
		}
	}
	return len(pp) == len(tp)
}
