// Package action defines the closed set of queries and commands an orb
// understands, the canonical string token of each, and the topic scheme
// that addresses them on the wire.
package action

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned when a token or topic does not map to a
// registered query or command.
var ErrUnknownAction = errors.New("unknown action")

// Well-known topics shared by the whole fleet.
const (
	DiscoverTopic = "orb/discover" // broadcast discovery probe
	PresenceTopic = "orb/presence" // unsolicited agent presence broadcasts
)

// Action is a registered query or command kind.
type Action interface {
	Token() string
	Topic(deviceID string) string
}

type QueryKind int

const (
	QueryName QueryKind = iota
	QueryID
	QueryHardwareVersion
)

var queryTokens = map[QueryKind]string{
	QueryName:            "name",
	QueryID:              "id",
	QueryHardwareVersion: "hardware_version",
}

// Token returns the canonical string token of the query kind.
func (k QueryKind) Token() string {
	return queryTokens[k]
}

// Topic returns the request topic addressing this query at a device.
func (k QueryKind) Topic(deviceID string) string {
	return "orb/" + deviceID + "/" + k.Token()
}

func (k QueryKind) String() string {
	return k.Token()
}

// ParseQuery maps a token to its query kind. Matching is case-sensitive
// and exact; unknown tokens fail with ErrUnknownAction.
func ParseQuery(token string) (QueryKind, error) {
	for kind, tok := range queryTokens {
		if tok == token {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: query %q", ErrUnknownAction, token)
}

// Queries returns every registered query kind.
func Queries() []QueryKind {
	return []QueryKind{QueryName, QueryID, QueryHardwareVersion}
}

type CommandKind int

const (
	CommandReboot CommandKind = iota
	CommandShutdown
	CommandResetGimbal
)

var commandTokens = map[CommandKind]string{
	CommandReboot:      "reboot",
	CommandShutdown:    "shutdown",
	CommandResetGimbal: "reset_gimbal",
}

// Token returns the canonical string token of the command kind.
func (k CommandKind) Token() string {
	return commandTokens[k]
}

// Topic returns the request topic addressing this command at a device.
// Commands live under the command/ sub-namespace to keep side-effecting
// requests apart from read-only queries.
func (k CommandKind) Topic(deviceID string) string {
	return "orb/" + deviceID + "/command/" + k.Token()
}

func (k CommandKind) String() string {
	return k.Token()
}

// Disruptive reports whether the command's side effect may take the
// device process down with it. Disruptive commands are acknowledged
// before the effect runs, best-effort.
func (k CommandKind) Disruptive() bool {
	return k == CommandReboot || k == CommandShutdown
}

// ParseCommand maps a token to its command kind. Matching is
// case-sensitive and exact; unknown tokens fail with ErrUnknownAction.
func ParseCommand(token string) (CommandKind, error) {
	for kind, tok := range commandTokens {
		if tok == token {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w: command %q", ErrUnknownAction, token)
}

// Commands returns every registered command kind.
func Commands() []CommandKind {
	return []CommandKind{CommandReboot, CommandShutdown, CommandResetGimbal}
}

// DeviceTopicPattern returns the subscription pattern covering every
// request topic addressed to a device, queries and commands alike.
func DeviceTopicPattern(deviceID string) string {
	return "orb/" + deviceID + "/#"
}

// ParseRequestTopic resolves an incoming request topic for the given
// device back to the action it addresses. Topics for other devices and
// unregistered suffixes fail with ErrUnknownAction.
func ParseRequestTopic(deviceID, topic string) (Action, error) {
	prefix := "orb/" + deviceID + "/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return nil, fmt.Errorf("%w: topic %q is not addressed to %q", ErrUnknownAction, topic, deviceID)
	}
	if token, ok := strings.CutPrefix(rest, "command/"); ok {
		return ParseCommand(token)
	}
	return ParseQuery(rest)
}

// Validate checks that the token tables form a bijection: every kind has
// a non-empty token and no two kinds share one. Go cannot enforce this
// at compile time, so constructors call it at startup.
func Validate() error {
	queries := make(map[string]struct{}, len(queryTokens))
	for _, kind := range Queries() {
		token := kind.Token()
		if token == "" {
			return fmt.Errorf("query kind %d has no token", int(kind))
		}
		if _, dup := queries[token]; dup {
			return fmt.Errorf("query token %q registered twice", token)
		}
		queries[token] = struct{}{}
	}
	commands := make(map[string]struct{}, len(commandTokens))
	for _, kind := range Commands() {
		token := kind.Token()
		if token == "" {
			return fmt.Errorf("command kind %d has no token", int(kind))
		}
		if _, dup := commands[token]; dup {
			return fmt.Errorf("command token %q registered twice", token)
		}
		commands[token] = struct{}{}
	}
	return nil
}
