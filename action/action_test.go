package action

import (
	"errors"
	"testing"
)

func TestQueryTokenRoundTrip(t *testing.T) {
	for _, kind := range Queries() {
		parsed, err := ParseQuery(kind.Token())
		if err != nil {
			t.Fatalf("ParseQuery(%q) failed: %v", kind.Token(), err)
		}
		if parsed != kind {
			t.Errorf("ParseQuery(%q) = %v, want %v", kind.Token(), parsed, kind)
		}
	}
}

func TestCommandTokenRoundTrip(t *testing.T) {
	for _, kind := range Commands() {
		parsed, err := ParseCommand(kind.Token())
		if err != nil {
			t.Fatalf("ParseCommand(%q) failed: %v", kind.Token(), err)
		}
		if parsed != kind {
			t.Errorf("ParseCommand(%q) = %v, want %v", kind.Token(), parsed, kind)
		}
	}
}

func TestParseUnknownTokens(t *testing.T) {
	for _, token := range []string{"", "bogus", "Name", "NAME", "name ", "reboot"} {
		if _, err := ParseQuery(token); !errors.Is(err, ErrUnknownAction) {
			t.Errorf("ParseQuery(%q) should fail with ErrUnknownAction, got %v", token, err)
		}
	}

	if _, err := ParseCommand("name"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("ParseCommand(\"name\") should fail with ErrUnknownAction, got %v", err)
	}
	if _, err := ParseCommand("Reboot"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("ParseCommand is case-sensitive; \"Reboot\" should not parse, got %v", err)
	}
}

func TestTopicDeterminism(t *testing.T) {
	cases := []struct {
		action Action
		want   string
	}{
		{QueryName, "orb/abc123/name"},
		{QueryID, "orb/abc123/id"},
		{QueryHardwareVersion, "orb/abc123/hardware_version"},
		{CommandReboot, "orb/abc123/command/reboot"},
		{CommandShutdown, "orb/abc123/command/shutdown"},
		{CommandResetGimbal, "orb/abc123/command/reset_gimbal"},
	}
	for _, c := range cases {
		got := c.action.Topic("abc123")
		if got != c.want {
			t.Errorf("Topic(%q) = %q, want %q", c.action.Token(), got, c.want)
		}
		// Pure function: repeated calls yield the same string.
		if again := c.action.Topic("abc123"); again != got {
			t.Errorf("Topic(%q) is not stable: %q then %q", c.action.Token(), got, again)
		}
	}
}

func TestParseRequestTopic(t *testing.T) {
	act, err := ParseRequestTopic("orb-7", "orb/orb-7/hardware_version")
	if err != nil {
		t.Fatalf("ParseRequestTopic failed: %v", err)
	}
	if kind, ok := act.(QueryKind); !ok || kind != QueryHardwareVersion {
		t.Errorf("Expected QueryHardwareVersion, got %v", act)
	}

	act, err = ParseRequestTopic("orb-7", "orb/orb-7/command/reset_gimbal")
	if err != nil {
		t.Fatalf("ParseRequestTopic failed: %v", err)
	}
	if kind, ok := act.(CommandKind); !ok || kind != CommandResetGimbal {
		t.Errorf("Expected CommandResetGimbal, got %v", act)
	}
}

func TestParseRequestTopicRejectsForeignAndUnknown(t *testing.T) {
	cases := []struct {
		deviceID string
		topic    string
	}{
		{"orb-7", "orb/other/name"},             // addressed to another device
		{"orb-7", "orb/orb-7/bogus"},            // unregistered query
		{"orb-7", "orb/orb-7/command/bogus"},    // unregistered command
		{"orb-7", "orb/orb-7/command/name"},     // query token in command namespace
		{"orb-7", "orb/orb-7/reboot"},           // command token outside command namespace
		{"orb-7", "something/else"},             // wrong prefix entirely
	}
	for _, c := range cases {
		if _, err := ParseRequestTopic(c.deviceID, c.topic); !errors.Is(err, ErrUnknownAction) {
			t.Errorf("ParseRequestTopic(%q, %q) should fail with ErrUnknownAction, got %v", c.deviceID, c.topic, err)
		}
	}
}

func TestDisruptiveCommands(t *testing.T) {
	if !CommandReboot.Disruptive() {
		t.Error("reboot should be disruptive")
	}
	if !CommandShutdown.Disruptive() {
		t.Error("shutdown should be disruptive")
	}
	if CommandResetGimbal.Disruptive() {
		t.Error("reset_gimbal should not be disruptive")
	}
}

func TestDeviceTopicPatternCoversAllActions(t *testing.T) {
	pattern := DeviceTopicPattern("orb-7")
	if pattern != "orb/orb-7/#" {
		t.Errorf("DeviceTopicPattern = %q, want orb/orb-7/#", pattern)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(); err != nil {
		t.Errorf("Registry should validate cleanly: %v", err)
	}
}
