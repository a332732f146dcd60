package device

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orbd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestConfigLiteralValues(t *testing.T) {
	path := writeConfig(t, `
id: orb-7
name: Testbench
hardware_version: v2.1
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	identity := cfg.Identity()
	if identity.ID != "orb-7" || identity.Name != "Testbench" || identity.HardwareVersion != "v2.1" {
		t.Errorf("Unexpected identity: %+v", identity)
	}
}

func TestConfigPropertyCommands(t *testing.T) {
	path := writeConfig(t, `
id_command: "echo orb-from-cmd"
name_command: "printf '  Spaced Orb  '"
hardware_version: v3.0
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	identity := cfg.Identity()
	if identity.ID != "orb-from-cmd" {
		t.Errorf("Expected command output as id, got %q", identity.ID)
	}
	if identity.Name != "Spaced Orb" {
		t.Errorf("Command output should be trimmed, got %q", identity.Name)
	}
	if identity.HardwareVersion != "v3.0" {
		t.Errorf("Literal should win when set, got %q", identity.HardwareVersion)
	}
}

func TestConfigDefaultsOnFailedCommand(t *testing.T) {
	path := writeConfig(t, `
id_command: "exit 1"
name_command: "true"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	identity := cfg.Identity()
	if identity.ID != DefaultID {
		t.Errorf("Failed command should fall back to %q, got %q", DefaultID, identity.ID)
	}
	if identity.Name != DefaultName {
		t.Errorf("Empty command output should fall back to %q, got %q", DefaultName, identity.Name)
	}
	if identity.HardwareVersion != DefaultHardwareVersion {
		t.Errorf("Unset property should fall back to %q, got %q", DefaultHardwareVersion, identity.HardwareVersion)
	}
}

func TestConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestEmptyConfigIdentityDefaults(t *testing.T) {
	identity := Config{}.Identity()
	if identity.ID != DefaultID || identity.Name != DefaultName || identity.HardwareVersion != DefaultHardwareVersion {
		t.Errorf("Unexpected defaults: %+v", identity)
	}
}
