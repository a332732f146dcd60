package device

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults used when a property is neither configured nor resolvable.
const (
	DefaultID              = "UnknownOrb"
	DefaultName            = "DevOrb"
	DefaultHardwareVersion = "UnknownHWVersion"
)

// Identity is the immutable description of one device, fixed for the
// process lifetime.
type Identity struct {
	ID              string
	Name            string
	HardwareVersion string
}

// Config describes where the agent's identity comes from. Each property
// is either a literal value or a shell command whose trimmed stdout is
// the value, matching how orbs store identity on persistent media.
type Config struct {
	ID        string `yaml:"id"`
	IDCommand string `yaml:"id_command"`

	Name        string `yaml:"name"`
	NameCommand string `yaml:"name_command"`

	HardwareVersion        string `yaml:"hardware_version"`
	HardwareVersionCommand string `yaml:"hardware_version_command"`
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Identity resolves the configured properties. Failed property commands
// fall back to defaults with a warning rather than aborting startup.
func (c Config) Identity() Identity {
	return Identity{
		ID:              resolveProperty(c.ID, c.IDCommand, DefaultID),
		Name:            resolveProperty(c.Name, c.NameCommand, DefaultName),
		HardwareVersion: resolveProperty(c.HardwareVersion, c.HardwareVersionCommand, DefaultHardwareVersion),
	}
}

func resolveProperty(literal, command, fallback string) string {
	if literal != "" {
		return literal
	}
	if command == "" {
		return fallback
	}
	out, err := exec.Command("sh", "-c", command).Output()
	if err != nil {
		slog.Warn("Property command failed, using default", "command", command, "default", fallback, "error", err.Error())
		return fallback
	}
	value := strings.TrimSpace(string(out))
	if value == "" {
		return fallback
	}
	return value
}
