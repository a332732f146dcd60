package device

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/orbgrid/orbcomm/action"
)

// Runner executes a command's side effect and returns a human-readable
// result. Tests inject fakes; production agents use ShellRunner.
type Runner interface {
	Run(ctx context.Context, kind action.CommandKind) (string, error)
}

// ShellRunner performs the real device side effects: reboot and
// shutdown go through the OS, gimbal reset is handled in-process.
type ShellRunner struct{}

func (ShellRunner) Run(ctx context.Context, kind action.CommandKind) (string, error) {
	switch kind {
	case action.CommandReboot:
		return runShell(ctx, "sudo reboot")
	case action.CommandShutdown:
		return runShell(ctx, "shutdown now")
	case action.CommandResetGimbal:
		return "gimbal reset complete", nil
	default:
		return "", fmt.Errorf("%w: command kind %d", action.ErrUnknownAction, int(kind))
	}
}

func runShell(ctx context.Context, command string) (string, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("command %q failed: %w: %s", command, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
