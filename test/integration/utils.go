package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/orbgrid/orbcomm/client"
	"github.com/orbgrid/orbcomm/device"
	"github.com/orbgrid/orbcomm/hub"
	"github.com/orbgrid/orbcomm/transport"
)

func quietLogs() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func getRandomPort(t *testing.T) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to get port: %v", err)
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// startHub runs a hub with TCP and WebSocket transports and returns
// their addresses.
func startHub(t *testing.T) (tcpAddr, wsAddr string) {
	t.Helper()
	quietLogs()

	coordinator := hub.NewCoordinator(hub.NewSessionRegistry(), hub.NewBroker())

	tcpAddr = fmt.Sprintf("127.0.0.1:%d", getRandomPort(t))
	wsAddr = fmt.Sprintf("127.0.0.1:%d", getRandomPort(t))
	coordinator.RegisterTransport(hub.NewTCPTransport(tcpAddr))
	coordinator.RegisterTransport(hub.NewWSTransport(wsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := coordinator.Start(ctx); err != nil {
			t.Errorf("Hub failed: %v", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)
	return tcpAddr, wsAddr
}

func testIdentity(id string) device.Identity {
	return device.Identity{ID: id, Name: "Orb " + id, HardwareVersion: "hw-" + id}
}

// startAgent connects a device agent over TCP and waits for it to come
// online.
func startAgent(t *testing.T, addr string, identity device.Identity, runner device.Runner) {
	t.Helper()
	startAgentConn(t, addr, identity, runner, transport.NewTCPConn())
}

func startAgentConn(t *testing.T, addr string, identity device.Identity, runner device.Runner, conn transport.Conn) {
	t.Helper()
	agent, err := device.NewAgent(identity, conn, runner)
	if err != nil {
		t.Fatalf("Failed to create agent %s: %v", identity.ID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := agent.Run(ctx, addr); err != nil {
			t.Errorf("Agent %s failed: %v", identity.ID, err)
		}
	}()
	time.Sleep(100 * time.Millisecond)
}

func newController(t *testing.T, addr string) *client.Controller {
	t.Helper()
	controller, err := client.NewController(transport.NewTCPConn())
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	if err := controller.Connect(addr); err != nil {
		t.Fatalf("Failed to connect controller: %v", err)
	}
	t.Cleanup(func() { controller.Close() })
	time.Sleep(50 * time.Millisecond)
	return controller
}
