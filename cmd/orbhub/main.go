package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/orbgrid/orbcomm/hub"
)

func main() {
	tcpAddr := flag.String("tcp", "0.0.0.0:7420", "TCP transport bind address")
	wsAddr := flag.String("ws", "0.0.0.0:7421", "WebSocket transport bind address ('' to disable)")
	httpAddr := flag.String("http", "0.0.0.0:7422", "HTTP status API bind address ('' to disable)")
	announce := flag.Bool("mdns", true, "advertise the hub over mDNS")
	mcpEnabled := flag.Bool("mcp", false, "serve MCP tools on stdio")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	coordinator := hub.NewCoordinator(hub.NewSessionRegistry(), hub.NewBroker())

	tcpTransport := hub.NewTCPTransport(*tcpAddr)
	coordinator.RegisterTransport(tcpTransport)

	if *wsAddr != "" {
		coordinator.RegisterTransport(hub.NewWSTransport(*wsAddr))
	}

	if *httpAddr != "" {
		status := hub.NewStatusServer(*httpAddr, coordinator)
		go func() {
			if err := status.Start(); err != nil {
				slog.Error("Status server stopped", "error", err.Error())
			}
		}()
		defer status.Shutdown()
	}

	if *announce {
		port, err := tcpPort(*tcpAddr)
		if err != nil {
			slog.Error("Cannot advertise over mDNS", "error", err.Error())
		} else {
			server, err := hub.Advertise(port)
			if err != nil {
				slog.Error("Failed to start mDNS advertisement", "error", err.Error())
			} else {
				defer server.Shutdown()
			}
		}
	}

	if *mcpEnabled {
		mcpServer := hub.NewMCPServer(coordinator)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server stopped", "error", err.Error())
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := coordinator.Start(ctx); err != nil {
		slog.Error("Hub stopped with error", "error", err.Error())
		os.Exit(1)
	}
}

func tcpPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("parse port %q: %w", portStr, err)
	}
	return port, nil
}
