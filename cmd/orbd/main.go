package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/orbgrid/orbcomm/device"
	"github.com/orbgrid/orbcomm/transport"
)

func main() {
	configPath := flag.String("config", "orbd.yaml", "agent configuration file")
	addr := flag.String("addr", "", "hub address (host:port); empty means mDNS lookup")
	useWS := flag.Bool("websocket", false, "connect over WebSocket instead of TCP")
	presence := flag.Duration("presence", 0, "presence broadcast interval (0 disables)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	var identity device.Identity
	if cfg, err := device.LoadConfig(*configPath); err != nil {
		slog.Warn("Config not loaded, falling back to defaults", "path", *configPath, "error", err.Error())
		identity = device.Config{}.Identity()
	} else {
		identity = cfg.Identity()
	}

	hubAddr := *addr
	if hubAddr == "" {
		found, err := transport.LookupHub(5 * time.Second)
		if err != nil {
			slog.Error("No hub address configured and mDNS lookup failed", "error", err.Error())
			os.Exit(1)
		}
		hubAddr = found
	}

	var conn transport.Conn
	if *useWS {
		conn = transport.NewWSConn()
	} else {
		conn = transport.NewTCPConn()
	}

	var opts []device.AgentOption
	if *presence > 0 {
		opts = append(opts, device.WithPresence(*presence))
	}

	agent, err := device.NewAgent(identity, conn, device.ShellRunner{}, opts...)
	if err != nil {
		slog.Error("Failed to create agent", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := agent.Run(ctx, hubAddr); err != nil {
		slog.Error("Agent stopped with error", "error", err.Error())
		os.Exit(1)
	}
}
