package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/orbgrid/orbcomm/action"
	"github.com/orbgrid/orbcomm/client"
	"github.com/orbgrid/orbcomm/transport"
)

const usage = `Usage:
  orbctl ping    [--addr host:port] [--timeout 3s]
  orbctl query   --id <device_id> <query_token>   (name, id, hardware_version)
  orbctl command --id <device_id> <command_token> (reboot, shutdown, reset_gimbal)
`

type options struct {
	addr    string
	useWS   bool
	timeout time.Duration
	id      string
}

func commonFlags(fs *flag.FlagSet) *options {
	opts := &options{}
	fs.StringVar(&opts.addr, "addr", "", "hub address (host:port); empty means mDNS lookup")
	fs.BoolVar(&opts.useWS, "websocket", false, "connect over WebSocket instead of TCP")
	fs.DurationVar(&opts.timeout, "timeout", 3*time.Second, "reply collection timeout")
	return opts
}

func main() {
	// Keep command output clean; protocol logging goes to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "ping":
		err = runPing(os.Args[2:])
	case "query":
		err = runQuery(os.Args[2:])
	case "command":
		err = runCommand(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func connect(opts *options) (*client.Controller, error) {
	addr := opts.addr
	if addr == "" {
		found, err := transport.LookupHub(5 * time.Second)
		if err != nil {
			return nil, fmt.Errorf("no hub address given and mDNS lookup failed: %w", err)
		}
		addr = found
	}

	var conn transport.Conn
	if opts.useWS {
		conn = transport.NewWSConn()
	} else {
		conn = transport.NewTCPConn()
	}

	controller, err := client.NewController(conn)
	if err != nil {
		return nil, err
	}
	if err := controller.Connect(addr); err != nil {
		return nil, err
	}
	return controller, nil
}

func runPing(args []string) error {
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.Parse(args)

	controller, err := connect(opts)
	if err != nil {
		return err
	}
	defer controller.Close()

	fmt.Println("Waiting for responses from orbs...")
	devices, err := controller.Discover(context.Background(), opts.timeout)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No orbs found!")
		return nil
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	for _, d := range devices {
		if d.Name != "" {
			fmt.Printf("Discovered orb %s (%s)\n", d.ID, d.Name)
		} else {
			fmt.Printf("Discovered orb %s\n", d.ID)
		}
	}
	return nil
}

func runQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.StringVar(&opts.id, "id", "", "device id to query")
	fs.Parse(args)

	if opts.id == "" {
		return fmt.Errorf("--id is required")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one query token (name, id, hardware_version)")
	}

	// Reject unknown tokens before any network traffic.
	kind, err := action.ParseQuery(fs.Arg(0))
	if err != nil {
		return err
	}

	controller, err := connect(opts)
	if err != nil {
		return err
	}
	defer controller.Close()

	value, err := controller.Query(context.Background(), opts.id, kind, opts.timeout)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s: %s\n", opts.id, kind.Token(), value)
	return nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("command", flag.ExitOnError)
	opts := commonFlags(fs)
	fs.StringVar(&opts.id, "id", "", "device id to command")
	fs.Parse(args)

	if opts.id == "" {
		return fmt.Errorf("--id is required")
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one command token (reboot, shutdown, reset_gimbal)")
	}

	kind, err := action.ParseCommand(fs.Arg(0))
	if err != nil {
		return err
	}

	controller, err := connect(opts)
	if err != nil {
		return err
	}
	defer controller.Close()

	ack, err := controller.Command(context.Background(), opts.id, kind, opts.timeout)
	if errors.Is(err, client.ErrAmbiguousOutcome) {
		return fmt.Errorf("%s on %s: %w", kind.Token(), opts.id, err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s acknowledged %s: %s\n", opts.id, kind.Token(), ack)
	return nil
}
