package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/orbgrid/orbcomm/action"
	"github.com/orbgrid/orbcomm/proto"
)

// fakeConn is a channel-backed stand-in for a hub connection.
type fakeConn struct {
	in     chan proto.Message // delivered to the controller's Read
	out    chan proto.Message // captured Sends
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan proto.Message, 16),
		out:    make(chan proto.Message, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Connect(addr string) error { return nil }

func (f *fakeConn) Send(msg proto.Message) error {
	select {
	case f.out <- msg:
		return nil
	case <-f.closed:
		return errors.New("connection closed")
	}
}

func (f *fakeConn) Read() (proto.Message, error) {
	select {
	case msg := <-f.in:
		return msg, nil
	case <-f.closed:
		return proto.Message{}, errors.New("connection closed")
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func newTestController(t *testing.T) (*Controller, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	controller, err := NewController(conn)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if err := controller.Connect("fake"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { controller.Close() })

	// The first message out is the inbox subscription.
	sub := <-conn.out
	if sub.Type != proto.TypeSubscribe {
		t.Fatalf("Expected inbox subscription first, got %q", sub.Type)
	}
	return controller, conn
}

// respondWith answers the next request on the connection.
func respondWith(t *testing.T, conn *fakeConn, payload any) proto.Message {
	t.Helper()
	select {
	case req := <-conn.out:
		reply, err := proto.NewReply(req, payload)
		if err != nil {
			t.Errorf("NewReply failed: %v", err)
			return proto.Message{}
		}
		conn.in <- reply
		return req
	case <-time.After(time.Second):
		t.Error("Controller never sent a request")
		return proto.Message{}
	}
}

func TestQuerySuccess(t *testing.T) {
	controller, conn := newTestController(t)

	var req proto.Message
	done := make(chan struct{})
	go func() {
		defer close(done)
		req = respondWith(t, conn, proto.SuccessReply("v2.1"))
	}()

	value, err := controller.Query(context.Background(), "abc123", action.QueryHardwareVersion, time.Second)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if value != "v2.1" {
		t.Errorf("Expected value v2.1, got %q", value)
	}

	<-done
	if req.Topic != "orb/abc123/hardware_version" {
		t.Errorf("Unexpected request topic %q", req.Topic)
	}
	if req.ReplyTo == "" || req.CorrID == "" {
		t.Errorf("Request must carry reply inbox and correlation id: %+v", req)
	}
}

func TestQueryRemoteError(t *testing.T) {
	controller, conn := newTestController(t)

	go respondWith(t, conn, proto.FailureReply(proto.ErrKindExecutionError, "sensor offline"))

	_, err := controller.Query(context.Background(), "abc123", action.QueryName, time.Second)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Expected *RemoteError, got %v", err)
	}
	if remote.Kind != proto.ErrKindExecutionError || remote.Message != "sensor offline" {
		t.Errorf("Unexpected remote error: %+v", remote)
	}
}

func TestQueryNoResponse(t *testing.T) {
	controller, conn := newTestController(t)

	// Drain the request but never answer it.
	go func() { <-conn.out }()

	timeout := 80 * time.Millisecond
	start := time.Now()
	_, err := controller.Query(context.Background(), "ghost", action.QueryID, timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Expected ErrNoResponse, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("Query returned before the timeout: %v < %v", elapsed, timeout)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("Query took far longer than the timeout: %v", elapsed)
	}
}

func TestCommandTimeoutIsAmbiguous(t *testing.T) {
	controller, conn := newTestController(t)

	go func() { <-conn.out }()

	_, err := controller.Command(context.Background(), "ghost", action.CommandReboot, 50*time.Millisecond)
	if !errors.Is(err, ErrAmbiguousOutcome) {
		t.Fatalf("Expected ErrAmbiguousOutcome, got %v", err)
	}
	if errors.Is(err, ErrNoResponse) {
		t.Error("Ambiguous command outcome must be distinct from a query's ErrNoResponse")
	}
}

func TestCommandSuccess(t *testing.T) {
	controller, conn := newTestController(t)

	var req proto.Message
	done := make(chan struct{})
	go func() {
		defer close(done)
		req = respondWith(t, conn, proto.SuccessReply("gimbal reset complete"))
	}()

	ack, err := controller.Command(context.Background(), "abc123", action.CommandResetGimbal, time.Second)
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if ack != "gimbal reset complete" {
		t.Errorf("Unexpected ack %q", ack)
	}

	<-done
	if req.Topic != "orb/abc123/command/reset_gimbal" {
		t.Errorf("Unexpected request topic %q", req.Topic)
	}
}

func discoveryReply(t *testing.T, req proto.Message, identity proto.IdentityPayload) proto.Message {
	t.Helper()
	reply, err := proto.NewReply(req, identity)
	if err != nil {
		t.Fatalf("NewReply failed: %v", err)
	}
	return reply
}

func TestDiscoverCollectsAndDeduplicates(t *testing.T) {
	controller, conn := newTestController(t)

	go func() {
		req := <-conn.out
		// Three responders; one answers twice (redelivered probe).
		conn.in <- discoveryReply(t, req, proto.IdentityPayload{ID: "orb-a", Name: "Alpha"})
		conn.in <- discoveryReply(t, req, proto.IdentityPayload{ID: "orb-b"})
		conn.in <- discoveryReply(t, req, proto.IdentityPayload{ID: "orb-a", Name: "Alpha"})
		conn.in <- discoveryReply(t, req, proto.IdentityPayload{ID: "orb-c"})
	}()

	devices, err := controller.Discover(context.Background(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("Expected 3 distinct devices, got %d: %v", len(devices), devices)
	}

	ids := make(map[string]bool)
	for _, d := range devices {
		ids[d.ID] = true
	}
	for _, want := range []string{"orb-a", "orb-b", "orb-c"} {
		if !ids[want] {
			t.Errorf("Missing device %s", want)
		}
	}
}

func TestDiscoverWaitsFullWindow(t *testing.T) {
	controller, conn := newTestController(t)

	go func() {
		req := <-conn.out
		conn.in <- discoveryReply(t, req, proto.IdentityPayload{ID: "orb-fast"})
		// A slow responder well inside the window must still be counted.
		time.Sleep(100 * time.Millisecond)
		conn.in <- discoveryReply(t, req, proto.IdentityPayload{ID: "orb-slow"})
	}()

	start := time.Now()
	devices, err := controller.Discover(context.Background(), 300*time.Millisecond)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("Expected both responders, got %v", devices)
	}
	if elapsed < 300*time.Millisecond {
		t.Errorf("Discover must wait out the whole window, returned after %v", elapsed)
	}
}

func TestDiscoverEmptyFleet(t *testing.T) {
	controller, conn := newTestController(t)

	go func() { <-conn.out }()

	timeout := 100 * time.Millisecond
	start := time.Now()
	devices, err := controller.Discover(context.Background(), timeout)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Empty fleet must not be an error, got %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("Expected no devices, got %v", devices)
	}
	if elapsed < timeout || elapsed > timeout+500*time.Millisecond {
		t.Errorf("Discover should return at roughly the timeout, took %v", elapsed)
	}
}

func TestLateReplyIsIgnored(t *testing.T) {
	controller, conn := newTestController(t)

	reqCh := make(chan proto.Message, 1)
	go func() {
		reqCh <- <-conn.out
	}()

	_, err := controller.Query(context.Background(), "slow", action.QueryName, 50*time.Millisecond)
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("Expected ErrNoResponse, got %v", err)
	}

	// The reply arrives after the window closed; the read loop must drop
	// it without disturbing later requests.
	reply, _ := proto.NewReply(<-reqCh, proto.SuccessReply("too late"))
	conn.in <- reply

	go respondWith(t, conn, proto.SuccessReply("DevOrb"))
	value, err := controller.Query(context.Background(), "abc123", action.QueryName, time.Second)
	if err != nil {
		t.Fatalf("Follow-up query failed: %v", err)
	}
	if value != "DevOrb" {
		t.Errorf("Expected DevOrb, got %q", value)
	}
}
