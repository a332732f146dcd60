package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/orbgrid/orbcomm/proto"
)

// TCPConn speaks newline-delimited JSON to the hub's TCP transport.
type TCPConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	wmu     sync.Mutex
}

func NewTCPConn() *TCPConn {
	return &TCPConn{}
}

func (t *TCPConn) Connect(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	t.conn = conn
	t.scanner = bufio.NewScanner(conn)
	return nil
}

func (t *TCPConn) Send(msg proto.Message) error {
	if t.conn == nil {
		return fmt.Errorf("transport is not connected")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	t.wmu.Lock()
	defer t.wmu.Unlock()
	_, err = t.conn.Write(data)
	return err
}

func (t *TCPConn) Read() (proto.Message, error) {
	for t.scanner.Scan() {
		var msg proto.Message
		if err := json.Unmarshal(t.scanner.Bytes(), &msg); err != nil {
			return proto.Message{}, fmt.Errorf("invalid JSON: %w", err)
		}
		return msg, nil
	}

	if err := t.scanner.Err(); err != nil {
		return proto.Message{}, err
	}
	return proto.Message{}, fmt.Errorf("connection closed")
}

func (t *TCPConn) Close() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}
