// Package transport provides the client-side connection to the hub,
// shared by the controller and the device agent.
package transport

import "github.com/orbgrid/orbcomm/proto"

// Conn is a bidirectional message stream to the hub. Send is safe for
// concurrent use; Read is meant for a single reader loop.
type Conn interface {
	Connect(addr string) error
	Send(msg proto.Message) error
	Read() (proto.Message, error)
	Close() error
}
