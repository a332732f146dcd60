package transport

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/orbgrid/orbcomm/proto"
)

// LookupHub finds a hub on the local network via mDNS and returns its
// TCP address as host:port.
func LookupHub(timeout time.Duration) (string, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)
	go func() {
		defer close(entriesCh)
		mdns.Lookup(proto.HubService, entriesCh)
	}()

	select {
	case entry := <-entriesCh:
		if entry == nil {
			return "", fmt.Errorf("no %s service found", proto.HubService)
		}

		var host string
		if entry.AddrV4 != nil {
			host = entry.AddrV4.String()
		} else if entry.AddrV6 != nil {
			host = fmt.Sprintf("[%s]", entry.AddrV6.String())
		} else {
			return "", fmt.Errorf("no valid address found for hub service")
		}

		addr := fmt.Sprintf("%s:%d", host, entry.Port)
		slog.Info("Discovered hub", "service_name", entry.Name, "addr", addr)
		return addr, nil

	case <-time.After(timeout):
		return "", fmt.Errorf("mDNS discovery timeout for %s", proto.HubService)
	}
}
