package hub

import (
	"fmt"
	"os"

	"github.com/hashicorp/mdns"

	"github.com/orbgrid/orbcomm/proto"
)

// Advertise announces the hub's TCP port over mDNS as proto.HubService
// so controllers and agents can find it without configuration. The
// returned server must be shut down on exit.
func Advertise(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolve hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(host, proto.HubService, "", "", port, nil, []string{"orbcomm hub"})
	if err != nil {
		return nil, fmt.Errorf("create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	return server, nil
}
