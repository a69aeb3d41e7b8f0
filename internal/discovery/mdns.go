// Package discovery announces a canvas server on the local network and finds
// the ones already announced.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog/log"
)

const ServiceType = "_canvas._tcp"

// Advertiser is a running mDNS responder. Shutdown stops it.
type Advertiser struct {
	server *mdns.Server
}

// Advertise announces the server under instance (the hostname when empty)
// on port.
func Advertise(instance string, port int) (*Advertiser, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := newService(instance, port, nil)
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	log.Info().Str("module", "discovery").Str("instance", instance).Int("port", port).Msg("advertising")
	return &Advertiser{server: server}, nil
}

// newService builds the zone record; nil ips resolves the host's addresses.
func newService(instance string, port int, ips []net.IP) (*mdns.MDNSService, error) {
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, ips, []string{"path=/api/ws"})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return service, nil
}

func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// Peer is one discovered server.
type Peer struct {
	Instance string
	Addr     string
}

// Browse looks for advertised servers until timeout or ctx is done and
// returns every IPv4 peer that answered.
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	var peers []Peer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			peers = append(peers, Peer{
				Instance: e.Name,
				Addr:     fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port),
			})
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	errc := make(chan error, 1)
	go func() { errc <- mdns.Query(params) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
		// Query returns at its own timeout; wait so entries can be closed.
		<-errc
	}
	close(entries)
	<-done
	if err != nil {
		return peers, fmt.Errorf("mdns browse: %w", err)
	}
	return peers, nil
}
