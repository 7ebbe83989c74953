// Package discovery advertises a running studio on the local network so
// viewers on other machines can find it without configuration.
package discovery

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"
)

const ServiceType = "_mugstudio._tcp"

// Studio is a studio instance found on the network.
type Studio struct {
	Instance string   `json:"instance"`
	Addr     string   `json:"addr"`
	Info     []string `json:"info,omitempty"`
}

// NewService builds the mDNS zone for a studio listening on port. An empty
// instance uses the machine's hostname.
func NewService(instance string, port int, ips []net.IP) (*mdns.MDNSService, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}
	if len(ips) == 0 {
		ips = []net.IP{firstIPv4()}
	}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, ips, []string{"MugStudio", "api=/api/v2"})
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	return service, nil
}

// Advertise announces the studio until the returned server is shut down.
func Advertise(instance string, port int) (*mdns.Server, error) {
	service, err := NewService(instance, port, nil)
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"instance": service.Instance,
		"service":  ServiceType,
		"port":     port,
	}).Info("Advertising studio on the local network")
	return server, nil
}

// Browse collects the studios that answer within timeout.
func Browse(timeout time.Duration) ([]Studio, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	var found []Studio
	done := make(chan struct{})
	go func() {
		defer close(done)
		found = collect(entries)
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("mDNS query failed: %w", err)
	}
	return found, nil
}

// collect drains entries, keeping each reachable studio once.
func collect(entries <-chan *mdns.ServiceEntry) []Studio {
	var found []Studio
	seen := make(map[string]bool)
	for e := range entries {
		studio, ok := toStudio(e)
		if !ok || seen[studio.Addr] {
			continue
		}
		seen[studio.Addr] = true
		found = append(found, studio)
	}
	return found
}

func toStudio(e *mdns.ServiceEntry) (Studio, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Studio{}, false
	}
	return Studio{
		Instance: e.Name,
		Addr:     net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port)),
		Info:     e.InfoFields,
	}, true
}

func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}
