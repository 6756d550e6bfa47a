// Package discovery advertises the broker on the local network so the
// mobile app can find it without typing an address.
package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/hashicorp/mdns"
)

const serviceType = "_omcli._tcp"

// Config holds configuration for the mDNS advertiser.
type Config struct {
	InstanceName string // service instance name, e.g. "omcli on my-mac"
	Port         int
	Version      string
}

// Advertiser manages the mDNS service registration across interfaces.
type Advertiser struct {
	servers []*mdns.Server
	cfg     Config
}

// NewAdvertiser validates the config; Start does the actual binding.
func NewAdvertiser(cfg Config) (*Advertiser, error) {
	if cfg.InstanceName == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("port must be > 0")
	}
	return &Advertiser{cfg: cfg}, nil
}

// InstanceName derives a default instance name from the hostname.
func InstanceName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	host = strings.TrimSuffix(host, ".local")
	return fmt.Sprintf("omcli on %s", host)
}

// Start begins advertising on every up, multicast-capable interface.
// OMCLI_MDNS_IFACE narrows advertisement to a single interface.
func (a *Advertiser) Start() error {
	txt := []string{
		"path=/ws/device",
		fmt.Sprintf("version=%s", a.cfg.Version),
	}

	service, err := mdns.NewMDNSService(
		a.cfg.InstanceName,
		serviceType,
		"",
		"",
		a.cfg.Port,
		nil, // IPs (nil = all interfaces)
		txt,
	)
	if err != nil {
		return fmt.Errorf("create mdns service: %w", err)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return fmt.Errorf("list interfaces: %w", err)
	}

	var servers []*mdns.Server
	ifaceFilter := strings.TrimSpace(os.Getenv("OMCLI_MDNS_IFACE"))
	for _, iface := range ifaces {
		iface := iface
		if ifaceFilter != "" && iface.Name != ifaceFilter {
			continue
		}
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagMulticast) == 0 {
			continue
		}

		server, err := mdns.NewServer(&mdns.Config{
			Zone:  service,
			Iface: &iface,
		})
		if err != nil {
			slog.Warn("mdns interface bind failed", "iface", iface.Name, "error", err)
			continue
		}
		slog.Info("mdns interface bound", "iface", iface.Name)
		servers = append(servers, server)
	}

	// Fallback to default interface if none succeeded and no explicit filter.
	if len(servers) == 0 && ifaceFilter == "" {
		server, err := mdns.NewServer(&mdns.Config{Zone: service})
		if err != nil {
			return fmt.Errorf("start mdns server: %w", err)
		}
		servers = append(servers, server)
	}
	if len(servers) == 0 {
		return fmt.Errorf("no mdns interfaces bound (filter=%q)", ifaceFilter)
	}

	a.servers = servers
	return nil
}

// Stop shuts down the mDNS advertisement.
func (a *Advertiser) Stop() error {
	var firstErr error
	for _, server := range a.servers {
		if server == nil {
			continue
		}
		if err := server.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
