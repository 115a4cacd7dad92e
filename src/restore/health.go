package restore

import (
	"fmt"
	"net"
	"time"

	"hubkeep/src/registry"
)

// HealthResult is one post-restore reachability probe. Purely
// informational: a still-starting service is not a restore failure.
type HealthResult struct {
	Service   string `json:"service"`
	Addr      string `json:"addr"`
	Reachable bool   `json:"reachable"`
}

// Prober answers a single bounded-time reachability probe.
type Prober interface {
	Probe(addr string) error
}

// TCPProber probes with a plain TCP dial.
type TCPProber struct {
	Timeout time.Duration
}

func (p TCPProber) Probe(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, p.Timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// ProbeServices probes the first declared port of every registry service
// on the local host.
func ProbeServices(p Prober, reg *registry.Registry) []HealthResult {
	var results []HealthResult
	for _, svc := range reg.Services {
		if len(svc.Ports) == 0 {
			continue
		}
		addr := fmt.Sprintf("127.0.0.1:%d", svc.Ports[0])
		results = append(results, HealthResult{
			Service:   svc.Name,
			Addr:      addr,
			Reachable: p.Probe(addr) == nil,
		})
	}
	return results
}
