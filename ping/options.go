// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package ping

import (
	"fmt"
	"time"

	"github.com/siemens/oping/engine"
	"github.com/siemens/oping/engine/gopinger"
	"github.com/siemens/oping/engine/native"
	"github.com/siemens/oping/metrics"
	"github.com/siemens/oping/types"
)

// Options is a snapshot of a Session's option set.
type Options struct {
	Timeout time.Duration
	TTL     int
	Family  *types.AddrFamily // nil for either family.
	QoS     uint8
	Source  string
	Device  string
	Data    string // empty for the engine's default payload.
}

// Backend selects the echo engine implementation of a Session.
type Backend int

// Supported echo engines.
const (
	Native Backend = iota // pure-Go ICMP sockets
	GoPing                // github.com/go-ping/ping
)

func (b Backend) String() string {
	switch b {
	case Native:
		return "native"
	case GoPing:
		return "go-ping"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend returns the Backend with the specified name.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "native", "":
		return Native, nil
	case "go-ping", "gopinger":
		return GoPing, nil
	}
	return Native, fmt.Errorf("unknown backend %q, must be native or go-ping", name)
}

// settings collect the SessionOptions before creating the engine.
type settings struct {
	engine       engine.Engine
	backend      Backend
	unprivileged bool
	netnsref     string
	resolver     engine.Resolver
	metrics      *metrics.Metrics
}

// SessionOption can be passed to New when creating new Session objects.
type SessionOption func(*settings)

// WithEngine uses the specified echo engine instead of creating a new one. The
// Session takes over ownership of the engine. Using WithEngine renders the
// other engine-related options ineffective.
func WithEngine(e engine.Engine) SessionOption {
	return func(s *settings) {
		s.engine = e
	}
}

// WithBackend selects the echo engine to create; it defaults to [Native].
func WithBackend(b Backend) SessionOption {
	return func(s *settings) {
		s.backend = b
	}
}

// AsUnprivileged tells the Session to carry out unprivileged pings using
// datagram ICMP sockets instead of raw ICMP sockets.
func AsUnprivileged() SessionOption {
	return func(s *settings) {
		s.unprivileged = true
	}
}

// InNetworkNamespace pings from inside the network namespace referenced by
// the specified filesystem path (such as "/proc/666/ns/net").
func InNetworkNamespace(netnsref string) SessionOption {
	return func(s *settings) {
		s.netnsref = netnsref
	}
}

// WithResolver resolves host names using the specified resolver, such as a
// [github.com/siemens/oping/dnsworker.DnsPool].
func WithResolver(r engine.Resolver) SessionOption {
	return func(s *settings) {
		s.resolver = r
	}
}

// WithMetrics records the outcome of each send in the specified metrics.
func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *settings) {
		s.metrics = m
	}
}

// newEngine returns the echo engine as configured by the settings.
func (s *settings) newEngine() (engine.Engine, error) {
	if s.engine != nil {
		return s.engine, nil
	}
	switch s.backend {
	case GoPing:
		opts := []gopinger.Option{
			gopinger.InNetworkNamespace(s.netnsref),
			gopinger.WithResolver(s.resolver),
		}
		if s.unprivileged {
			opts = append(opts, gopinger.Unprivileged())
		}
		return gopinger.New(opts...)
	default:
		opts := []native.Option{
			native.InNetworkNamespace(s.netnsref),
			native.WithResolver(s.resolver),
		}
		if s.unprivileged {
			opts = append(opts, native.Unprivileged())
		}
		return native.New(opts...)
	}
}
