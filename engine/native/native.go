// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package native

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/siemens/oping/engine"
	"github.com/siemens/oping/types"

	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// Defaults for the engine options.
const (
	DefaultTimeout = time.Second
	DefaultTTL     = 255
	maxDataLen     = 65507 - 8 // largest IPv4 datagram payload minus the ICMP header
)

var defaultData = []byte(strings.Repeat("oping ", 10)[:56])

// Engine is a pure-Go ICMP echo engine. Engines must not be used
// concurrently.
type Engine struct {
	timeout time.Duration
	ttl     int
	qos     uint8
	af      int32
	data    []byte
	source  netip.Addr
	device  string

	privileged bool
	netnsref   string             // path referencing a network namespace, or "".
	netns      relations.Relation // network namespace to open sockets in, or nil.
	resolver   engine.Resolver

	hosts   []*host
	conns   map[types.AddrFamily]*conn
	results engine.Record // outcome of the most recent send, or nil.
	closed  bool
}

var _ engine.Engine = (*Engine)(nil)

// Option can be passed to New when creating new Engine objects.
type Option func(*Engine)

// Unprivileged tells the Engine to use unprivileged datagram ICMP sockets
// instead of raw sockets.
func Unprivileged() Option {
	return func(e *Engine) {
		e.privileged = false
	}
}

// InNetworkNamespace optionally opens all sockets of an Engine inside the
// network namespace referenced by the specified filesystem path (such as
// "/proc/666/ns/net"). An empty path keeps the caller's network namespace.
func InNetworkNamespace(netnsref string) Option {
	return func(e *Engine) {
		if netnsref == "" {
			return
		}
		e.netnsref = netnsref
		e.netns = ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET)
	}
}

// WithResolver sets the resolver for host names, instead of the system
// resolver.
func WithResolver(r engine.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.resolver = r
		}
	}
}

// New returns a new Engine without any hosts, configured with the default
// timeout of 1s, TTL 255, either address family, and 56 bytes of payload.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		timeout:    DefaultTimeout,
		ttl:        DefaultTTL,
		af:         engine.AFUnspec,
		data:       defaultData,
		privileged: true,
		resolver:   net.DefaultResolver,
		conns:      map[types.AddrFamily]*conn{},
	}
	for _, opt := range options {
		opt(e)
	}
	if e.netns != nil {
		if _, err := os.Stat(e.netnsref); err != nil {
			return nil, fmt.Errorf("invalid network namespace: %w", err)
		}
	}
	return e, nil
}

// SetOption applies a single option, see the [engine.OptionTag] constants for
// the value encodings. In case of an invalid value the configuration is left
// unchanged.
func (e *Engine) SetOption(opt engine.OptionTag, value []byte) error {
	if e.closed {
		return net.ErrClosed
	}
	switch opt {
	case engine.OptTimeout:
		timeout, err := engine.GetNumber[float64](value)
		if err != nil {
			return err
		}
		if math.IsNaN(timeout) || math.IsInf(timeout, 0) || timeout <= 0 {
			return fmt.Errorf("invalid timeout %v, must be positive", timeout)
		}
		e.timeout = time.Duration(timeout * float64(time.Second))
	case engine.OptTTL:
		ttl, err := engine.GetNumber[int32](value)
		if err != nil {
			return err
		}
		if ttl < 1 || ttl > 255 {
			return fmt.Errorf("invalid TTL %d, must be in [1..255]", ttl)
		}
		e.ttl = int(ttl)
	case engine.OptAddrFamily:
		af, err := engine.GetNumber[int32](value)
		if err != nil {
			return err
		}
		switch af {
		case engine.AFUnspec, engine.AFInet, engine.AFInet6:
		default:
			return fmt.Errorf("unsupported address family %d", af)
		}
		e.af = af
	case engine.OptQoS:
		qos, err := engine.GetNumber[uint8](value)
		if err != nil {
			return err
		}
		e.qos = qos
	case engine.OptData:
		if len(value) > maxDataLen {
			return fmt.Errorf("payload of %d bytes too large, max. %d bytes", len(value), maxDataLen)
		}
		if len(value) == 0 {
			e.data = defaultData
			break
		}
		e.data = append([]byte(nil), value...)
	case engine.OptSource:
		var source netip.Addr
		if len(value) > 0 {
			var err error
			source, err = netip.ParseAddr(string(value))
			if err != nil {
				return fmt.Errorf("invalid source address: %w", err)
			}
		}
		e.source = source.Unmap()
		e.closeConns()
	case engine.OptDevice:
		device := string(value)
		if device != "" {
			if _, err := e.interfaceByName(device); err != nil {
				return fmt.Errorf("invalid device %q: %w", device, err)
			}
		}
		e.device = device
		e.closeConns()
	default:
		return fmt.Errorf("option %s: %w", opt, engine.ErrUnsupported)
	}
	log.Debugf("native engine: set %s option", opt)
	return nil
}

// conn returns the socket for the specified address family, opening it if
// necessary.
func (e *Engine) conn(family types.AddrFamily) (*conn, error) {
	if c, ok := e.conns[family]; ok {
		return c, nil
	}
	res, err := e.execute(func() interface{} {
		c, err := openConn(family, e.privileged, e.source, e.device)
		if err != nil {
			return err
		}
		return c
	})
	if err != nil {
		return nil, err
	}
	c := res.(*conn)
	e.conns[family] = c
	log.Debugf("native engine: opened %s socket", family)
	return c, nil
}

// execute runs fn in the network namespace of the Engine, if any, and
// returns its result. An error result is returned as the error instead.
func (e *Engine) execute(fn func() interface{}) (interface{}, error) {
	var res interface{}
	if e.netns != nil {
		var err error
		res, err = ops.Execute(fn, e.netns)
		if err != nil {
			return nil, err
		}
	} else {
		res = fn()
	}
	if err, ok := res.(error); ok {
		return nil, err
	}
	return res, nil
}

// interfaceByName looks up the named network interface in the network
// namespace of the Engine.
func (e *Engine) interfaceByName(name string) (*net.Interface, error) {
	res, err := e.execute(func() interface{} {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return err
		}
		return ifi
	})
	if err != nil {
		return nil, err
	}
	return res.(*net.Interface), nil
}

// closeConns closes all open sockets; they will get reopened when needed.
func (e *Engine) closeConns() {
	for family, c := range e.conns {
		_ = c.Close()
		delete(e.conns, family)
	}
}

// ifindex returns the index of the outgoing device, or zero if none has been
// set.
func (e *Engine) ifindex() (int, error) {
	if e.device == "" {
		return 0, nil
	}
	ifi, err := e.interfaceByName(e.device)
	if err != nil {
		return 0, fmt.Errorf("invalid device %q: %w", e.device, err)
	}
	return ifi.Index, nil
}

// Results returns the first record of the most recent send, or nil.
func (e *Engine) Results() engine.Record {
	return e.results
}

// Close all sockets and forget all hosts. Closing an already closed Engine
// returns [net.ErrClosed].
func (e *Engine) Close() error {
	if e.closed {
		return net.ErrClosed
	}
	e.closed = true
	e.closeConns()
	e.hosts = nil
	e.results = nil
	return nil
}
