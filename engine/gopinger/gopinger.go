// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package gopinger

import (
	"fmt"
	"math"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"github.com/siemens/oping/engine"

	"github.com/gammazero/workerpool"
	"github.com/go-ping/ping"
	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// Defaults for the engine options.
const (
	DefaultTimeout = time.Second
	DefaultTTL     = 255
	DefaultWorkers = 16
	minSize        = 24 // go-ping's timestamp and tracker
	defaultSize    = 56
	maxSize        = 65507 - 8
)

// Engine pings hosts using go-ping pingers, one per host and send, with the
// pingers running in a worker pool of limited size. Engines must not be used
// concurrently.
type Engine struct {
	timeout time.Duration
	ttl     int
	af      int32
	size    int
	source  netip.Addr

	privileged bool
	netnsref   string             // path referencing a network namespace, or "".
	netns      relations.Relation // network namespace to ping from, or nil.
	resolver   engine.Resolver
	workers    *workerpool.WorkerPool

	hosts   []*host
	results engine.Record
	closed  bool
}

var _ engine.Engine = (*Engine)(nil)

// host is a ping target and the outcome of its latest echo request.
type host struct {
	name    string
	addr    netip.Addr
	seq     int
	ident   int
	latency time.Duration
	dropped uint32
	recvTTL int
}

// Option can be passed to New when creating new Engine objects.
type Option func(*Engine)

// Unprivileged tells the Engine to carry out unprivileged pings using
// datagram ICMP sockets instead of raw ICMP sockets.
func Unprivileged() Option {
	return func(e *Engine) {
		e.privileged = false
	}
}

// InNetworkNamespace optionally runs the pingers inside the network namespace
// referenced by the specified filesystem path. An empty path keeps the
// caller's network namespace.
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

// WithWorkers sets the maximum number of pingers running concurrently.
func WithWorkers(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.workers = workerpool.New(size)
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
		size:       defaultSize,
		privileged: true,
		resolver:   net.DefaultResolver,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.netns != nil {
		if _, err := os.Stat(e.netnsref); err != nil {
			if e.workers != nil {
				e.workers.Stop()
			}
			return nil, fmt.Errorf("invalid network namespace: %w", err)
		}
	}
	if e.workers == nil {
		e.workers = workerpool.New(DefaultWorkers)
	}
	return e, nil
}

// SetOption applies a single option, see the [engine.OptionTag] constants for
// the value encodings. QoS and device options are unsupported.
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
	case engine.OptData:
		switch {
		case len(value) > maxSize:
			return fmt.Errorf("payload of %d bytes too large, max. %d bytes", len(value), maxSize)
		case len(value) == 0:
			e.size = defaultSize
		case len(value) < minSize:
			e.size = minSize
		default:
			e.size = len(value)
		}
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
	default:
		return fmt.Errorf("option %s: %w", opt, engine.ErrUnsupported)
	}
	log.Debugf("go-ping engine: set %s option", opt)
	return nil
}

// AddHost resolves the specified host name or address literal and adds it to
// the hosts to ping. Adding a host name that has already been added is a
// no-op.
func (e *Engine) AddHost(name string) error {
	if e.closed {
		return net.ErrClosed
	}
	if e.lookup(name) >= 0 {
		return nil
	}
	addr, err := engine.Resolve(e.resolver, name, e.af)
	if err != nil {
		return err
	}
	e.hosts = append(e.hosts, &host{name: name, addr: addr, recvTTL: -1})
	log.Debugf("go-ping engine: added host %q as %s", name, addr)
	return nil
}

// RemoveHost removes the host that was added under the specified name.
func (e *Engine) RemoveHost(name string) error {
	if e.closed {
		return net.ErrClosed
	}
	idx := e.lookup(name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", engine.ErrHostNotFound, name)
	}
	e.hosts = append(e.hosts[:idx], e.hosts[idx+1:]...)
	return nil
}

func (e *Engine) lookup(name string) int {
	for idx, h := range e.hosts {
		if h.name == name {
			return idx
		}
	}
	return -1
}

// Send pings all hosts concurrently, using the worker pool, and waits for all
// pingers to finish. It returns the number of hosts that replied within the
// timeout.
func (e *Engine) Send() (int, error) {
	if e.closed {
		return 0, net.ErrClosed
	}
	e.results = nil
	if len(e.hosts) == 0 {
		return 0, engine.ErrNoHosts
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var pingerr error
	replies := 0
	for _, h := range e.hosts {
		h := h
		h.seq++
		h.latency = 0
		h.recvTTL = -1
		wg.Add(1)
		e.workers.Submit(func() {
			defer wg.Done()
			pkt, err := e.run(h)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				log.Debugf("go-ping engine: pinging %s failed: %s", h.addr, err.Error())
				pingerr = err
				h.dropped++
			case pkt == nil:
				h.dropped++
			default:
				h.latency = pkt.Rtt
				h.recvTTL = pkt.Ttl
				h.ident = pkt.ID
				replies++
			}
		})
	}
	wg.Wait()

	outcomes := make([]engine.Outcome, 0, len(e.hosts))
	for _, h := range e.hosts {
		outcomes = append(outcomes, engine.Outcome{
			Hostname: h.name,
			Address:  h.addr,
			Latency:  h.latency,
			Sequence: h.seq,
			Ident:    h.ident,
			Dropped:  h.dropped,
			RecvTTL:  h.recvTTL,
		})
	}
	e.results = engine.Chain(outcomes)
	if replies == 0 && pingerr != nil {
		return 0, fmt.Errorf("sending failed: %w", pingerr)
	}
	return replies, nil
}

// run pings the host once, in the network namespace of the engine if
// necessary, returning the reply or nil.
func (e *Engine) run(h *host) (*ping.Packet, error) {
	pingonce := func() interface{} {
		pinger := ping.New(h.addr.String())
		pinger.SetIPAddr(&net.IPAddr{IP: h.addr.AsSlice(), Zone: h.addr.Zone()})
		pinger.SetPrivileged(e.privileged)
		pinger.SetLogger(logger{})
		if h.addr.Is4() {
			pinger.SetNetwork("ip4")
		} else {
			pinger.SetNetwork("ip6")
		}
		if e.source.IsValid() {
			pinger.Source = e.source.String()
		}
		pinger.Count = 1
		pinger.Size = e.size
		pinger.TTL = e.ttl
		pinger.Timeout = e.timeout
		var reply *ping.Packet
		pinger.OnRecv = func(pkt *ping.Packet) {
			if reply == nil {
				reply = pkt
			}
		}
		if err := pinger.Run(); err != nil {
			return err
		}
		return reply
	}
	var res interface{}
	if e.netns != nil {
		var err error
		res, err = ops.Execute(pingonce, e.netns)
		if err != nil {
			return nil, err
		}
	} else {
		res = pingonce()
	}
	switch res := res.(type) {
	case error:
		return nil, res
	case *ping.Packet:
		return res, nil
	}
	return nil, nil
}

// Results returns the first record of the most recent send, or nil.
func (e *Engine) Results() engine.Record {
	return e.results
}

// Close stops the worker pool, waiting for running pingers to finish.
func (e *Engine) Close() error {
	if e.closed {
		return net.ErrClosed
	}
	e.closed = true
	e.workers.StopWait()
	e.hosts = nil
	e.results = nil
	return nil
}

// logger forwards go-ping's log output to our logging. go-ping reports
// foreign packets as "fatal" and then carries on.
type logger struct{}

func (logger) Fatalf(format string, v ...interface{}) { log.Debugf("go-ping: "+format, v...) }
func (logger) Errorf(format string, v ...interface{}) { log.Warnf("go-ping: "+format, v...) }
func (logger) Warnf(format string, v ...interface{})  { log.Warnf("go-ping: "+format, v...) }
func (logger) Infof(format string, v ...interface{})  { log.Debugf("go-ping: "+format, v...) }
func (logger) Debugf(format string, v ...interface{}) { log.Debugf("go-ping: "+format, v...) }
