// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package native

import (
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"time"

	"github.com/siemens/oping/engine"
	"github.com/siemens/oping/types"

	"github.com/thediveo/lxkns/log"
)

// host is a single ping target together with the state of its most recent
// echo request.
type host struct {
	name     string
	addr     netip.Addr
	ident    uint16
	seq      uint16
	sent     time.Time
	waiting  bool // echo request sent, but no reply yet.
	answered bool // reply received for the most recent echo request.
	latency  time.Duration
	dropped  uint32
	recvTTL  int
	recvQoS  uint8
}

// family returns the address family of the host's address.
func (h *host) family() types.AddrFamily {
	if h.addr.Is4() {
		return types.IPv4
	}
	return types.IPv6
}

// AddHost resolves the specified host name or address literal and adds it to
// the hosts to ping. The socket for the address family of the host gets opened
// if not already done, so lacking privileges are reported here. Adding a host
// name that has already been added is a no-op.
func (e *Engine) AddHost(name string) error {
	if e.closed {
		return net.ErrClosed
	}
	if e.lookup(name) >= 0 {
		log.Debugf("native engine: host %q already added", name)
		return nil
	}
	addr, err := engine.Resolve(e.resolver, name, e.af)
	if err != nil {
		return err
	}
	h := &host{
		name:    name,
		addr:    addr,
		ident:   uint16(rand.Uint32()),
		recvTTL: -1,
	}
	if _, err := e.conn(h.family()); err != nil {
		return err
	}
	e.hosts = append(e.hosts, h)
	log.Debugf("native engine: added host %q as %s", name, addr)
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
	log.Debugf("native engine: removed host %q", name)
	return nil
}

// lookup returns the index of the host with the specified name, or -1.
func (e *Engine) lookup(name string) int {
	for idx, h := range e.hosts {
		if h.name == name {
			return idx
		}
	}
	return -1
}
