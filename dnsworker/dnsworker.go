// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package dnsworker

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/miekg/dns"
	"github.com/thediveo/lxkns/log"
	"github.com/thediveo/lxkns/ops"
	"github.com/thediveo/lxkns/ops/relations"
	"github.com/thediveo/lxkns/species"
)

// DnsPool is a (size-limited) pool of DNS client connections talking with the
// same DNS resolver address.
type DnsPool struct {
	netns   relations.Relation // network namespace to resolve from, or nil.
	workers *workerpool.WorkerPool
	mu      sync.Mutex // protects the pool of DNS connections
	free    []*dns.Conn
}

// DnsPoolOption can be passed to New when creating new [DnsPool] objects.
type DnsPoolOption func(*DnsPool)

// New returns a pool of the specified size of DNS client connections, with each
// connection using the specified context and talking to the same DNS resolver
// address.
//
// DNS tasks are submitted using [DnsPool.Submit] in form of task functions
// receiving a concrete [dns.Conn].
//
// The passed context is used for creating (dialing) the DNS client connections
// only. It is not directly passed to the submitted DNS tasks, so task
// submitters are themselves responsible for capturing the necessary context in
// their task function closure.
//
// To operate a DnsPool in a network namespace different to that of the OS-level
// thread of the caller specify the [InNetworkNamespace] option and pass it a
// filesystem path that must reference a network namespace (such as
// "/proc/666/ns/net").
func New(ctx context.Context, size int, dnsclnt *dns.Client, addr string, options ...DnsPoolOption) (*DnsPool, error) {
	dnspool := &DnsPool{
		workers: workerpool.New(size),
	}
	for _, opt := range options {
		opt(dnspool)
	}
	free := make([]*dns.Conn, 0, size)
	dial := func() interface{} {
		for i := 0; i < size; i++ {
			conn, err := dnsclnt.DialContext(ctx, addr)
			if err != nil {
				// Immediately release all connections created so far.
				for _, conn := range free {
					conn.Close()
				}
				return err
			}
			free = append(free, conn)
		}
		return nil
	}
	// Dial the connections in the requested network namespace, if necessary.
	var err error
	var dialerr interface{}
	if dnspool.netns != nil {
		dialerr, err = ops.Execute(dial, dnspool.netns)
	} else {
		dialerr = dial()
	}
	if err == nil && dialerr != nil {
		err = dialerr.(error)
	}
	if err != nil {
		dnspool.workers.Stop()
		return nil, err
	}
	dnspool.free = free
	log.Debugf("dnsworker: %d connections to %s", size, addr)
	return dnspool, nil
}

// InNetworkNamespace optionally runs a DnsPool inside the network namespace
// referenced by the specified filesystem path. An empty path keeps the
// network namespace of the caller.
func InNetworkNamespace(netnsref string) DnsPoolOption {
	return func(p *DnsPool) {
		if netnsref == "" {
			return
		}
		p.netns = ops.NewTypedNamespacePath(netnsref, species.CLONE_NEWNET)
	}
}

// Submit a task to the DNS client connection pool, where it gets enqueued to be
// executed on an available DNS client connection.
func (p *DnsPool) Submit(task func(conn *dns.Conn)) {
	p.workers.Submit(func() { p.task(task) })
}

// queryTypes returns the DNS query types to ask for, given a network of "ip",
// "ip4", or "ip6".
func queryTypes(network string) ([]uint16, error) {
	switch network {
	case "ip":
		return []uint16{dns.TypeA, dns.TypeAAAA}, nil
	case "ip4":
		return []uint16{dns.TypeA}, nil
	case "ip6":
		return []uint16{dns.TypeAAAA}, nil
	}
	return nil, fmt.Errorf("unsupported network %q", network)
}

// ResolveName is a convenience method for submitting A and/or AAAA queries and
// gathering the results, depending on the network "ip", "ip4", or "ip6". The
// results (resolved IP addresses) or an error if resolution failed is passed
// to the specified callback function fn.
//
// fn is called only once after completing all queries, so fn always gets to
// see all IP addresses from all IP families asked for (if any).
//
// Please note that when the passed context is cancelled this will cancel all
// in-flight as well as scheduled name resolution jobs.
func (p *DnsPool) ResolveName(ctx context.Context, name string, network string, fn func([]netip.Addr, error)) {
	qtypes, err := queryTypes(network)
	if err != nil {
		fn(nil, err)
		return
	}
	p.Submit(func(conn *dns.Conn) {
		var addrs []netip.Addr
		var err error
		defer func() { fn(addrs, err) }() // ...ensure triggering the result callback on our way out

		dnsclnt := dns.Client{}
		fqdn := dns.Fqdn(name)
		for _, qtype := range qtypes {
			// don't try to resolve the name if the context has been cancelled;
			// trigger the callback immediately with the context error.
			select {
			case <-ctx.Done():
				err = ctx.Err()
				return
			default:
			}

			msg := dns.Msg{
				MsgHdr: dns.MsgHdr{Id: dns.Id()},
			}
			msg.SetQuestion(fqdn, qtype)
			var r *dns.Msg
			r, _, err = dnsclnt.ExchangeWithConn(&msg, conn)
			if err != nil {
				return
			}
			for _, rr := range r.Answer {
				var addr netip.Addr
				var ok bool
				switch rr := rr.(type) {
				case *dns.A:
					addr, ok = netip.AddrFromSlice(rr.A.To4())
				case *dns.AAAA:
					addr, ok = netip.AddrFromSlice(rr.AAAA.To16())
				}
				if ok {
					addrs = append(addrs, addr)
				}
			}
		}
		// If we got no answers at all then we consider this to be an error.
		// This ensures to send an error to the callback together with the nil
		// list of resolved IP addresses.
		if len(addrs) == 0 {
			err = fmt.Errorf("ResolveName: query for %q yields no answers", fqdn)
		}
	})
}

// LookupNetIP resolves the host name into its IP addresses for the network
// "ip", "ip4", or "ip6", waiting for the result. IP address literals are
// returned as is without any DNS query.
func (p *DnsPool) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}
	type result struct {
		addrs []netip.Addr
		err   error
	}
	ch := make(chan result, 1)
	p.ResolveName(ctx, host, network, func(addrs []netip.Addr, err error) {
		ch <- result{addrs: addrs, err: err}
	})
	select {
	case res := <-ch:
		return res.addrs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// task grabs the next free DNS client and passes it to the specified function.
// After the function returns, the connection is put back into the free list.
func (p *DnsPool) task(task func(conn *dns.Conn)) {
	// pop off a free DNS client connection,
	// https://ueokande.github.io/go-slice-tricks/,
	p.mu.Lock()
	if len(p.free) == 0 {
		panic("no free DNS client connection available")
	}
	last := len(p.free) - 1
	conn := p.free[last]
	p.free = p.free[:last]
	p.mu.Unlock()
	// run the task with its assigned DNS client connection...
	task(conn)
	// ...and push the DNS client connection back into the free list.
	p.mu.Lock()
	p.free = append(p.free, conn)
	p.mu.Unlock()
}

// StopWait waits for all enqueued address lookup or generic DNS request tasks
// to finish, and then shuts down the pool.
func (p *DnsPool) StopWait() {
	p.workers.StopWait()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, conn := range p.free {
		conn.Close()
	}
	p.free = nil
}
