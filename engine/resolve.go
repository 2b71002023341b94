// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"fmt"
	"net/netip"
	"time"
)

// ResolveTimeout limits how long resolving a single host name may take.
const ResolveTimeout = 5 * time.Second

// Resolver resolves host names into IP addresses, with network being one of
// "ip", "ip4", or "ip6". Both [net.Resolver] and
// [github.com/siemens/oping/dnsworker.DnsPool] are Resolvers.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Resolve returns the address to ping for the specified name, honoring the
// address family af (AFUnspec, AFInet, or AFInet6). IP address literals are
// taken as-is. If a name resolves into multiple addresses, the first
// acceptable one wins.
func Resolve(r Resolver, name string, af int32) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(name); err == nil {
		addr = addr.Unmap()
		if !Acceptable(addr, af) {
			return netip.Addr{}, fmt.Errorf("address %s does not match the address family", addr)
		}
		return addr, nil
	}
	network := "ip"
	switch af {
	case AFInet:
		network = "ip4"
	case AFInet6:
		network = "ip6"
	}
	ctx, cancel := context.WithTimeout(context.Background(), ResolveTimeout)
	defer cancel()
	addrs, err := r.LookupNetIP(ctx, network, name)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("cannot resolve %q: %w", name, err)
	}
	for _, addr := range addrs {
		addr = addr.Unmap()
		if Acceptable(addr, af) {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("cannot resolve %q: no suitable address", name)
}

// Acceptable returns true if addr is of the address family af.
func Acceptable(addr netip.Addr, af int32) bool {
	switch af {
	case AFInet:
		return addr.Is4()
	case AFInet6:
		return addr.Is6()
	}
	return addr.IsValid()
}
