/*
Package dnsworker implements a simple limiting DNS client-request execution
pool. oping uses [DnsPool] with a pool of “DNS workers” for resolving host
names into IPv4 and/or IPv6 addresses against an explicitly specified DNS
server, instead of the system resolver. Please note that the A/AAAA queries
for a single name are not concurrent.

Usage

	dnsclnt := dns.Client{}
	workers, err := dnsworker.New(
	    context.Background(),
	    4,                    // number of parallel DNS connections and thus workers
	    &dnsclnt,             // DNS client
	    "127.0.0.1:53",       // address of server/resolver
	)
	workers.ResolveName(ctx,
	    "foobar.example.org", "ip",
	    func(addrs []netip.Addr, err error) {
	        // do something with addrs, unless there's an error reported
	    })
	addrs, err := workers.LookupNetIP(ctx, "ip6", "foobar.example.org")

[DnsPool.LookupNetIP] has the same signature as the standard library's
[net.Resolver.LookupNetIP], so a DnsPool can stand in wherever the system
resolver would otherwise be used.

# Acknowledgements

Under its hood, [DnsPool] leverages [gammazero/workerpool] as
the limiting goroutine pool.

[gammazero/workerpool]: https://github.com/gammazero/workerpool
*/
package dnsworker
