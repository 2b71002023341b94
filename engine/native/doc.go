/*
Package native implements an [engine.Engine] in pure Go on top of ICMP
sockets, using golang.org/x/net's icmp, ipv4, and ipv6 packages.

By default the engine uses raw ICMP sockets, which need either root or the
CAP_NET_RAW capability. Raw IPv4 sockets are operated in header-inclusion
mode, so the engine builds the IPv4 header itself (TTL, TOS) and gets to see
the full header of replies, including the received TTL and TOS. When
created with [Unprivileged] the engine instead uses “unprivileged” datagram
ICMP sockets, subject to the net.ipv4.ping_group_range sysctl; in this case
the kernel takes over the ICMP identifier and the received IPv4 TOS cannot be
reported.

The engine keeps at most one socket per address family, opened on demand
when the first host of a family is added. Changing the source address or
outgoing device closes the open sockets, so they get reopened with the new
settings when needed next.

	e, err := native.New()
	_ = e.SetOption(engine.OptTimeout, engine.Encode(2.5))
	_ = e.AddHost("localhost")
	replies, err := e.Send()
	for rec := e.Results(); rec != nil; rec = rec.Next() {
	    // ...
	}
*/
package native
