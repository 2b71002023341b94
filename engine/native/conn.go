// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/siemens/oping/types"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// IANA protocol numbers of ICMP and ICMPv6, as needed for parsing messages.
const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
)

// packet is a received ICMP message together with the relevant IP-level
// information.
type packet struct {
	family types.AddrFamily
	src    netip.Addr
	ttl    int // -1 if unknown
	tos    int
	body   []byte
	at     time.Time
}

// sendParams are the per-datagram IP-level parameters for sending.
type sendParams struct {
	ttl     int
	tos     int
	src     netip.Addr // zero if unspecified
	ifindex int        // zero if unspecified
}

// conn is an ICMP socket for a single address family. Raw IPv4 sockets are
// operated with header inclusion in order to control and see TTL and TOS.
type conn struct {
	family     types.AddrFamily
	privileged bool
	closer     io.Closer
	raw4       *ipv4.RawConn    // privileged IPv4
	pc4        *ipv4.PacketConn // unprivileged IPv4
	pc6        *ipv6.PacketConn // IPv6 in both modes
}

// network returns the network name to listen on for the given family and
// privilege mode.
func network(family types.AddrFamily, privileged bool) string {
	switch {
	case family == types.IPv6 && privileged:
		return "ip6:ipv6-icmp"
	case family == types.IPv6:
		return "udp6"
	case privileged:
		return "ip4:icmp"
	default:
		return "udp4"
	}
}

// listenAddr returns the local address to bind to.
func listenAddr(family types.AddrFamily, source netip.Addr) string {
	if source.IsValid() && (source.Is4() || source.Is4In6()) == (family == types.IPv4) {
		return source.Unmap().String()
	}
	if family == types.IPv6 {
		return "::"
	}
	return "0.0.0.0"
}

// openConn opens a new ICMP socket for the specified family. Raw sockets get
// bound to the specified device, if any.
func openConn(family types.AddrFamily, privileged bool, source netip.Addr, device string) (*conn, error) {
	c := &conn{family: family, privileged: privileged}
	netw := network(family, privileged)
	laddr := listenAddr(family, source)
	if !privileged {
		// Datagram ICMP sockets can only be created by the icmp package.
		ic, err := icmp.ListenPacket(netw, laddr)
		if err != nil {
			return nil, fmt.Errorf("cannot open %s socket: %w", netw, err)
		}
		c.closer = ic
		if family == types.IPv6 {
			c.pc6 = ic.IPv6PacketConn()
			if err := c.pc6.SetControlMessage(ipv6.FlagHopLimit|ipv6.FlagTrafficClass, true); err != nil {
				ic.Close()
				return nil, fmt.Errorf("cannot enable control messages: %w", err)
			}
			return c, nil
		}
		c.pc4 = ic.IPv4PacketConn()
		if err := c.pc4.SetControlMessage(ipv4.FlagTTL, true); err != nil {
			ic.Close()
			return nil, fmt.Errorf("cannot enable control messages: %w", err)
		}
		return c, nil
	}
	lc := net.ListenConfig{
		Control: func(_, _ string, rc syscall.RawConn) error {
			if device == "" {
				return nil
			}
			var sockerr error
			if err := rc.Control(func(fd uintptr) {
				sockerr = unix.BindToDevice(int(fd), device)
			}); err != nil {
				return err
			}
			return sockerr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), netw, laddr)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s socket: %w", netw, err)
	}
	c.closer = pc
	if family == types.IPv6 {
		c.pc6 = ipv6.NewPacketConn(pc)
		if err := c.pc6.SetControlMessage(ipv6.FlagHopLimit|ipv6.FlagTrafficClass, true); err != nil {
			pc.Close()
			return nil, fmt.Errorf("cannot enable control messages: %w", err)
		}
		return c, nil
	}
	c.raw4, err = ipv4.NewRawConn(pc)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("cannot switch to raw IPv4 mode: %w", err)
	}
	return c, nil
}

// Close the socket.
func (c *conn) Close() error {
	return c.closer.Close()
}

// SetReadDeadline sets the deadline for pending and future reads.
func (c *conn) SetReadDeadline(t time.Time) error {
	switch {
	case c.raw4 != nil:
		return c.raw4.SetReadDeadline(t)
	case c.pc4 != nil:
		return c.pc4.SetReadDeadline(t)
	default:
		return c.pc6.SetReadDeadline(t)
	}
}

// dst returns the destination socket address for addr, depending on the
// socket type.
func (c *conn) dst(addr netip.Addr) net.Addr {
	if c.privileged {
		return &net.IPAddr{IP: addr.AsSlice(), Zone: addr.Zone()}
	}
	return &net.UDPAddr{IP: addr.AsSlice(), Zone: addr.Zone()}
}

// WriteTo sends the marshalled ICMP message msg to addr.
func (c *conn) WriteTo(msg []byte, addr netip.Addr, p sendParams) error {
	switch {
	case c.raw4 != nil:
		h := &ipv4.Header{
			Version:  ipv4.Version,
			Len:      ipv4.HeaderLen,
			TOS:      p.tos,
			TotalLen: ipv4.HeaderLen + len(msg),
			TTL:      p.ttl,
			Protocol: protocolICMP,
			Dst:      addr.AsSlice(),
		}
		if p.src.IsValid() && p.src.Unmap().Is4() {
			h.Src = p.src.Unmap().AsSlice()
		}
		var cm *ipv4.ControlMessage
		if p.ifindex > 0 {
			cm = &ipv4.ControlMessage{IfIndex: p.ifindex}
		}
		return c.raw4.WriteTo(h, msg, cm)
	case c.pc4 != nil:
		if err := c.pc4.SetTTL(p.ttl); err != nil {
			return err
		}
		if err := c.pc4.SetTOS(p.tos); err != nil {
			return err
		}
		var cm *ipv4.ControlMessage
		if p.ifindex > 0 {
			cm = &ipv4.ControlMessage{IfIndex: p.ifindex}
		}
		_, err := c.pc4.WriteTo(msg, cm, c.dst(addr))
		return err
	default:
		cm := &ipv6.ControlMessage{HopLimit: p.ttl, IfIndex: p.ifindex}
		if p.tos > 0 {
			cm.TrafficClass = p.tos
		}
		_, err := c.pc6.WriteTo(msg, cm, c.dst(addr))
		return err
	}
}

// ReadPacket reads the next ICMP message from the socket.
func (c *conn) ReadPacket(buf []byte) (*packet, error) {
	pkt := &packet{family: c.family, ttl: -1}
	var src net.Addr
	switch {
	case c.raw4 != nil:
		h, p, _, err := c.raw4.ReadFrom(buf)
		if err != nil {
			return nil, err
		}
		pkt.at = time.Now()
		pkt.ttl = h.TTL
		pkt.tos = h.TOS
		pkt.body = p
		src = &net.IPAddr{IP: h.Src}
	case c.pc4 != nil:
		n, cm, from, err := c.pc4.ReadFrom(buf)
		if err != nil {
			return nil, err
		}
		pkt.at = time.Now()
		if cm != nil {
			pkt.ttl = cm.TTL
		}
		pkt.body = buf[:n]
		src = from
	default:
		n, cm, from, err := c.pc6.ReadFrom(buf)
		if err != nil {
			return nil, err
		}
		pkt.at = time.Now()
		if cm != nil {
			pkt.ttl = cm.HopLimit
			pkt.tos = cm.TrafficClass
		}
		pkt.body = buf[:n]
		src = from
	}
	var ip net.IP
	var zone string
	switch src := src.(type) {
	case *net.IPAddr:
		ip, zone = src.IP, src.Zone
	case *net.UDPAddr:
		ip, zone = src.IP, src.Zone
	}
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return nil, fmt.Errorf("invalid source address %v", src)
	}
	pkt.src = addr.Unmap()
	if pkt.src.Is6() {
		pkt.src = pkt.src.WithZone(zone)
	}
	return pkt, nil
}

// isTimeout returns true if err signals a read deadline having passed.
func isTimeout(err error) bool {
	var neterr net.Error
	return errors.As(err, &neterr) && neterr.Timeout()
}
