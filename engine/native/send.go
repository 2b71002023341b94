// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package native

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/siemens/oping/engine"
	"github.com/siemens/oping/types"

	"github.com/thediveo/lxkns/log"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Send sends an ICMP echo request to each host and then waits until either
// all hosts have replied or the timeout has passed. It returns the number of
// hosts that replied in time. Hosts without a reply get their dropped count
// increased.
func (e *Engine) Send() (int, error) {
	if e.closed {
		return 0, net.ErrClosed
	}
	e.results = nil
	if len(e.hosts) == 0 {
		return 0, engine.ErrNoHosts
	}
	ifindex, err := e.ifindex()
	if err != nil {
		return 0, err
	}
	conns := map[types.AddrFamily]*conn{}
	for _, h := range e.hosts {
		c, err := e.conn(h.family())
		if err != nil {
			return 0, err
		}
		conns[h.family()] = c
	}
	deadline := time.Now().Add(e.timeout)

	// Start the receivers before sending anything, so we don't miss fast
	// replies, such as from the loopback.
	for _, c := range conns {
		if err := c.SetReadDeadline(deadline); err != nil {
			return 0, err
		}
	}
	packets := make(chan *packet, len(e.hosts))
	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *conn) {
			defer wg.Done()
			receive(c, packets)
		}(c)
	}
	go func() {
		wg.Wait()
		close(packets)
	}()
	// wakeUp unblocks all receivers before the deadline.
	wakeUp := func() {
		for _, c := range conns {
			_ = c.SetReadDeadline(time.Now())
		}
	}

	params := sendParams{
		ttl:     e.ttl,
		tos:     int(e.qos),
		src:     e.source,
		ifindex: ifindex,
	}
	pending := 0
	var senderr error
	for _, h := range e.hosts {
		h.seq++
		h.waiting = false
		h.answered = false
		h.latency = 0
		h.recvTTL = -1
		h.recvQoS = 0
		msg, err := echoRequest(h, e.data)
		if err != nil {
			senderr = err
			continue
		}
		h.sent = time.Now()
		if err := conns[h.family()].WriteTo(msg, h.addr, params); err != nil {
			log.Debugf("native engine: cannot send to %s: %s", h.addr, err.Error())
			senderr = err
			continue
		}
		h.waiting = true
		pending++
	}
	if pending == 0 {
		wakeUp()
		for range packets {
		}
		e.finish()
		return 0, fmt.Errorf("sending failed: %w", senderr)
	}

	replies := 0
	for pkt := range packets {
		if pending == 0 {
			continue // draining until all receivers have terminated.
		}
		h := e.match(pkt)
		if h == nil {
			continue
		}
		h.waiting = false
		h.answered = true
		h.latency = pkt.at.Sub(h.sent)
		h.recvTTL = pkt.ttl
		h.recvQoS = uint8(pkt.tos)
		replies++
		pending--
		if pending == 0 {
			wakeUp()
		}
	}
	e.finish()
	log.Debugf("native engine: %d of %d hosts replied", replies, len(e.hosts))
	return replies, nil
}

// finish accounts for unanswered echo requests and then snapshots the hosts'
// state into the result records.
func (e *Engine) finish() {
	outcomes := make([]engine.Outcome, 0, len(e.hosts))
	for _, h := range e.hosts {
		h.waiting = false
		if !h.answered {
			h.dropped++
			h.latency = 0
		}
		outcomes = append(outcomes, engine.Outcome{
			Hostname: h.name,
			Address:  h.addr,
			Latency:  h.latency,
			Sequence: int(h.seq),
			Ident:    int(h.ident),
			Data:     e.data,
			Dropped:  h.dropped,
			RecvTTL:  h.recvTTL,
			RecvQoS:  h.recvQoS,
		})
	}
	e.results = engine.Chain(outcomes)
}

// receive reads ICMP messages from the specified socket, passing them on,
// until the socket's read deadline passes or the socket fails.
func receive(c *conn, packets chan<- *packet) {
	for {
		buf := make([]byte, 1500)
		pkt, err := c.ReadPacket(buf)
		if err != nil {
			if !isTimeout(err) {
				log.Debugf("native engine: receiving failed: %s", err.Error())
			}
			return
		}
		packets <- pkt
	}
}

// echoRequest returns the marshalled ICMP echo request for the host's
// current sequence number.
func echoRequest(h *host, data []byte) ([]byte, error) {
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   int(h.ident),
			Seq:  int(h.seq),
			Data: data,
		},
	}
	if h.family() == types.IPv6 {
		msg.Type = ipv6.ICMPTypeEchoRequest
	}
	return msg.Marshal(nil)
}

// match returns the host still waiting for the echo reply in pkt, or nil.
// Unprivileged sockets don't allow matching the identifier, as the kernel
// takes care of it.
func (e *Engine) match(pkt *packet) *host {
	proto := protocolICMP
	reply := icmp.Type(ipv4.ICMPTypeEchoReply)
	if pkt.family == types.IPv6 {
		proto = protocolIPv6ICMP
		reply = ipv6.ICMPTypeEchoReply
	}
	msg, err := icmp.ParseMessage(proto, pkt.body)
	if err != nil {
		log.Warnf("native engine: invalid ICMP message from %s: %s", pkt.src, err.Error())
		return nil
	}
	if msg.Type != reply {
		return nil
	}
	echo, ok := msg.Body.(*icmp.Echo)
	if !ok {
		return nil
	}
	for _, h := range e.hosts {
		if !h.waiting || h.addr != pkt.src || h.seq != uint16(echo.Seq) {
			continue
		}
		if e.privileged && h.ident != uint16(echo.ID) {
			continue
		}
		return h
	}
	return nil
}
