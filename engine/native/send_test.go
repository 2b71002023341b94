// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package native

import (
	"net/netip"
	"os"
	"time"

	"github.com/siemens/oping/engine"
	"github.com/siemens/oping/types"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/namspill"
	. "github.com/thediveo/success"
)

// echoReply returns a packet with a marshalled ICMP echo reply.
func echoReply(src string, ident, seq int) *packet {
	addr := netip.MustParseAddr(src)
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEchoReply,
		Body: &icmp.Echo{ID: ident, Seq: seq, Data: []byte("hello")},
	}
	family := types.IPv4
	if addr.Is6() {
		family = types.IPv6
		msg.Type = ipv6.ICMPTypeEchoReply
	}
	return &packet{
		family: family,
		src:    addr,
		ttl:    42,
		body:   Successful(msg.Marshal(nil)),
		at:     time.Now(),
	}
}

var _ = Describe("native engine echoes", func() {

	It("marshals echo requests", func() {
		h := &host{addr: netip.MustParseAddr("::1"), ident: 0x4242, seq: 7}
		msg := Successful(icmp.ParseMessage(protocolIPv6ICMP, Successful(echoRequest(h, []byte("data")))))
		Expect(msg.Type).To(Equal(ipv6.ICMPTypeEchoRequest))
		Expect(msg.Body).To(HaveValue(And(
			HaveField("ID", 0x4242),
			HaveField("Seq", 7),
			HaveField("Data", []byte("data")))))

		h.addr = netip.MustParseAddr("127.0.0.1")
		msg = Successful(icmp.ParseMessage(protocolICMP, Successful(echoRequest(h, nil))))
		Expect(msg.Type).To(Equal(ipv4.ICMPTypeEcho))
	})

	It("matches replies to waiting hosts", func() {
		e := Successful(New())
		foo := &host{name: "foo", addr: netip.MustParseAddr("127.0.0.1"), ident: 1, seq: 5, waiting: true}
		bar := &host{name: "bar", addr: netip.MustParseAddr("::1"), ident: 2, seq: 5, waiting: true}
		e.hosts = []*host{foo, bar}

		Expect(e.match(echoReply("127.0.0.1", 1, 5))).To(BeIdenticalTo(foo))
		Expect(e.match(echoReply("::1", 2, 5))).To(BeIdenticalTo(bar))
		By("rejecting stale sequence numbers, foreign identifiers, and unknown sources")
		Expect(e.match(echoReply("127.0.0.1", 1, 4))).To(BeNil())
		Expect(e.match(echoReply("127.0.0.1", 2, 5))).To(BeNil())
		Expect(e.match(echoReply("127.0.0.2", 1, 5))).To(BeNil())
		By("ignoring identifiers when unprivileged")
		e.privileged = false
		Expect(e.match(echoReply("127.0.0.1", 666, 5))).To(BeIdenticalTo(foo))
		By("ignoring hosts not waiting anymore")
		foo.waiting = false
		Expect(e.match(echoReply("127.0.0.1", 1, 5))).To(BeNil())
	})

	It("ignores echo requests and garbage", func() {
		e := Successful(New())
		e.hosts = []*host{{name: "foo", addr: netip.MustParseAddr("127.0.0.1"), ident: 1, seq: 1, waiting: true}}
		pkt := echoReply("127.0.0.1", 1, 1)
		pkt.body[0] = byte(ipv4.ICMPTypeEcho)
		Expect(e.match(pkt)).To(BeNil())
		pkt.body = []byte{0}
		Expect(e.match(pkt)).To(BeNil())
	})

	It("accounts for dropped echoes", func() {
		e := Successful(New())
		e.hosts = []*host{
			{name: "foo", addr: netip.MustParseAddr("127.0.0.1"), seq: 1, answered: true,
				latency: 2 * time.Millisecond, recvTTL: 64, recvQoS: 0x10},
			{name: "bar", addr: netip.MustParseAddr("192.0.2.1"), seq: 1, waiting: true,
				dropped: 1, recvTTL: -1},
		}
		e.finish()
		Expect(e.hosts[1].dropped).To(Equal(uint32(2)))
		Expect(e.hosts[0].dropped).To(BeZero())

		rec := e.Results()
		Expect(rec).NotTo(BeNil())
		buf := make([]byte, 8)
		Expect(rec.Info(engine.FieldLatency, buf)).To(Equal(8))
		Expect(Successful(engine.GetNumber[float64](buf))).To(Equal(2.0))
		rec = rec.Next()
		Expect(rec).NotTo(BeNil())
		Expect(rec.Info(engine.FieldDropped, buf)).To(Equal(4))
		Expect(Successful(engine.GetNumber[uint32](buf))).To(Equal(uint32(2)))
		Expect(rec.Info(engine.FieldLatency, buf)).To(Equal(8))
		Expect(Successful(engine.GetNumber[float64](buf))).To(BeZero())
		Expect(rec.Info(engine.FieldRecvTTL, buf)).To(Equal(4))
		Expect(Successful(engine.GetNumber[int32](buf))).To(Equal(int32(-1)))
		Expect(rec.Next()).To(BeNil())
	})

})

var _ = Describe("native engine pinging", Ordered, func() {

	BeforeAll(func() {
		if os.Getuid() != 0 {
			Skip("needs root")
		}
	})

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(3 * time.Second).WithPolling(250 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
			Expect(Tasks()).To(BeUniformlyNamespaced())
		})
	})

	It("pings the loopback", func() {
		e := Successful(New())
		defer e.Close()
		Expect(e.SetOption(engine.OptTTL, engine.Encode(int32(42)))).To(Succeed())
		Expect(e.AddHost("127.0.0.1")).To(Succeed())
		for seq := 1; seq <= 2; seq++ {
			Expect(e.Send()).To(Equal(1))
			rec := e.Results()
			Expect(rec).NotTo(BeNil())
			buf := make([]byte, 8)
			Expect(rec.Info(engine.FieldSequence, buf)).To(Equal(4))
			Expect(Successful(engine.GetNumber[int32](buf))).To(Equal(int32(seq)))
			Expect(rec.Info(engine.FieldLatency, buf)).To(Equal(8))
			Expect(Successful(engine.GetNumber[float64](buf))).To(BeNumerically(">", 0))
			Expect(rec.Info(engine.FieldRecvTTL, buf)).To(Equal(4))
			Expect(Successful(engine.GetNumber[int32](buf))).To(BeNumerically(">", 0))
			Expect(rec.Info(engine.FieldDropped, buf)).To(Equal(4))
			Expect(Successful(engine.GetNumber[uint32](buf))).To(BeZero())
		}
	})

	It("drops unreachable hosts after the timeout", func() {
		e := Successful(New())
		defer e.Close()
		Expect(e.SetOption(engine.OptTimeout, engine.Encode(0.5))).To(Succeed())
		Expect(e.AddHost("127.0.0.1")).To(Succeed())
		Expect(e.AddHost("1.2.3.4")).To(Succeed())
		Expect(e.Send()).To(BeNumerically("<=", 1))
		rec := e.Results().Next()
		buf := make([]byte, 64)
		n := Successful(rec.Info(engine.FieldHostname, buf))
		Expect(string(buf[:n])).To(Equal("1.2.3.4"))
		Expect(rec.Info(engine.FieldDropped, buf)).To(Equal(4))
		Expect(Successful(engine.GetNumber[uint32](buf))).To(Equal(uint32(1)))
	})

	It("pings from inside a network namespace", func() {
		e := Successful(New(InNetworkNamespace("/proc/self/ns/net")))
		defer e.Close()
		Expect(e.SetOption(engine.OptDevice, []byte("lo"))).To(Succeed())
		Expect(e.AddHost("127.0.0.1")).To(Succeed())
		Expect(e.Send()).To(Equal(1))
		Expect(e.Results()).NotTo(BeNil())
	})

})
