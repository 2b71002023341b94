// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/siemens/oping/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
)

var _ = Describe("live display", func() {

	BeforeEach(func() {
		_ = newRootCmd() // sets up the flag defaults
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).Within(2 * time.Second).ProbeEvery(50 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	It("spins and stops", func() {
		s := newSpinner()
		Expect(s.Phase()).To(Equal("⠉"))
		var ticks atomic.Int32
		s.Start(10*time.Millisecond, func() { ticks.Add(1) })
		Eventually(ticks.Load).Within(time.Second).ProbeEvery(10 * time.Millisecond).
			Should(BeNumerically(">=", 2))
		s.Stop()
		Expect(s.Phase()).NotTo(BeEmpty())
		Expect(s.Stop).NotTo(Panic())
	})

	It("stops without having started", func() {
		s := newSpinner()
		Expect(s.Stop).NotTo(Panic())
		r := newRenderer(&bytes.Buffer{}, func() {}, nil, 1)
		Expect(func() { r.Sent(nil) }).NotTo(Panic())
	})

	It("sorts IPv4 before IPv6 before unknown hosts", func() {
		r := newRenderer(&bytes.Buffer{}, func() {}, nil, 1)
		r.Sent([]types.PingItem{
			{Hostname: "b", Address: "192.0.2.10"},
			{Hostname: "c", Address: "2001:db8::1"},
			{Hostname: "d", Address: "192.0.2.9"},
		})
		hosts := []string{"z", "c", "b", "a", "d"}
		r.sortHosts(hosts)
		Expect(hosts).To(HaveExactElements("d", "b", "c", "a", "z"))
	})

	It("renders groups with aligned hosts", func() {
		var out bytes.Buffer
		flushed := 0
		r := newRenderer(&out, func() { flushed++ }, []group{
			{Hosts: []string{"foo"}},
			{Name: "net_a", Hosts: []string{"longer-peer"}},
		}, 0)
		r.Sending(7)
		r.Sent([]types.PingItem{
			{Hostname: "foo", Address: "192.0.2.1", LatencyMs: 1.5, RecvTTL: 64},
			{Hostname: "longer-peer", Address: "192.0.2.2", RecvTTL: -1, Dropped: 3},
		})
		Expect(flushed).To(BeNumerically(">=", 2))
		Expect(out.String()).To(ContainSubstring("round 7\n"))
		Expect(out.String()).To(ContainSubstring("peers on network net_a\n"))
		Expect(out.String()).To(ContainSubstring(
			"foo         ✔ 192.0.2.1 latency=1.500ms ttl=64 dropped=0\n"))
		Expect(out.String()).To(ContainSubstring(
			"   longer-peer × 192.0.2.2 latency=0.000ms ttl=-1 dropped=3\n"))
	})

})
