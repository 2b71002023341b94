// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package engine

import (
	"context"
	"errors"
	"net/netip"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeResolver resolves names from a fixed table.
type fakeResolver map[string][]netip.Addr

func (r fakeResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	addrs, ok := r[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return addrs, nil
}

var _ = Describe("resolving", func() {

	r := fakeResolver{
		"dual": {netip.MustParseAddr("2001:db8::1"), netip.MustParseAddr("192.0.2.1")},
		"v4":   {netip.MustParseAddr("::ffff:192.0.2.42")},
	}

	It("resolves names and literals for either family", func() {
		Expect(Resolve(r, "127.0.0.1", AFUnspec)).To(Equal(netip.MustParseAddr("127.0.0.1")))
		Expect(Resolve(r, "::ffff:127.0.0.1", AFUnspec)).To(Equal(netip.MustParseAddr("127.0.0.1")))
		Expect(Resolve(r, "dual", AFUnspec)).To(Equal(netip.MustParseAddr("2001:db8::1")))
		Expect(Resolve(r, "v4", AFUnspec)).To(Equal(netip.MustParseAddr("192.0.2.42")))
		Expect(Resolve(r, "nowhere", AFUnspec)).Error().To(HaveOccurred())
	})

	It("honors the address family", func() {
		Expect(Resolve(r, "dual", AFInet)).To(Equal(netip.MustParseAddr("192.0.2.1")))
		Expect(Resolve(r, "::1", AFInet)).Error().To(HaveOccurred())
		Expect(Resolve(r, "v4", AFInet6)).Error().To(HaveOccurred())
		Expect(Resolve(r, "127.0.0.1", AFInet6)).Error().To(HaveOccurred())
	})

	It("accepts addresses", func() {
		Expect(Acceptable(netip.Addr{}, AFUnspec)).To(BeFalse())
		Expect(Acceptable(netip.MustParseAddr("::1"), AFUnspec)).To(BeTrue())
		Expect(Acceptable(netip.MustParseAddr("::1"), AFInet)).To(BeFalse())
	})

})
