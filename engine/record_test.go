// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package engine

import (
	"net/netip"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("outcome records", func() {

	It("returns nil for no outcomes", func() {
		Expect(Chain(nil)).To(BeNil())
	})

	It("chains outcomes in order", func() {
		rec := Chain([]Outcome{
			{Hostname: "foo", Address: netip.MustParseAddr("127.0.0.1")},
			{Hostname: "bar", Address: netip.MustParseAddr("::1")},
		})
		var names []string
		buf := make([]byte, 64)
		for ; rec != nil; rec = rec.Next() {
			n := Successful(rec.Info(FieldHostname, buf))
			names = append(names, string(buf[:n]))
		}
		Expect(names).To(ConsistOf("foo", "bar"))
		Expect(names[0]).To(Equal("foo"))
	})

	It("decodes fields", func() {
		rec := Chain([]Outcome{{
			Hostname: "localhost",
			Address:  netip.MustParseAddr("::1"),
			Latency:  1500 * time.Microsecond,
			Sequence: 3,
			Ident:    0x1234,
			Data:     []byte("payload"),
			Dropped:  2,
			RecvTTL:  64,
			RecvQoS:  0xb8,
		}})
		buf := make([]byte, 1025)

		n := Successful(rec.Info(FieldAddress, buf))
		Expect(string(buf[:n])).To(Equal("::1"))
		n = Successful(rec.Info(FieldData, buf))
		Expect(string(buf[:n])).To(Equal("payload"))

		Expect(rec.Info(FieldFamily, buf)).To(Equal(4))
		Expect(Successful(GetNumber[int32](buf))).To(Equal(AFInet6))
		Expect(rec.Info(FieldLatency, buf)).To(Equal(8))
		Expect(Successful(GetNumber[float64](buf))).To(BeNumerically("~", 1.5, 1e-9))
		Expect(rec.Info(FieldSequence, buf)).To(Equal(4))
		Expect(Successful(GetNumber[int32](buf))).To(Equal(int32(3)))
		Expect(rec.Info(FieldIdent, buf)).To(Equal(4))
		Expect(Successful(GetNumber[int32](buf))).To(Equal(int32(0x1234)))
		Expect(rec.Info(FieldDropped, buf)).To(Equal(4))
		Expect(Successful(GetNumber[uint32](buf))).To(Equal(uint32(2)))
		Expect(rec.Info(FieldRecvTTL, buf)).To(Equal(4))
		Expect(Successful(GetNumber[int32](buf))).To(Equal(int32(64)))
		Expect(rec.Info(FieldRecvQoS, buf)).To(Equal(1))
		Expect(buf[0]).To(Equal(uint8(0xb8)))
	})

	It("reports IPv4 for IPv4 addresses", func() {
		rec := Chain([]Outcome{{Address: netip.MustParseAddr("192.0.2.1")}})
		buf := make([]byte, 4)
		Expect(rec.Info(FieldFamily, buf)).To(Equal(4))
		Expect(Successful(GetNumber[int32](buf))).To(Equal(AFInet))
	})

	It("truncates strings and rejects narrow numeric buffers", func() {
		rec := Chain([]Outcome{{Hostname: "localhost"}})
		buf := make([]byte, 3)
		Expect(rec.Info(FieldHostname, buf)).To(Equal(3))
		Expect(string(buf)).To(Equal("loc"))
		_, err := rec.Info(FieldLatency, buf)
		Expect(err).To(MatchError(ErrShortBuffer))
	})

	It("doesn't support usernames and unknown fields", func() {
		rec := Chain([]Outcome{{Hostname: "localhost"}})
		_, err := rec.Info(FieldUsername, make([]byte, 16))
		Expect(err).To(MatchError(ErrUnsupported))
		_, err = rec.Info(Field(42), make([]byte, 16))
		Expect(err).To(MatchError(ErrUnsupported))
	})

})
