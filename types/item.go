// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "fmt"

// PingItem is the outcome of a single send for a single host.
type PingItem struct {
	Hostname  string     `json:"hostname"`   // name or address as originally added
	Address   string     `json:"address"`    // resolved IP address in textual form
	Family    AddrFamily `json:"family"`     // address family of Address
	LatencyMs float64    `json:"latency_ms"` // round-trip time; zero if dropped
	Dropped   uint32     `json:"dropped"`    // unanswered echo requests so far
	Seq       int        `json:"seq"`        // ICMP sequence number of the latest request
	RecvTTL   int        `json:"recv_ttl"`   // TTL/hop limit of the reply, or -1
	RecvQoS   uint8      `json:"recv_qos"`   // TOS/traffic class byte of the reply
}

// IsDropped returns true if the host has missed at least one reply.
func (i PingItem) IsDropped() bool { return i.Dropped > 0 }

// String renders the item in a single line, roughly the way the classic ping
// tool would do.
func (i PingItem) String() string {
	return fmt.Sprintf("%s (%s, %s): seq=%d ttl=%d qos=0x%02x latency=%.3fms dropped=%d",
		i.Hostname, i.Address, i.Family, i.Seq, i.RecvTTL, i.RecvQoS, i.LatencyMs, i.Dropped)
}
