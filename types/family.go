// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package types

import "fmt"

// AddrFamily is the IP address family of a pinged host.
type AddrFamily int

// The supported address families. IPv4 is the zero value as well as the
// fallback for any family an engine reports that we don't know of.
const (
	IPv4 AddrFamily = iota
	IPv6
)

// String returns the clear-text representation of an AddrFamily value.
func (f AddrFamily) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	}
	return fmt.Sprintf("AddrFamily(%d)", f)
}

// Valid returns true if f is one of the known address families.
func (f AddrFamily) Valid() bool {
	return f == IPv4 || f == IPv6
}
