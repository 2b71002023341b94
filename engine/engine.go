// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package engine

import (
	"errors"
	"fmt"
)

// Engine sends ICMP echo requests to a set of hosts and collects the replies.
type Engine interface {
	// SetOption applies a single option, passing its value in native-endian
	// encoding. Rejected values leave the engine configuration unchanged.
	SetOption(opt OptionTag, value []byte) error
	// AddHost resolves the name or address literal and adds it to the set of
	// hosts to ping.
	AddHost(name string) error
	// RemoveHost removes a host previously added under exactly the same name.
	RemoveHost(name string) error
	// Send pings all hosts once and blocks until either all hosts replied or
	// the timeout passed. It returns the number of hosts that replied.
	Send() (int, error)
	// Results returns the first record of the most recent send, or nil if
	// there are no records.
	Results() Record
	// Close releases all engine resources. The engine must not be used
	// afterwards.
	Close() error
}

// Record is a single host's outcome of a send, chained to the next host's
// outcome.
type Record interface {
	// Info decodes the specified field into buf and returns the number of
	// bytes written.
	Info(field Field, buf []byte) (int, error)
	// Next returns the next record in the chain, or nil at the end.
	Next() Record
}

// Errors reported by engines.
var (
	ErrShortBuffer  = errors.New("buffer too small for field")
	ErrNoHosts      = errors.New("no hosts to ping")
	ErrHostNotFound = errors.New("host not found")
	ErrUnsupported  = errors.New("not supported by this engine")
)

// OptionTag identifies an engine option.
type OptionTag int

// Engine options and their value encodings.
const (
	OptTimeout    OptionTag = 1  // float64 seconds, > 0
	OptTTL        OptionTag = 2  // int32 in [1..255]
	OptAddrFamily OptionTag = 4  // int32 AF_UNSPEC, AF_INET, or AF_INET6
	OptData       OptionTag = 8  // payload text
	OptSource     OptionTag = 16 // source address text
	OptDevice     OptionTag = 32 // outgoing network interface name
	OptQoS        OptionTag = 64 // uint8 TOS/traffic class
)

// String returns the clear-text name of an option tag.
func (o OptionTag) String() string {
	switch o {
	case OptTimeout:
		return "timeout"
	case OptTTL:
		return "ttl"
	case OptAddrFamily:
		return "address family"
	case OptData:
		return "data"
	case OptSource:
		return "source"
	case OptDevice:
		return "device"
	case OptQoS:
		return "qos"
	}
	return fmt.Sprintf("OptionTag(%d)", int(o))
}

// Field identifies a field of a [Record].
type Field int

// Record fields and their encodings.
const (
	FieldHostname Field = 1  // text
	FieldAddress  Field = 2  // text
	FieldFamily   Field = 3  // int32 AF_INET or AF_INET6
	FieldLatency  Field = 4  // float64 milliseconds
	FieldSequence Field = 5  // int32
	FieldIdent    Field = 6  // int32
	FieldData     Field = 7  // text
	FieldUsername Field = 8  // text, not supported
	FieldDropped  Field = 9  // uint32
	FieldRecvTTL  Field = 10 // int32, -1 if unknown
	FieldRecvQoS  Field = 11 // uint8
)

// String returns the clear-text name of a field tag.
func (f Field) String() string {
	switch f {
	case FieldHostname:
		return "hostname"
	case FieldAddress:
		return "address"
	case FieldFamily:
		return "family"
	case FieldLatency:
		return "latency"
	case FieldSequence:
		return "sequence"
	case FieldIdent:
		return "ident"
	case FieldData:
		return "data"
	case FieldUsername:
		return "username"
	case FieldDropped:
		return "dropped"
	case FieldRecvTTL:
		return "recv ttl"
	case FieldRecvQoS:
		return "recv qos"
	}
	return fmt.Sprintf("Field(%d)", int(f))
}
