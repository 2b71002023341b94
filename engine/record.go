// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package engine

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/siemens/oping/types"
)

// Outcome is the state of a single host after a send, as reported by engines
// through a chain of records.
type Outcome struct {
	Hostname string
	Address  netip.Addr
	Latency  time.Duration // zero if the host did not reply to the latest send.
	Sequence int
	Ident    int
	Data     []byte
	Dropped  uint32 // cumulative
	RecvTTL  int    // -1 if unknown
	RecvQoS  uint8
}

// Family returns the address family of the outcome's address.
func (o *Outcome) Family() types.AddrFamily {
	if o.Address.Is6() && !o.Address.Is4In6() {
		return types.IPv6
	}
	return types.IPv4
}

// Chain returns the outcomes as a chain of records, or nil if there are no
// outcomes. The outcomes are copied.
func Chain(outcomes []Outcome) Record {
	if len(outcomes) == 0 {
		return nil
	}
	recs := make([]outcomeRecord, len(outcomes))
	for idx := range outcomes {
		recs[idx].Outcome = outcomes[idx]
		if idx+1 < len(recs) {
			recs[idx].next = &recs[idx+1]
		}
	}
	return &recs[0]
}

// outcomeRecord implements Record on top of an Outcome.
type outcomeRecord struct {
	Outcome
	next *outcomeRecord
}

var _ Record = (*outcomeRecord)(nil)

func (r *outcomeRecord) Next() Record {
	if r.next == nil {
		return nil
	}
	return r.next
}

func (r *outcomeRecord) Info(field Field, buf []byte) (int, error) {
	switch field {
	case FieldHostname:
		return PutString(buf, r.Hostname), nil
	case FieldAddress:
		return PutString(buf, r.Address.String()), nil
	case FieldFamily:
		return PutNumber(buf, NativeFamily(r.Family()))
	case FieldLatency:
		return PutNumber(buf, float64(r.Latency)/float64(time.Millisecond))
	case FieldSequence:
		return PutNumber(buf, int32(r.Sequence))
	case FieldIdent:
		return PutNumber(buf, int32(r.Ident))
	case FieldData:
		return PutString(buf, string(r.Data)), nil
	case FieldDropped:
		return PutNumber(buf, r.Dropped)
	case FieldRecvTTL:
		return PutNumber(buf, int32(r.RecvTTL))
	case FieldRecvQoS:
		return PutNumber(buf, r.RecvQoS)
	}
	return 0, fmt.Errorf("field %s: %w", field, ErrUnsupported)
}
