// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package ping

import (
	"github.com/siemens/oping/engine"
	"github.com/siemens/oping/types"
)

// maxTextLen is the buffer size for decoding text fields, large enough for
// any host name (NI_MAXHOST).
const maxTextLen = 1025

// Cursor iterates once over the per-host outcomes of a Send.
type Cursor struct {
	session *Session
	gen     uint64
	rec     engine.Record
}

// Next returns the next item and true, or false when the cursor is exhausted.
// A cursor is also exhausted when its Session sent again or was closed, or
// when a field of the current outcome cannot be decoded.
func (c *Cursor) Next() (types.PingItem, bool) {
	if c.session == nil {
		return types.PingItem{}, false
	}
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	if c.rec == nil || c.session.closed || c.session.gen != c.gen {
		c.rec = nil
		return types.PingItem{}, false
	}
	item, ok := decode(c.rec)
	if !ok {
		c.rec = nil
		return types.PingItem{}, false
	}
	c.rec = c.rec.Next()
	return item, true
}

// Items returns all remaining items of the cursor.
func (c *Cursor) Items() []types.PingItem {
	var items []types.PingItem
	for {
		item, ok := c.Next()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

// decode returns the item for the specified record, decoding hostname,
// address, family, latency, dropped count, sequence number, received TTL,
// and received QoS, in this order. It returns false as soon as a field
// cannot be decoded.
func decode(rec engine.Record) (item types.PingItem, ok bool) {
	text := func(field engine.Field, v *string) bool {
		buf := make([]byte, maxTextLen)
		n, err := rec.Info(field, buf)
		if err != nil {
			return false
		}
		*v = string(buf[:n])
		return true
	}
	var family, seq, recvTTL int32
	ok = text(engine.FieldHostname, &item.Hostname) &&
		text(engine.FieldAddress, &item.Address) &&
		number(rec, engine.FieldFamily, &family) &&
		number(rec, engine.FieldLatency, &item.LatencyMs) &&
		number(rec, engine.FieldDropped, &item.Dropped) &&
		number(rec, engine.FieldSequence, &seq) &&
		number(rec, engine.FieldRecvTTL, &recvTTL) &&
		number(rec, engine.FieldRecvQoS, &item.RecvQoS)
	if !ok {
		return types.PingItem{}, false
	}
	item.Family = engine.FamilyFromNative(family)
	item.Seq = int(seq)
	item.RecvTTL = int(recvTTL)
	return item, true
}

// number decodes a numeric field into v, using a buffer of exactly the
// field's width.
func number[T engine.Number](rec engine.Record, field engine.Field, v *T) bool {
	buf := make([]byte, engine.Width[T]())
	if _, err := rec.Info(field, buf); err != nil {
		return false
	}
	n, err := engine.GetNumber[T](buf)
	if err != nil {
		return false
	}
	*v = n
	return true
}
