/*
Package engine defines the boundary between an oping session and the
subsystem doing the actual ICMP socket work, the “echo engine”.

An [Engine] is an opaque, handle-like object: it takes options as tagged
native-endian byte values, keeps its own set of target hosts, sends one echo
request per host and waits for the replies. The outcome of the most recent
send is exposed as a chain of [Record] objects, one per host. Each record
field is pulled out of the engine by tag into a caller-supplied buffer using
[Record.Info]:

	buf := make([]byte, 8)
	n, err := rec.Info(engine.FieldLatency, buf)

String fields are truncated to the buffer's length, while numeric fields
require the buffer to be at least as wide as the field's type, otherwise
[ErrShortBuffer] is returned. [GetNumber] and [PutNumber] take care of the
native-endian (de)serialization of numeric values on both sides of the
boundary.

Engines are not safe for concurrent use; their callers are responsible for
issuing one call at a time.

Two engines are provided in sub-packages: a pure-Go raw socket engine in
[github.com/siemens/oping/engine/native] and an engine backed by
[github.com/go-ping/ping] in [github.com/siemens/oping/engine/gopinger].
*/
package engine
