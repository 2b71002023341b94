/*
Package ping sends ICMP(v4/v6) echo requests to multiple hosts at once and
then reports per host how the latest echo request fared.

A [Session] exclusively owns an echo engine that does the real socket work,
either the pure-Go [github.com/siemens/oping/engine/native] engine (default)
or the [github.com/siemens/oping/engine/gopinger] engine. Callers configure
options, add hosts, and then Send; Send blocks until either all hosts have
replied or the timeout has passed. Afterwards, [Session.Results] returns a
[Cursor] over the per-host [types.PingItem] outcomes.

	sess := ping.New()
	defer sess.Close()
	_ = sess.SetTimeout(5 * time.Second)
	if err := sess.AddHost("localhost"); err != nil {
	    // ...
	}
	replies, err := sess.Send()
	cursor := sess.Results()
	for item, ok := cursor.Next(); ok; item, ok = cursor.Next() {
	    fmt.Println(item)
	}

⚠ A Cursor only lives until the next Send on its Session: afterwards it is
always exhausted. The same applies after closing the Session. A Cursor also
stops early, without an error, when the engine fails to decode any field of a
host's outcome.

# Errors

Failing engine operations return an [*EngineError] that wraps the engine's
original error, so errors.Is works for the sentinel errors of the
[github.com/siemens/oping/engine] package. Text containing NUL bytes is
rejected with an [*InvalidInputError] without ever reaching the engine. Using
a closed Session returns [ErrClosed].
*/
package ping
