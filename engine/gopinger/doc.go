/*
Package gopinger implements an [engine.Engine] on top of
github.com/go-ping/ping, running one go-ping Pinger per host and send in a
limited worker pool.

The go-ping pingers neither allow setting the IP TOS/traffic class nor the
outgoing network interface, so this engine rejects the [engine.OptQoS] and
[engine.OptDevice] options as unsupported. The payload option only controls
the payload size, as go-ping fills its payload with its own tracking data.
*/
package gopinger
