/*
Package metrics provides Prometheus metrics for ping sessions: sends, replies,
drops, and round-trip latencies per address family.

Metrics get registered with a caller-supplied [prometheus.Registerer], so
multiple sessions can either share a single Metrics object or use their own
registries.
*/
package metrics
