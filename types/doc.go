/*
Package types defines oping's information model: the [AddrFamily] of a pinged
address and the per-host [PingItem] result record produced by each send.

PingItems are plain values. A new PingItem is decoded for every host after
every send, so there is no identity between items of different sends, even
for the same host. Once handed out a PingItem is never touched again, so
items can be passed around between goroutines without any locking.
*/
package types
