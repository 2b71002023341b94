// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package ping

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/siemens/oping/engine"
	"github.com/siemens/oping/metrics"
	"github.com/siemens/oping/types"

	"github.com/thediveo/lxkns/log"
)

// Session pings a set of hosts, one echo request per host and Send, using an
// echo engine exclusively owned by the Session. Sessions can be used
// concurrently, but their operations are serialized.
type Session struct {
	mu        sync.Mutex
	engine    engine.Engine
	closed    bool
	closeOnce sync.Once
	gen       uint64 // number of sends so far, invalidating older cursors.
	failed    bool   // latest send failed, so there are no results.
	opts      Options
	hosts     []string
	metrics   *metrics.Metrics
}

// New returns a new Session without any hosts and with the default options
// of a 1s timeout, TTL 255, either address family, and 56 bytes of payload.
//
// New panics if the echo engine cannot be created, as this leaves no usable
// environment: this can only happen with an invalid [InNetworkNamespace]
// reference.
func New(options ...SessionOption) *Session {
	s := &settings{}
	for _, opt := range options {
		opt(s)
	}
	e, err := s.newEngine()
	if err != nil {
		panic(fmt.Sprintf("cannot create %s echo engine: %s", s.backend, err.Error()))
	}
	return &Session{
		engine: e,
		opts: Options{
			Timeout: time.Second,
			TTL:     255,
		},
		metrics: s.metrics,
	}
}

// checkText returns an InvalidInputError if s cannot be passed as text to
// the engine.
func checkText(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return &InvalidInputError{Input: s}
	}
	return nil
}

// setOption applies the option value to the engine and on success updates
// the snapshot of the option set.
func (s *Session) setOption(tag engine.OptionTag, value []byte, update func(*Options)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.engine.SetOption(tag, value); err != nil {
		return newEngineError("set "+tag.String(), err)
	}
	update(&s.opts)
	return nil
}

// SetTimeout sets how long Send waits for replies, which must be positive.
func (s *Session) SetTimeout(timeout time.Duration) error {
	return s.setOption(engine.OptTimeout, engine.Encode(timeout.Seconds()),
		func(o *Options) { o.Timeout = timeout })
}

// SetTTL sets the TTL or hop limit of echo requests, in the range 1 to 255.
func (s *Session) SetTTL(ttl int) error {
	if ttl < 0 || ttl > 255 {
		// keep out-of-range values from wrapping around in the encoding.
		ttl = -1
	}
	return s.setOption(engine.OptTTL, engine.Encode(int32(ttl)),
		func(o *Options) { o.TTL = ttl })
}

// SetAddrFamily restricts the resolution of host names added afterwards to
// the specified address family.
func (s *Session) SetAddrFamily(family types.AddrFamily) error {
	af := engine.NativeFamily(family)
	if !family.Valid() {
		af = -1
	}
	return s.setOption(engine.OptAddrFamily, engine.Encode(af),
		func(o *Options) { o.Family = &family })
}

// SetAnyAddrFamily resolves host names added afterwards into either IPv4 or
// IPv6 addresses.
func (s *Session) SetAnyAddrFamily() error {
	return s.setOption(engine.OptAddrFamily, engine.Encode(engine.AFUnspec),
		func(o *Options) { o.Family = nil })
}

// SetQoS sets the TOS (IPv4) or traffic class (IPv6) byte of echo requests.
func (s *Session) SetQoS(qos uint8) error {
	return s.setOption(engine.OptQoS, engine.Encode(qos),
		func(o *Options) { o.QoS = qos })
}

// SetSource sets the source address of echo requests; an empty address
// resets to the automatic choice.
func (s *Session) SetSource(source string) error {
	if err := checkText(source); err != nil {
		return err
	}
	return s.setOption(engine.OptSource, []byte(source),
		func(o *Options) { o.Source = source })
}

// SetDevice sets the outgoing network interface; an empty name resets to the
// automatic choice.
func (s *Session) SetDevice(device string) error {
	if err := checkText(device); err != nil {
		return err
	}
	return s.setOption(engine.OptDevice, []byte(device),
		func(o *Options) { o.Device = device })
}

// SetData sets the payload of echo requests; an empty payload resets to the
// default payload.
func (s *Session) SetData(data string) error {
	if err := checkText(data); err != nil {
		return err
	}
	return s.setOption(engine.OptData, []byte(data),
		func(o *Options) { o.Data = data })
}

// Options returns a snapshot of the current option set.
func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := s.opts
	if opts.Family != nil {
		family := *opts.Family
		opts.Family = &family
	}
	return opts
}

// AddHost adds the host name or IP address literal to the hosts to ping.
// Adding the same name again is a no-op.
func (s *Session) AddHost(name string) error {
	if err := checkText(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.engine.AddHost(name); err != nil {
		return newEngineError("add host", err)
	}
	for _, host := range s.hosts {
		if host == name {
			return nil
		}
	}
	s.hosts = append(s.hosts, name)
	return nil
}

// RemoveHost removes the host that was added with exactly the same name.
func (s *Session) RemoveHost(name string) error {
	if err := checkText(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.engine.RemoveHost(name); err != nil {
		return newEngineError("remove host", err)
	}
	for idx, host := range s.hosts {
		if host == name {
			s.hosts = append(s.hosts[:idx], s.hosts[idx+1:]...)
			break
		}
	}
	return nil
}

// Hosts returns the names of the hosts to ping, in the order they were added.
func (s *Session) Hosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hosts...)
}

// Send sends an echo request to each host and blocks until all hosts have
// replied or the timeout has passed. It returns the number of hosts that
// replied. Send invalidates all cursors returned by Results before.
func (s *Session) Send() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	start := time.Now()
	replies, err := s.engine.Send()
	s.gen++
	s.failed = err != nil
	if s.metrics != nil {
		s.metrics.RecordSend(len(s.hosts), time.Since(start), err)
	}
	if err != nil {
		return 0, newEngineError("send", err)
	}
	log.Debugf("ping session: %d of %d hosts replied", replies, len(s.hosts))
	if s.metrics != nil {
		for rec := s.engine.Results(); rec != nil; rec = rec.Next() {
			item, ok := decode(rec)
			if !ok {
				break
			}
			s.metrics.RecordItem(item)
		}
	}
	return replies, nil
}

// Results returns a cursor over the per-host outcomes of the most recent
// Send. The cursor becomes exhausted with the next Send or when closing the
// Session. Before any Send and after a failed Send the cursor is exhausted
// from the start.
func (s *Session) Results() *Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen == 0 || s.failed {
		return &Cursor{}
	}
	return &Cursor{
		session: s,
		gen:     s.gen,
		rec:     s.engine.Results(),
	}
}

// Close releases the echo engine. Closing an already closed Session returns
// [ErrClosed].
func (s *Session) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		err = nil
		if cerr := s.engine.Close(); cerr != nil {
			err = newEngineError("close", cerr)
		}
	})
	return err
}
