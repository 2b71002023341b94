// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/siemens/oping/engine"
)

// fakeEngine never touches the network: hosts named "down*" never reply,
// all other hosts reply after a millisecond per position.
type fakeEngine struct {
	hosts   []string
	seq     int
	dropped map[string]uint32
	results engine.Record
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{dropped: map[string]uint32{}}
}

func (f *fakeEngine) SetOption(opt engine.OptionTag, value []byte) error {
	if opt == engine.OptDevice {
		return fmt.Errorf("option %s: %w", opt, engine.ErrUnsupported)
	}
	return nil
}

func (f *fakeEngine) AddHost(name string) error {
	if strings.HasPrefix(name, "nowhere") {
		return fmt.Errorf("cannot resolve %q", name)
	}
	f.hosts = append(f.hosts, name)
	return nil
}

func (f *fakeEngine) RemoveHost(name string) error {
	return engine.ErrUnsupported
}

func (f *fakeEngine) Send() (int, error) {
	if len(f.hosts) == 0 {
		return 0, engine.ErrNoHosts
	}
	f.seq++
	replies := 0
	outcomes := make([]engine.Outcome, 0, len(f.hosts))
	for idx, h := range f.hosts {
		o := engine.Outcome{
			Hostname: h,
			Address:  netip.AddrFrom4([4]byte{192, 0, 2, byte(idx + 1)}),
			Sequence: f.seq,
			RecvTTL:  -1,
		}
		if strings.HasPrefix(h, "down") {
			f.dropped[h]++
		} else {
			o.Latency = time.Duration(idx+1) * time.Millisecond
			o.RecvTTL = 64
			replies++
		}
		o.Dropped = f.dropped[h]
		outcomes = append(outcomes, o)
	}
	f.results = engine.Chain(outcomes)
	return replies, nil
}

func (f *fakeEngine) Results() engine.Record { return f.results }

func (f *fakeEngine) Close() error { return nil }
