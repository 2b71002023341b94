// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"net/netip"
	"sort"
	"sync"

	"github.com/siemens/oping/types"
)

// group is a named group of hosts to display together, such as the peers on
// a particular Docker network.
type group struct {
	Name  string // empty for the hosts given on the command line.
	Hosts []string
}

// renderer renders the live display of the latest outcomes, grouped and with
// the hosts aligned.
type renderer struct {
	Indentation int
	w           io.Writer
	flush       func()
	palette     palette
	spinner     *spinner

	mu      sync.Mutex
	groups  []group
	items   map[string]types.PingItem // latest outcome per host name.
	round   int
	count   int // 0 for unlimited rounds.
	sending bool
}

// newRenderer returns a renderer writing to w, calling flush after each
// complete rendering.
func newRenderer(w io.Writer, flush func(), groups []group, count int) *renderer {
	return &renderer{
		Indentation: 3,
		w:           w,
		flush:       flush,
		palette:     newPalette(w),
		spinner:     newSpinner(),
		groups:      groups,
		items:       map[string]types.PingItem{},
		count:       count,
	}
}

// Sending updates the display to show a new round in flight, until Sent gets
// called.
func (r *renderer) Sending(round int) {
	r.mu.Lock()
	r.round = round
	r.sending = true
	r.mu.Unlock()
	r.Render()
	r.spinner.Start(*spinnerInterval, r.Render)
}

// Sent updates the display with the outcomes of the latest round.
func (r *renderer) Sent(items []types.PingItem) {
	r.spinner.Stop()
	r.mu.Lock()
	r.sending = false
	for _, item := range items {
		r.items[item.Hostname] = item
	}
	r.mu.Unlock()
	r.Render()
}

// Render the current state.
func (r *renderer) Render() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count > 0 {
		fmt.Fprintf(r.w, "round %d of %d\n", r.round, r.count)
	} else {
		fmt.Fprintf(r.w, "round %d\n", r.round)
	}
	// Align the outcome column across all groups.
	maxlen := 0
	for _, g := range r.groups {
		for _, host := range g.Hosts {
			if l := len(host); l > maxlen {
				maxlen = l
			}
		}
	}
	for _, g := range r.groups {
		indent := 0
		if g.Name != "" {
			fmt.Fprintf(r.w, "peers on network %s\n", r.palette.headline.Styled(g.Name))
			indent = r.Indentation
		}
		hosts := append([]string(nil), g.Hosts...)
		r.sortHosts(hosts)
		for _, host := range hosts {
			r.renderHost(indent, maxlen, host)
		}
	}
	r.flush()
}

// renderHost renders a single host line.
func (r *renderer) renderHost(indent int, width int, host string) {
	fmt.Fprintf(r.w, "%-*s%-*s ", indent, "", width, host)
	item, ok := r.items[host]
	switch {
	case r.sending:
		fmt.Fprint(r.w, r.palette.pending.Styled(r.spinner.Phase()+" "))
	case !ok:
		fmt.Fprint(r.w, "  ")
	case item.LatencyMs > 0:
		fmt.Fprint(r.w, r.palette.replied.Styled("✔ "))
	default:
		fmt.Fprint(r.w, r.palette.dropped.Styled("× "))
	}
	if ok {
		fmt.Fprintf(r.w, "%s latency=%.3fms ttl=%d dropped=%d",
			item.Address, item.LatencyMs, item.RecvTTL, item.Dropped)
	}
	fmt.Fprintln(r.w)
}

// sortHosts sorts host names in place: hosts with known IPv4 addresses
// first, then IPv6 addresses, both in address order, and finally hosts with
// unknown addresses by name.
func (r *renderer) sortHosts(hosts []string) {
	addr := func(host string) netip.Addr {
		if item, ok := r.items[host]; ok {
			if a, err := netip.ParseAddr(item.Address); err == nil {
				return a
			}
		}
		return netip.Addr{}
	}
	sort.SliceStable(hosts, func(a, b int) bool {
		addrA, addrB := addr(hosts[a]), addr(hosts[b])
		switch {
		case addrA.IsValid() != addrB.IsValid():
			return addrA.IsValid()
		case !addrA.IsValid():
			return hosts[a] < hosts[b]
		}
		return addrA.Less(addrB)
	})
}
