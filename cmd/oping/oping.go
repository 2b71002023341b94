// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/siemens/oping/config"
	"github.com/siemens/oping/dnsworker"
	"github.com/siemens/oping/metrics"
	"github.com/siemens/oping/mobynet"
	"github.com/siemens/oping/ping"
	"github.com/siemens/oping/types"

	"github.com/docker/docker/client"
	"github.com/gosuri/uilive"
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thediveo/lxkns/log"
)

// dockerDNS is the address of Docker's embedded DNS resolver, as seen from
// inside containers attached to user-defined networks.
const dockerDNS = "127.0.0.11:53"

// newSession creates the ping session; CLI unit tests replace it in order to
// use a fake echo engine.
var newSession = func(opts ...ping.SessionOption) *ping.Session {
	return ping.New(opts...)
}

// newDockerClient connects to the Docker daemon; CLI unit tests replace it.
var newDockerClient = func() (client.APIClient, error) {
	return client.NewClientWithOpts(
		client.WithHost("unix:///var/run/docker.sock"),
		client.WithAPIVersionNegotiation(),
	)
}

// PingAndReport pings the configured hosts for the configured number of
// rounds, reporting each host as it gets added as well as the outcome of each
// round. Fatal errors are reported as "<label>: <error>". It returns the exit
// code: 0 if all hosts always replied, 1 if any host dropped or in case of a
// fatal error.
func PingAndReport(ctx context.Context, w io.Writer, cfg *config.Config) int {
	fatal := func(label string, err error) int {
		fmt.Fprintf(w, "%s: %s\n", label, err.Error())
		return 1
	}

	netnsref := cfg.Netns
	hosts := append([]string(nil), cfg.Hosts...)
	groups := []group{}
	if cfg.Container != "" {
		moby, err := newDockerClient()
		if err != nil {
			return fatal("container", fmt.Errorf("cannot connect to the Docker daemon: %w", err))
		}
		defer moby.Close()
		if *peers {
			networks, ref, err := mobynet.ContainerPeers(ctx, moby, cfg.Container)
			if err != nil {
				return fatal("container", err)
			}
			netnsref = ref
			for _, network := range networks {
				groups = append(groups, group{Name: network.Name, Hosts: network.Peers})
			}
			hosts = appendNew(hosts, mobynet.PeerNames(networks)...)
			// Peer names are only known to Docker's embedded DNS resolver
			// inside the container.
			if cfg.DNS == "" {
				cfg.DNS = dockerDNS
			}
		} else {
			ref, err := mobynet.ContainerNetns(ctx, moby, cfg.Container)
			if err != nil {
				return fatal("container", err)
			}
			netnsref = ref
		}
	} else if *peers {
		return fatal("peers", errors.New("--peers requires a container"))
	}
	if len(cfg.Hosts) > 0 {
		groups = append([]group{{Hosts: cfg.Hosts}}, groups...)
	}
	// Creating the session panics for invalid network namespace references,
	// so check beforehand.
	if netnsref != "" {
		if _, err := os.Stat(netnsref); err != nil {
			return fatal("netns", err)
		}
	}

	backend, err := ping.ParseBackend(cfg.Backend)
	if err != nil {
		return fatal("backend", err)
	}
	opts := []ping.SessionOption{
		ping.WithBackend(backend),
		ping.InNetworkNamespace(netnsref),
	}
	if cfg.Unprivileged {
		opts = append(opts, ping.AsUnprivileged())
	}
	if cfg.DNS != "" {
		pool, err := dnsworker.New(ctx, int(*workerNumber), &dns.Client{}, cfg.DNS,
			dnsworker.InNetworkNamespace(netnsref))
		if err != nil {
			return fatal("dns", err)
		}
		defer pool.StopWait()
		opts = append(opts, ping.WithResolver(pool))
	}
	if cfg.Metrics != "" {
		reg := prometheus.NewRegistry()
		stop, err := serveMetrics(cfg.Metrics, reg)
		if err != nil {
			return fatal("metrics", err)
		}
		defer stop()
		opts = append(opts, ping.WithMetrics(metrics.New(reg)))
	}

	sess := newSession(opts...)
	defer sess.Close()
	if err := cfg.Apply(sess); err != nil {
		return fatal("option", err)
	}
	for _, host := range hosts {
		if !*live {
			fmt.Fprintf(w, "Pinging: %s\n", host)
		}
		if err := sess.AddHost(host); err != nil {
			return fatal("add host "+host, err)
		}
	}

	var r *renderer
	if *live {
		term := uilive.New()
		term.Out = w
		r = newRenderer(term, func() { _ = term.Flush() }, groups, cfg.Count)
	}
	pal := newPalette(w)
	dropped := false
	for round := 1; cfg.Count == 0 || round <= cfg.Count; round++ {
		if round > 1 && !sleep(ctx, cfg.Interval) {
			break
		}
		start := time.Now()
		if r != nil {
			r.Sending(round)
		}
		_, err := sess.Send()
		items := sess.Results().Items()
		if r != nil {
			r.Sent(items)
		}
		if err != nil {
			return fatal("send", err)
		}
		for _, item := range items {
			if item.IsDropped() {
				dropped = true
			}
			if r == nil {
				fmt.Fprintf(w, "Response: %s\n", styled(pal, item))
			}
		}
		log.Debugf("round %d took %s", round, time.Since(start))
	}
	if dropped {
		return 1
	}
	return 0
}

// styled returns the rendered item, highlighted depending on whether the host
// replied in time.
func styled(pal palette, item types.PingItem) string {
	if item.LatencyMs > 0 {
		return pal.replied.Styled(item.String())
	}
	return pal.dropped.Styled(item.String())
}

// appendNew appends those names to names that aren't already present.
func appendNew(names []string, more ...string) []string {
	for _, name := range more {
		found := false
		for _, n := range names {
			if n == name {
				found = true
				break
			}
		}
		if !found {
			names = append(names, name)
		}
	}
	return names
}

// sleep waits for the specified duration, returning false if the context
// got cancelled in the meantime.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// serveMetrics serves the metrics in the specified registry on addr in the
// background, returning a function for shutting down the server.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("metrics server failed: %s", err.Error())
		}
	}()
	log.Debugf("serving metrics on %s", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
