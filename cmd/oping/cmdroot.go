// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/siemens/oping/config"
	"github.com/siemens/oping/ping"

	"github.com/spf13/cobra"
	"github.com/thediveo/lxkns/log"
)

var (
	timeout         *time.Duration
	ttl             *int
	qos             *uint8
	ipv4only        *bool
	ipv6only        *bool
	source          *string
	device          *string
	data            *string
	count           *int
	interval        *time.Duration
	unprivileged    *bool
	backend         *string
	container       *string
	peers           *bool
	netns           *string
	dnsServer       *string
	metricsAddr     *string
	configFile      *string
	live            *bool
	spinnerInterval *time.Duration
	workerNumber    *uint
	debug           *bool
)

// errFailed signals a failure that already has been reported.
var errFailed = errors.New("failed")

func newRootCmd() (rootCmd *cobra.Command) {
	rootCmd = &cobra.Command{
		Use:           "oping [flags] host...",
		Short:         "oping sends ICMP echo requests to multiple hosts at once",
		Version:       "0.9",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFlags(); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "flags: %s\n", err.Error())
				return errFailed
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if *debug {
				log.SetLevel(log.DebugLevel)
				log.Debugf("debug logging enabled")
			}
			cfg, err := effectiveConfig(cmd, args)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "config: %s\n", err.Error())
				return errFailed
			}
			if len(cfg.Hosts) == 0 && !*peers {
				return cmd.Usage()
			}
			if code := PingAndReport(cmd.Context(), cmd.OutOrStdout(), cfg); code != 0 {
				return errFailed
			}
			return nil
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintf(cmd.OutOrStdout(), "flags: %s\n", err.Error())
		return errFailed
	})
	// Sets up the flags.
	flags := rootCmd.PersistentFlags()
	timeout = flags.Duration("timeout", 5*time.Second, "time to wait for replies per round")
	ttl = flags.Int("ttl", 255, "TTL (hop limit) of echo requests")
	qos = flags.Uint8("qos", 0, "TOS/traffic class byte of echo requests")
	ipv4only = flags.BoolP("ipv4", "4", false, "resolve host names to IPv4 addresses only")
	ipv6only = flags.BoolP("ipv6", "6", false, "resolve host names to IPv6 addresses only")
	source = flags.String("source", "", "source address of echo requests")
	device = flags.String("device", "", "outgoing network interface")
	data = flags.String("data", "", "payload of echo requests")
	count = flags.IntP("count", "c", 1, "number of rounds, 0 for unlimited")
	interval = flags.DurationP("interval", "i", time.Second, "time between the starts of rounds")
	unprivileged = flags.Bool("unprivileged", false, "use unprivileged datagram ICMP sockets")
	backend = flags.String("backend", "native", "echo engine, native or go-ping")
	container = flags.String("container", "", "ping from inside the named Docker container")
	peers = flags.Bool("peers", false, "also ping all peers on the container's networks")
	netns = flags.String("netns", "", "ping from inside the referenced network namespace")
	dnsServer = flags.String("dns", "", "resolve host names using this DNS server, as host:port")
	metricsAddr = flags.String("metrics", "", "serve Prometheus metrics on this address")
	configFile = flags.String("config", "", "YAML configuration file")
	live = flags.Bool("live", false, "show a live-updating display instead of response lines")
	spinnerInterval = flags.Duration("spinner", 100*time.Millisecond, "spinner interval")
	workerNumber = flags.Uint("workers", 5, "number of DNS workers")
	debug = flags.Bool("debug", false, "enable debugging output")
	return
}

// checkFlags validates the flag values that cannot be checked by the flag
// types themselves.
func checkFlags() error {
	if *ttl < 1 || *ttl > 255 {
		return fmt.Errorf("--ttl out of range [1..255]")
	}
	if *timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	if *count < 0 {
		return fmt.Errorf("--count must not be negative")
	}
	if *ipv4only && *ipv6only {
		return fmt.Errorf("-4 and -6 are mutually exclusive")
	}
	if *container != "" && *netns != "" {
		return fmt.Errorf("--container and --netns are mutually exclusive")
	}
	if *workerNumber < 1 || *workerNumber > 64 {
		return fmt.Errorf("--workers out of range [1..64]")
	}
	if *spinnerInterval < 10*time.Millisecond {
		return fmt.Errorf("--spinner must be at least 10ms")
	}
	_, err := ping.ParseBackend(*backend)
	return err
}

// effectiveConfig returns the configuration file contents, if any, with the
// explicitly set flags taking precedence and the hosts from the command line
// appended.
func effectiveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := &config.Config{}
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	set := func(name string) bool {
		return flags.Changed(name) || isZeroConfig(cfg, name)
	}
	if set("timeout") {
		cfg.Timeout = *timeout
	}
	if set("ttl") {
		cfg.TTL = *ttl
	}
	if flags.Changed("qos") {
		cfg.QoS = qos
	}
	switch {
	case *ipv4only:
		cfg.Family = "ipv4"
	case *ipv6only:
		cfg.Family = "ipv6"
	}
	if set("source") {
		cfg.Source = *source
	}
	if set("device") {
		cfg.Device = *device
	}
	if set("data") {
		cfg.Data = *data
	}
	if set("count") {
		cfg.Count = *count
	}
	if set("interval") {
		cfg.Interval = *interval
	}
	if *unprivileged {
		cfg.Unprivileged = true
	}
	if set("backend") {
		cfg.Backend = *backend
	}
	if set("container") {
		cfg.Container = *container
	}
	if set("netns") {
		cfg.Netns = *netns
	}
	if set("dns") {
		cfg.DNS = *dnsServer
	}
	if set("metrics") {
		cfg.Metrics = *metricsAddr
	}
	cfg.Hosts = append(cfg.Hosts, args...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// isZeroConfig returns true if the configuration option corresponding to the
// named flag has not been configured.
func isZeroConfig(cfg *config.Config, name string) bool {
	switch name {
	case "timeout":
		return cfg.Timeout == 0
	case "ttl":
		return cfg.TTL == 0
	case "source":
		return cfg.Source == ""
	case "device":
		return cfg.Device == ""
	case "data":
		return cfg.Data == ""
	case "count":
		return cfg.Count == 0
	case "interval":
		return cfg.Interval == 0
	case "backend":
		return cfg.Backend == ""
	case "container":
		return cfg.Container == ""
	case "netns":
		return cfg.Netns == ""
	case "dns":
		return cfg.DNS == ""
	case "metrics":
		return cfg.Metrics == ""
	}
	return false
}
