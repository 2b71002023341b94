// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/siemens/oping/ping"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// run executes the root command with the specified CLI args, returning the
// output and error.
func run(args ...string) (string, error) {
	GinkgoHelper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

var _ = Describe("oping command", func() {

	BeforeEach(func() {
		oldNewSession := newSession
		DeferCleanup(func() { newSession = oldNewSession })
		newSession = func(opts ...ping.SessionOption) *ping.Session {
			return ping.New(append(opts, ping.WithEngine(newFakeEngine()))...)
		}
	})

	It("waits 5s for replies by default", func() {
		cmd := newRootCmd()
		Expect(cmd.ParseFlags([]string{"foo"})).To(Succeed())
		cfg := Successful(effectiveConfig(cmd, []string{"foo"}))
		Expect(cfg.Timeout).To(Equal(5 * time.Second))
	})

	It("shows usage without hosts", func() {
		out, err := run()
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Usage:"))
	})

	DescribeTable("rejects invalid flags",
		func(args []string, msg string) {
			out, err := run(args...)
			Expect(err).To(MatchError(errFailed))
			Expect(out).To(HavePrefix("flags: "))
			Expect(out).To(ContainSubstring(msg))
		},
		Entry("ttl too small", []string{"--ttl", "0", "localhost"}, "--ttl"),
		Entry("ttl too large", []string{"--ttl", "256", "localhost"}, "--ttl"),
		Entry("zero timeout", []string{"--timeout", "0s", "localhost"}, "--timeout"),
		Entry("negative count", []string{"-c", "-1", "localhost"}, "--count"),
		Entry("both families", []string{"-4", "-6", "localhost"}, "exclusive"),
		Entry("container and netns", []string{"--container", "foo", "--netns", "/proc/self/ns/net"}, "exclusive"),
		Entry("too many workers", []string{"--workers", "100", "localhost"}, "--workers"),
		Entry("unknown backend", []string{"--backend", "carrier-pigeon", "localhost"}, "carrier-pigeon"),
		Entry("unknown flag", []string{"--foobar"}, "foobar"),
		Entry("malformed value", []string{"--qos", "x", "localhost"}, "qos"),
	)

	It("pings hosts and reports the responses", func() {
		out, err := run("-c", "2", "-i", "0s", "foo", "bar")
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(ConsistOf(
			"Pinging: foo",
			"Pinging: bar",
			HavePrefix("Response: foo (192.0.2.1, IPv4): seq=1 "),
			HavePrefix("Response: bar (192.0.2.2, IPv4): seq=1 "),
			HavePrefix("Response: foo (192.0.2.1, IPv4): seq=2 "),
			HavePrefix("Response: bar (192.0.2.2, IPv4): seq=2 "),
		))
	})

	It("fails when a host drops", func() {
		out, err := run("foo", "down")
		Expect(err).To(MatchError(errFailed))
		Expect(out).To(ContainSubstring("Response: down (192.0.2.2, IPv4): seq=1 ttl=-1"))
		Expect(out).To(ContainSubstring("dropped=1"))
	})

	It("reports hosts that cannot be added", func() {
		out, err := run("foo", "nowhere")
		Expect(err).To(MatchError(errFailed))
		Expect(out).To(ContainSubstring(`add host nowhere: `))
		Expect(out).NotTo(ContainSubstring("Response:"))
	})

	It("reports unsupported options", func() {
		out, err := run("--device", "lo", "foo")
		Expect(err).To(MatchError(errFailed))
		Expect(out).To(HavePrefix("option: "))
	})

	It("reports an invalid network namespace", func() {
		out, err := run("--netns", "/nonexisting/netns", "foo")
		Expect(err).To(MatchError(errFailed))
		Expect(out).To(HavePrefix("netns: "))
	})

	It("rejects --peers without a container", func() {
		out, err := run("--peers", "foo")
		Expect(err).To(MatchError(errFailed))
		Expect(out).To(HavePrefix("peers: "))
	})

	It("stops unlimited rounds when cancelled", func() {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"-c", "0", "-i", "20ms", "foo"})
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(strings.Count(out.String(), "Response: foo")).To(BeNumerically(">", 1))
	})

	It("renders a live display", func() {
		out, err := run("--live", "-c", "2", "-i", "0s", "foo", "down")
		Expect(err).To(MatchError(errFailed))
		Expect(out).NotTo(ContainSubstring("Pinging:"))
		Expect(out).To(ContainSubstring("round 2 of 2"))
		Expect(out).To(MatchRegexp(`foo\s+✔ 192\.0\.2\.1`))
		Expect(out).To(MatchRegexp(`down\s+× 192\.0\.2\.2`))
	})

	When("using a configuration file", func() {

		var cfgname string

		BeforeEach(func() {
			cfgname = filepath.Join(GinkgoT().TempDir(), "oping.yaml")
			Expect(os.WriteFile(cfgname, []byte(`
hosts: [foo]
count: 2
interval: 10ms
ttl: 42
`), 0o644)).To(Succeed())
		})

		It("merges configuration and CLI args", func() {
			out, err := run("--config", cfgname, "bar")
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(out, "Response: foo")).To(Equal(2))
			Expect(strings.Count(out, "Response: bar")).To(Equal(2))
		})

		It("lets explicit flags win", func() {
			out := Successful(run("--config", cfgname, "-c", "1"))
			Expect(strings.Count(out, "Response: foo")).To(Equal(1))
		})

		It("reports an unloadable configuration", func() {
			out, err := run("--config", cfgname+".missing")
			Expect(err).To(MatchError(errFailed))
			Expect(out).To(HavePrefix("config: "))
		})

	})

})
