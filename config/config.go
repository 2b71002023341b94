// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/siemens/oping/ping"
	"github.com/siemens/oping/types"

	"gopkg.in/yaml.v3"
)

// Config is the contents of a configuration file. Zero values stand for
// "not configured".
type Config struct {
	Hosts   []string      `yaml:"hosts"`
	Timeout time.Duration `yaml:"timeout"`
	TTL     int           `yaml:"ttl"`
	QoS     *uint8        `yaml:"qos"`
	Family  string        `yaml:"family"` // "ipv4", "ipv6", or "any"
	Source  string        `yaml:"source"`
	Device  string        `yaml:"device"`
	Data    string        `yaml:"data"`

	Count        int           `yaml:"count"`
	Interval     time.Duration `yaml:"interval"`
	Unprivileged bool          `yaml:"unprivileged"`
	Backend      string        `yaml:"backend"`
	Container    string        `yaml:"container"`
	Netns        string        `yaml:"netns"`
	DNS          string        `yaml:"dns"`
	Metrics      string        `yaml:"metrics"`
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values,
// leaving references to unset variables without a default as they are.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if strings.HasPrefix(name, "{") {
			name = name[1 : len(name)-1]
		}
		if name, def, ok := strings.Cut(name, ":-"); ok {
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			return def
		}
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for out-of-range values, reporting all
// problems at once.
func (c *Config) Validate() error {
	var errs []string
	for idx, host := range c.Hosts {
		if host == "" || strings.IndexByte(host, 0) >= 0 {
			errs = append(errs, fmt.Sprintf("hosts[%d]: invalid host %q", idx, host))
		}
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("invalid timeout %s, must be positive", c.Timeout))
	}
	if c.TTL < 0 || c.TTL > 255 {
		errs = append(errs, fmt.Sprintf("invalid ttl %d, must be in [1..255]", c.TTL))
	}
	if _, err := c.AddrFamily(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Source != "" {
		if _, err := netip.ParseAddr(c.Source); err != nil {
			errs = append(errs, fmt.Sprintf("invalid source address %q", c.Source))
		}
	}
	if c.Count < 0 {
		errs = append(errs, fmt.Sprintf("invalid count %d", c.Count))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Sprintf("invalid interval %s", c.Interval))
	}
	if _, err := ping.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Container != "" && c.Netns != "" {
		errs = append(errs, "container and netns are mutually exclusive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// AddrFamily returns the configured address family, or nil for either
// family.
func (c *Config) AddrFamily() (*types.AddrFamily, error) {
	var family types.AddrFamily
	switch strings.ToLower(c.Family) {
	case "", "any":
		return nil, nil
	case "ipv4", "4", "inet":
		family = types.IPv4
	case "ipv6", "6", "inet6":
		family = types.IPv6
	default:
		return nil, fmt.Errorf("invalid family %q, must be ipv4, ipv6, or any", c.Family)
	}
	return &family, nil
}

// Apply sets the configured session options on the specified session. Options
// not configured are left untouched.
func (c *Config) Apply(sess *ping.Session) error {
	if c.Timeout > 0 {
		if err := sess.SetTimeout(c.Timeout); err != nil {
			return err
		}
	}
	if c.TTL > 0 {
		if err := sess.SetTTL(c.TTL); err != nil {
			return err
		}
	}
	if c.QoS != nil {
		if err := sess.SetQoS(*c.QoS); err != nil {
			return err
		}
	}
	family, err := c.AddrFamily()
	if err != nil {
		return err
	}
	if family != nil {
		if err := sess.SetAddrFamily(*family); err != nil {
			return err
		}
	}
	if c.Source != "" {
		if err := sess.SetSource(c.Source); err != nil {
			return err
		}
	}
	if c.Device != "" {
		if err := sess.SetDevice(c.Device); err != nil {
			return err
		}
	}
	if c.Data != "" {
		if err := sess.SetData(c.Data); err != nil {
			return err
		}
	}
	return nil
}
