// Package config provides the beamfleet configuration loader.
// Config is assembled from fleet.yaml tunables (discovered by walking
// up from the CWD, same as the project-manifest pattern the CLI
// otherwise uses) merged with the SSH_HOSTS / SSH_PRIVATE_KEY[_B64] /
// PORT / MCP_URL environment variables spec §6 defines as the
// authoritative source for the host list and credentials.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	v1 "github.com/f9-o/beamfleet/api/v1"
)

// sensitiveKeyRegex matches config keys that should be redacted in log output.
var sensitiveKeyRegex = regexp.MustCompile(`(?i)(password|token|secret|key|passphrase|cookie)`)

// Defaults contains factory-default values applied before fleet.yaml is loaded.
var Defaults = map[string]any{
	"log.level":           "info",
	"log.format":          "text",
	"metrics.enabled":     false,
	"metrics.port":        9091,
	"ssh.dial_timeout":    "10s",
	"ssh.exec_timeout":    "10s",
	"ssh.keepalive":       "15s",
	"trace.poll_interval": "3s",
	"node.probe_delay":    "2s",
}

// Config is the fully-decoded runtime configuration: fleet.yaml
// tunables plus the environment-sourced host list and key material.
type Config struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	SSH     SSHTuning     `mapstructure:"ssh"`
	Trace   TraceTuning   `mapstructure:"trace"`
	Node    NodeTuning    `mapstructure:"node"`
	Log     LogConfig     `mapstructure:"log"`

	// Hosts, PrivateKeyPEM, Port, and MCPURL are populated from the
	// environment, never from fleet.yaml (spec §6).
	Hosts         []v1.HostSpec
	PrivateKeyPEM []byte
	Port          string
	MCPURL        string
}

// MetricsConfig controls the optional Prometheus /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// SSHTuning holds timeouts governing the transport pool.
type SSHTuning struct {
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	ExecTimeout time.Duration `mapstructure:"exec_timeout"`
	Keepalive   time.Duration `mapstructure:"keepalive"`
}

// TraceTuning holds the trace supervisor's poll cadence.
type TraceTuning struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// NodeTuning holds the node registry's start-probe delay.
type NodeTuning struct {
	ProbeDelay time.Duration `mapstructure:"probe_delay"`
}

// LogConfig controls logging behaviour.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

// Load discovers fleet.yaml (if any), applies defaults, then layers
// the SSH_HOSTS/SSH_PRIVATE_KEY[_B64]/PORT/MCP_URL environment
// variables on top.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	for k, val := range Defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else if path, err := discoverProjectConfig(); err == nil {
		v.SetConfigFile(path)
	}

	if v.ConfigFileUsed() != "" {
		if err := v.MergeInConfig(); err != nil && explicitPath != "" {
			return nil, fmt.Errorf("read project config %q: %w", explicitPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Hosts = ParseHosts(os.Getenv("SSH_HOSTS"))
	cfg.Port = os.Getenv("PORT")
	cfg.MCPURL = os.Getenv("MCP_URL")

	key, err := resolvePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg.PrivateKeyPEM = key

	return &cfg, nil
}

// ParseHosts decodes the SSH_HOSTS grammar (spec §6):
//
//	label:user@host[:port][:erlPath[:elixirPath]]
//
// comma-separated. Entries with no ':' or no '@' are silently skipped.
// port is recognised as a digit run; missing defaults to 22. erlPath
// defaults to "erl", elixirPath to "elixir".
func ParseHosts(raw string) []v1.HostSpec {
	var hosts []v1.HostSpec
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		spec, ok := parseHostEntry(entry)
		if !ok {
			continue
		}
		hosts = append(hosts, spec)
	}
	return hosts
}

func parseHostEntry(entry string) (v1.HostSpec, bool) {
	colon := strings.IndexByte(entry, ':')
	if colon < 0 {
		return v1.HostSpec{}, false
	}
	label, rest := entry[:colon], entry[colon+1:]
	if rest == "" {
		return v1.HostSpec{}, false
	}

	at := strings.IndexByte(rest, '@')
	if at < 0 {
		return v1.HostSpec{}, false
	}
	user, hostPart := rest[:at], rest[at+1:]
	if user == "" || hostPart == "" {
		return v1.HostSpec{}, false
	}

	fields := strings.Split(hostPart, ":")
	spec := v1.HostSpec{
		Label:      label,
		User:       user,
		Hostname:   fields[0],
		Port:       22,
		ErlPath:    "erl",
		ElixirPath: "elixir",
	}
	if spec.Hostname == "" {
		return v1.HostSpec{}, false
	}
	opt := fields[1:]
	if len(opt) > 0 && strings.Trim(opt[0], "0123456789") == "" {
		if port, err := strconv.Atoi(opt[0]); err == nil {
			spec.Port = port
		}
		opt = opt[1:]
	}
	if len(opt) > 0 && opt[0] != "" {
		spec.ErlPath = opt[0]
	}
	if len(opt) > 1 && opt[1] != "" {
		spec.ElixirPath = opt[1]
	}
	return spec, true
}

// resolvePrivateKey reads SSH_PRIVATE_KEY (raw PEM) or
// SSH_PRIVATE_KEY_B64 (base64-encoded PEM); one must be non-empty.
func resolvePrivateKey() ([]byte, error) {
	if raw := os.Getenv("SSH_PRIVATE_KEY"); raw != "" {
		return []byte(raw), nil
	}
	if b64 := os.Getenv("SSH_PRIVATE_KEY_B64"); b64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode SSH_PRIVATE_KEY_B64: %w", err)
		}
		return decoded, nil
	}
	return nil, nil
}

// IsSensitiveKey returns true if key matches a known sensitive pattern.
func IsSensitiveKey(key string) bool {
	return sensitiveKeyRegex.MatchString(key)
}

// FleetHome returns the beamfleet home directory (~/.beamfleet), used
// for the log file and audit log. No fleet state lives here — spec §1
// rules out persistence across restarts.
func FleetHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beamfleet"
	}
	return filepath.Join(home, ".beamfleet")
}

// discoverProjectConfig walks up from the CWD looking for fleet.yaml.
func discoverProjectConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, "fleet.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("fleet.yaml not found (searched up from %s)", func() string { d, _ := os.Getwd(); return d }())
}

// DefaultConfigTemplate is the content written by `beamfleetctl init`.
const DefaultConfigTemplate = `# fleet.yaml — beamfleet tunables.
# The host list and credentials are NOT configured here; they come from
# the SSH_HOSTS and SSH_PRIVATE_KEY (or SSH_PRIVATE_KEY_B64) environment
# variables. See the operation surface reference for SSH_HOSTS's grammar.

log:
  level: info
  format: text

metrics:
  enabled: false
  port: 9091

ssh:
  dial_timeout: 10s
  exec_timeout: 10s
  keepalive: 15s

trace:
  poll_interval: 3s

node:
  probe_delay: 2s
`
