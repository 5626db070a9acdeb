// Package config loads the YAML configuration shared by the
// coordinator server and the client node.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts either a Go duration string ("30s") or a bare
// number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Server struct {
	Addr             string   `yaml:"addr"`
	Path             string   `yaml:"path"`
	RequestTTL       Duration `yaml:"request_ttl"`
	SignalingTTL     Duration `yaml:"signaling_ttl"`
	HeartbeatTimeout Duration `yaml:"heartbeat_timeout"`
	JanitorInterval  Duration `yaml:"janitor_interval"`
}

type Node struct {
	CoordinatorURL    string   `yaml:"coordinator_url"`
	DeviceName        string   `yaml:"device_name"`
	STUNServers       []string `yaml:"stun_servers"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

type Config struct {
	Server Server `yaml:"server"`
	Node   Node   `yaml:"node"`
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:             ":8090",
			Path:             "/ws",
			RequestTTL:       Duration(30 * time.Second),
			SignalingTTL:     Duration(60 * time.Second),
			HeartbeatTimeout: Duration(30 * time.Second),
			JanitorInterval:  Duration(30 * time.Second),
		},
		Node: Node{
			CoordinatorURL:    "ws://localhost:8090/ws",
			DeviceName:        defaultDeviceName(),
			HeartbeatInterval: Duration(10 * time.Second),
		},
	}
}

// Load reads the config file at path, overlaying it onto defaults. A
// missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func defaultDeviceName() string {
	host, err := os.Hostname()
	if err != nil {
		return "peer-link-device"
	}
	return host
}
