// Package config loads settings for the signaling server and the call
// client. Priority, highest first: CLI flags, environment variables, an
// optional YAML file, hardcoded defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultListenAddr     = ":8080"
	DefaultServerURL      = "ws://localhost:8080/ws"
	DefaultSTUN           = "stun:stun.l.google.com:19302"
	DefaultReconnectDelay = 10 * time.Second
)

// Config holds application configuration.
type Config struct {
	// ListenAddr is where the signaling server binds.
	ListenAddr string

	// ServerURL is the websocket endpoint the client dials.
	ServerURL string

	// Name is the client's display name, announced to every peer.
	Name string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ReconnectDelay is the fixed wait before the client retries a lost
	// server connection.
	ReconnectDelay time.Duration
}

// fileConfig is the YAML shape. Durations come in as strings ("10s") and
// are parsed on apply.
type fileConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	ServerURL      string `yaml:"server_url"`
	Name           string `yaml:"name"`
	STUNServer     string `yaml:"stun_server"`
	TURNServer     string `yaml:"turn_server"`
	TURNUser       string `yaml:"turn_username"`
	TURNPass       string `yaml:"turn_password"`
	ReconnectDelay string `yaml:"reconnect_delay"`
}

// Options carries CLI flag overrides into Load.
type Options struct {
	ConfigFile     string
	ListenAddr     string
	ServerURL      string
	Name           string
	STUNServer     string
	TURNServer     string
	TURNUser       string
	TURNPass       string
	ReconnectDelay time.Duration
}

// Load builds the configuration by applying each layer over the previous
// one: defaults, then the YAML file if one exists, then environment
// variables, then CLI flags.
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		ListenAddr:     DefaultListenAddr,
		ServerURL:      DefaultServerURL,
		STUNServer:     DefaultSTUN,
		ReconnectDelay: DefaultReconnectDelay,
	}

	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv("WEBRTC_CONFIG")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyOptions(opts)

	if cfg.ReconnectDelay <= 0 {
		return nil, fmt.Errorf("reconnect delay must be positive, got %s", cfg.ReconnectDelay)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.ServerURL, fc.ServerURL)
	setString(&c.Name, fc.Name)
	setString(&c.STUNServer, fc.STUNServer)
	setString(&c.TURNServer, fc.TURNServer)
	setString(&c.TURNUser, fc.TURNUser)
	setString(&c.TURNPass, fc.TURNPass)
	if fc.ReconnectDelay != "" {
		d, err := time.ParseDuration(fc.ReconnectDelay)
		if err != nil {
			return fmt.Errorf("parse reconnect_delay in %s: %w", path, err)
		}
		c.ReconnectDelay = d
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.ListenAddr, os.Getenv("LISTEN_ADDR"))
	setString(&c.ServerURL, os.Getenv("SERVER_URL"))
	setString(&c.Name, os.Getenv("DISPLAY_NAME"))
	setString(&c.STUNServer, os.Getenv("STUN_SERVER"))
	setString(&c.TURNServer, os.Getenv("TURN_SERVER"))
	setString(&c.TURNUser, os.Getenv("TURN_USERNAME"))
	setString(&c.TURNPass, os.Getenv("TURN_PASSWORD"))
	if v := os.Getenv("RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.ReconnectDelay = d
		}
	}
}

func (c *Config) applyOptions(opts Options) {
	setString(&c.ListenAddr, opts.ListenAddr)
	setString(&c.ServerURL, opts.ServerURL)
	setString(&c.Name, opts.Name)
	setString(&c.STUNServer, opts.STUNServer)
	setString(&c.TURNServer, opts.TURNServer)
	setString(&c.TURNUser, opts.TURNUser)
	setString(&c.TURNPass, opts.TURNPass)
	if opts.ReconnectDelay > 0 {
		c.ReconnectDelay = opts.ReconnectDelay
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// GetSTUNServers returns STUN server URLs as strings.
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
