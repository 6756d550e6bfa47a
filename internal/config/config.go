package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Config is the on-disk configuration at <data dir>/config.toml.
type Config struct {
	Server  ServerConfig   `toml:"server"`
	APNs    *APNsConfig    `toml:"apns,omitempty"`
	Relay   *RelayConfig   `toml:"relay,omitempty"`
	Discord *DiscordConfig `toml:"discord,omitempty"`
}

// ServerConfig holds the broker's listen settings and the API key shared
// with the CLI.
type ServerConfig struct {
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	Port     int    `toml:"port"`
	Bind     string `toml:"bind"`
	RelayURL string `toml:"relay_url,omitempty"`
}

// APNsConfig configures the server-side push dispatcher.
type APNsConfig struct {
	KeyPath  string `toml:"key_path"`
	KeyID    string `toml:"key_id"`
	TeamID   string `toml:"team_id"`
	BundleID string `toml:"bundle_id"`
	Sandbox  bool   `toml:"sandbox"`
}

// RelayConfig configures the standalone relay process.
type RelayConfig struct {
	Port                        int    `toml:"port"`
	Bind                        string `toml:"bind"`
	APNsKeyPath                 string `toml:"apns_key_path"`
	APNsKeyID                   string `toml:"apns_key_id"`
	APNsTeamID                  string `toml:"apns_team_id"`
	APNsBundleID                string `toml:"apns_bundle_id"`
	APNsSandbox                 bool   `toml:"apns_sandbox"`
	MaxRequestsPerDevicePerHour int    `toml:"max_requests_per_device_per_hour"`
}

// DiscordConfig enables the optional lifecycle notifier bot.
type DiscordConfig struct {
	BotToken  string `toml:"bot_token"`
	ChannelID string `toml:"channel_id"`
}

const (
	DefaultPort      = 7333
	DefaultRelayPort = 7334
	DefaultBind      = "127.0.0.1"
	DefaultRelayCap  = 60
)

// ToAPNsConfig maps the relay's flat APNs keys onto an APNsConfig.
func (r *RelayConfig) ToAPNsConfig() APNsConfig {
	return APNsConfig{
		KeyPath:  r.APNsKeyPath,
		KeyID:    r.APNsKeyID,
		TeamID:   r.APNsTeamID,
		BundleID: r.APNsBundleID,
		Sandbox:  r.APNsSandbox,
	}
}

// DataDir resolves the data directory: OMCLI_DATA_DIR if set, else ~/.omcli.
func DataDir() string {
	if dir := os.Getenv("OMCLI_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".omcli"
	}
	return filepath.Join(home, ".omcli")
}

// Path returns the config file path inside the data directory.
func Path() string {
	return filepath.Join(DataDir(), "config.toml")
}

// DevicesPath returns the device registry file path.
func DevicesPath() string {
	return filepath.Join(DataDir(), "devices.json")
}

// Load reads the config file. Returns an error if it does not exist.
func Load() (*Config, error) {
	path := Path()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config not found at %s (run 'omcli serve' first)", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config back to disk, creating the data dir if needed.
func (c *Config) Save() error {
	if err := os.MkdirAll(DataDir(), 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// LoadOrCreate loads the existing config, updating the server address to
// match the current serve parameters, or creates a fresh one with a
// generated API key.
func LoadOrCreate(port int, bind string) (*Config, error) {
	if cfg, err := Load(); err == nil {
		cfg.Server.URL = fmt.Sprintf("http://%s:%d", bind, port)
		cfg.Server.Port = port
		cfg.Server.Bind = bind
		if err := cfg.Save(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := &Config{
		Server: ServerConfig{
			URL:    fmt.Sprintf("http://%s:%d", bind, port),
			APIKey: uuid.NewString(),
			Port:   port,
			Bind:   bind,
		},
	}
	if err := cfg.Save(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = DefaultBind
	}
	if cfg.Relay != nil {
		if cfg.Relay.Port == 0 {
			cfg.Relay.Port = DefaultRelayPort
		}
		if cfg.Relay.Bind == "" {
			cfg.Relay.Bind = DefaultBind
		}
		if cfg.Relay.MaxRequestsPerDevicePerHour == 0 {
			cfg.Relay.MaxRequestsPerDevicePerHour = DefaultRelayCap
		}
	}
}
