package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Pebble PebbleConfig `yaml:"pebble"`
	Mining MiningConfig `yaml:"mining"`
	Peer   PeerConfig   `yaml:"peer"`
	Sync   SyncConfig   `yaml:"sync"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig represents the HTTP server configuration
type ServerConfig struct {
	Port      int    `yaml:"port"`
	Host      string `yaml:"host"`
	PublicURL string `yaml:"public_url"` // URL peers use to reach this node
}

// PebbleConfig represents the Pebble database configuration.
// An empty path disables persistence.
type PebbleConfig struct {
	Path string `yaml:"path"`
}

// MiningConfig represents proof-of-work and reward settings
type MiningConfig struct {
	Difficulty   string  `yaml:"difficulty"`
	Reward       float64 `yaml:"reward"`
	RewardSender string  `yaml:"reward_sender"`
}

// PeerConfig represents outbound peer call settings
type PeerConfig struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxParallel    int      `yaml:"max_parallel"`
	Seeds          []string `yaml:"seeds"`
}

// SyncConfig represents the background consensus loop
type SyncConfig struct {
	ConsensusInterval int `yaml:"consensus_interval"` // seconds, 0 disables the loop
}

// LogConfig represents log file rotation. An empty file logs to stderr.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3001,
			Host: "0.0.0.0",
		},
		Pebble: PebbleConfig{
			Path: "./data/pebble",
		},
		Mining: MiningConfig{
			Difficulty:   "0000",
			Reward:       100,
			RewardSender: "00",
		},
		Peer: PeerConfig{
			TimeoutSeconds: 5,
			MaxParallel:    8,
		},
		Log: LogConfig{
			MaxSizeMB:  100,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
	}
}

// Load loads configuration from a YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := Default()

	// Load from YAML file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the node cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if strings.Trim(c.Mining.Difficulty, "0123456789abcdef") != "" {
		return fmt.Errorf("mining difficulty must be a hex prefix: %q", c.Mining.Difficulty)
	}
	if c.Mining.Reward < 0 || math.IsNaN(c.Mining.Reward) || math.IsInf(c.Mining.Reward, 0) {
		return fmt.Errorf("mining reward must be a finite non-negative number: %v", c.Mining.Reward)
	}
	return nil
}

// NodeURL returns the URL this node advertises to its peers
func (c *Config) NodeURL() string {
	if c.Server.PublicURL != "" {
		return strings.TrimRight(c.Server.PublicURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Server.Port)
}

func (c *Config) loadEnv() {
	// Server config
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if url := os.Getenv("NODE_URL"); url != "" {
		c.Server.PublicURL = url
	}

	// Pebble config
	if path, ok := os.LookupEnv("PEBBLE_PATH"); ok {
		c.Pebble.Path = path
	}

	// Mining config
	if difficulty := os.Getenv("MINING_DIFFICULTY"); difficulty != "" {
		c.Mining.Difficulty = difficulty
	}
	if reward := os.Getenv("MINING_REWARD"); reward != "" {
		if r, err := strconv.ParseFloat(reward, 64); err == nil {
			c.Mining.Reward = r
		}
	}
	if sender := os.Getenv("MINING_REWARD_SENDER"); sender != "" {
		c.Mining.RewardSender = sender
	}

	// Peer config
	if timeout := os.Getenv("PEER_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.Peer.TimeoutSeconds = t
		}
	}
	if parallel := os.Getenv("PEER_MAX_PARALLEL"); parallel != "" {
		if p, err := strconv.Atoi(parallel); err == nil {
			c.Peer.MaxParallel = p
		}
	}
	if seeds := os.Getenv("PEER_SEEDS"); seeds != "" {
		c.Peer.Seeds = nil
		for _, s := range strings.Split(seeds, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Peer.Seeds = append(c.Peer.Seeds, s)
			}
		}
	}

	// Sync config
	if interval := os.Getenv("CONSENSUS_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			c.Sync.ConsensusInterval = i
		}
	}

	// Log config
	if file := os.Getenv("LOG_FILE"); file != "" {
		c.Log.File = file
	}
	if size := os.Getenv("LOG_MAX_SIZE_MB"); size != "" {
		if s, err := strconv.Atoi(size); err == nil {
			c.Log.MaxSizeMB = s
		}
	}
	if age := os.Getenv("LOG_MAX_AGE_DAYS"); age != "" {
		if a, err := strconv.Atoi(age); err == nil {
			c.Log.MaxAgeDays = a
		}
	}
	if backups := os.Getenv("LOG_MAX_BACKUPS"); backups != "" {
		if b, err := strconv.Atoi(backups); err == nil {
			c.Log.MaxBackups = b
		}
	}
}
