package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Network  NetworkConfig  `toml:"network"`
	Game     GameConfig     `toml:"game"`
	Relay    RelayConfig    `toml:"relay"`
	Auth     AuthConfig     `toml:"auth"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

// DatabaseConfig is optional: an empty DSN runs without a game log.
type DatabaseConfig struct {
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	WriteQueueSize  int           `toml:"write_queue_size"`
}

type NetworkConfig struct {
	BindAddress    string        `toml:"bind_address"`
	TickRate       time.Duration `toml:"tick_rate"`
	OutQueueSize   int           `toml:"out_queue_size"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	MaxMessageSize int64         `toml:"max_message_size"`
	AllowedOrigins []string      `toml:"allowed_origins"`
}

type GameConfig struct {
	Countdown        time.Duration `toml:"countdown"`
	CleanupDelay     time.Duration `toml:"cleanup_delay"`
	CommandQueueSize int           `toml:"command_queue_size"`
	MaxCommandsTick  int           `toml:"max_commands_per_tick"`
	JoinTimeout      time.Duration `toml:"join_timeout"`
	MapsFile         string        `toml:"maps_file"`
	ScriptsDir       string        `toml:"scripts_dir"`
}

type RelayConfig struct {
	Variant string `toml:"variant"` // "host" or "gossip"
}

type AuthConfig struct {
	Mode   string `toml:"mode"` // "jwt" or "static"
	Secret string `toml:"secret"`
	Issuer string `toml:"issuer"`
	// Users maps username to bcrypt hash of the user's token, static mode only.
	Users map[string]string `toml:"users"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads an optional .env file, the TOML file at path, then applies
// ARENA_* environment overrides.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Parse decodes TOML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("ARENA_DATABASE_DSN"); ok {
		c.Database.DSN = v
	}
	if v, ok := lookup("ARENA_JWT_SECRET"); ok {
		c.Auth.Secret = v
	}
	if v, ok := lookup("ARENA_BIND_ADDRESS"); ok {
		c.Network.BindAddress = v
	}
	if v, ok := lookup("ARENA_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Network.TickRate <= 0 {
		return fmt.Errorf("network.tick_rate must be positive, got %s", c.Network.TickRate)
	}
	if c.Game.Countdown < 0 {
		return fmt.Errorf("game.countdown must not be negative")
	}
	switch strings.ToLower(c.Auth.Mode) {
	case "jwt":
		if c.Auth.Secret == "" {
			return errors.New("auth.secret is required in jwt mode (or set ARENA_JWT_SECRET)")
		}
	case "static":
		if len(c.Auth.Users) == 0 {
			return errors.New("auth.users is empty in static mode")
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}
	switch c.Relay.Variant {
	case "", "host", "gossip":
	default:
		return fmt.Errorf("unknown relay.variant %q", c.Relay.Variant)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "Rockfall Arena",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			WriteQueueSize:  256,
		},
		Network: NetworkConfig{
			BindAddress:    "0.0.0.0:8080",
			TickRate:       40 * time.Millisecond,
			OutQueueSize:   256,
			WriteTimeout:   10 * time.Second,
			ReadTimeout:    60 * time.Second,
			MaxMessageSize: 64 << 10,
		},
		Game: GameConfig{
			Countdown:        3 * time.Second,
			CleanupDelay:     5 * time.Second,
			CommandQueueSize: 256,
			MaxCommandsTick:  64,
			JoinTimeout:      2 * time.Second,
			MapsFile:         "data/maps.yaml",
			ScriptsDir:       "scripts",
		},
		Relay: RelayConfig{
			Variant: "host",
		},
		Auth: AuthConfig{
			Mode:   "jwt",
			Issuer: "rockfall-arena",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
