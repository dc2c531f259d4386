// Package config loads server settings: built-in defaults, then an optional
// TOML file named by IDLEGATE_CONFIG, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"idlegate/internal/constants"
	"idlegate/internal/idle"
	"idlegate/internal/utils"
)

const EnvConfigPath = "IDLEGATE_CONFIG"

// Duration decodes TOML strings like "15m" or "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Idle      IdleConfig      `toml:"idle"`
	Session   SessionConfig   `toml:"session"`
	Inventory InventoryConfig `toml:"inventory"`
}

type ServerConfig struct {
	Port           string   `toml:"port"`
	PublicURL      string   `toml:"public_url"`
	AllowedOrigins []string `toml:"allowed_origins"`
	EnableTLS      bool     `toml:"enable_tls"`
	CertFile       string   `toml:"cert_file"`
	KeyFile        string   `toml:"key_file"`
}

type IdleConfig struct {
	IdleMax       Duration `toml:"idle_max"`
	Warning       Duration `toml:"warning"`
	ExemptRoute   string   `toml:"exempt_route"`
	TouchOnSignIn bool     `toml:"touch_on_sign_in"`
}

type SessionConfig struct {
	Duration Duration `toml:"duration"`
}

type InventoryConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

func Default() *Config {
	idleCfg := idle.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:      constants.DefaultPort,
			PublicURL: constants.DefaultServerURL,
			CertFile:  "certs/server.crt",
			KeyFile:   "certs/server.key",
		},
		Idle: IdleConfig{
			IdleMax:       Duration{idleCfg.IdleMax},
			Warning:       Duration{idleCfg.Warning},
			ExemptRoute:   idleCfg.ExemptRoute,
			TouchOnSignIn: idleCfg.TouchOnSignIn,
		},
		Session: SessionConfig{
			Duration: Duration{constants.SessionDuration},
		},
		Inventory: InventoryConfig{
			Driver: "memory",
			Path:   "idlegate.db",
		},
	}
}

// Load applies defaults, the file at IDLEGATE_CONFIG if set, and env
// overrides, then validates the result.
func Load() (*Config, error) {
	cfg := Default()

	if path := utils.GetEnv(EnvConfigPath, ""); path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func LoadTOML(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) ApplyEnvOverrides() {
	c.Server.Port = utils.GetEnv("PORT", c.Server.Port)
	c.Server.PublicURL = utils.GetEnv("IDLEGATE_SERVER", c.Server.PublicURL)
	if origins := utils.GetEnv("IDLEGATE_ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	c.Server.EnableTLS = utils.GetEnvBool("IDLEGATE_ENABLE_TLS", c.Server.EnableTLS)
	c.Server.CertFile = utils.GetEnv("IDLEGATE_CERT_FILE", c.Server.CertFile)
	c.Server.KeyFile = utils.GetEnv("IDLEGATE_KEY_FILE", c.Server.KeyFile)

	c.Idle.IdleMax.Duration = utils.GetEnvDuration("IDLE_MAX", c.Idle.IdleMax.Duration)
	c.Idle.Warning.Duration = utils.GetEnvDuration("IDLE_WARNING", c.Idle.Warning.Duration)
	c.Idle.ExemptRoute = utils.GetEnv("IDLE_EXEMPT_ROUTE", c.Idle.ExemptRoute)
	c.Idle.TouchOnSignIn = utils.GetEnvBool("IDLE_TOUCH_ON_SIGN_IN", c.Idle.TouchOnSignIn)

	c.Session.Duration.Duration = utils.GetEnvDuration("SESSION_DURATION", c.Session.Duration.Duration)

	c.Inventory.Driver = utils.GetEnv("INVENTORY_DRIVER", c.Inventory.Driver)
	c.Inventory.Path = utils.GetEnv("INVENTORY_PATH", c.Inventory.Path)
}

// IdleConfig converts the loaded settings for the coordinator.
func (c *Config) IdleConfig() idle.Config {
	return idle.Config{
		IdleMax:       c.Idle.IdleMax.Duration,
		Warning:       c.Idle.Warning.Duration,
		ExemptRoute:   c.Idle.ExemptRoute,
		TouchOnSignIn: c.Idle.TouchOnSignIn,
	}
}

func (c *Config) Validate() error {
	if err := c.IdleConfig().Validate(); err != nil {
		return err
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	if c.Session.Duration.Duration <= 0 {
		return fmt.Errorf("session.duration must be positive, got %s", c.Session.Duration.Duration)
	}
	switch c.Inventory.Driver {
	case "memory":
	case "sqlite":
		if c.Inventory.Path == "" {
			return fmt.Errorf("inventory.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("inventory.driver %q must be memory or sqlite", c.Inventory.Driver)
	}
	return nil
}
