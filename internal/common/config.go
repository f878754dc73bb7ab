package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Credentials CredentialsConfig `toml:"credentials"`
	Browser     BrowserConfig     `toml:"browser"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
	Search      SearchConfig      `toml:"search"`
	Service     ServiceConfig     `toml:"service"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
}

// CredentialsConfig holds the target-site login. Normally supplied via
// environment (VENATOR_EMAIL / VENATOR_PASSWORD or a .env file), not the
// config file, so the file can be committed safely.
type CredentialsConfig struct {
	Email    string `toml:"email" validate:"omitempty,email"`
	Password string `toml:"password"`
}

// BrowserConfig controls launch, attach and stealth behavior of the
// supervised browser process.
type BrowserConfig struct {
	ExecPath      string   `toml:"exec_path"`       // Chrome/Chromium binary; empty lets chromedp discover it
	Headless      bool     `toml:"headless"`        // visible browser is required for manual verification
	DebugPort     int      `toml:"debug_port"`      // DevTools port for the shared process (default 9222)
	PortScanRange int      `toml:"port_scan_range"` // fallback ports probed after debug_port, inclusive: debug_port through debug_port+port_scan_range (default 10)
	UserAgents    []string `toml:"user_agents"`     // rotation pool; empty uses the built-in pool
	WindowWidth   int      `toml:"window_width"`
	WindowHeight  int      `toml:"window_height"`
	StateDir      string   `toml:"state_dir"` // session registry, status file, user data dir

	NavigationTimeout time.Duration `toml:"navigation_timeout"` // per-navigation budget (default 30s)
	ProbeTimeout      time.Duration `toml:"probe_timeout"`      // socket/protocol liveness probes (default 3s)
}

// RateLimitConfig bounds the randomized pause between search operations.
type RateLimitConfig struct {
	MinInterval time.Duration `toml:"min_interval"` // default 30s
	MaxInterval time.Duration `toml:"max_interval"` // default 120s
}

// SearchConfig contains configuration for the search pipeline.
type SearchConfig struct {
	ResultLimit     int           `toml:"result_limit"`      // default cap per query (default 25)
	Distance        int           `toml:"distance"`          // default location radius (default 120)
	StallCycles     int           `toml:"stall_cycles"`      // consecutive no-growth scrolls treated as fully loaded (default 3, tunable)
	MaxScrollCycles int           `toml:"max_scroll_cycles"` // absolute ceiling guaranteeing termination (default 40)
	ScrollDelayMin  time.Duration `toml:"scroll_delay_min"`  // default 500ms
	ScrollDelayMax  time.Duration `toml:"scroll_delay_max"`  // default 2s
}

// ServiceConfig controls the long-running serve loop and manual
// verification behavior.
type ServiceConfig struct {
	HealthCheckSchedule  string        `toml:"health_check_schedule"` // cron expression (default "@every 1m")
	VerificationTimeout  time.Duration `toml:"verification_timeout"`  // default 5m
	VerificationInterval time.Duration `toml:"verification_interval"` // classification poll (default 5s)
	StopFile             string        `toml:"stop_file"`             // touching this file stops the serve loop
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration defaults applied before any file
// or environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Browser: BrowserConfig{
			Headless:          false,
			DebugPort:         9222,
			PortScanRange:     10,
			WindowWidth:       1920,
			WindowHeight:      1080,
			StateDir:          "./state",
			NavigationTimeout: 30 * time.Second,
			ProbeTimeout:      3 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MinInterval: 30 * time.Second,
			MaxInterval: 120 * time.Second,
		},
		Search: SearchConfig{
			ResultLimit:     25,
			Distance:        120,
			StallCycles:     3,
			MaxScrollCycles: 40,
			ScrollDelayMin:  500 * time.Millisecond,
			ScrollDelayMax:  2 * time.Second,
		},
		Service: ServiceConfig{
			HealthCheckSchedule:  "@every 1m",
			VerificationTimeout:  5 * time.Minute,
			VerificationInterval: 5 * time.Second,
			StopFile:             "./state/stop_service",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./state/data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration in priority order: defaults, then each
// file (later files override earlier ones), then environment variables.
// Missing files are an error; an empty path list is allowed and yields
// defaults plus environment.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides reads VENATOR_-prefixed environment variables on top of
// the file configuration. A .env file in the working directory is honored
// first so credentials never need to live in the TOML file.
func applyEnvOverrides(config *Config) {
	// Best effort; absence of .env is the normal case.
	_ = godotenv.Load()

	if v := os.Getenv("VENATOR_EMAIL"); v != "" {
		config.Credentials.Email = v
	}
	if v := os.Getenv("VENATOR_PASSWORD"); v != "" {
		config.Credentials.Password = v
	}
	if v := os.Getenv("VENATOR_CHROME_PATH"); v != "" {
		config.Browser.ExecPath = v
	}
	if v := os.Getenv("VENATOR_HEADLESS"); v != "" {
		config.Browser.Headless = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("VENATOR_DEBUG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			config.Browser.DebugPort = port
		}
	}
	if v := os.Getenv("VENATOR_STATE_DIR"); v != "" {
		config.Browser.StateDir = v
	}
	if v := os.Getenv("VENATOR_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// FlagOverrides carries command-line values that take priority over both
// the config file and the environment. Zero values mean "not set".
type FlagOverrides struct {
	Headless  *bool
	DebugPort int
	StateDir  string
	LogLevel  string
}

// ApplyFlagOverrides applies CLI flags on top of the loaded configuration.
func ApplyFlagOverrides(config *Config, overrides FlagOverrides) {
	if overrides.Headless != nil {
		config.Browser.Headless = *overrides.Headless
	}
	if overrides.DebugPort > 0 {
		config.Browser.DebugPort = overrides.DebugPort
	}
	if overrides.StateDir != "" {
		config.Browser.StateDir = overrides.StateDir
	}
	if overrides.LogLevel != "" {
		config.Logging.Level = overrides.LogLevel
	}
}

// Validate checks structural validity and cross-field constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Browser.DebugPort <= 0 || c.Browser.DebugPort > 65535 {
		return fmt.Errorf("invalid configuration: debug_port %d out of range", c.Browser.DebugPort)
	}
	if c.Browser.PortScanRange < 0 {
		return fmt.Errorf("invalid configuration: port_scan_range must not be negative")
	}
	if c.RateLimit.MinInterval < 0 || c.RateLimit.MaxInterval < c.RateLimit.MinInterval {
		return fmt.Errorf("invalid configuration: rate_limit bounds must satisfy 0 <= min <= max")
	}
	if c.Search.StallCycles <= 0 {
		return fmt.Errorf("invalid configuration: stall_cycles must be positive")
	}
	if c.Search.MaxScrollCycles < c.Search.StallCycles {
		return fmt.Errorf("invalid configuration: max_scroll_cycles must be >= stall_cycles")
	}
	return nil
}

// HasCredentials reports whether a login can be attempted at all.
func (c *Config) HasCredentials() bool {
	return c.Credentials.Email != "" && c.Credentials.Password != ""
}
