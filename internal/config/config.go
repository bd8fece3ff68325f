package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DirName is the per-user and per-project configuration directory name.
	DirName = ".ssw"
	// FileName is the configuration file name inside DirName.
	FileName = "config.toml"

	defaultBaseURL         = "http://localhost:8080"
	defaultRequestTimeout  = 10 * time.Second
	defaultResetOnActivity = false
)

// Config stores host settings plus the watchdog option overrides loaded from TOML files.
type Config struct {
	BaseURL         string
	RequestTimeout  time.Duration
	Cookie          string
	ResetOnActivity bool
	Telemetry       bool
	OTLPEndpoint    string
	Watchdog        Overrides

	// Sources lists the files that contributed, in overlay order.
	Sources []string
}

type fileConfig struct {
	BaseURL         *string    `toml:"base_url"`
	RequestTimeout  *string    `toml:"request_timeout"`
	Cookie          *string    `toml:"cookie"`
	ResetOnActivity *bool      `toml:"reset_on_activity"`
	Telemetry       *bool      `toml:"telemetry"`
	OTLPEndpoint    *string    `toml:"otel_endpoint"`
	Watchdog        *Overrides `toml:"watchdog"`
}

// Load reads config from ~/.ssw/config.toml and overlays a project-local .ssw/config.toml.
func Load(ctx context.Context) (*Config, error) {
	paths, err := Paths()
	if err != nil {
		return nil, err
	}
	return LoadPaths(ctx, paths...)
}

// Paths returns the home and project config paths in overlay order.
func Paths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	projectPath, err := ProjectPath()
	if err != nil {
		return nil, err
	}
	return []string{filepath.Join(homeDir, DirName, FileName), projectPath}, nil
}

// LoadPaths builds defaults and overlays each existing file in order.
func LoadPaths(ctx context.Context, paths ...string) (*Config, error) {
	cfg := defaults()
	for _, path := range paths {
		if err := overlayFromFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	_ = ctx
	return &cfg, nil
}

// ProjectPath returns the project-local config path for the current directory.
func ProjectPath() (string, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return filepath.Join(workingDir, DirName, FileName), nil
}

// Options resolves the watchdog options for this config.
func (c *Config) Options() Options {
	if c == nil {
		return Defaults()
	}
	return Resolve(c.Watchdog)
}

func defaults() Config {
	return Config{
		BaseURL:         defaultBaseURL,
		RequestTimeout:  defaultRequestTimeout,
		ResetOnActivity: defaultResetOnActivity,
		Telemetry:       true,
		Sources:         []string{},
	}
}

func overlayFromFile(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config must not be nil")
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config file %q: %w", path, err)
	}

	var decoded fileConfig
	meta, err := toml.DecodeFile(path, &decoded)
	if err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("decode config file %q: unsupported keys %s", path, strings.Join(keys, ", "))
	}

	if err := applyHostOverrides(cfg, decoded, path); err != nil {
		return err
	}
	if decoded.Watchdog != nil {
		cfg.Watchdog = cfg.Watchdog.Overlay(*decoded.Watchdog)
	}
	cfg.Sources = append(cfg.Sources, path)
	return nil
}

func applyHostOverrides(cfg *Config, decoded fileConfig, path string) error {
	if decoded.BaseURL != nil {
		cfg.BaseURL = strings.TrimSpace(*decoded.BaseURL)
	}
	if decoded.RequestTimeout != nil {
		value, err := parseDuration(*decoded.RequestTimeout, "request_timeout", path)
		if err != nil {
			return err
		}
		if value <= 0 {
			return fmt.Errorf("parse request_timeout in %q: must be > 0", path)
		}
		cfg.RequestTimeout = value
	}
	if decoded.Cookie != nil {
		cfg.Cookie = strings.TrimSpace(*decoded.Cookie)
	}
	if decoded.ResetOnActivity != nil {
		cfg.ResetOnActivity = *decoded.ResetOnActivity
	}
	if decoded.Telemetry != nil {
		cfg.Telemetry = *decoded.Telemetry
	}
	if decoded.OTLPEndpoint != nil {
		cfg.OTLPEndpoint = strings.TrimSpace(*decoded.OTLPEndpoint)
	}
	return nil
}

func (c *Config) validate() error {
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("parse base_url %q: %w", c.BaseURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("parse base_url %q: scheme must be http or https", c.BaseURL)
	}
	if err := c.Options().Validate(); err != nil {
		return fmt.Errorf("validate [watchdog] options: %w", err)
	}
	return nil
}

func parseDuration(value, key, path string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s in %q: %w", key, path, err)
	}
	return parsed, nil
}
