package main

import (
	"fmt"

	"github.com/session-sentry/ssw/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

type resolvedConfig struct {
	BaseURL         string         `yaml:"base_url"`
	RequestTimeout  string         `yaml:"request_timeout"`
	Cookie          string         `yaml:"cookie,omitempty"`
	ResetOnActivity bool           `yaml:"reset_on_activity"`
	Telemetry       bool           `yaml:"telemetry"`
	OTLPEndpoint    string         `yaml:"otel_endpoint,omitempty"`
	Sources         []string       `yaml:"sources"`
	Watchdog        config.Options `yaml:"watchdog"`
}

func newConfigCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(resolve(cfg)); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return encoder.Close()
		},
	}
}

func resolve(cfg *config.Config) resolvedConfig {
	out := resolvedConfig{
		BaseURL:         cfg.BaseURL,
		RequestTimeout:  cfg.RequestTimeout.String(),
		ResetOnActivity: cfg.ResetOnActivity,
		Telemetry:       cfg.Telemetry,
		OTLPEndpoint:    cfg.OTLPEndpoint,
		Sources:         append([]string{}, cfg.Sources...),
		Watchdog:        cfg.Options(),
	}
	if cfg.Cookie != "" {
		out.Cookie = redacted
	}
	return out
}
