package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/session-sentry/ssw/internal/config"
	"github.com/session-sentry/ssw/internal/keepalive"
	"github.com/spf13/cobra"
)

func newPingCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [target]",
		Short: "Send one keep-alive request and report the result",
		Long: "Sends one keep-alive request to target, or to the configured keep_alive_url.\n" +
			"The exit status is non-zero when the server does not answer with 2xx.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newKeepAliveClient(cfg, logger)
			if err != nil {
				return err
			}
			target := cfg.Options().KeepAliveURL
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				target = strings.TrimSpace(args[0])
			}
			resolved, err := client.Resolve(target)
			if err != nil {
				return err
			}
			if err := client.Ping(cmd.Context(), target); err != nil {
				return fmt.Errorf("ping %s: %w", resolved, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", resolved)
			return err
		},
	}
}

func newKeepAliveClient(cfg *config.Config, logger *log.Logger) (*keepalive.Client, error) {
	client, err := keepalive.NewClient(keepalive.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout,
		Cookie:  cfg.Cookie,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create keep-alive client: %w", err)
	}
	return client, nil
}
