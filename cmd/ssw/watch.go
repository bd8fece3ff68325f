package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/session-sentry/ssw/internal/config"
	"github.com/session-sentry/ssw/internal/events"
	"github.com/session-sentry/ssw/internal/navigation"
	"github.com/session-sentry/ssw/internal/prompt"
	"github.com/session-sentry/ssw/internal/scheduler"
	"github.com/session-sentry/ssw/internal/tui"
	"github.com/session-sentry/ssw/internal/watchdog"
	"github.com/spf13/cobra"
)

const activityInterval = time.Second

type watchOptions struct {
	pageID      string
	watchPaths  []string
	out         io.Writer
	programOpts []tea.ProgramOption
}

func newWatchCommand(cfg *config.Config, logger *log.Logger) *cobra.Command {
	var pageID string
	var noReload bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the terminal host and guard its session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := watchOptions{
				pageID:      pageID,
				out:         cmd.OutOrStdout(),
				programOpts: []tea.ProgramOption{tea.WithAltScreen()},
			}
			if !noReload {
				paths, err := config.Paths()
				if err != nil {
					return err
				}
				opts.watchPaths = paths
			}
			return runWatch(cmd.Context(), cfg, logger, opts)
		},
	}
	cmd.Flags().StringVar(&pageID, "page", "", "page identity (random when empty)")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "do not reconfigure when config files change")
	return cmd
}

// session owns the page and the overrides it was last configured with. Reloads and
// activity both go back through the registry, which is the reset path.
type session struct {
	mu        sync.Mutex
	overrides config.Overrides

	ctx      context.Context
	registry *watchdog.Registry
	page     watchdog.Page
	logger   *log.Logger
}

func (s *session) configure() error {
	s.mu.Lock()
	overrides := s.overrides
	s.mu.Unlock()

	_, err := s.registry.Configure(s.ctx, s.page, overrides)
	return err
}

func (s *session) reload(cfg *config.Config) {
	s.mu.Lock()
	s.overrides = cfg.Watchdog
	s.mu.Unlock()

	if err := s.configure(); err != nil {
		s.logger.Error("reconfigure after reload failed", "page_id", s.page.ID, "error", err)
		return
	}
	s.logger.Info("watchdog reconfigured from config files", "page_id", s.page.ID, "sources", cfg.Sources)
}

func (s *session) activity() {
	if err := s.configure(); err != nil {
		s.logger.Warn("activity reset failed", "page_id", s.page.ID, "error", err)
	}
}

func (s *session) status() (watchdog.Snapshot, bool) {
	w, ok := s.registry.Lookup(s.page.ID)
	if !ok {
		return watchdog.Snapshot{}, false
	}
	return w.Snapshot(), true
}

func runWatch(ctx context.Context, cfg *config.Config, logger *log.Logger, opts watchOptions) error {
	pageID := strings.TrimSpace(opts.pageID)
	if pageID == "" {
		pageID = uuid.NewString()
	}
	logger = logger.With("page_id", pageID)

	client, err := newKeepAliveClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := scheduler.NewLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("page loop stopped", "error", err)
		}
	}()

	bus := events.New(events.WithLogger(logger))
	registry := watchdog.NewRegistry(client, watchdog.WithLogger(logger), watchdog.WithBus(bus))

	s := &session{
		overrides: cfg.Watchdog,
		ctx:       ctx,
		registry:  registry,
		logger:    logger,
	}

	hostCfg := tui.Config{PageID: pageID, Status: s.status, ActivityInterval: activityInterval}
	if cfg.ResetOnActivity {
		hostCfg.OnActivity = s.activity
	}
	model := tui.NewModel(hostCfg)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts.programOpts...)...)

	s.page = watchdog.Page{
		ID:        pageID,
		Scheduler: loop,
		Navigator: navigation.NewHTTPNavigator(client, tui.Leave(program), logger),
		Surfaces: func(string) prompt.Surface {
			return tui.NewSurface(program)
		},
	}

	unsubscribe := bus.SubscribeAll(tui.Forward(program))
	defer unsubscribe()

	if err := s.configure(); err != nil {
		return fmt.Errorf("configure watchdog: %w", err)
	}

	if len(opts.watchPaths) > 0 {
		watcher, err := config.NewWatcher(opts.watchPaths, config.DefaultReloadDebounce, s.reload, logger)
		switch {
		case errors.Is(err, config.ErrNoWatchableDirs):
			logger.Debug("no config directory to watch")
		case err != nil:
			logger.Warn("config hot reload disabled", "error", err)
		default:
			watcher.Start(ctx)
			defer func() { _ = watcher.Stop() }()
		}
	}

	final, err := program.Run()
	cancel()
	<-loopDone
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run terminal host: %w", err)
	}

	if host, ok := final.(*tui.Model); ok && opts.out != nil {
		if left, target := host.Left(); left {
			_, err := fmt.Fprintf(opts.out, "session ended, logged out via %s\n", target)
			return err
		}
	}
	return nil
}
