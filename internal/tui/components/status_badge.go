package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/session-sentry/ssw/internal/state"
	"github.com/session-sentry/ssw/internal/tui/theme"
)

// BadgeOpt configures optional rendering behavior for RenderStateBadge.
type BadgeOpt func(*badgeOptions)

type badgeOptions struct {
	showIcon bool
	bold     bool
}

type badgeVariant struct {
	icon  string
	label string
	color lipgloss.TerminalColor
}

var stateBadgeVariants = map[state.State]badgeVariant{
	state.Idle:       {icon: theme.IconIdle, label: "IDLE", color: theme.RenewedColor},
	state.Warning:    {icon: theme.IconWarning, label: "WARNING", color: theme.CautionColor},
	state.Terminated: {icon: theme.IconTerminated, label: "TERMINATED", color: theme.ExpiredColor},
}

// WithBadgeIcon controls whether the icon is shown (default: true).
func WithBadgeIcon(show bool) BadgeOpt {
	return func(options *badgeOptions) {
		options.showIcon = show
	}
}

// WithBadgeBold controls whether the badge text is bold (default: false).
func WithBadgeBold(bold bool) BadgeOpt {
	return func(options *badgeOptions) {
		options.bold = bold
	}
}

// RenderStateBadge renders `icon LABEL` for a watchdog state.
func RenderStateBadge(current state.State, opts ...BadgeOpt) string {
	options := badgeOptions{showIcon: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	variant, ok := stateBadgeVariants[current]
	if !ok {
		variant = badgeVariant{
			icon:  "?",
			label: strings.ToUpper(strings.TrimSpace(string(current))),
			color: theme.SlateColor,
		}
		if variant.label == "" {
			variant.label = "UNKNOWN"
		}
	}

	content := variant.label
	if options.showIcon {
		content = variant.icon + " " + variant.label
	}
	return lipgloss.NewStyle().
		Foreground(variant.color).
		Bold(options.bold).
		Render(content)
}
