// Package theme holds the terminal palette and shared styles for the session host.
package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	// Amber marks the active session and focused controls.
	Amber = "#FFAA00"
	// Sky is the informational accent.
	Sky = "#99CCFF"
	// Caution is used while the warning countdown runs.
	Caution = "#FFCC00"
	// Expired is used for logout and failures.
	Expired = "#FF3333"
	// Renewed is used for a successful keep-alive.
	Renewed = "#33CC66"
	// Ink is the background used behind filled buttons.
	Ink = "#000000"
	// Slate is the muted neutral for borders and hints.
	Slate = "#52526A"
	// Paper is the primary text color.
	Paper = "#F5F6FA"
	// Mist is the secondary text color.
	Mist = "#CCCCCC"
)

const (
	// IconIdle marks a quiet session.
	IconIdle = "●"
	// IconWarning marks a running countdown.
	IconWarning = "⚠"
	// IconTerminated marks a logged out session.
	IconTerminated = "✗"
	// IconRenewed marks a keep-alive.
	IconRenewed = "✓"
)

var (
	// AmberColor is the profile-aware terminal color for Amber.
	AmberColor = profileColor(Amber, "214", "11")
	// SkyColor is the profile-aware terminal color for Sky.
	SkyColor = profileColor(Sky, "153", "14")
	// CautionColor is the profile-aware terminal color for Caution.
	CautionColor = profileColor(Caution, "220", "11")
	// ExpiredColor is the profile-aware terminal color for Expired.
	ExpiredColor = profileColor(Expired, "203", "9")
	// RenewedColor is the profile-aware terminal color for Renewed.
	RenewedColor = profileColor(Renewed, "41", "10")
	// InkColor is the profile-aware terminal color for Ink.
	InkColor = profileColor(Ink, "16", "0")
	// SlateColor is the profile-aware terminal color for Slate.
	SlateColor = profileColor(Slate, "60", "8")
	// PaperColor is the profile-aware terminal color for Paper.
	PaperColor = profileColor(Paper, "255", "15")
	// MistColor is the profile-aware terminal color for Mist.
	MistColor = profileColor(Mist, "252", "7")
)

var (
	// ActiveStyle marks the idle, healthy session.
	ActiveStyle = lipgloss.NewStyle().Foreground(AmberColor).Bold(true)
	// WarningStyle marks the countdown.
	WarningStyle = lipgloss.NewStyle().Foreground(CautionColor).Bold(true)
	// ErrorStyle marks logout and failures.
	ErrorStyle = lipgloss.NewStyle().Foreground(ExpiredColor).Bold(true)
	// SuccessStyle marks renewals.
	SuccessStyle = lipgloss.NewStyle().Foreground(RenewedColor).Bold(true)
	// InfoStyle marks neutral information.
	InfoStyle = lipgloss.NewStyle().Foreground(SkyColor)
	// HintStyle renders key hints and placeholders.
	HintStyle = lipgloss.NewStyle().Foreground(SlateColor).Faint(true)
)

var (
	// PanelBorder frames the event log.
	PanelBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SlateColor)

	// DialogBorder frames the session dialog.
	DialogBorder = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(CautionColor)
)

var colorProfileFn = lipgloss.ColorProfile

func profileColor(hex string, ansi256 string, ansi string) lipgloss.TerminalColor {
	switch colorProfileFn() {
	case termenv.ANSI256, termenv.ANSI:
		return lipgloss.CompleteAdaptiveColor{
			Light: lipgloss.CompleteColor{TrueColor: hex, ANSI256: ansi256, ANSI: ansi},
			Dark:  lipgloss.CompleteColor{TrueColor: hex, ANSI256: ansi256, ANSI: ansi},
		}
	default:
		return lipgloss.AdaptiveColor{Light: hex, Dark: hex}
	}
}
