// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes, matching the ui.theme config values.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styles for one resolved background.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Header
	Header       lipgloss.Style
	HeaderBrand  lipgloss.Style
	HeaderThread lipgloss.Style
	HeaderNoLink lipgloss.Style

	// Transcript
	UserLabel lipgloss.Style
	BotLabel  lipgloss.Style
	Timestamp lipgloss.Style
	UserText  lipgloss.Style
	BotText   lipgloss.Style
	Thinking  lipgloss.Style
	ErrorText lipgloss.Style

	// Empty state
	Welcome     lipgloss.Style
	WelcomeHint lipgloss.Style

	// Input and footer
	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	StatusError    lipgloss.Style
	Help           lipgloss.Style
}

// NewTheme builds a theme. ModeAuto asks the terminal for its background;
// any other unknown mode is treated as auto.
func NewTheme(mode string) *Theme {
	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	return newTheme(isDark, termenv.ColorProfile())
}

func newTheme(isDark bool, profile termenv.Profile) *Theme {
	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// Color resolves an adaptive color for this theme's background.
func (t *Theme) Color(c lipgloss.AdaptiveColor) lipgloss.Color {
	if t.IsDark {
		return lipgloss.Color(c.Dark)
	}
	return lipgloss.Color(c.Light)
}

// GlamourStyle returns the glamour standard style for this background.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	c := t.Color

	t.Header = lipgloss.NewStyle().
		Background(c(SurfaceDim)).
		Foreground(c(TextSecondary)).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Cyan))

	t.HeaderThread = lipgloss.NewStyle().
		Foreground(c(Emerald))

	t.HeaderNoLink = lipgloss.NewStyle().
		Foreground(c(Amber))

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Cyan))

	t.BotLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Purple))

	t.Timestamp = lipgloss.NewStyle().
		Foreground(c(TextMuted))

	t.UserText = lipgloss.NewStyle().
		Foreground(c(TextPrimary)).
		PaddingLeft(2)

	t.BotText = lipgloss.NewStyle().
		Foreground(c(TextPrimary)).
		PaddingLeft(2)

	t.Thinking = lipgloss.NewStyle().
		Foreground(c(Amber)).
		Italic(true).
		PaddingLeft(2)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(c(Rose)).
		PaddingLeft(2)

	t.Welcome = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Purple)).
		MarginTop(1)

	t.WelcomeHint = lipgloss.NewStyle().
		Foreground(c(TextMuted)).
		Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(c(Overlay))

	t.InputPrompt = lipgloss.NewStyle().
		Bold(true).
		Foreground(c(Cyan))

	t.StatusBar = lipgloss.NewStyle().
		Foreground(c(TextMuted))

	t.StatusError = lipgloss.NewStyle().
		Foreground(c(Rose))

	t.Help = lipgloss.NewStyle().
		Foreground(c(TextMuted))
}
