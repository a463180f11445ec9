package ux

import (
	"github.com/charmbracelet/lipgloss"
)

// Semantic colors
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#8BC34A"}
	colorError   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E53935"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#F57F17", Dark: "#FFC107"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#2196F3"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#5F6B7A", Dark: "#9AA5B1"}
)

// Styles holds the lipgloss styles bound to one Context.
type Styles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Path    lipgloss.Style
}

// NewStyles binds a renderer to the context's profile and background.
func NewStyles(ctx Context) Styles {
	r := lipgloss.NewRenderer(ctx.Out)
	r.SetColorProfile(ctx.Profile)
	r.SetHasDarkBackground(ctx.Dark)

	return Styles{
		Success: r.NewStyle().Foreground(colorSuccess).Bold(true),
		Error:   r.NewStyle().Foreground(colorError).Bold(true),
		Warning: r.NewStyle().Foreground(colorWarning),
		Info:    r.NewStyle().Foreground(colorInfo),
		Muted:   r.NewStyle().Foreground(colorMuted),
		Bold:    r.NewStyle().Bold(true),
		Path:    r.NewStyle().Foreground(colorInfo).Underline(true),
	}
}
