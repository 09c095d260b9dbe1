package console

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tungetti/cts/internal/engine"
)

// Coral palette.
var (
	// CoralOrange is the accent color.
	CoralOrange = lipgloss.Color("#FF7F50")
	// CoralTeal is the progress bar fill color.
	CoralTeal = lipgloss.Color("#00897B")
)

// Semantic colors, picked by terminal background.
var (
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#22C55E", Dark: "#4ADE80"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#EAB308", Dark: "#FACC15"}
	ColorError     = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	ColorInfo      = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"}
	ColorTextMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

// Styles holds the lipgloss styles of the console, bound to one renderer.
type Styles struct {
	Title   lipgloss.Style
	Key     lipgloss.Style
	Muted   lipgloss.Style
	Pass    lipgloss.Style
	Fail    lipgloss.Style
	Timeout lipgloss.Style
	Crash   lipgloss.Style
	Skipped lipgloss.Style
	Error   lipgloss.Style
}

// NewStyles builds the styles for renderer r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(CoralOrange),
		Key:     r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(ColorTextMuted),
		Pass:    r.NewStyle().Bold(true).Foreground(ColorSuccess),
		Fail:    r.NewStyle().Bold(true).Foreground(ColorError),
		Timeout: r.NewStyle().Bold(true).Foreground(ColorWarning),
		Crash:   r.NewStyle().Bold(true).Foreground(ColorError),
		Skipped: r.NewStyle().Foreground(ColorTextMuted),
		Error:   r.NewStyle().Bold(true).Foreground(ColorError),
	}
}

// Status returns the style of a test status.
func (s Styles) Status(st engine.Status) lipgloss.Style {
	switch st {
	case engine.StatusPass:
		return s.Pass
	case engine.StatusFail:
		return s.Fail
	case engine.StatusTimeout:
		return s.Timeout
	case engine.StatusCrash:
		return s.Crash
	default:
		return s.Skipped
	}
}
