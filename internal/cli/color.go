package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/smsbridge/smsbridge/internal/cli/ui"
	"github.com/smsbridge/smsbridge/internal/sms"
)

// The helpers below use a forced-ANSI renderer so they always produce escape
// codes when color=true, even in non-TTY environments (the caller already
// made the TTY decision via the color bool parameter).

func render(text string, color bool, style func(lipgloss.Style) lipgloss.Style) string {
	if !color {
		return text
	}
	return style(ui.ForcedRenderer().NewStyle()).Render(text)
}

// bold returns text in bold if color is enabled.
func bold(text string, color bool) string {
	return render(text, color, func(s lipgloss.Style) lipgloss.Style { return s.Bold(true) })
}

// dim returns text in dim if color is enabled.
func dim(text string, color bool) string {
	return render(text, color, func(s lipgloss.Style) lipgloss.Style { return s.Faint(true) })
}

func cyan(text string, color bool) string {
	return render(text, color, func(s lipgloss.Style) lipgloss.Style { return s.Foreground(ui.ColorCyan) })
}

func green(text string, color bool) string {
	return render(text, color, func(s lipgloss.Style) lipgloss.Style { return s.Foreground(ui.ColorGreen) })
}

func boldCyan(text string, color bool) string {
	return render(text, color, func(s lipgloss.Style) lipgloss.Style { return s.Bold(true).Foreground(ui.ColorCyan) })
}

// statusColor renders a delivery status in a color matching its outcome.
func statusColor(status sms.Status, color bool) string {
	var c lipgloss.Color
	switch status {
	case sms.StatusDelivered:
		c = ui.ColorGreen
	case sms.StatusFailed:
		c = ui.ColorRed
	case sms.StatusPending:
		c = ui.ColorCyan
	default:
		c = ui.ColorYellow
	}
	return render(string(status), color, func(s lipgloss.Style) lipgloss.Style { return s.Foreground(c) })
}

// levelColor renders a diagnostic level.
func levelColor(level string, color bool) string {
	c := ui.ColorYellow
	if level == "error" {
		c = ui.ColorRed
	}
	return render(level, color, func(s lipgloss.Style) lipgloss.Style { return s.Foreground(c) })
}
