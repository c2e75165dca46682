package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Header / chrome
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleDim       = lipgloss.NewStyle().Faint(true)
	styleAccent    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true) // blue
	styleBar       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))            // green
	styleBarTrail  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))           // dark gray
	styleSep       = lipgloss.NewStyle().Faint(true)
	styleHelp      = lipgloss.NewStyle().Faint(true)
	styleFilterBox = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	styleState     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)

	// Table header
	styleColHeader = lipgloss.NewStyle().Bold(true).Faint(true)

	// Platform families
	styleModded  = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))  // magenta
	stylePlugin  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))  // cyan
	styleVanilla = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))  // green
	styleMOTD    = lipgloss.NewStyle().Foreground(lipgloss.Color("250")) // light gray

	// Selection
	styleCursor = lipgloss.NewStyle().Background(lipgloss.Color("236")).Bold(true)

	// Detail pane
	styleDetailText = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// Filter tabs
	styleTabActive   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10"))
	styleTabInactive = lipgloss.NewStyle().Faint(true)
)

func platformStyle(tag string) lipgloss.Style {
	switch platformFamily(tag) {
	case FilterModded:
		return styleModded
	case FilterPlugin:
		return stylePlugin
	default:
		return styleVanilla
	}
}
