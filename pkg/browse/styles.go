package browse

import "github.com/charmbracelet/lipgloss"

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	priceStyle    = lipgloss.NewStyle().Foreground(primaryColor)
	selectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("237")).Bold(true)

	onlineBadge  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineBadge = lipgloss.NewStyle().Foreground(warningColor).Bold(true)

	errorBanner = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(errorColor).
			Padding(0, 1)
	flashStyle    = lipgloss.NewStyle().Foreground(successColor)
	flashErrStyle = lipgloss.NewStyle().Foreground(errorColor)
)
