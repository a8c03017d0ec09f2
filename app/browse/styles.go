package browse

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("39")
	colorSecondary = lipgloss.Color("86")
	colorWarning   = lipgloss.Color("220")
	colorDim       = lipgloss.Color("241")

	gutterStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	cursorLineStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237"))

	activeKeyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	filePathStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSecondary)

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Italic(true)
)
