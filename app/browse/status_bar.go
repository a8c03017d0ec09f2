package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// StatusBar renders the file position on the left and the yaml_nav slot on
// the right.
type StatusBar struct {
	file   string
	line   int
	column int
	slot   string
}

func (s StatusBar) View(width int) string {
	left := fmt.Sprintf("%s %d:%d", filePathStyle.Render(truncate(s.file, 40)), s.line+1, s.column+1)
	right := activeKeyStyle.Render(s.slot)
	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return statusStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:1]
	}
	return "…" + s[len(s)-n+1:]
}
