package cli

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	statBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
