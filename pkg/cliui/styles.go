// Package cliui holds the terminal styling and small rendering helpers shared
// by reposcope CLI commands.
package cliui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// renderer honors NO_COLOR and CLICOLOR_FORCE for every style below.
var renderer = lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.EnvColorProfile()))

var (
	green  = lipgloss.Color("82")
	red    = lipgloss.Color("196")
	amber  = lipgloss.Color("214")
	bright = lipgloss.Color("252")
)

var (
	SuccessMark = renderer.NewStyle().Foreground(green).Render("✓")
	FailMark    = renderer.NewStyle().Foreground(red).Render("✗")

	StepStyle   = renderer.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = renderer.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	ValueStyle  = renderer.NewStyle().Foreground(bright)
	DimStyle    = renderer.NewStyle().Foreground(lipgloss.Color("241"))
	NameStyle   = renderer.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	HeaderStyle = renderer.NewStyle().Foreground(bright).Bold(true)
)

var statusStyles = map[string]lipgloss.Style{
	"ready": renderer.NewStyle().Foreground(green),
	"error": renderer.NewStyle().Foreground(red),
}

// StatusStyle colors a repository status. Anything still in progress is
// amber.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return renderer.NewStyle().Foreground(amber)
}

// Mark returns SuccessMark for a nil error and FailMark otherwise.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}
