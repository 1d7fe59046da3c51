// Package controller provides output rendering for the doscc CLI.
package controller

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// UI abstracts user-facing output so command logic can be tested against a
// recording implementation.
type UI interface {
	Info(format string, args ...any)
	Success(format string, args ...any)
	Error(format string, args ...any)
	Table(header []string, rows [][]string)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Simple renders through the cobra command's output streams.
type Simple struct {
	cmd *cobra.Command
}

// NewSimple creates a Simple UI bound to cmd.
func NewSimple(cmd *cobra.Command) *Simple {
	return &Simple{cmd: cmd}
}

// Info prints a plain line to stdout.
func (s *Simple) Info(format string, args ...any) {
	s.cmd.Printf(format+"\n", args...)
}

// Success prints a styled status line to stdout.
func (s *Simple) Success(format string, args ...any) {
	s.cmd.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints a styled line to stderr.
func (s *Simple) Error(format string, args ...any) {
	s.cmd.PrintErrln(errorStyle.Render(fmt.Sprintf(format, args...)))
}

// Table renders rows under header to stdout.
func (s *Simple) Table(header []string, rows [][]string) {
	table := tablewriter.NewWriter(s.cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}
