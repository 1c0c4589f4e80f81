package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for status lines.
type Theme struct {
	Primary lipgloss.Color // success and info accent
	Warn    lipgloss.Color
	Error   lipgloss.Color
	Dim     lipgloss.Color // verbose text
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Warn:    lipgloss.Color("#ffb86c"),
	Error:   lipgloss.Color("#ff5555"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Success lipgloss.Style
	Info    lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Verbose lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Success: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Info:    lipgloss.NewStyle().Foreground(t.Primary),
		Warning: lipgloss.NewStyle().Foreground(t.Warn),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Verbose: lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Printer writes styled status lines.
type Printer struct {
	Out     io.Writer
	Err     io.Writer
	Styles  Styles
	Verbose bool
}

// NewPrinter returns a Printer on stdout/stderr with the default theme.
func NewPrinter(verbose bool) *Printer {
	return &Printer{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Styles:  NewStyles(DefaultTheme),
		Verbose: verbose,
	}
}

// Success prints a success message with checkmark
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.Out, p.Styles.Success.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.Out, p.Styles.Info.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message to stderr
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.Err, p.Styles.Warning.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// Error prints an error message to stderr
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.Err, p.Styles.Error.Render("Error: "+fmt.Sprintf(format, args...)))
}

// Verbosef prints to stderr only when Verbose is set.
func (p *Printer) Verbosef(format string, args ...any) {
	if p.Verbose {
		fmt.Fprintln(p.Err, p.Styles.Verbose.Render("[verbose] "+fmt.Sprintf(format, args...)))
	}
}
