package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/harness/fetch-artifact/internal/style"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// StyledReporter implements Reporter with lipgloss-styled output.
type StyledReporter struct {
	Out io.Writer
}

// NewStyledReporter creates a reporter with lipgloss-styled output on stderr.
func NewStyledReporter() *StyledReporter {
	return &StyledReporter{Out: os.Stderr}
}

// NewAutoReporter returns a StyledReporter when stderr is a TTY and colours
// are enabled, otherwise falls back to the plain ConsoleReporter.
func NewAutoReporter() Reporter {
	if term.IsTerminal(int(os.Stderr.Fd())) && style.Enabled {
		return NewStyledReporter()
	}
	return NewConsoleReporter()
}

var (
	startStyle   = lipgloss.NewStyle().Bold(true).Foreground(style.Cyan)
	stepStyle    = lipgloss.NewStyle().Foreground(style.Dim).PaddingLeft(2)
	errorStyle   = lipgloss.NewStyle().Foreground(style.Red).Bold(true).PaddingLeft(2)
	successStyle = lipgloss.NewStyle().Foreground(style.Green).Bold(true).PaddingLeft(2)
)

func (r *StyledReporter) Start(message string) {
	fmt.Fprintln(r.Out, startStyle.Render("⚡ "+message+"..."))
}

func (r *StyledReporter) Step(message string) {
	fmt.Fprintln(r.Out, stepStyle.Render("→ "+message+"..."))
}

func (r *StyledReporter) Error(message string) {
	fmt.Fprintln(r.Out, errorStyle.Render("✗ "+message))
}

func (r *StyledReporter) Success(message string) {
	fmt.Fprintln(r.Out, successStyle.Render("✓ "+message))
}

func (r *StyledReporter) End() {}
