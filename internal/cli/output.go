package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)

	counts = message.NewPrinter(language.English)
)

// printer writes the user-facing messages of a command. Messages other
// than errors are dropped in quiet mode.
type printer struct {
	out   io.Writer
	err   io.Writer
	quiet bool
}

func newPrinter(g *Globals) *printer {
	return &printer{out: os.Stdout, err: os.Stderr, quiet: g.Quiet}
}

func (p *printer) Success(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", successColor.Sprint("✓"), fmt.Sprintf(format, args...))
}

func (p *printer) Info(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", infoColor.Sprint("ℹ"), fmt.Sprintf(format, args...))
}

func (p *printer) Warning(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.err, "%s %s\n", warnColor.Sprint("⚠"), fmt.Sprintf(format, args...))
}

func (p *printer) Error(format string, args ...any) {
	fmt.Fprintf(p.err, "%s %s\n", errorColor.Sprint("✗"), fmt.Sprintf(format, args...))
}

// progressOut is where spinners draw, nil in quiet mode.
func (p *printer) progressOut() io.Writer {
	if p.quiet {
		return nil
	}
	return p.err
}

// Header prints a bold section title.
func (p *printer) Header(title string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, boldColor.Sprint(title))
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	return counts.Sprintf("%d", n)
}
