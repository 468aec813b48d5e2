package logger

import (
	"fmt"
	"io"

	"github.com/fatih/color" // Import the fatih/color package for colored console output
	"github.com/jedib0t/go-pretty/v6/table"
)

// Console prints installer output with a color per level, using fatih/color.
// Whether colors are used is decided once by the caller and fixed for the
// lifetime of the Console.
//
// Levels:
//   - Info: plain text, the bulk of the installer's conversation with the user.
//   - Success: green, prefixed with a check mark.
//   - Warn: yellow, for recoverable surprises.
//   - Error: red, for fatal conditions and failed sub-steps.
//   - Debug: cyan, only printed when debug output was requested.
type Console struct {
	out   io.Writer
	debug bool

	success *color.Color
	warn    *color.Color
	err     *color.Color
	dbg     *color.Color
	bold    *color.Color
	dim     *color.Color
}

// New builds a Console writing to out.
// useColor is applied to every color explicitly so the package-level
// color.NoColor detection of fatih/color never decides on our behalf.
func New(out io.Writer, debug, useColor bool) *Console {
	c := &Console{
		out:     out,
		debug:   debug,
		success: color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		err:     color.New(color.FgRed),
		dbg:     color.New(color.FgCyan),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
	for _, col := range []*color.Color{c.success, c.warn, c.err, c.dbg, c.bold, c.dim} {
		if useColor {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Writer returns the underlying output, for helpers that render their own text (tables, progress bars).
func (c *Console) Writer() io.Writer { return c.out }

// DebugEnabled reports whether Debug lines are printed.
func (c *Console) DebugEnabled() bool { return c.debug }

// Println prints uncolored text followed by a newline.
func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// Info prints an uncolored formatted line.
func (c *Console) Info(format string, a ...any) {
	fmt.Fprintf(c.out, format+"\n", a...)
}

// Success prints a green line prefixed with a check mark.
func (c *Console) Success(format string, a ...any) {
	c.success.Fprintf(c.out, "✔ "+format+"\n", a...)
}

// Warn prints a yellow line.
func (c *Console) Warn(format string, a ...any) {
	c.warn.Fprintf(c.out, format+"\n", a...)
}

// Error prints a red line.
func (c *Console) Error(format string, a ...any) {
	c.err.Fprintf(c.out, format+"\n", a...)
}

// Debug prints a cyan line when debug output is enabled, otherwise it is a no-op.
func (c *Console) Debug(format string, a ...any) {
	if !c.debug {
		return
	}
	c.dbg.Fprintf(c.out, "[DEBUG] "+format+"\n", a...)
}

// Bold prints a bold line.
func (c *Console) Bold(format string, a ...any) {
	c.bold.Fprintf(c.out, format+"\n", a...)
}

// Step announces workflow step n of total, e.g. "[2/5] Gathering honeycomb account info...".
func (c *Console) Step(n, total int, msg string) {
	fmt.Fprintln(c.out)
	c.dim.Fprintf(c.out, "[%d/%d] ", n, total)
	c.bold.Fprintf(c.out, "%s...\n", msg)
}

// Lines prints a command split over several lines with shell continuations:
//
//	first \
//	  second \
//	  last
func (c *Console) Lines(lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(c.out)
	if len(lines) == 1 {
		c.bold.Fprintf(c.out, "  %s\n", lines[0])
		return
	}
	c.bold.Fprintf(c.out, "  %s \\\n", lines[0])
	for _, l := range lines[1 : len(lines)-1] {
		c.bold.Fprintf(c.out, "    %s \\\n", l)
	}
	c.bold.Fprintf(c.out, "    %s\n", lines[len(lines)-1])
}

// Table prints rows under headers as a boxed table. Short rows are padded
// with empty cells.
func (c *Console) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	fmt.Fprintln(c.out, tw.Render())
}
