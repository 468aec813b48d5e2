package workflow

import (
	"strings"

	"github.com/alessio/shellescape"
)

// Command is a honeytail invocation kept as groups of arguments.
// The grouping only matters for display, one group per printed line;
// honeytail itself does not care about flag order.
type Command struct {
	Groups [][]string
}

// Path is the executable.
func (c Command) Path() string {
	if len(c.Groups) == 0 || len(c.Groups[0]) == 0 {
		return ""
	}
	return c.Groups[0][0]
}

// Args is every argument after the executable, in order.
func (c Command) Args() []string {
	var out []string
	for i, g := range c.Groups {
		if i == 0 {
			out = append(out, g[1:]...)
			continue
		}
		out = append(out, g...)
	}
	return out
}

// Lines renders each group as one shell-quoted line.
func (c Command) Lines() []string {
	lines := make([]string, 0, len(c.Groups))
	for _, g := range c.Groups {
		lines = append(lines, shellescape.QuoteCommand(g))
	}
	return lines
}

// String renders the whole command as a single shell line.
func (c Command) String() string {
	return strings.Join(c.Lines(), " ")
}

// ReplaceFlag returns a copy in which every "flag=value" argument has its
// value set to value. Other arguments, and the flag name itself, are untouched.
func (c Command) ReplaceFlag(flag, value string) Command {
	prefix := flag + "="
	out := Command{Groups: make([][]string, len(c.Groups))}
	for i, g := range c.Groups {
		ng := make([]string, len(g))
		for j, a := range g {
			if strings.HasPrefix(a, prefix) {
				a = prefix + value
			}
			ng[j] = a
		}
		out.Groups[i] = ng
	}
	return out
}

// backfillFlags make honeytail read the file from the start, stop at EOF,
// and back off when Honeycomb rate limits.
var backfillFlags = []string{"--tail.read_from=beginning", "--tail.stop", "--backoff"}

// LogFilePlaceholder stands in for the log path in commands shown for later use.
const LogFilePlaceholder = "<LOG_FILE_PATH>"

func (s *Session) command(logFile string, backfill bool) Command {
	parser := append([]string{"--parser=" + s.Config.ParserModule}, s.ParserFlags...)
	groups := [][]string{{s.Honeytail}, parser}
	if backfill {
		groups = append(groups, append([]string(nil), backfillFlags...))
	}
	groups = append(groups,
		[]string{"--writekey=" + s.WriteKey, "--dataset=" + s.Dataset},
		[]string{"--file=" + logFile},
	)
	if s.Config.Debug {
		last := len(groups) - 1
		groups[last] = append(groups[last], "--debug")
	}
	return Command{Groups: groups}
}

// TailCommand builds the command that follows logFile, sending new lines as they arrive.
func (s *Session) TailCommand(logFile string) Command { return s.command(logFile, false) }

// BackfillCommand builds the command that sends logFile's existing contents and exits.
func (s *Session) BackfillCommand(logFile string) Command { return s.command(logFile, true) }
