// Package prompt reads answers from the person running the installer.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Songmu/prompter"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// ErrNoInput means the question could not be answered: standard input was
// closed or ran out of piped answers.
var ErrNoInput = errors.New("no answer available on standard input")

// Prompter asks questions and returns the answers.
//
// Every method fails with an error wrapping ErrNoInput when there is
// nothing left to read.
type Prompter interface {
	// Prompt asks for free text; an empty answer yields defaultAnswer.
	Prompt(message, defaultAnswer string) (string, error)
	// Password asks for text without echoing it.
	Password(message string) (string, error)
	// YN asks a yes/no question.
	YN(message string, defaultToYes bool) (bool, error)
	// Choose lists choices numbered from 1 and returns the 1-based pick.
	// It keeps asking until the answer is one of the listed numbers.
	Choose(message string, choices []string) (int, error)
}

var number = regexp.MustCompile(`^\s*[0-9]+\s*$`)

// Terminal is the Prompter for the installer's own stdin and stdout.
//
// When both are terminals the questions go through Songmu/prompter.
// Otherwise (output piped to tee, answers piped in) Songmu/prompter would
// answer every question with its default without reading, so Terminal reads
// one line per answer from In itself and reports ErrNoInput at end of input.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	// Interactive selects Songmu/prompter.
	Interactive bool

	lines *bufio.Reader
}

// NewTerminal builds a Terminal for in and out, detecting whether both are
// attached to a terminal.
func NewTerminal(in, out *os.File) *Terminal {
	return &Terminal{In: in, Out: out, Interactive: isTerminal(in) && isTerminal(out)}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Prompt asks message and returns the trimmed answer, or defaultAnswer when it is empty.
func (t *Terminal) Prompt(message, defaultAnswer string) (string, error) {
	if t.Interactive {
		return prompter.Prompt(message, defaultAnswer), nil
	}
	suffix := ": "
	if defaultAnswer != "" {
		suffix = " [" + defaultAnswer + "]: "
	}
	answer, err := t.readLine(message + suffix)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return defaultAnswer, nil
	}
	return answer, nil
}

// Password asks message without echoing what is typed, when stdin is a terminal.
func (t *Terminal) Password(message string) (string, error) {
	if t.Interactive {
		return prompter.Password(message), nil
	}
	if f, ok := t.In.(*os.File); ok && isTerminal(f) {
		fmt.Fprint(t.Out, message+": ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(t.Out)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoInput, err)
		}
		return string(b), nil
	}
	return t.readLine(message + ": ")
}

// YN asks a yes/no question until it gets y, yes, n, no or an empty answer.
func (t *Terminal) YN(message string, defaultToYes bool) (bool, error) {
	if t.Interactive {
		return prompter.YN(message, defaultToYes), nil
	}
	def := "n"
	if defaultToYes {
		def = "y"
	}
	for {
		answer, err := t.readLine(message + " (y/n) [" + def + "]: ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return defaultToYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(t.Out, "# Enter `y` or `n`")
	}
}

// Choose prints the numbered choices and asks until one of them is picked.
func (t *Terminal) Choose(message string, choices []string) (int, error) {
	for {
		for i, choice := range choices {
			fmt.Fprintf(t.Out, "  [%d] %s\n", i+1, choice)
		}
		var answer string
		if t.Interactive {
			answer = prompter.Prompt(message, "")
		} else {
			var err error
			if answer, err = t.readLine(message + ": "); err != nil {
				return 0, err
			}
		}
		if n, ok := ParseChoice(answer, len(choices)); ok {
			return n, nil
		}
		fmt.Fprintln(t.Out, "invalid choice, sorry.")
	}
}

// readLine prints message and reads one answer line from In.
// A final line without a newline still counts; after it ErrNoInput is returned.
func (t *Terminal) readLine(message string) (string, error) {
	if t.lines == nil {
		t.lines = bufio.NewReader(t.In)
	}
	fmt.Fprint(t.Out, message)
	line, err := t.lines.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		fmt.Fprintln(t.Out)
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w (asked %q)", ErrNoInput, strings.TrimSuffix(message, ": "))
		}
		return "", fmt.Errorf("%w: %v", ErrNoInput, err)
	}
	if f, ok := t.In.(*os.File); !ok || !isTerminal(f) {
		// A piped answer is not echoed, end the question line ourselves.
		fmt.Fprintln(t.Out)
	}
	return strings.TrimSpace(line), nil
}

// ParseChoice converts a menu answer into a 1-based index, reporting
// whether it names one of n choices.
func ParseChoice(answer string, n int) (int, bool) {
	if !number.MatchString(answer) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v, true
}
