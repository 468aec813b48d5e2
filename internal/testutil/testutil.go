// Package testutil holds fakes shared by the installer's package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"

	"honey-installer/internal/prompt"
	"honey-installer/internal/shell"
)

// Call is one invocation seen by FakeRunner.
type Call struct {
	Cmd shell.Cmd
	// Foreground is true for Run, false for Capture.
	Foreground bool
}

// FakeRunner records invocations instead of executing them.
// Respond, when set, decides the outcome; otherwise every command succeeds
// with empty output.
type FakeRunner struct {
	Calls   []Call
	Respond func(c shell.Cmd) (shell.Result, error)
}

// Run records c as a foreground call.
func (f *FakeRunner) Run(_ context.Context, c shell.Cmd) (int, error) {
	f.Calls = append(f.Calls, Call{Cmd: c, Foreground: true})
	res, err := f.respond(c)
	return res.ExitCode, err
}

// Capture records c as a captured call.
func (f *FakeRunner) Capture(_ context.Context, c shell.Cmd) (shell.Result, error) {
	f.Calls = append(f.Calls, Call{Cmd: c})
	return f.respond(c)
}

func (f *FakeRunner) respond(c shell.Cmd) (shell.Result, error) {
	if f.Respond == nil {
		return shell.Result{}, nil
	}
	return f.Respond(c)
}

// Foreground returns the commands started with Run, in order.
func (f *FakeRunner) Foreground() []shell.Cmd {
	var out []shell.Cmd
	for _, c := range f.Calls {
		if c.Foreground {
			out = append(out, c.Cmd)
		}
	}
	return out
}

// ScriptedPrompter answers prompts from a fixed queue, in order.
//
// Prompt and Password take the next answer verbatim (an empty answer means
// the default). YN accepts y/yes/n/no or empty for the default. Choose
// skips answers that are not a valid menu number, as a person re-typing
// would. Once the queue is empty every question fails with prompt.ErrNoInput,
// as the terminal does at end of input.
type ScriptedPrompter struct {
	Answers []string
	// Asked collects every question in the order it was asked.
	Asked []string
}

// NewScriptedPrompter returns a prompter that replies with answers.
func NewScriptedPrompter(answers ...string) *ScriptedPrompter {
	return &ScriptedPrompter{Answers: answers}
}

func (s *ScriptedPrompter) next(message string) (string, error) {
	s.Asked = append(s.Asked, message)
	if len(s.Answers) == 0 {
		return "", fmt.Errorf("%w (asked %q)", prompt.ErrNoInput, message)
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}

// Prompt returns the next answer, or defaultAnswer when it is empty.
func (s *ScriptedPrompter) Prompt(message, defaultAnswer string) (string, error) {
	a, err := s.next(message)
	if err != nil || a != "" {
		return a, err
	}
	return defaultAnswer, nil
}

// Password returns the next answer verbatim.
func (s *ScriptedPrompter) Password(message string) (string, error) {
	return s.next(message)
}

// YN reads the next answer as yes or no.
func (s *ScriptedPrompter) YN(message string, defaultToYes bool) (bool, error) {
	a, err := s.next(message)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(a) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return defaultToYes, nil
	}
}

// Choose consumes answers until one names a listed choice.
func (s *ScriptedPrompter) Choose(message string, choices []string) (int, error) {
	for {
		a, err := s.next(message)
		if err != nil {
			return 0, err
		}
		if n, ok := prompt.ParseChoice(a, len(choices)); ok {
			return n, nil
		}
	}
}

// Remaining reports how many scripted answers were not consumed.
func (s *ScriptedPrompter) Remaining() int { return len(s.Answers) }
