// Package shell runs external programs for the installer: honeytail itself,
// and the database/web-server clients the integrations probe.
//
// Commands are always passed as an argument vector. Nothing here goes
// through /bin/sh, so arguments never need shell quoting.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Cmd describes one program invocation.
type Cmd struct {
	Name string
	Args []string
	// Stdin, when non-empty, is fed to the program's standard input.
	Stdin string
	// CombineOutput merges stderr into the captured output.
	CombineOutput bool
}

// String renders the invocation for debug output.
func (c Cmd) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a captured invocation.
type Result struct {
	Output   string
	ExitCode int
}

// Runner executes commands.
//
// Both methods return a non-nil error only when the program could not be
// started at all (missing binary, permission denied). A program that runs
// and exits non-zero reports that through its exit code instead.
type Runner interface {
	// Run executes the command attached to the installer's terminal and
	// blocks until it exits.
	Run(ctx context.Context, c Cmd) (int, error)
	// Capture executes the command and collects its output.
	Capture(ctx context.Context, c Cmd) (Result, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct{}

// Run starts c on the installer's own stdio and waits for it.
func (Exec) Run(ctx context.Context, c Cmd) (int, error) {
	cmd := command(ctx, c)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if c.Stdin == "" {
		cmd.Stdin = os.Stdin
	}
	return exitCode(cmd.Run())
}

// Capture runs c and returns its stdout, plus stderr when CombineOutput is set.
func (Exec) Capture(ctx context.Context, c Cmd) (Result, error) {
	cmd := command(ctx, c)
	var out bytes.Buffer
	cmd.Stdout = &out
	if c.CombineOutput {
		cmd.Stderr = &out
	}
	code, err := exitCode(cmd.Run())
	return Result{Output: out.String(), ExitCode: code}, err
}

func command(ctx context.Context, c Cmd) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = childEnv(os.Environ())
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	return cmd
}

// exitCode separates "ran and failed" from "could not run".
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// childEnv drops dynamic loader overrides inherited from the installer's own
// environment; a bundled installer can carry library paths that break the
// system binaries it launches.
func childEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if strings.HasPrefix(kv, "LD_LIBRARY_PATH=") || strings.HasPrefix(kv, "DYLD_LIBRARY_PATH=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
