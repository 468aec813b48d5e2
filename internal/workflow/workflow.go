// Package workflow is the setup sequence shared by every installer.
//
// A run walks a fixed list of steps: make sure honeytail is available,
// resolve the Honeycomb account, let the integration tune the target's
// logging, find the log file, then backfill and/or tail it. Integrations
// customize the run through an Adapter; everything they learn along the way
// is kept on the run's Session.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"honey-installer/internal/honeycomb"
	"honey-installer/internal/logger"
	"honey-installer/internal/prompt"
	"honey-installer/internal/shell"
)

// ErrAborted marks a run the user chose to stop. It ends the run with exit status 0.
var ErrAborted = errors.New("aborted by user")

// BinaryEnsurer provides a usable honeytail binary.
type BinaryEnsurer interface {
	Ensure(ctx context.Context, location string) (string, error)
}

// TeamResolver resolves a write key to the owning team's slug.
type TeamResolver interface {
	TeamSlug(ctx context.Context, writeKey string) (string, error)
}

// Deps are the collaborators a run talks to.
type Deps struct {
	Console *logger.Console
	Prompt  prompt.Prompter
	Runner  shell.Runner
	Binary  BinaryEnsurer
	Teams   TeamResolver
}

// abortWords end the log file prompt loop.
var abortWords = map[string]bool{"exit": true, "quit": true, "q": true}

type step struct {
	name string
	fn   func(ctx context.Context, s *Session) error
}

type run struct {
	Deps
	cfg     Config
	adapter Adapter
}

// Run executes the full setup sequence and returns the process exit status:
// 0 when the run completes or the user aborts, 1 when a step fails.
//
// In the modes that tail, Run blocks for as long as honeytail keeps
// running in the foreground.
func Run(ctx context.Context, cfg Config, adapter Adapter, deps Deps) int {
	if adapter == nil {
		panic("workflow: Run called without an adapter")
	}
	r := &run{Deps: deps, cfg: cfg, adapter: adapter}
	s := NewSession(cfg)

	r.Console.Bold("🐝 Honeytail %s installer %s", cfg.Name, cfg.Version)

	steps := []step{
		{"Checking for honeytail", r.ensureHoneytail},
		{"Gathering honeycomb account info", r.gatherAccount},
		{"Logging fixes/suggestions", r.adapter.FixupAndSuggest},
		{"Locating log file", r.locateLogFile},
		{"Backfilling/tailing", r.backfillOrTail},
	}
	for i, st := range steps {
		r.Console.Step(i+1, len(steps), st.name)
		if err := st.fn(ctx, s); err != nil {
			return r.exit(err)
		}
	}

	r.Console.Info("✨ Done.")
	return 0
}

func (r *run) exit(err error) int {
	if errors.Is(err, ErrAborted) {
		r.Console.Info("Ok, aborting.")
		return 0
	}
	r.Console.Error("%v", err)
	return 1
}

func (r *run) ensureHoneytail(ctx context.Context, s *Session) error {
	path, err := r.Binary.Ensure(ctx, r.cfg.HoneytailLocation)
	if err != nil {
		return err
	}
	s.Honeytail = path
	return nil
}

func (r *run) gatherAccount(ctx context.Context, s *Session) error {
	key := strings.TrimSpace(s.WriteKey)
	if key == "" {
		answer, err := r.Prompt.Prompt("What is your Honeycomb Write Key? (Available at https://ui.honeycomb.io/account)", "")
		if err != nil {
			return err
		}
		key = strings.TrimSpace(answer)
	}
	if err := ValidateWriteKey(key); err != nil {
		return err
	}
	s.WriteKey = key

	slug, err := r.Teams.TeamSlug(ctx, key)
	if err != nil {
		return err
	}
	s.TeamSlug = slug
	r.Console.Success("Great, found your team: %s", slug)

	if s.Dataset == r.cfg.DefaultDataset {
		dataset, err := r.Prompt.Prompt("Which Honeycomb dataset should we send events to? (It'll be created if it doesn't already exist)", r.cfg.DefaultDataset)
		if err != nil {
			return err
		}
		s.Dataset = dataset
	}
	return nil
}

func (r *run) locateLogFile(ctx context.Context, s *Session) error {
	path, err := r.adapter.LocateLogFile(ctx, s)
	if err != nil {
		return err
	}
	if path == "" {
		r.Console.Error("We were unable to locate a log file")
	}
	// No retry limit: the loop ends on an existing file, an abort word or end of input.
	for path == "" {
		answer, err := r.Prompt.Prompt(fmt.Sprintf("Please enter the path to your %s log file (or 'exit')", r.cfg.Name), "")
		if err != nil {
			return err
		}
		answer = strings.TrimSpace(answer)
		r.Console.Println()
		if abortWords[strings.ToLower(answer)] {
			return fmt.Errorf("%w: no log file given", ErrAborted)
		}
		if !isFile(answer) {
			r.Console.Warn("We were unable to locate a log file at %s", answer)
			continue
		}
		path = answer
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read log file %s: %w", path, err)
	}
	s.LogFile = path
	s.LogSize = info.Size()
	r.Console.Success("Using log file at %s", path)
	return nil
}

func (r *run) backfillOrTail(ctx context.Context, s *Session) error {
	mode, err := r.chooseMode(s)
	if err != nil {
		return err
	}
	s.Mode = mode

	if s.Mode == ShowCommands {
		return r.showCommands(ctx, s)
	}

	r.Console.Info(`
Congratulations! You've set up honeytail to ingest your %s logs. Try running
a query against your new %s data:

    %s
`, r.cfg.Name, r.cfg.Name, honeycomb.DatasetURL(s.TeamSlug, s.Dataset))

	switch s.Mode {
	case BackfillAndTail:
		if err := r.backfill(ctx, s); err != nil {
			return err
		}
		return r.tail(ctx, s, true)
	case OnlyBackfill:
		if err := r.backfill(ctx, s); err != nil {
			return err
		}
		r.showTail(s)
		r.Console.Println()
		return nil
	default:
		return r.tail(ctx, s, false)
	}
}

func (r *run) chooseMode(s *Session) (RunMode, error) {
	r.Console.Info(`
Honeytail is ready to start sending data.

By default, honeytail only parses new log lines (like ` + "`tail -f`" + `).
It can also backfill existing logs, which can get you started with more data in the query tools faster.
`)
	r.Console.Info("%s size is %d bytes,", s.LogFile, s.LogSize)
	r.Console.Info("so if you decide to backfill, it %s before honeytail", EstimateIngestTime(s.LogSize, "be"))
	r.Console.Info("is sending real-time data.")
	r.Console.Println()
	r.Console.Info("How would you like to start the data flowing to honeycomb?")

	choice, err := r.Prompt.Choose("Which would you like to do?", []string{
		fmt.Sprintf("Backfill %s and then switch to tailing", s.LogFile),
		fmt.Sprintf("Only backfill %s", s.LogFile),
		fmt.Sprintf("Only tail %s", s.LogFile),
		"Show commands and exit",
	})
	if err != nil {
		return 0, err
	}
	r.Console.Println()
	return RunMode(choice), nil
}

func (r *run) backfill(ctx context.Context, s *Session) error {
	if err := r.adapter.PreBackfill(ctx, s); err != nil {
		return err
	}
	cmd := s.BackfillCommand(s.LogFile)

	r.Console.Info("Backfilling by running the following command:")
	r.Console.Lines(cmd.Lines())
	r.Console.Info(`
Feel free to run the above command after replacing the --file argument with other,
rotated log files in order to backfill more data. You can run the command at any time.
`)
	r.Console.Info("Backfilling from %s - %s", s.LogFile, EstimateIngestTime(s.LogSize, "take"))

	code, err := r.Runner.Run(ctx, shell.Cmd{Name: cmd.Path(), Args: cmd.Args()})
	switch {
	case err != nil:
		r.Console.Warn("Failed to run honeytail: %v", err)
	case code != 0:
		r.Console.Warn("honeytail exited with status %d while backfilling %s", code, s.LogFile)
	default:
		r.Console.Success("Done backfilling from %s", s.LogFile)
	}
	r.Console.Println()
	return nil
}

func (r *run) tail(ctx context.Context, s *Session, afterBackfill bool) error {
	if err := r.adapter.PreTail(ctx, s, afterBackfill); err != nil {
		return err
	}
	cmd := s.TailCommand(s.LogFile)

	if afterBackfill {
		r.Console.Info("Switching to real-time events by running the following command")
	} else {
		r.Console.Info("Sending real-time events by running the following command")
	}
	r.Console.Lines(cmd.Lines())
	r.Console.Info(`
You can interrupt the installer at any point and run the above honeytail command yourself,
or add it to system startup scripts.
`)
	r.Console.Info("Sending new data from %s", s.LogFile)

	code, err := r.Runner.Run(ctx, shell.Cmd{Name: cmd.Path(), Args: cmd.Args()})
	if err != nil {
		return fmt.Errorf("failed to run honeytail: %w", err)
	}
	if code != 0 {
		r.Console.Warn("honeytail exited with status %d", code)
	}
	return nil
}

func (r *run) showCommands(ctx context.Context, s *Session) error {
	if err := r.adapter.PreShowCommands(ctx, s); err != nil {
		return err
	}
	r.showTail(s)
	r.Console.Println()

	r.Console.Info("To backfill from this or other rotated out logs, you can use this command:")
	r.Console.Lines(s.BackfillCommand(LogFilePlaceholder).Lines())
	r.Console.Println()

	r.Console.Info("NOTE: If you want to backfill and send real-time events from the same file, backfill first.")
	r.Console.Println()
	return nil
}

// showTail prints the tail command for later use.
func (r *run) showTail(s *Session) {
	r.Console.Info("To tail and send real-time events from %s, run this command:", s.LogFile)
	r.Console.Lines(s.TailCommand(s.LogFile).Lines())
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
