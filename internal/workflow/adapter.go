package workflow

import "context"

// Adapter supplies the integration-specific parts of a run.
//
// Every hook gets the run's Session; it is the only state shared between
// steps. Returning an error from any hook ends the run: wrap ErrAborted for
// "the user said no", anything else is reported as a failure.
type Adapter interface {
	// FixupAndSuggest inspects the target's logging setup and offers
	// improvements before the log file is located.
	FixupAndSuggest(ctx context.Context, s *Session) error
	// LocateLogFile returns the log file to ship, or "" when it could not
	// find one, in which case the user is asked for a path.
	LocateLogFile(ctx context.Context, s *Session) (string, error)
	// PreBackfill runs before the backfill command is built.
	PreBackfill(ctx context.Context, s *Session) error
	// PreTail runs before the tail command is built. afterBackfill is true
	// when a backfill just ran in the same session.
	PreTail(ctx context.Context, s *Session, afterBackfill bool) error
	// PreShowCommands runs before the commands are printed without running them.
	PreShowCommands(ctx context.Context, s *Session) error
}

// NopHooks implements every Adapter hook except LocateLogFile as a no-op.
// Integrations embed it and override what they need; LocateLogFile is left
// out so an integration that forgets it does not compile.
type NopHooks struct{}

// FixupAndSuggest does nothing.
func (NopHooks) FixupAndSuggest(context.Context, *Session) error { return nil }

// PreBackfill does nothing.
func (NopHooks) PreBackfill(context.Context, *Session) error { return nil }

// PreTail does nothing.
func (NopHooks) PreTail(context.Context, *Session, bool) error { return nil }

// PreShowCommands does nothing.
func (NopHooks) PreShowCommands(context.Context, *Session) error { return nil }
