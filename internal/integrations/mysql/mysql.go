// Package mysql sets up honeytail for the slow query log of a MySQL server
// on localhost.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"honey-installer/internal/logger"
	"honey-installer/internal/prompt"
	"honey-installer/internal/shell"
	"honey-installer/internal/workflow"
)

const (
	Name           = "MySQL"
	ParserModule   = "mysql"
	DefaultDataset = "MySQL"

	DefaultUsername = "root"
)

var (
	// ErrNoConnection is returned when the retry with new credentials also fails.
	ErrNoConnection = errors.New("could not connect to a local mysql")
	// ErrLogOutputTable is returned when the slow query log goes to a table honeytail cannot read.
	ErrLogOutputTable = errors.New(`"log_output" is set to "TABLE"`)
)

// Options are the mysql subcommand's own flags.
type Options struct {
	LogFile  string
	Username string
	Password string
}

// Adapter is the workflow.Adapter for MySQL.
type Adapter struct {
	console *logger.Console
	prompt  prompt.Prompter
	runner  shell.Runner
	opts    Options

	username string
	password string
	// skipped is set when the user chose not to connect.
	skipped bool
}

// New builds the mysql adapter.
func New(deps workflow.Deps, opts Options) *Adapter {
	return &Adapter{
		console:  deps.Console,
		prompt:   deps.Prompt,
		runner:   deps.Runner,
		opts:     opts,
		username: opts.Username,
		password: opts.Password,
	}
}

// Config returns the workflow configuration for a mysql run.
func Config() workflow.Config {
	return workflow.Config{
		Name:           Name,
		ParserModule:   ParserModule,
		DefaultDataset: DefaultDataset,
	}
}

// query builds a mysql client invocation that prints bare values for sql.
func query(username, password, sql string) shell.Cmd {
	args := []string{"--silent", "--disable-column-names"}
	if username != "" {
		args = append(args, "--user", username)
	}
	if password != "" {
		args = append(args, "--password="+password)
	}
	return shell.Cmd{Name: "mysql", Args: append(args, "-e", sql)}
}

// exec runs sql with the adapter's credentials and returns its trimmed output.
func (a *Adapter) exec(ctx context.Context, sql string) (string, bool) {
	res, err := a.runner.Capture(ctx, query(a.username, a.password, sql))
	if err != nil || res.ExitCode != 0 {
		a.console.Debug("mysql -e %q failed: %v %s", sql, err, strings.TrimSpace(res.Output))
		return "", false
	}
	return strings.TrimSpace(res.Output), true
}

// FixupAndSuggest connects to the local server and checks the slow query log settings.
func (a *Adapter) FixupAndSuggest(ctx context.Context, _ *workflow.Session) error {
	a.console.Info("Connecting to local mysql and gathering logging details...")
	if err := a.connect(ctx); err != nil {
		return err
	}
	if a.skipped {
		return nil
	}
	return a.checkSlowQueryLog(ctx)
}

func (a *Adapter) connect(ctx context.Context) error {
	if _, ok := a.exec(ctx, "SELECT 1"); ok {
		return nil
	}

	msg := fmt.Sprintf("We failed to connect to mysql on localhost with the username '%s'", a.username)
	if a.password == "" {
		msg += " and no password."
	} else {
		msg += " and the supplied password."
	}
	a.console.Error("%s", msg)

	choice, err := a.prompt.Choose("Which would you like to do?", []string{
		"Try again with new credentials",
		"Skip checking for logging details and continue",
	})
	if err != nil {
		return err
	}
	if choice == 2 {
		a.username, a.password = "", ""
		a.skipped = true
		return nil
	}

	if a.username, err = a.prompt.Prompt("username for mysql", ""); err != nil {
		return err
	}
	if a.password, err = a.prompt.Password("password for mysql"); err != nil {
		return err
	}
	if _, ok := a.exec(ctx, "SELECT 1"); !ok {
		return fmt.Errorf(`%w
Sorry, but we still couldn't connect to a local mysql.
This installer only works with mysql running on localhost:3306.
Bailing out.`, ErrNoConnection)
	}
	return nil
}

const settingsSnippet = `    slow_query_log = 1
    long_query_time = 0.0
    log_output = FILE`

var fixes = []struct {
	sql    string
	failed string
}{
	{"SET @@global.slow_query_log = 'ON'", "Failed to enable the slow query log."},
	{"SET @@global.long_query_time = 0", "Failed to set long_query_time to 0."},
	{"SET @@global.log_output = 'FILE'", "Failed to set log_output to FILE."},
}

// checkSlowQueryLog makes sure every query reaches the slow query log file,
// offering to change the running server's settings when it does not.
func (a *Adapter) checkSlowQueryLog(ctx context.Context) error {
	logOutput, _ := a.exec(ctx, "SELECT @@global.log_output")
	if logsOnlyToTable(logOutput) {
		return fmt.Errorf(`%w

The MySQL connector currently only supports sending the slow query log to a
file. If you are interested in sending the slow query log to Honeycomb from a
table, please let us know at unicorns@honeycomb.io. We'd love to hear about it.

Please see https://dev.mysql.com/doc/refman/5.7/en/log-destinations.html for
more detail about the log_output variable and log file destinations.

Aborting...`, ErrLogOutputTable)
	}

	slowLog, _ := a.exec(ctx, "SELECT @@global.slow_query_log")
	longQuery, _ := a.exec(ctx, "SELECT @@global.long_query_time")
	if settingsOK(logOutput, slowLog, longQuery) {
		a.console.Success("Your current MySQL configuration looks great!")
		return nil
	}

	a.console.Info(`
We suggest enabling the slow query log and lowering the threshold for which
queries are considered "slow" in order to get the most out of your MySQL logs
(and the most value out of Honeycomb).

If you agree, we'll run:
`)
	for _, f := range fixes {
		a.console.Info("    %s;", f.sql)
	}
	a.console.Println()

	apply, err := a.prompt.YN("Should we set the slow query log (Y) or skip it and continue (n)?", true)
	if err != nil {
		return err
	}
	if !apply {
		a.console.Info(`
Ok, we'll skip changing the slow_query_log settings right now. This means that,
honeytail might not pick up new queries flowing through your MySQL instance.
`)
		return nil
	}

	failed := false
	for _, f := range fixes {
		if _, ok := a.exec(ctx, f.sql); !ok {
			a.console.Warn("%s", f.failed)
			failed = true
		}
	}
	if failed {
		a.console.Info(`
We'll continue to set up honeytail, but you should consider making changes to
your MySQL in order to get more interesting output in the slow query log.

You can read more about the slow query log here:
http://dev.mysql.com/doc/refman/5.7/en/slow-query-log.html

If you change your mind, you can run the above commands from a MySQL shell
anytime.

And/or update your my.cnf with the following to turn on slow query logging
permanently:

%s
`, settingsSnippet)
		return nil
	}
	a.console.Info(`
Great, we've gone ahead and made the changes in the running MySQL instance.
To make these changes permanent, modify your MySQL config to set the correct
slow query log/query threshold parameters.

The location of my.cnf varies by OS, but is often found near /etc/mysql/my.cnf
Add the following to your config:

%s

After saving your changes, restart your MySQL instance.
`, settingsSnippet)
	return nil
}

// logsOnlyToTable reports whether log_output (a set such as "FILE,TABLE")
// sends logs to tables and never to a file.
func logsOnlyToTable(logOutput string) bool {
	table := false
	for _, v := range strings.Split(strings.ToUpper(logOutput), ",") {
		switch strings.TrimSpace(v) {
		case "FILE":
			return false
		case "TABLE":
			table = true
		}
	}
	return table
}

// settingsOK reports whether the server logs every query to a file.
// Values that do not parse count as wrong.
func settingsOK(logOutput, slowLog, longQuery string) bool {
	if strings.ToUpper(strings.TrimSpace(logOutput)) != "FILE" {
		return false
	}
	if n, err := strconv.Atoi(slowLog); err != nil || n != 1 {
		return false
	}
	f, err := strconv.ParseFloat(longQuery, 64)
	return err == nil && f == 0
}

// LocateLogFile prefers --file, then asks the server where its slow query
// log is. Relative paths are resolved against the server's data directory.
func (a *Adapter) LocateLogFile(ctx context.Context, _ *workflow.Session) (string, error) {
	if a.opts.LogFile != "" {
		if isFile(a.opts.LogFile) {
			return a.opts.LogFile, nil
		}
		a.console.Warn("Could not find %s, asking mysql for its slow query log instead.", a.opts.LogFile)
	}

	path, ok := a.exec(ctx, "SELECT @@global.slow_query_log_file")
	if !ok || path == "" || path == "NULL" {
		return "", nil
	}
	if !filepath.IsAbs(path) {
		if dir, ok := a.exec(ctx, "SELECT @@global.datadir"); ok && dir != "" {
			path = filepath.Join(dir, path)
		}
	}
	a.console.Debug("mysql reports slow query log %s", path)
	if !isFile(path) {
		a.console.Warn("mysql reports its slow query log at %s, but we can't read it from here.", path)
		return "", nil
	}
	return path, nil
}

// parserFlags carries the connection credentials to honeytail, which
// uses them to look up query plans.
func (a *Adapter) parserFlags() []string {
	var flags []string
	if a.username != "" {
		flags = append(flags, "--mysql.user="+a.username)
	}
	if a.password != "" {
		flags = append(flags, "--mysql.pass="+a.password)
	}
	return flags
}

// PreBackfill passes the working credentials to honeytail's mysql parser.
func (a *Adapter) PreBackfill(_ context.Context, s *workflow.Session) error {
	s.ParserFlags = a.parserFlags()
	return nil
}

// PreTail passes the credentials and, when only tailing, prints the command to backfill later.
func (a *Adapter) PreTail(_ context.Context, s *workflow.Session, afterBackfill bool) error {
	s.ParserFlags = a.parserFlags()
	if !afterBackfill {
		a.console.Info("\nIn order to backfill later, use the following command:")
		a.console.Lines(s.BackfillCommand(s.LogFile).Lines())
		a.console.Println()
	}
	return nil
}

// PreShowCommands passes the credentials to the printed commands.
func (a *Adapter) PreShowCommands(_ context.Context, s *workflow.Session) error {
	s.ParserFlags = a.parserFlags()
	return nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
