// Package mongo sets up honeytail for a MongoDB server on the local machine.
//
// Before shipping logs it checks the server version, connects with the mongo
// shell and offers to turn on full query profiling for every database, since
// honeytail can only report on queries mongod actually logs.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"honey-installer/internal/installer"
	"honey-installer/internal/logger"
	"honey-installer/internal/prompt"
	"honey-installer/internal/shell"
	"honey-installer/internal/workflow"
)

const (
	Name           = "mongo"
	ParserModule   = "mongo"
	DefaultDataset = "Mongo"

	// minVersion is the first release that logs the full query and has
	// per-collection write locks.
	minVersion = "2.6.0"

	fullProfiling = "db.setProfilingLevel(2, -1)"
)

// ExtraFlags are always passed to honeytail's mongo parser.
var ExtraFlags = []string{"--mongo.log_partials"}

// Databases that are never profiled.
var skipDatabases = map[string]bool{"local": true, "test": true}

// ErrNoMongo is returned when neither mongod nor the mongo shell can report a version.
var ErrNoMongo = errors.New("unable to determine mongo version")

// Options are the mongo subcommand's own flags.
type Options struct {
	// LogFile is the --file flag; it is used when it exists.
	LogFile string
}

// Adapter is the workflow.Adapter for MongoDB.
type Adapter struct {
	workflow.NopHooks

	console *logger.Console
	prompt  prompt.Prompter
	runner  shell.Runner
	opts    Options

	configLocations []string
	logLocations    []string
}

// New builds the mongo adapter from the run's console, prompter and runner.
func New(deps workflow.Deps, opts Options) *Adapter {
	return &Adapter{
		console:         deps.Console,
		prompt:          deps.Prompt,
		runner:          deps.Runner,
		opts:            opts,
		configLocations: configLocations,
		logLocations:    logLocations,
	}
}

// Config returns the workflow configuration for a mongo run.
func Config() workflow.Config {
	return workflow.Config{
		Name:             Name,
		ParserModule:     ParserModule,
		ParserExtraFlags: ExtraFlags,
		DefaultDataset:   DefaultDataset,
	}
}

// credentials for the mongo shell. The zero value connects without auth.
type credentials struct {
	username string
	password string
	authDB   string
}

// shellCmd builds a mongo shell invocation that runs script.
func (c credentials) shellCmd(script string, args ...string) shell.Cmd {
	args = append(args, "--quiet")
	if c.username != "" {
		args = append(args, "--username", c.username)
	}
	if c.password != "" {
		args = append(args, "--password", c.password)
	}
	if c.authDB != "" {
		args = append(args, "--authenticationDatabase", c.authDB)
	}
	return shell.Cmd{Name: "mongo", Args: args, Stdin: script}
}

// FixupAndSuggest checks the server version and offers to turn on full profiling.
func (a *Adapter) FixupAndSuggest(ctx context.Context, _ *workflow.Session) error {
	version, err := a.checkVersion(ctx)
	if err != nil {
		return err
	}

	creds, ok, err := a.connect(ctx)
	if err != nil {
		return err
	}
	if ok {
		if err := a.checkProfiling(ctx, creds, version); err != nil {
			return err
		}
	}
	a.console.Println()
	return nil
}

// checkVersion asks mongod for its version, falling back to the mongo shell,
// and warns when the server is too old to log full queries.
func (a *Adapter) checkVersion(ctx context.Context) (string, error) {
	version, ok := a.reportedVersion(ctx, "mongod", 2)
	if !ok {
		a.console.Error("Failed to determine the version of mongod you're running.")
		a.console.Info("Checking the mongo client version instead.")
		version, ok = a.reportedVersion(ctx, "mongo", 3)
	}
	if !ok {
		return "", fmt.Errorf(`%w
Sorry, but we still couldn't connect to a local mongo.
This installer only works on the machine running mongo.
Bailing out.`, ErrNoMongo)
	}
	a.console.Debug("mongo version %s", version)

	if !installer.IsCurrent(version, minVersion) {
		a.console.Warn(`You're running an old version of mongo (%s). The most important reasons
to move to at least version 2.6 are:
    * per-collection write locks
    * the actual query is logged so we can analyze it

We can carry on with the installation process for now, but strongly recommend
that you upgrade mongo.
`, version)
	}
	return version, nil
}

// reportedVersion runs `<bin> --version` and returns the field-th word of
// the first line: "db version v3.4.1" for mongod, "MongoDB shell version
// v3.4.1" for the shell.
func (a *Adapter) reportedVersion(ctx context.Context, bin string, field int) (string, bool) {
	res, err := a.runner.Capture(ctx, shell.Cmd{Name: bin, Args: []string{"--version"}})
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	first, _, _ := strings.Cut(strings.TrimSpace(res.Output), "\n")
	fields := strings.Fields(first)
	if len(fields) <= field {
		return "", false
	}
	return strings.TrimPrefix(fields[field], "v"), true
}

// connect checks that the mongo shell can reach the local server, asking
// for credentials until it can or the user gives up. ok is false when the
// user chose to skip the logging checks.
func (a *Adapter) connect(ctx context.Context) (creds credentials, ok bool, err error) {
	a.console.Info("Connecting to local mongo to check logging levels")
	if a.canConnect(ctx, creds) {
		return creds, true, nil
	}
	a.console.Error("Failed to connect to mongo on localhost with no username or password.")
	a.console.Println()

	for {
		choice, err := a.prompt.Choose("What would you like to do?", []string{
			"Enter connection details for your local mongo",
			"Skip checking for logging levels and continue",
		})
		if err != nil {
			return credentials{}, false, err
		}
		if choice == 2 {
			return credentials{}, false, nil
		}
		a.console.Println()
		if creds, err = a.askCredentials(); err != nil {
			return credentials{}, false, err
		}
		if a.canConnect(ctx, creds) {
			return creds, true, nil
		}
		a.console.Println()
		a.console.Error("Failed to connect to mongo on localhost with supplied username or password.")
		a.console.Println()
	}
}

func (a *Adapter) askCredentials() (c credentials, err error) {
	if c.username, err = a.prompt.Prompt("  Mongo username", ""); err != nil {
		return c, err
	}
	if c.password, err = a.prompt.Password("  Mongo password"); err != nil {
		return c, err
	}
	c.authDB, err = a.prompt.Prompt("  Mongo authentication database", "admin")
	return c, err
}

func (a *Adapter) canConnect(ctx context.Context, creds credentials) bool {
	res, err := a.runner.Capture(ctx, creds.shellCmd("show dbs"))
	return err == nil && res.ExitCode == 0
}

type profilingStatus struct {
	Was    *int `json:"was"`
	SlowMS *int `json:"slowms"`
}

type dbProfile struct {
	name   string
	level  int
	slowMS int
}

// checkProfiling finds databases without full query profiling and offers
// to enable it. Failing mongo commands never stop the run: the log still
// ships, just with less in it. Only an unanswerable question is returned.
func (a *Adapter) checkProfiling(ctx context.Context, creds credentials, version string) error {
	res, err := a.runner.Capture(ctx, creds.shellCmd("show dbs"))
	if err != nil || res.ExitCode != 0 {
		a.console.Warn("Could not list databases, skipping the profiling check.")
		return nil
	}

	var toChange []dbProfile
	for _, db := range parseDatabases(res.Output) {
		p, ok := a.profile(ctx, creds, db)
		if !ok {
			a.console.Debug("no profiling status for database %s", db)
			continue
		}
		if p.level != 2 || p.slowMS != -1 {
			toChange = append(toChange, p)
		}
	}
	if len(toChange) == 0 {
		return nil
	}

	a.console.Info("We suggest enabling full query logging on all databases you're interested in tracking in Honeycomb.")
	a.console.Info("More detail on query logging is available here: https://docs.mongodb.com/manual/reference/command/profile/#dbcmd.profile")
	a.console.Info("The following databases don't have full query logging turned on:")
	rows := make([][]string, 0, len(toChange))
	for _, p := range toChange {
		rows = append(rows, []string{p.name, strconv.Itoa(p.level), strconv.Itoa(p.slowMS)})
	}
	a.console.Table([]string{"Database", "Profiling level", "slowms"}, rows)
	a.console.Println()
	a.console.Info("If you agree, we'll run:")
	a.console.Println()
	a.console.Info("\t%s", fullProfiling)
	a.console.Println()

	enable, err := a.prompt.YN("Would you like us to enable full query logging on these databases?", true)
	if err != nil {
		return err
	}
	if enable {
		a.console.Println()
		failed := 0
		for _, p := range toChange {
			a.console.Info("running %s on %s database to enable full logging...", fullProfiling, p.name)
			res, err := a.runner.Capture(ctx, creds.shellCmd(fullProfiling, p.name))
			if err != nil || res.ExitCode != 0 {
				a.console.Warn("Failed to enable full query logging on %s", p.name)
				failed++
			}
		}
		if failed == 0 {
			a.console.Success("Full query logging enabled")
		}
		a.console.Println()
	}

	a.console.Info("To permanently enact this change, add the following to your mongo config file:")
	if installer.IsCurrent(version, minVersion) {
		a.console.Info("\toperationProfiling:\n\t\tslowOpThresholdMs: -1\n\t\tmode: all")
	} else {
		a.console.Info("\tprofile = 2")
	}
	a.console.Println()
	return nil
}

func (a *Adapter) profile(ctx context.Context, creds credentials, db string) (dbProfile, bool) {
	res, err := a.runner.Capture(ctx, creds.shellCmd("db.getProfilingStatus()", db))
	if err != nil || res.ExitCode != 0 {
		return dbProfile{}, false
	}
	var st profilingStatus
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Output)), &st); err != nil {
		return dbProfile{}, false
	}
	if st.Was == nil || st.SlowMS == nil {
		return dbProfile{}, false
	}
	return dbProfile{name: db, level: *st.Was, slowMS: *st.SlowMS}, true
}

// parseDatabases reads `show dbs` output ("orders  0.203GB" per line) and
// returns the database names worth profiling.
func parseDatabases(out string) []string {
	var dbs []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || skipDatabases[fields[0]] {
			continue
		}
		dbs = append(dbs, fields[0])
	}
	return dbs
}
