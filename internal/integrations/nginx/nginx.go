// Package nginx sets up honeytail for an nginx access log.
//
// The installer reads nginx.conf (and everything it includes) to find the
// access logs and their log_format, then suggests variables that would make
// the events more useful. honeytail needs the same config at run time to
// parse the log, so the chosen config and format are passed along as
// parser flags.
package nginx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"honey-installer/internal/logger"
	"honey-installer/internal/prompt"
	"honey-installer/internal/shell"
	"honey-installer/internal/workflow"
)

const (
	Name           = "nginx"
	ParserModule   = "nginx"
	DefaultDataset = "Nginx"

	// assumedVersion is used when `nginx -v` does not answer.
	assumedVersion = "1.0.0"
)

var confLocations = []string{
	"/etc/nginx/nginx.conf",
	"/opt/local/nginx/nginx.conf",
	"/opt/nginx/conf/nginx.conf",
	"/usr/local/nginx/nginx.conf",
	"/usr/local/etc/nginx/nginx.conf",
}

const defaultAccessLog = "/var/log/nginx/access.log"

var exitWords = map[string]bool{"": true, "exit": true, "quit": true, "q": true}

var rule = strings.Repeat("-", 80)

// ErrAccessLog wraps every failure to settle on a readable access log.
var ErrAccessLog = errors.New("no usable nginx access log")

// Options are the nginx subcommand's own flags.
type Options struct {
	LogFile string
	// Conf is --nginx.conf.
	Conf string
	// Format is --nginx.format, the log_format name to parse with.
	Format string
}

// Adapter is the workflow.Adapter for nginx.
type Adapter struct {
	console *logger.Console
	prompt  prompt.Prompter
	runner  shell.Runner
	opts    Options

	confLocations    []string
	defaultAccessLog string

	// Settled by LocateLogFile, used by every command hook.
	conf   string
	format string
}

// New builds the nginx adapter.
func New(deps workflow.Deps, opts Options) *Adapter {
	return &Adapter{
		console:          deps.Console,
		prompt:           deps.Prompt,
		runner:           deps.Runner,
		opts:             opts,
		confLocations:    confLocations,
		defaultAccessLog: defaultAccessLog,
		conf:             absPath(opts.Conf),
		format:           opts.Format,
	}
}

// Config returns the workflow configuration for an nginx run.
func Config() workflow.Config {
	return workflow.Config{
		Name:           Name,
		ParserModule:   ParserModule,
		DefaultDataset: DefaultDataset,
	}
}

// FixupAndSuggest has nothing to do before the access log is known; the
// suggestions depend on the log's format and come from LocateLogFile.
func (a *Adapter) FixupAndSuggest(context.Context, *workflow.Session) error { return nil }

// LocateLogFile finds nginx.conf, settles the access log and its format, and
// walks the user through the recommended log_format changes.
func (a *Adapter) LocateLogFile(ctx context.Context, _ *workflow.Session) (string, error) {
	confPath, err := a.findConf()
	if err != nil {
		return "", err
	}
	confPath = absPath(confPath)

	a.console.Success("Processing Nginx config: %s", confPath)
	conf, err := Scan(confPath)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return "", fmt.Errorf("%w: We can't read your nginx config with the existing permissions. Please update the permissions or run as sudo and try again.", ErrConfig)
		}
		return "", err
	}
	if a.console.DebugEnabled() {
		a.debugConf(conf)
	}

	logPath, format := a.opts.LogFile, a.opts.Format
	if logPath == "" || format == "" {
		logPath, format, err = a.chooseAccessLog(conf, logPath, format)
		if err != nil {
			return "", err
		}
	}

	a.console.Info("Getting nginx version...")
	version := a.version(ctx)

	if len(conf.Formats) == 0 {
		a.console.Info("It looks like you're using the default nginx configuration.")
		a.console.Info(`The defaults are great, but your logs will be even more powerful with more data!
We'll show you how, after you get a chance to backfill any existing logs.`)
	}
	if err := a.recommend(conf, format, logPath, version); err != nil {
		return "", err
	}

	a.conf = confPath
	a.format = format
	a.console.Println()
	return logPath, nil
}

// findConf returns --nginx.conf, the first known config location that
// exists, or whatever the user types in.
func (a *Adapter) findConf() (string, error) {
	a.console.Info("Looking for nginx config...")
	a.console.Println()

	if a.opts.Conf != "" {
		if isFile(a.opts.Conf) {
			return a.opts.Conf, nil
		}
	} else {
		for _, loc := range a.confLocations {
			if isFile(loc) {
				a.console.Success("Found nginx config at %s", loc)
				a.console.Println()
				return loc, nil
			}
		}
	}

	for {
		a.console.Warn("We couldn't locate your nginx config. Could you please type the full location below?\n")
		loc, err := a.prompt.Prompt("Nginx Conf Location", "")
		if err != nil {
			return "", err
		}
		loc = strings.TrimSpace(loc)
		if exitWords[strings.ToLower(loc)] {
			a.console.Info("Exiting.")
			return "", fmt.Errorf("%w: no nginx config given", workflow.ErrAborted)
		}
		if isFile(loc) {
			return loc, nil
		}
	}
}

func (a *Adapter) debugConf(conf *Conf) {
	a.console.Debug("Found the following log formats and access logs:")
	for _, f := range conf.Formats {
		a.console.Debug("  log_format %s", f)
	}
	for _, l := range conf.AccessLogs {
		a.console.Debug("  access_log %s %s", l.Path, l.Format)
	}
}

// chooseAccessLog settles which log to ship and which format it uses,
// starting from whatever the flags already gave.
func (a *Adapter) chooseAccessLog(conf *Conf, logPath, format string) (string, string, error) {
	switch {
	case logPath != "":
		if !isFile(logPath) {
			return "", "", fmt.Errorf("%w\nIt doesn't look like the file you specified exists: %s\nPlease check your --file argument and try again.", ErrAccessLog, logPath)
		}
		if abs, err := filepath.Abs(logPath); err == nil {
			logPath = abs
		}
	case len(conf.AccessLogs) > 0:
		chosen := conf.AccessLogs[0]
		if len(conf.AccessLogs) > 1 {
			a.console.Info("\nWe found the following access logs in your nginx config:")
			paths := make([]string, len(conf.AccessLogs))
			for i, l := range conf.AccessLogs {
				paths[i] = l.Path
			}
			n, err := a.prompt.Choose("Which log would you like to send to honeycomb?", paths)
			if err != nil {
				return "", "", err
			}
			chosen = conf.AccessLogs[n-1]
		} else {
			a.console.Info("Using log located at %s", chosen.Path)
		}
		logPath = conf.Resolve(chosen.Path)
		if format == "" {
			format = chosen.Format
			if format == "" {
				format = DefaultFormatName
			}
		}
		if !isFile(logPath) {
			return "", "", fmt.Errorf(`%w
Argh! We tried to guess the location for logs for the '%s' format and failed.
It looks like they're not at %s like we hoped.
Once you find your nginx logs, specify them via --file, and try again.`, ErrAccessLog, format, logPath)
		}
	default:
		logPath = a.defaultAccessLog
		a.console.Info("We'll start by using the default log location of %s", logPath)
		if !isFile(logPath) {
			return "", "", fmt.Errorf(`%w
Argh! Looks like they're not at the default location.
Once you find your nginx logs, specify them via --file, and try again.`, ErrAccessLog)
		}
	}

	if format == "" {
		guessed, err := a.guessFormat(conf, logPath)
		if err != nil {
			return "", "", err
		}
		format = guessed
	}
	if format == "" {
		format = DefaultFormatName
		a.console.Info("and the default log format '%s'", format)
	}

	a.console.Info("Checking Permissions...")
	if err := readable(logPath); err != nil {
		return "", "", fmt.Errorf(`%w
It doesn't look like we have permissions to read that file.
Please change the permissions or run as sudo and try again.`, ErrAccessLog)
	}
	return logPath, format, nil
}

// guessFormat finds the format of the access_log directive writing to
// logPath, or asks the user to pick among the formats the config uses.
func (a *Adapter) guessFormat(conf *Conf, logPath string) (string, error) {
	for _, l := range conf.AccessLogs {
		if conf.Resolve(l.Path) == logPath && l.Format != "" {
			return l.Format, nil
		}
	}

	seen := map[string]bool{}
	var formats []string
	for _, l := range conf.AccessLogs {
		if l.Format == "" {
			continue
		}
		if len(formats) == 0 {
			a.console.Info("\nWe found the following access logs in your nginx config:")
		}
		a.console.Info("[%s] %s", l.Format, l.Path)
		if !seen[l.Format] {
			seen[l.Format] = true
			formats = append(formats, l.Format)
		}
	}
	if len(formats) == 0 {
		return "", nil
	}
	sort.Strings(formats)
	n, err := a.prompt.Choose("Which log format would you like to use?", formats)
	if err != nil {
		return "", err
	}
	return formats[n-1], nil
}

// version asks `nginx -v`, which answers on stderr with
// "nginx version: nginx/1.10.3 (Ubuntu)".
func (a *Adapter) version(ctx context.Context) string {
	cmd := shell.Cmd{Name: "nginx", Args: []string{"-v"}, CombineOutput: true}
	res, err := a.runner.Capture(ctx, cmd)
	if err == nil && res.ExitCode == 0 {
		if v, ok := parseVersion(res.Output); ok {
			return v
		}
	}
	switch {
	case err != nil:
		a.console.Warn("error checking nginx version (`%s`): %v", cmd, err)
	default:
		a.console.Warn("error checking nginx version (`%s`), exit status %d", cmd, res.ExitCode)
		a.console.Warn("output:")
		a.console.Warn("%s", strings.TrimSpace(res.Output))
	}
	a.console.Warn("assuming you're running nginx >= %s", assumedVersion)
	return assumedVersion
}

// versionNumber is the leading major.minor.patch of a reported version;
// OpenResty appends a fourth component ("openresty/1.21.4.1").
var versionNumber = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+`)

func parseVersion(out string) (string, bool) {
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return "", false
	}
	_, v, ok := strings.Cut(fields[2], "/")
	if !ok {
		return "", false
	}
	v = versionNumber.FindString(v)
	return v, v != ""
}

// recommend shows the variables the chosen format lacks and a log_format
// line that adds them. Declining either confirmation aborts the run.
func (a *Adapter) recommend(conf *Conf, formatName, logPath, version string) error {
	a.console.Println(rule)
	format, ok := conf.Format(formatName)
	if !ok {
		return fmt.Errorf(`%w: log_format %q
Something went wrong and I can't identify your format.
The program is exiting and we're really unhappy.`, ErrConfig, formatName)
	}

	a.console.Info(`
Honeycomb works best with lots of fields, and nginx has a great set of
extra fields available out of the box. Let's take a look at your config to see
if you're missing anything useful.

Make sure to properly quote any HTTP header fields (those starting with $http_)

We'll return a list of variables to add to your log_format line.
`)
	a.console.Info("For reference, your current format is:")
	a.console.Info("    %s", format)
	a.console.Println()
	ready, err := a.prompt.YN("Ready to see what you're missing? ('n' to abort)", true)
	if err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("%w: declined log format review", workflow.ErrAborted)
	}

	missing := Missing(format.Format, version)
	a.console.Println(rule)
	if len(missing) == 0 {
		a.console.Success("Your access log already has every field we'd suggest.")
		a.console.Println(rule)
		return nil
	}

	a.console.Info("Your access log is missing the following useful fields:")
	rows := make([][]string, 0, len(missing))
	for _, v := range missing {
		rows = append(rows, []string{v.Name, v.Description})
	}
	a.console.Table([]string{"Variable", "Description"}, rows)
	a.console.Println(rule)
	a.console.Bold("Review complete.")
	a.console.Info(`
Here's a complete log format that we would use for nginx with Honeycomb:

    log_format   %s;
    access_log   %s  %s;
`, SuggestedFormat(format, missing), logPath, format.Name)

	a.console.Info("If you like these changes, go ahead and edit your nginx config (at %s) now.", conf.Path)
	a.console.Info("Please make sure to reload nginx (sudo nginx -s reload) after any changes to the config.")
	done, err := a.prompt.YN("\nOnce you're finished making changes and have reloaded nginx,\nhit Enter to continue, 'n' to abort", true)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("%w: declined log format changes", workflow.ErrAborted)
	}
	return nil
}

const (
	confFlag   = "--nginx.conf"
	formatFlag = "--nginx.format"
)

func (a *Adapter) parserFlags() []string {
	return []string{confFlag + "=" + a.conf, formatFlag + "=" + a.format}
}

// PreBackfill passes the config and format to honeytail's nginx parser.
func (a *Adapter) PreBackfill(_ context.Context, s *workflow.Session) error {
	s.ParserFlags = a.parserFlags()
	return nil
}

// PreTail also tells the user to keep a copy of today's config when they
// are only tailing: a later backfill has to parse old lines with the format
// they were written in, even if nginx.conf has changed since.
func (a *Adapter) PreTail(_ context.Context, s *workflow.Session, afterBackfill bool) error {
	s.ParserFlags = a.parserFlags()
	if afterBackfill {
		return nil
	}
	saved := savedConfPath(a.conf)
	a.console.Info(`
In order to backfill later, you should
snag a copy of the nginx config to preserve the current log config.
Please make a copy:
    cp %s %s

When you're ready to backfill, use the following command`, a.conf, filepath.Dir(saved)+string(filepath.Separator))
	a.console.Lines(s.BackfillCommand(s.LogFile).ReplaceFlag(confFlag, saved).Lines())
	a.console.Println()
	return nil
}

// PreShowCommands passes the config and format to the printed commands.
func (a *Adapter) PreShowCommands(_ context.Context, s *workflow.Session) error {
	s.ParserFlags = a.parserFlags()
	return nil
}

// savedConfPath is where PreTail suggests copying the config: the user's
// home directory, spelled out so the printed command works when quoted.
func savedConfPath(conf string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, filepath.Base(conf))
}

// absPath makes p absolute, leaving it as given when that fails or p is empty.
func absPath(p string) string {
	if p == "" {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// readable checks that the log can be opened and read, not just stat'ed.
func readable(p string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Read(make([]byte, 1)); err != nil && err != io.EOF {
		return err
	}
	return nil
}
