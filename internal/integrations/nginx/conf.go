package nginx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	crossplane "github.com/nginxinc/nginx-go-crossplane"
)

// DefaultFormatName is nginx's predefined log format, used by access_log
// directives that do not name one.
const DefaultFormatName = "combined"

// combined is the predefined format. nginx never spells it out in the config.
var combined = LogFormat{
	Name:   DefaultFormatName,
	Format: `$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent "$http_referer" "$http_user_agent"`,
}

// ErrConfig wraps failures to read or parse the nginx configuration.
var ErrConfig = errors.New("cannot process nginx config")

// LogFormat is one log_format directive.
type LogFormat struct {
	Name string
	// Format is the format string with nginx's adjacent string literals joined.
	Format string
}

// String renders the directive arguments the way they would be written in nginx.conf.
func (f LogFormat) String() string {
	return fmt.Sprintf("%s '%s'", f.Name, f.Format)
}

// AccessLog is one enabled access_log directive.
type AccessLog struct {
	// Path is as written in the config, possibly relative.
	Path string
	// Format is the named log format, "" when the directive names none.
	Format string
}

// Conf is what the installer needs from an nginx configuration.
type Conf struct {
	Path       string
	Formats    []LogFormat
	AccessLogs []AccessLog
}

// Format returns the log_format named name.
func (c *Conf) Format(name string) (LogFormat, bool) {
	for _, f := range c.Formats {
		if f.Name == name {
			return f, true
		}
	}
	if name == DefaultFormatName {
		return combined, true
	}
	return LogFormat{}, false
}

// Resolve makes an access log path absolute. nginx resolves relative paths
// against its prefix, which defaults to the config's directory.
func (c *Conf) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.Path), p)
}

// Scan parses the nginx config at path, following includes, and collects
// every log_format and every access_log that is not "off".
func Scan(path string) (*Conf, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConfig, path, err)
	}
	f.Close()

	payload, err := crossplane.Parse(path, &crossplane.ParseOptions{
		StopParsingOnError:        true,
		SkipDirectiveContextCheck: true,
		SkipDirectiveArgsCheck:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConfig, path, err)
	}

	conf := &Conf{Path: path}
	for _, cfg := range payload.Config {
		conf.collect(cfg.Parsed)
	}
	return conf, nil
}

func (c *Conf) collect(dirs crossplane.Directives) {
	for _, d := range dirs {
		switch d.Directive {
		case "log_format":
			if f, ok := parseLogFormat(d.Args); ok {
				c.Formats = append(c.Formats, f)
			}
		case "access_log":
			if l, ok := parseAccessLog(d.Args); ok {
				c.AccessLogs = append(c.AccessLogs, l)
			}
		}
		c.collect(d.Block)
	}
}

// parseLogFormat reads `log_format name [escape=...] string ...`.
func parseLogFormat(args []string) (LogFormat, bool) {
	if len(args) < 2 {
		return LogFormat{}, false
	}
	parts := args[1:]
	if strings.HasPrefix(parts[0], "escape=") {
		parts = parts[1:]
	}
	return LogFormat{Name: args[0], Format: strings.Join(parts, "")}, true
}

// parseAccessLog reads `access_log path [format [buffer=...] ...]`.
func parseAccessLog(args []string) (AccessLog, bool) {
	if len(args) == 0 {
		return AccessLog{}, false
	}
	for _, a := range args {
		if a == "off" {
			return AccessLog{}, false
		}
	}
	l := AccessLog{Path: args[0]}
	if len(args) > 1 && !strings.Contains(args[1], "=") {
		l.Format = args[1]
	}
	return l, true
}
