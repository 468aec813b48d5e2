package nginx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honey-installer/internal/logger"
	"honey-installer/internal/prompt"
	"honey-installer/internal/shell"
	"honey-installer/internal/testutil"
	"honey-installer/internal/workflow"
)

func writeFile(t *testing.T, path, data string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	conf := writeFile(t, filepath.Join(dir, "nginx.conf"), `
events {}
http {
    log_format main '$remote_addr - $remote_user [$time_local] "$request" '
                    '$status $body_bytes_sent';
    log_format json escape=json '{"status":"$status"}';
    access_log logs/access.log main buffer=32k;
    include conf.d/*.conf;
    server {
        access_log off;
        location /api {
            access_log /var/log/nginx/api.log;
        }
    }
}
`)
	writeFile(t, filepath.Join(dir, "conf.d", "site.conf"), `
server {
    access_log /var/log/nginx/site.log json;
}
`)

	c, err := Scan(conf)
	require.NoError(t, err)

	assert.Equal(t, []LogFormat{
		{Name: "main", Format: `$remote_addr - $remote_user [$time_local] "$request" $status $body_bytes_sent`},
		{Name: "json", Format: `{"status":"$status"}`},
	}, c.Formats)
	assert.ElementsMatch(t, []AccessLog{
		{Path: "logs/access.log", Format: "main"},
		{Path: "/var/log/nginx/api.log"},
		{Path: "/var/log/nginx/site.log", Format: "json"},
	}, c.AccessLogs)

	assert.Equal(t, filepath.Join(dir, "logs", "access.log"), c.Resolve("logs/access.log"))
	assert.Equal(t, "/var/log/x.log", c.Resolve("/var/log/x.log"))

	f, ok := c.Format("combined")
	require.True(t, ok)
	assert.Contains(t, f.Format, "$http_user_agent")
	_, ok = c.Format("nope")
	assert.False(t, ok)
}

func TestScanErrors(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "missing.conf"))
	assert.ErrorIs(t, err, ErrConfig)

	bad := writeFile(t, filepath.Join(t.TempDir(), "nginx.conf"), "http {\n  access_log /x.log;\n")
	_, err = Scan(bad)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestMissing(t *testing.T) {
	format := `$remote_addr $request_time "$http_user_agent" $status ${host}`
	names := func(vs []Variable) []string {
		var out []string
		for _, v := range vs {
			out = append(out, v.Name)
		}
		return out
	}

	got := names(Missing(format, "1.18.0"))
	assert.Contains(t, got, "$request", "$request_time does not count as $request")
	assert.Contains(t, got, `"$http_referer"`)
	assert.Contains(t, got, "$request_id")
	assert.NotContains(t, got, "$remote_addr")
	assert.NotContains(t, got, "$host")
	assert.NotContains(t, got, `"$http_user_agent"`)

	assert.NotContains(t, names(Missing(format, "1.10.3")), "$request_id")
}

func TestSuggestedFormat(t *testing.T) {
	f := LogFormat{Name: "main", Format: "$status "}
	got := SuggestedFormat(f, []Variable{{Name: "$host"}, {Name: `"$http_referer"`}})
	assert.Equal(t, `main '$status $host "$http_referer"'`, got)
	assert.Equal(t, "main '$status'", SuggestedFormat(f, nil))
}

func TestParseVersion(t *testing.T) {
	v, ok := parseVersion("nginx version: nginx/1.10.3 (Ubuntu)\n")
	assert.True(t, ok)
	assert.Equal(t, "1.10.3", v)

	v, ok = parseVersion("nginx version: openresty/1.21.4.1\n")
	assert.True(t, ok)
	assert.Equal(t, "1.21.4", v)
	assert.NotEmpty(t, Missing("$remote_addr", v))

	_, ok = parseVersion("nginx: command not found")
	assert.False(t, ok)
	_, ok = parseVersion("nginx version: nginx/custom")
	assert.False(t, ok)
}

func TestLocateLogFileFourPartVersion(t *testing.T) {
	dir, conf := site(t, "access.log main")
	writeFile(t, filepath.Join(dir, "access.log"), "x\n")
	f := newFixture(t, Options{Conf: conf}, "", "")
	f.runner.Respond = func(shell.Cmd) (shell.Result, error) {
		return shell.Result{Output: "nginx version: openresty/1.21.4.1\n"}, nil
	}
	_, err := f.adapter.LocateLogFile(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "$request_id")
	assert.NotContains(t, f.out.String(), "already has every field")
}

type fixture struct {
	adapter *Adapter
	runner  *testutil.FakeRunner
	prompt  *testutil.ScriptedPrompter
	out     *bytes.Buffer
}

func newFixture(t *testing.T, opts Options, answers ...string) fixture {
	t.Helper()
	out := &bytes.Buffer{}
	runner := &testutil.FakeRunner{Respond: func(c shell.Cmd) (shell.Result, error) {
		if c.Name == "nginx" {
			return shell.Result{Output: "nginx version: nginx/1.10.3\n"}, nil
		}
		return shell.Result{}, nil
	}}
	p := testutil.NewScriptedPrompter(answers...)
	a := New(workflow.Deps{Console: logger.New(out, false, false), Prompt: p, Runner: runner}, opts)
	a.confLocations = nil
	a.defaultAccessLog = filepath.Join(t.TempDir(), "missing-default.log")
	return fixture{adapter: a, runner: runner, prompt: p, out: out}
}

// site writes a config with one log_format and the given access_log lines.
func site(t *testing.T, accessLogs ...string) (dir, conf string) {
	dir = t.TempDir()
	var b strings.Builder
	b.WriteString("http {\n    log_format main '$remote_addr \"$request\" $status';\n")
	for _, l := range accessLogs {
		b.WriteString("    access_log " + l + ";\n")
	}
	b.WriteString("}\n")
	return dir, writeFile(t, filepath.Join(dir, "nginx.conf"), b.String())
}

func TestLocateLogFileFromConfig(t *testing.T) {
	dir, conf := site(t, "logs/access.log main")
	logPath := writeFile(t, filepath.Join(dir, "logs", "access.log"), "127.0.0.1 \"GET / HTTP/1.1\" 200\n")

	f := newFixture(t, Options{Conf: conf}, "", "")
	got, err := f.adapter.LocateLogFile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, logPath, got)
	assert.Zero(t, f.prompt.Remaining())

	out := f.out.String()
	assert.Contains(t, out, "Using log located at logs/access.log")
	assert.Contains(t, out, `main '$remote_addr "$request" $status'`)
	assert.Contains(t, out, "$request_time")
	assert.Contains(t, out, "access_log   "+logPath+"  main;")

	s := workflow.NewSession(Config())
	require.NoError(t, f.adapter.PreShowCommands(context.Background(), s))
	assert.Equal(t, []string{"--nginx.conf=" + conf, "--nginx.format=main"}, s.ParserFlags)
}

func TestLocateLogFileChoosesAmongSeveral(t *testing.T) {
	dir := t.TempDir()
	second := writeFile(t, filepath.Join(dir, "second.log"), "x\n")
	conf := writeFile(t, filepath.Join(dir, "nginx.conf"), "http {\n    log_format main '$status';\n    access_log /nonexistent/first.log main;\n    access_log "+second+";\n}\n")

	f := newFixture(t, Options{Conf: conf}, "2", "", "")
	got, err := f.adapter.LocateLogFile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, second, got)
	// The chosen directive names no format, so the predefined one is used.
	assert.Equal(t, DefaultFormatName, f.adapter.format)
}

func TestLocateLogFileDefaultLocation(t *testing.T) {
	dir := t.TempDir()
	conf := writeFile(t, filepath.Join(dir, "nginx.conf"), "events {}\nhttp {}\n")

	f := newFixture(t, Options{Conf: conf}, "", "")
	f.adapter.defaultAccessLog = writeFile(t, filepath.Join(dir, "access.log"), "x\n")
	got, err := f.adapter.LocateLogFile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, f.adapter.defaultAccessLog, got)
	assert.Contains(t, f.out.String(), "It looks like you're using the default nginx configuration.")
	assert.Contains(t, f.out.String(), "and the default log format 'combined'")
	assert.Equal(t, "combined", f.adapter.format)
}

func TestLocateLogFileMissingDefault(t *testing.T) {
	dir := t.TempDir()
	conf := writeFile(t, filepath.Join(dir, "nginx.conf"), "http {}\n")

	f := newFixture(t, Options{Conf: conf})
	_, err := f.adapter.LocateLogFile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrAccessLog)
}

func TestLocateLogFileAborts(t *testing.T) {
	t.Run("first confirmation", func(t *testing.T) {
		dir, conf := site(t, "access.log main")
		writeFile(t, filepath.Join(dir, "access.log"), "x\n")
		f := newFixture(t, Options{Conf: conf}, "n")
		_, err := f.adapter.LocateLogFile(context.Background(), nil)
		assert.True(t, errors.Is(err, workflow.ErrAborted))
	})

	t.Run("second confirmation", func(t *testing.T) {
		dir, conf := site(t, "access.log main")
		writeFile(t, filepath.Join(dir, "access.log"), "x\n")
		f := newFixture(t, Options{Conf: conf}, "y", "n")
		_, err := f.adapter.LocateLogFile(context.Background(), nil)
		assert.True(t, errors.Is(err, workflow.ErrAborted))
	})

	t.Run("no config given", func(t *testing.T) {
		f := newFixture(t, Options{}, filepath.Join(t.TempDir(), "nope.conf"), "exit")
		_, err := f.adapter.LocateLogFile(context.Background(), nil)
		assert.True(t, errors.Is(err, workflow.ErrAborted))
		assert.Equal(t, 2, strings.Count(f.out.String(), "We couldn't locate your nginx config."))
	})
}

func TestLocateLogFileUnknownFormat(t *testing.T) {
	dir, conf := site(t, "access.log main")
	logPath := writeFile(t, filepath.Join(dir, "access.log"), "x\n")
	f := newFixture(t, Options{Conf: conf, LogFile: logPath, Format: "fancy"})
	_, err := f.adapter.LocateLogFile(context.Background(), nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestLocateLogFileVersionFallback(t *testing.T) {
	dir, conf := site(t, "access.log main")
	writeFile(t, filepath.Join(dir, "access.log"), "x\n")
	f := newFixture(t, Options{Conf: conf}, "", "")
	f.runner.Respond = func(shell.Cmd) (shell.Result, error) {
		return shell.Result{}, errors.New("exec: \"nginx\": executable file not found in $PATH")
	}
	_, err := f.adapter.LocateLogFile(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "assuming you're running nginx >= 1.0.0")
	assert.NotContains(t, f.out.String(), "$request_id")
}

func TestPreTailSuggestsSavingConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	f := newFixture(t, Options{})
	f.adapter.conf = "/etc/nginx/nginx.conf"
	f.adapter.format = "main"

	s := workflow.NewSession(Config())
	s.Honeytail = "/usr/bin/honeytail"
	s.WriteKey = "k"
	s.Dataset = "Nginx"
	s.LogFile = "/var/log/nginx/access.log"

	require.NoError(t, f.adapter.PreTail(context.Background(), s, false))
	out := f.out.String()
	assert.Contains(t, out, "cp /etc/nginx/nginx.conf "+home+"/")
	assert.Contains(t, out, "--nginx.conf="+filepath.Join(home, "nginx.conf"))
	assert.Equal(t, []string{"--nginx.conf=/etc/nginx/nginx.conf", "--nginx.format=main"}, s.ParserFlags)

	f.out.Reset()
	require.NoError(t, f.adapter.PreTail(context.Background(), s, true))
	assert.Empty(t, f.out.String())
}

func TestRelativeConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir, _ := site(t, "access.log main")
	writeFile(t, filepath.Join(dir, "access.log"), "x\n")
	chdir(t, dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	abs := filepath.Join(wd, "nginx.conf")

	f := newFixture(t, Options{Conf: "nginx.conf"}, "", "")
	_, err = f.adapter.LocateLogFile(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, abs, f.adapter.conf)

	s := workflow.NewSession(Config())
	s.Honeytail = "/usr/bin/honeytail"
	s.LogFile = filepath.Join(wd, "access.log")
	f.out.Reset()
	require.NoError(t, f.adapter.PreTail(context.Background(), s, false))

	out := f.out.String()
	assert.Contains(t, out, "cp "+abs+" "+home+"/")
	assert.Contains(t, out, "--nginx.conf="+filepath.Join(home, "nginx.conf"))
	assert.Contains(t, out, "--nginx.format=main")
	assert.Equal(t, []string{"--nginx.conf=" + abs, "--nginx.format=main"}, s.ParserFlags)
}

func TestNewMakesConfigAbsolute(t *testing.T) {
	chdir(t, t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)

	a := New(workflow.Deps{}, Options{Conf: "nginx.conf", Format: "combined"})
	assert.Equal(t, []string{"--nginx.conf=" + filepath.Join(wd, "nginx.conf"), "--nginx.format=combined"}, a.parserFlags())
}

func TestLocateLogFileEndOfInput(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.adapter.LocateLogFile(context.Background(), nil)
	assert.ErrorIs(t, err, prompt.ErrNoInput)
	assert.False(t, errors.Is(err, workflow.ErrAborted))
}

var _ workflow.Adapter = (*Adapter)(nil)

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
