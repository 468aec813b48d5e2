package mongo

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"honey-installer/internal/workflow"
)

var configLocations = []string{
	"/etc/mongod.conf",
	"/etc/mongodb.conf",
	"/usr/local/etc/mongod.conf",
	"/usr/local/etc/mongodb.conf",
	"/opt/mongo/etc/mongodb.conf",
	"/opt/mongo/mongodb.conf",
}

var logLocations = []string{
	"/var/log/mongodb/mongodb.log",
	"/var/log/mongodb/mongod.log",
	"/usr/local/var/log/mongodb/mongodb.log",
}

// The 2.4-era ini format: "logpath=/var/log/mongodb/mongod.log".
var legacyLogPath = regexp.MustCompile(`^\s*logpath\s*=\s*(.+?)\s*$`)

// yamlConfig is the part of a 2.6+ mongod.conf we read.
type yamlConfig struct {
	SystemLog struct {
		Path string `yaml:"path"`
	} `yaml:"systemLog"`
}

// LocateLogFile prefers --file, then the path named by the first mongod
// config file that names one, then the usual log locations.
func (a *Adapter) LocateLogFile(_ context.Context, _ *workflow.Session) (string, error) {
	if a.opts.LogFile != "" {
		if isFile(a.opts.LogFile) {
			return a.opts.LogFile, nil
		}
		a.console.Warn("Could not find %s, looking in the usual places instead.", a.opts.LogFile)
	}

	for _, loc := range a.configLocations {
		data, err := os.ReadFile(loc)
		if err != nil {
			continue
		}
		path := logPathFromConfig(data)
		if path == "" {
			continue
		}
		a.console.Debug("%s names log file %s", loc, path)
		if isFile(path) {
			return path, nil
		}
		break
	}

	for _, loc := range a.logLocations {
		if isFile(loc) {
			return loc, nil
		}
	}
	return "", nil
}

// logPathFromConfig returns the log path named in a mongod config file,
// either YAML (systemLog.path) or the legacy key=value format.
func logPathFromConfig(data []byte) string {
	var cfg yamlConfig
	if err := yaml.Unmarshal(data, &cfg); err == nil && cfg.SystemLog.Path != "" {
		return cfg.SystemLog.Path
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if m := legacyLogPath.FindStringSubmatch(sc.Text()); m != nil {
			return strings.Trim(m[1], `"'`)
		}
	}
	return ""
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
