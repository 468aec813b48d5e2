package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads the YAML config file at path.
// An empty path means "no config file" and yields a zero File. A path that
// was given but cannot be read or parsed is an error: the user asked for it.
func LoadFile(path string) (File, error) {
	var f File
	if path == "" {
		return f, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return f, nil
}

// Pick returns the first non-empty value in precedence order:
// an explicitly set flag, the environment variable, the config file, then the default.
func Pick(flagValue string, flagSet bool, envKey, fileValue, defaultValue string) string {
	if flagSet {
		return flagValue
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); envKey != "" && v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}
