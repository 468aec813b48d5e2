package config

// File is the optional YAML configuration file.
//
// Every field is optional; command-line flags and environment variables take
// precedence over whatever is set here. Example:
//
//	writekey: 0123456789abcdef0123456789abcdef
//	dataset: Production MySQL
//	debug: false
//	honeytail:
//	  location: /usr/local/bin/honeytail
//	  url: https://mirror.internal/honeytail-1.8.3-linux-amd64.tar.gz
//	  sha256: 6f1c...
type File struct {
	WriteKey  string    `yaml:"writekey"`
	Dataset   string    `yaml:"dataset"`
	Debug     bool      `yaml:"debug"`
	Honeytail Honeytail `yaml:"honeytail"`
}

// Honeytail overrides how the honeytail binary is located or fetched.
// - Location: path of an existing binary to try first.
// - URL: download source replacing the pinned honeycomb.io artifact (a raw binary or an archive).
// - SHA256: expected hex digest of whatever URL serves.
type Honeytail struct {
	Location string `yaml:"location"`
	URL      string `yaml:"url"`
	SHA256   string `yaml:"sha256"`
}

// Environment variables consulted between flags and the config file.
const (
	EnvWriteKey = "HONEYCOMB_WRITEKEY"
	EnvDataset  = "HONEYCOMB_DATASET"
)
