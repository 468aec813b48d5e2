package workflow

// Config is captured once at startup and not changed afterwards.
// Hooks that need different parser flags change Session.ParserFlags.
type Config struct {
	// Name identifies the integration in prompts and the user agent ("MySQL", "nginx").
	Name string
	// Version is the installer's version string, e.g. "1.4.0-linux".
	Version string
	// ParserModule is honeytail's --parser value.
	ParserModule string
	// ParserExtraFlags seeds Session.ParserFlags.
	ParserExtraFlags []string

	WriteKey       string
	Dataset        string
	DefaultDataset string

	// HoneytailLocation is where to look for an existing honeytail binary.
	HoneytailLocation string
	Debug             bool
}

// UserAgent is sent with every HTTP request the installer makes.
func (c Config) UserAgent() string {
	return c.Name + "-installer/" + c.Version
}

// RunMode is how the user wants data to start flowing.
type RunMode int

const (
	BackfillAndTail RunMode = iota + 1
	OnlyBackfill
	OnlyTail
	ShowCommands
)

// String names the mode for debug output.
func (m RunMode) String() string {
	switch m {
	case BackfillAndTail:
		return "backfill-and-tail"
	case OnlyBackfill:
		return "only-backfill"
	case OnlyTail:
		return "only-tail"
	case ShowCommands:
		return "show-commands"
	default:
		return "unknown"
	}
}
