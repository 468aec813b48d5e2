package workflow

// Session is the mutable state of one run. Steps fill it in order and later
// steps read what earlier ones resolved; it lives only as long as the run.
type Session struct {
	Config Config

	// Honeytail is the absolute path of the honeytail binary in use.
	Honeytail string
	WriteKey  string
	TeamSlug  string
	Dataset   string

	LogFile string
	LogSize int64

	// ParserFlags are the extra --parser flags, starting from
	// Config.ParserExtraFlags. Hooks may replace them before a command is built.
	ParserFlags []string

	// Mode is set once the user has picked how to send data.
	Mode RunMode
}

// NewSession starts a session from cfg.
func NewSession(cfg Config) *Session {
	return &Session{
		Config:      cfg,
		Honeytail:   cfg.HoneytailLocation,
		WriteKey:    cfg.WriteKey,
		Dataset:     cfg.Dataset,
		ParserFlags: append([]string(nil), cfg.ParserExtraFlags...),
	}
}
