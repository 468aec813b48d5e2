package cmd

import (
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"honey-installer/internal/config"
	"honey-installer/internal/honeycomb"
	"honey-installer/internal/installer"
	"honey-installer/internal/logger"
	"honey-installer/internal/prompt"
	"honey-installer/internal/shell"
	"honey-installer/internal/workflow"
)

// commonFlags are the flags every integration subcommand takes.
type commonFlags struct {
	writeKey   string
	dataset    string
	file       string
	honeytail  string
	configPath string
	debug      bool
	noDebug    bool
}

func (f *commonFlags) register(c *cobra.Command, defaultDataset, fileHelp string) {
	fl := c.Flags()
	fl.StringVarP(&f.writeKey, "writekey", "k", "", "Your Honeycomb Writekey (or set "+config.EnvWriteKey+")")
	fl.StringVarP(&f.dataset, "dataset", "d", defaultDataset, "Your Honeycomb Dataset")
	fl.StringVarP(&f.file, "file", "f", "", fileHelp)
	fl.StringVar(&f.honeytail, "honeytail-location", installer.DefaultLocation, "Honeytail location")
	fl.StringVarP(&f.configPath, "config", "c", "", "Path to an optional YAML configuration file")
	fl.BoolVar(&f.debug, "debug", false, "Turn Debug mode on")
	fl.BoolVar(&f.noDebug, "no-debug", false, "Turn Debug mode off")
	fl.SetNormalizeFunc(legacyFlagNames)
}

// legacyFlagNames keeps the older --honeytail spelling working.
func legacyFlagNames(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "honeytail" {
		name = "honeytail-location"
	}
	return pflag.NormalizedName(name)
}

// resolve merges flags, environment and config file into cfg.
func (f *commonFlags) resolve(c *cobra.Command, file config.File, cfg workflow.Config) workflow.Config {
	changed := c.Flags().Changed
	cfg.Version = installerVersion()
	cfg.WriteKey = config.Pick(f.writeKey, changed("writekey"), config.EnvWriteKey, file.WriteKey, "")
	cfg.Dataset = config.Pick(f.dataset, changed("dataset"), config.EnvDataset, file.Dataset, cfg.DefaultDataset)
	cfg.HoneytailLocation = config.Pick(f.honeytail, changed("honeytail-location"), "", file.Honeytail.Location, installer.DefaultLocation)

	cfg.Debug = file.Debug
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("no-debug") && f.noDebug {
		cfg.Debug = false
	}
	return cfg
}

// isTerminal reports whether out is attached to a terminal.
func isTerminal(out *os.File) bool {
	return isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())
}

// outputMode is how decorated the console output is.
type outputMode struct {
	color    bool
	progress bool
}

// outputFor decides decorations for an output that is or is not a terminal.
// NO_COLOR turns off colors only; the progress bar follows the terminal.
func outputFor(tty bool) outputMode {
	_, noColor := os.LookupEnv("NO_COLOR")
	return outputMode{color: tty && !noColor, progress: tty}
}

// honeytailArtifact picks the mirror from the config file when there is one,
// otherwise the pinned release for this platform.
func honeytailArtifact(file config.File, name string) (installer.Artifact, error) {
	if file.Honeytail.URL != "" {
		return installer.Mirror(file.Honeytail.URL, file.Honeytail.SHA256), nil
	}
	a, err := installer.Pinned(runtime.GOOS)
	if err != nil {
		return installer.Artifact{}, fmt.Errorf("%w\n%s", err, installer.UnsupportedMessage(name, runtime.GOOS))
	}
	return a, nil
}

// runInstaller wires the real console, terminal, processes and network into
// a workflow run for one integration.
func runInstaller(c *cobra.Command, f *commonFlags, base workflow.Config, build func(workflow.Deps) workflow.Adapter) error {
	file, err := config.LoadFile(f.configPath)
	if err != nil {
		return err
	}
	cfg := f.resolve(c, file, base)

	mode := outputFor(isTerminal(os.Stdout))
	console := logger.New(os.Stdout, cfg.Debug, mode.color)
	client := &http.Client{}
	runner := shell.Exec{}

	artifact, platformErr := honeytailArtifact(file, cfg.Name)
	deps := workflow.Deps{
		Console: console,
		Prompt:  prompt.NewTerminal(os.Stdin, os.Stdout),
		Runner:  runner,
		Binary: &installer.Ensurer{
			Fetcher: &installer.Fetcher{
				Client:    client,
				UserAgent: cfg.UserAgent(),
				Console:   console,
				Progress:  mode.progress,
			},
			Runner:      runner,
			Console:     console,
			Artifact:    artifact,
			PlatformErr: platformErr,
		},
		Teams: &honeycomb.Client{HTTP: client, UserAgent: cfg.UserAgent()},
	}
	console.Debug("config: name=%s dataset=%s honeytail=%s", cfg.Name, cfg.Dataset, cfg.HoneytailLocation)

	exitCode = workflow.Run(c.Context(), cfg, build(deps), deps)
	return nil
}
