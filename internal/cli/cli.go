// Package cli parses braidc's command line, validates user input, and
// handles process-level concerns like exit codes. Flags translate into
// the application configuration; settings a flag does not name fall
// back to the project file and then to defaults.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/braidui/braid/internal/app"
	"github.com/braidui/braid/internal/config"
)

// ExitError is an error that carries a specific process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns the application
// configuration, a boolean indicating the program should exit cleanly
// (help was requested), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("braidc", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `braidc - compiler for .braid single-file components.

Usage:
  braidc [options]

braidc reads the optional braid.hcl project file, compiles every unit
under the source directory, and writes render programs and scoped
stylesheets to the output directory. Flags override the project file.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", config.DefaultFileName, "Path to the project configuration file.")
	srcFlag := flagSet.String("src", "", "Source directory to discover units under.")
	outFlag := flagSet.String("out", "", "Output directory for generated artifacts.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent compilation workers. 0 picks a default.")
	strictFlag := flagSet.Bool("strict", false, "Treat unknown template directives as errors.")
	cacheFlag := flagSet.String("cache", "", "Path to the SQLite build cache.")
	noCacheFlag := flagSet.Bool("no-cache", false, "Keep the build cache in memory for this run only.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument: %s", flagSet.Arg(0))}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := &app.Config{
		ConfigPath: *configFlag,
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		NoCache:    *noCacheFlag,
	}

	// Only flags the user actually set override the project file.
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config":
			cfg.ConfigExplicit = true
		case "src":
			cfg.SourceDir = srcFlag
		case "out":
			cfg.OutputDir = outFlag
		case "workers":
			cfg.Workers = workersFlag
		case "strict":
			cfg.Strict = strictFlag
		case "cache":
			cfg.CachePath = cacheFlag
		}
	})

	if cfg.NoCache && cfg.CachePath != nil {
		return nil, false, &ExitError{Code: 2, Message: "-cache and -no-cache are mutually exclusive"}
	}

	return cfg, false, nil
}
