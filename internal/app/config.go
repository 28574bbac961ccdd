package app

// Config carries the parsed command line into the application. Pointer
// fields distinguish a flag the user set from one left at its default,
// so only explicit flags override the project file.
type Config struct {
	// ConfigPath locates the project file. ConfigExplicit records
	// whether the user named it; a missing default file is fine, a
	// missing explicit one is an error.
	ConfigPath     string
	ConfigExplicit bool

	LogLevel  string
	LogFormat string

	// NoCache keeps the build cache in memory even when the project
	// file configures a cache path.
	NoCache bool

	SourceDir *string
	OutputDir *string
	Workers   *int
	Strict    *bool
	CachePath *string
}
