// Package config resolves the effective project configuration: built-in
// defaults, then the optional braid.hcl file, then whatever overrides
// the command line supplies on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// DefaultFileName is the configuration file looked up when no explicit
// path is given.
const DefaultFileName = "braid.hcl"

// Config is the resolved configuration a build runs with.
type Config struct {
	// ProjectName labels logs and reports. Purely informational.
	ProjectName string
	// SourceDir is the root of the unit tree.
	SourceDir string
	// OutputDir is the root artifacts are written under.
	OutputDir string
	// Package names the Go package of artifacts at the source root.
	Package string
	// Workers is the compilation pool size. Zero lets the builder pick.
	Workers int
	// StrictDirectives turns unknown-directive warnings into errors.
	StrictDirectives bool
	// CachePath is the SQLite cache location. Empty keeps the cache in
	// memory for the life of the process.
	CachePath string
}

// Default returns the configuration a project without a braid.hcl
// builds with.
func Default() Config {
	return Config{
		SourceDir: "src",
		OutputDir: "gen",
		Package:   "ui",
	}
}

type fileConfig struct {
	Project *projectBlock `hcl:"project,block"`
	Build   *buildBlock   `hcl:"build,block"`
}

type projectBlock struct {
	Name      *string `hcl:"name,optional"`
	SourceDir *string `hcl:"source_dir,optional"`
	OutputDir *string `hcl:"output_dir,optional"`
	Package   *string `hcl:"package,optional"`
}

type buildBlock struct {
	Workers          *int    `hcl:"workers,optional"`
	StrictDirectives *bool   `hcl:"strict_directives,optional"`
	CachePath        *string `hcl:"cache_path,optional"`
}

// Load reads the file at path and merges it over the defaults. When
// optional is true a missing file is not an error; projects without a
// braid.hcl build with defaults alone.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()

	src, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	file, diags := hclsyntax.ParseConfig(src, path, hcl.InitialPos)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("parse config %s: %w", path, diags)
	}
	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return Config{}, fmt.Errorf("decode config %s: %w", path, diags)
	}

	cfg.apply(&fc)
	return cfg, nil
}

func (c *Config) apply(fc *fileConfig) {
	if p := fc.Project; p != nil {
		if p.Name != nil {
			c.ProjectName = *p.Name
		}
		if p.SourceDir != nil {
			c.SourceDir = *p.SourceDir
		}
		if p.OutputDir != nil {
			c.OutputDir = *p.OutputDir
		}
		if p.Package != nil {
			c.Package = *p.Package
		}
	}
	if b := fc.Build; b != nil {
		if b.Workers != nil {
			c.Workers = *b.Workers
		}
		if b.StrictDirectives != nil {
			c.StrictDirectives = *b.StrictDirectives
		}
		if b.CachePath != nil {
			c.CachePath = *b.CachePath
		}
	}
}

// Validate rejects values no build can run with. It runs after command
// line overrides are applied, so it sees the final configuration.
func (c Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("config: source directory must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("config: output directory must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	return nil
}
