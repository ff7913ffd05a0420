package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"matisse/internal/alloc"
	"matisse/internal/ssa"
)

const manifestName = "matisse.toml"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Lower lowerConfig `toml:"lower"`
	Trace traceConfig `toml:"trace"`
}

type lowerConfig struct {
	Strategy string `toml:"strategy"`
	Jobs     int    `toml:"jobs"`
	// Cache defaults to true when absent.
	Cache *bool `toml:"cache"`
	// Policy is one of same-type, all or no-globals.
	Policy string `toml:"policy"`
	// Disable lists optimization directives switched off for every function.
	Disable []string `toml:"disable"`
	// SkipCSSA treats inputs as already conventional.
	SkipCSSA bool `toml:"skip_cssa"`
}

type traceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

var (
	knownPolicies   = []string{"all", "no-globals", "same-type"}
	knownDirectives = []string{alloc.DirectiveCallAlias, alloc.DirectiveCopy, alloc.DirectiveEfficient, alloc.DirectiveGlobal}
)

func findManifest(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadProjectManifest finds matisse.toml at or above startDir. A missing
// manifest is not an error.
func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := findManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := loadManifestFile(manifestPath)
	return m, true, err
}

func loadManifestFile(path string) (*projectManifest, error) {
	cfg, err := loadProjectConfig(path)
	if err != nil {
		return nil, err
	}
	return &projectManifest{
		Path:   path,
		Root:   filepath.Dir(path),
		Config: cfg,
	}, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return projectConfig{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if meta.IsDefined("lower", "strategy") {
		if _, err := alloc.LookupStrategy(cfg.Lower.Strategy); err != nil {
			return projectConfig{}, fmt.Errorf("%s: [lower].strategy: %w", path, err)
		}
	}
	if cfg.Lower.Jobs < 0 {
		return projectConfig{}, fmt.Errorf("%s: [lower].jobs must not be negative", path)
	}
	cfg.Lower.Policy = strings.TrimSpace(cfg.Lower.Policy)
	if cfg.Lower.Policy != "" && !slices.Contains(knownPolicies, cfg.Lower.Policy) {
		return projectConfig{}, fmt.Errorf("%s: [lower].policy %q (expected %s)", path, cfg.Lower.Policy, strings.Join(knownPolicies, "|"))
	}
	for _, d := range cfg.Lower.Disable {
		if !slices.Contains(knownDirectives, d) {
			return projectConfig{}, fmt.Errorf("%s: [lower].disable: unknown directive %q", path, d)
		}
	}
	return cfg, nil
}

// loadManifestForCommand honors --config and falls back to discovery from
// the working directory.
func loadManifestForCommand(cmd *cobra.Command) (*projectManifest, error) {
	path, err := rootString(cmd, "config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return loadManifestFile(path)
	}
	m, _, err := loadProjectManifest(".")
	return m, err
}

// policyFor maps a manifest policy name to a body-specific merge policy.
func policyFor(name string) func(*ssa.Body) alloc.MergePolicy {
	switch name {
	case "all":
		return func(*ssa.Body) alloc.MergePolicy { return alloc.AllowAll }
	case "no-globals":
		return func(b *ssa.Body) alloc.MergePolicy { return alloc.All(alloc.SameType(b), alloc.NoGlobalPairs) }
	default:
		return nil
	}
}
