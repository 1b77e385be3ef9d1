package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileNames are the config file names looked up in a project directory, in
// order. JSON is accepted because it is a subset of YAML.
var FileNames = []string{"cmodel.yaml", "cmodel.yml", "cmodel.json"}

// Categories lists the transformation categories in the order they are
// applied within a container.
var Categories = []string{"typedef", "functions", "macros", "globals", "includes", "files", "structs", "enums", "unions"}

// Config represents the cmodel configuration.
type Config struct {
	ProjectName            string                  `yaml:"project_name"`
	SourceFolders          []string                `yaml:"source_folders"`
	OutputDir              string                  `yaml:"output_dir"`
	Exclude                ExcludeConfig           `yaml:"exclude"`
	FileExtensions         []string                `yaml:"file_extensions"`
	FileFilters            FilterConfig            `yaml:"file_filters"`
	IncludeDepth           int                     `yaml:"include_depth"`
	IncludeFilterLocalOnly bool                    `yaml:"include_filter_local_only"`
	AlwaysShowIncludes     bool                    `yaml:"always_show_includes"`
	FileSpecific           map[string]FileSpecific `yaml:"file_specific"`
	Parallelism            int                     `yaml:"parallelism"`

	// Transformations is filled by UnmarshalYAML from any of the accepted
	// forms: a list, a single legacy map, or transformations_* keys.
	Transformations []Container `yaml:"-"`
}

// ExcludeConfig defines patterns to exclude from indexing.
type ExcludeConfig struct {
	Dirs      []string `yaml:"dirs"`
	FilesGlob []string `yaml:"files_glob"`
}

// FilterConfig holds regex allow and deny lists over project-relative paths.
type FilterConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// FileSpecific overrides include handling for one root file, keyed by the
// file's base name.
type FileSpecific struct {
	IncludeDepth  int      `yaml:"include_depth"`
	IncludeFilter []string `yaml:"include_filter"`
}

// Rule is one pattern and, for renames, its replacement.
type Rule struct {
	Pattern     string
	Replacement string
}

// Container is one ordered transformation stage.
type Container struct {
	Name          string
	FileSelection []string
	// Rename and Remove map a category to its rules in config order.
	Rename map[string][]Rule
	Remove map[string][]Rule
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		SourceFolders: []string{"."},
		OutputDir:     ".cmodel",
		Exclude: ExcludeConfig{
			Dirs:      []string{".git", ".cmodel", "build", "third_party", "vendor"},
			FilesGlob: []string{"**/*.pb.h", "**/*.pb.c"},
		},
		FileExtensions: []string{".c", ".h", ".cc", ".cpp", ".cxx", ".hpp", ".hh", ".hxx"},
		IncludeDepth:   1,
		Parallelism:    runtime.NumCPU(),
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for cmodel.yaml, cmodel.yml or cmodel.json
// in the current directory. Values present in the file replace defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromDir(".")
	}

	defaults := Default()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No config file, use defaults
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Unmarshal into empty struct first
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", configPath, err)
	}

	// Apply defaults for missing fields
	defaults.Merge(&fileCfg)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return defaults, nil
}

// LoadFromDir loads configuration from the first config file found in dir.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return Default(), nil
}

// Merge combines another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.ProjectName != "" {
		c.ProjectName = other.ProjectName
	}
	if len(other.SourceFolders) > 0 {
		c.SourceFolders = other.SourceFolders
	}
	if other.OutputDir != "" {
		c.OutputDir = other.OutputDir
	}
	if len(other.Exclude.Dirs) > 0 {
		c.Exclude.Dirs = other.Exclude.Dirs
	}
	if len(other.Exclude.FilesGlob) > 0 {
		c.Exclude.FilesGlob = other.Exclude.FilesGlob
	}
	if len(other.FileExtensions) > 0 {
		c.FileExtensions = other.FileExtensions
	}
	if len(other.FileFilters.Include) > 0 {
		c.FileFilters.Include = other.FileFilters.Include
	}
	if len(other.FileFilters.Exclude) > 0 {
		c.FileFilters.Exclude = other.FileFilters.Exclude
	}
	if other.IncludeDepth != 0 {
		c.IncludeDepth = other.IncludeDepth
	}
	if other.IncludeFilterLocalOnly {
		c.IncludeFilterLocalOnly = true
	}
	if other.AlwaysShowIncludes {
		c.AlwaysShowIncludes = true
	}
	if len(other.FileSpecific) > 0 {
		c.FileSpecific = other.FileSpecific
	}
	if other.Parallelism != 0 {
		c.Parallelism = other.Parallelism
	}
	if len(other.Transformations) > 0 {
		c.Transformations = other.Transformations
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.IncludeDepth < 1 {
		errs = append(errs, fmt.Errorf("include_depth must be at least 1, got %d", c.IncludeDepth))
	}
	if c.Parallelism < 0 {
		errs = append(errs, fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism))
	}
	errs = append(errs, checkPatterns("file_filters.include", c.FileFilters.Include)...)
	errs = append(errs, checkPatterns("file_filters.exclude", c.FileFilters.Exclude)...)

	names := make([]string, 0, len(c.FileSpecific))
	for name := range c.FileSpecific {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fs := c.FileSpecific[name]
		if fs.IncludeDepth < 0 {
			errs = append(errs, fmt.Errorf("file_specific.%s.include_depth must not be negative", name))
		}
		errs = append(errs, checkPatterns("file_specific."+name+".include_filter", fs.IncludeFilter)...)
	}

	for _, ct := range c.Transformations {
		errs = append(errs, checkPatterns(ct.Name+".file_selection", ct.FileSelection)...)
		for _, ops := range []struct {
			kind  string
			rules map[string][]Rule
		}{{"rename", ct.Rename}, {"remove", ct.Remove}} {
			for cat, rules := range ops.rules {
				if !IsCategory(cat) {
					errs = append(errs, fmt.Errorf("%s.%s: unknown category %q", ct.Name, ops.kind, cat))
					continue
				}
				pats := make([]string, len(rules))
				for i, r := range rules {
					pats[i] = r.Pattern
				}
				errs = append(errs, checkPatterns(ct.Name+"."+ops.kind+"."+cat, pats)...)
			}
		}
	}
	return errors.Join(errs...)
}

func checkPatterns(where string, pats []string) []error {
	var errs []error
	for _, p := range pats {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}
	return errs
}

// IsCategory reports whether cat is a known transformation category.
func IsCategory(cat string) bool {
	for _, c := range Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// IsExcludedDir checks if a directory should be excluded from indexing.
func (c *Config) IsExcludedDir(dir string) bool {
	base := filepath.Base(dir)
	for _, excluded := range c.Exclude.Dirs {
		if base == excluded {
			return true
		}
	}
	return false
}

// IsExcludedFile checks a slash-separated project-relative path against the
// exclude globs.
func (c *Config) IsExcludedFile(rel string) bool {
	for _, pattern := range c.Exclude.FilesGlob {
		if matchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// HasSourceExt reports whether the file extension is one cmodel parses.
func (c *Config) HasSourceExt(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range c.FileExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// matchGlob matches a path against a glob pattern.
// Supports a leading **/ for matching any number of path components.
// Example: "**/*.pb.h" matches "proto/gen/msg.pb.h"
func matchGlob(pattern, rel string) bool {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		// try the pattern against every suffix of the path
		parts := strings.Split(rel, "/")
		for i := range parts {
			if matched, err := path.Match(rest, strings.Join(parts[i:], "/")); err == nil && matched {
				return true
			}
		}
		return false
	}

	// Fallback to path.Match for plain patterns
	matched, err := path.Match(pattern, rel)
	return err == nil && matched
}
