package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/abramin/cmodel/internal/config"
)

// Discover walks the configured source folders and returns the
// project-relative, slash-separated paths of every file to parse, sorted.
func Discover(cfg *config.Config, projectDir string) ([]string, error) {
	include, err := compileAll(cfg.FileFilters.Include)
	if err != nil {
		return nil, fmt.Errorf("file_filters.include: %w", err)
	}
	exclude, err := compileAll(cfg.FileFilters.Exclude)
	if err != nil {
		return nil, fmt.Errorf("file_filters.exclude: %w", err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, folder := range cfg.SourceFolders {
		root := folder
		if !filepath.IsAbs(root) {
			root = filepath.Join(projectDir, folder)
		}
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != root && cfg.IsExcludedDir(p) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !cfg.HasSourceExt(d.Name()) {
				return nil
			}

			rel, err := filepath.Rel(projectDir, p)
			if err != nil {
				return err
			}
			rel = path.Clean(filepath.ToSlash(rel))
			if seen[rel] || cfg.IsExcludedFile(rel) || !keep(rel, include, exclude) {
				return nil
			}
			seen[rel] = true
			files = append(files, rel)
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("source folder %s does not exist", folder)
		}
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", folder, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// keep applies the include/exclude regexes. An empty include list keeps
// everything not excluded.
func keep(rel string, include, exclude []*regexp.Regexp) bool {
	for _, re := range exclude {
		if re.MatchString(rel) {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, re := range include {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

func compileAll(pats []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(pats))
	for _, p := range pats {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
