package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lmarques/vulnhist/internal/config"
)

// Namer builds and finds the per-project output file paths. Every file
// written during one run shares the same start timestamp, so the
// artifacts of a run can be matched with its log.
type Namer struct {
	baseDir     string
	timestamp   string
	allBranches bool
}

// NewNamer creates a namer rooted at the output directory. The
// timestamp has the form YYYYMMDDhhmmss.
func NewNamer(baseDir, timestamp string, allBranches bool) *Namer {
	return &Namer{baseDir: baseDir, timestamp: timestamp, allBranches: allBranches}
}

// ProjectDir returns the output subdirectory of a project.
func (n *Namer) ProjectDir(project config.Project) string {
	return filepath.Join(n.baseDir, project.ShortName)
}

// EnsureProjectDir creates the output subdirectory of a project.
func (n *Namer) EnsureProjectDir(project config.Project) error {
	if err := os.MkdirAll(n.ProjectDir(project), 0755); err != nil {
		return fmt.Errorf("failed to create the output directory: %w", err)
	}
	return nil
}

// TablePath builds the output path for a new table, for example
// "output/mozilla/cve-1-mozilla-master-branch-20210401212440.csv".
func (n *Namer) TablePath(project config.Project, prefix string) string {
	branches := "master-branch"
	if n.allBranches {
		branches = "all-branches"
	}
	name := fmt.Sprintf("%s-%d-%s-%s-%s.csv", prefix, project.DatabaseID, project.ShortName, branches, n.timestamp)
	return filepath.Join(n.ProjectDir(project), name)
}

// FindTables returns the project's existing tables with the given
// prefix, sorted by name. Older runs sort before newer ones because
// the timestamp is part of the name.
func (n *Namer) FindTables(project config.Project, prefix string) []string {
	pattern := filepath.Join(n.ProjectDir(project), fmt.Sprintf("%s-%d-%s-*.csv", prefix, project.DatabaseID, project.ShortName))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	return matches
}

// ReplaceInFilename swaps a substring in the file name part of a path,
// leaving the directory untouched. Derived tables are named this way,
// so a timeline keeps the identity of the affected-file table it was
// built from.
func ReplaceInFilename(path, old, new string) string {
	dir, file := filepath.Split(path)
	return filepath.Join(dir, strings.ReplaceAll(file, old, new))
}
