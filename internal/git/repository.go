// Package git wraps the git plumbing used to reconstruct project
// history: hash resolution, topological ordering, diff parsing, and
// worktree checkouts against a local clone.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// memoSize bounds the per-repository tag and date lookup tables.
const memoSize = 65536

// SourceExtensions lists the file extensions considered C/C++ sources.
var SourceExtensions = []string{"c", "cpp", "cc", "cxx", "c++", "cp", "h", "hpp", "hh", "hxx"}

// Repository runs git commands against one local working copy.
type Repository struct {
	path         string
	masterBranch string
	log          *logrus.Logger

	tagNames    *lru.Cache[string, string]
	authorDates *lru.Cache[string, string]
}

// NewRepository creates a repository handle rooted at path.
func NewRepository(path, masterBranch string, logger *logrus.Logger) (*Repository, error) {
	tagNames, err := lru.New[string, string](memoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag name cache: %w", err)
	}
	authorDates, err := lru.New[string, string](memoSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create author date cache: %w", err)
	}
	return &Repository{
		path:         path,
		masterBranch: masterBranch,
		log:          logger,
		tagNames:     tagNames,
		authorDates:  authorDates,
	}, nil
}

// Path returns the repository root directory.
func (r *Repository) Path() string {
	return r.path
}

// MasterBranch returns the configured main branch name.
func (r *Repository) MasterBranch() string {
	return r.masterBranch
}

// git runs a git command in the repository and returns its stdout.
func (r *Repository) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.path
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			return "", fmt.Errorf("git %s failed: %w (stderr: %s)", strings.Join(args, " "), err, stderr)
		}
		return "", fmt.Errorf("git %s failed: %w", strings.Join(args, " "), err)
	}
	return string(output), nil
}

// splitLines splits command output into trimmed non-empty lines.
func splitLines(output string) []string {
	var result []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

// sourceGlobs returns the pathspec globs matching the source extension set.
func sourceGlobs() []string {
	globs := make([]string, len(SourceExtensions))
	for i, ext := range SourceExtensions {
		globs[i] = "*." + ext
	}
	return globs
}
