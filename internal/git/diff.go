package git

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/lmarques/vulnhist/internal/models"
)

// FileChange describes the changed line ranges of one file between two
// commits, on both sides of the diff.
type FileChange struct {
	Path       string
	FromRanges []models.LineRange
	ToRanges   []models.LineRange
}

// hunkHeader matches unified diff hunk markers such as
// "@@ -12,3 +14,2 @@ static int foo(void)".
var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(,(\d+))? \+(\d+)(,(\d+))? @@.*`)

// ChangedFiles diffs two commits and returns the changed source files
// with their changed line ranges on both sides. Deleted files are
// dropped.
func (r *Repository) ChangedFiles(ctx context.Context, from, to string) []FileChange {
	args := []string{"diff", "--unified=0", from, to, "--"}
	args = append(args, sourceGlobs()...)
	out, err := r.git(ctx, args...)
	if err != nil {
		r.log.Errorf("Cannot diff the commits %s and %s: %v", from, to, err)
		return nil
	}
	return r.parseDiff(out)
}

// ChangedFilesSinceParent diffs a commit against its first parent.
func (r *Repository) ChangedFilesSinceParent(ctx context.Context, hash string) []FileChange {
	return r.ChangedFiles(ctx, hash+"^", hash)
}

// parseDiff extracts per-file changed line ranges from unified diff
// text produced with zero context lines.
func (r *Repository) parseDiff(diff string) []FileChange {
	var changes []FileChange
	var current *FileChange
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ "):
			if current != nil {
				changes = append(changes, *current)
				current = nil
			}
			parts := strings.SplitN(line, "/", 2)
			if len(parts) < 2 {
				continue
			}
			path := parts[1]
			if path == "dev/null" {
				continue
			}
			current = &FileChange{Path: path}
		case strings.HasPrefix(line, "@@"):
			if current == nil {
				continue
			}
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				r.log.Errorf("Cannot parse the diff line %q.", line)
				continue
			}
			if fromRange := parseHunkSide(m[1], m[3]); fromRange != nil {
				current.FromRanges = append(current.FromRanges, *fromRange)
			}
			if toRange := parseHunkSide(m[4], m[6]); toRange != nil {
				current.ToRanges = append(current.ToRanges, *toRange)
			}
		}
	}
	if current != nil {
		changes = append(changes, *current)
	}
	return changes
}

// parseHunkSide converts one side of a hunk header into a line range.
// An omitted length counts as 1. A zero begin or an explicit zero
// length marks an empty side, which yields no range.
func parseHunkSide(beginText, lengthText string) *models.LineRange {
	begin, _ := strconv.Atoi(beginText)
	length := 1
	if lengthText != "" {
		length, _ = strconv.Atoi(lengthText)
	}
	if begin == 0 || length == 0 {
		return nil
	}
	return &models.LineRange{Begin: begin, End: begin + length - 1}
}
