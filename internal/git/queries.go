package git

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// ResolveFullHash expands a short or abbreviated hash to its full form.
// Unknown hashes resolve to the empty string.
func (r *Repository) ResolveFullHash(ctx context.Context, short string) string {
	out, err := r.git(ctx, "show", "--format=%H", "--no-patch", short)
	if err != nil {
		r.log.Errorf("Cannot resolve the commit hash %s: %v", short, err)
		return ""
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// Parents returns the parent hashes of the given commit.
func (r *Repository) Parents(ctx context.Context, hash string) []string {
	out, err := r.git(ctx, "log", hash, "--parents", "--max-count=1", "--format=%P", "--", ".")
	if err != nil {
		r.log.Errorf("Cannot find the parent hashes of the commit %s: %v", hash, err)
		return nil
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return nil
	}
	return strings.Fields(lines[0])
}

// LastChangeHashes returns, for the newest commit at or before the given
// commit that touched the given path, the ancestors that previously
// changed the path. Relies on git history simplification rewriting the
// listed parents to the nearest path-touching ancestors.
func (r *Repository) LastChangeHashes(ctx context.Context, hash, path string) []string {
	out, err := r.git(ctx, "log", hash, "--parents", "--max-count=1", "--format=%P", "--", path)
	if err != nil {
		r.log.Errorf("Cannot find the last change hashes of the file %s at the commit %s: %v", path, hash, err)
		return nil
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return nil
	}
	return strings.Fields(lines[0])
}

// TopoSort orders the given hashes oldest first in topological order.
// Zero or one hashes are returned as-is without invoking git. Any
// unknown hash fails the whole sort and yields the empty list.
func (r *Repository) TopoSort(ctx context.Context, hashes []string) []string {
	if len(hashes) <= 1 {
		return hashes
	}
	args := append([]string{"rev-list", "--topo-order", "--reverse", "--no-walk=sorted"}, hashes...)
	out, err := r.git(ctx, args...)
	if err != nil {
		r.log.Errorf("Cannot sort the commit hashes %v: %v", hashes, err)
		return nil
	}
	return splitLines(out)
}

// FilterBySourceExtensions keeps only the commits that change at least
// one C/C++ source file. Input order is preserved.
func (r *Repository) FilterBySourceExtensions(ctx context.Context, hashes []string) []string {
	if len(hashes) == 0 {
		return nil
	}
	args := append([]string{"rev-list"}, hashes...)
	args = append(args, "--no-walk=unsorted", "--")
	args = append(args, sourceGlobs()...)
	out, err := r.git(ctx, args...)
	if err != nil {
		r.log.Errorf("Cannot filter the commit hashes %v: %v", hashes, err)
		return nil
	}
	return splitLines(out)
}

// TagName returns the nearest tag describing a commit, or "undefined"
// when no tag reaches it. Results are memoized.
func (r *Repository) TagName(ctx context.Context, hash string) string {
	if tag, ok := r.tagNames.Get(hash); ok {
		return tag
	}
	out, err := r.git(ctx, "name-rev", "--tags", "--name-only", hash)
	if err != nil {
		r.log.Errorf("Cannot find the tag name of the commit %s: %v", hash, err)
		return ""
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return ""
	}
	tag := splitTagName(lines[0])
	r.tagNames.Add(hash, tag)
	return tag
}

// splitTagName cuts the traversal suffix from a name-rev result, so
// "v4.11-rc1~120^2" becomes "v4.11-rc1".
func splitTagName(name string) string {
	if i := strings.IndexAny(name, "~^"); i >= 0 {
		return name[:i]
	}
	return name
}

// AuthorDate returns the author date of a commit as a UTC timestamp in
// the form "2006-01-02 15:04:05". Results are memoized.
func (r *Repository) AuthorDate(ctx context.Context, hash string) string {
	if date, ok := r.authorDates.Get(hash); ok {
		return date
	}
	out, err := r.git(ctx, "log", hash, "--format=%ad", "--date=unix")
	if err != nil {
		r.log.Errorf("Cannot find the author date of the commit %s: %v", hash, err)
		return ""
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return ""
	}
	seconds, err := strconv.ParseInt(lines[0], 10, 64)
	if err != nil {
		r.log.Errorf("Cannot parse the author date %q of the commit %s: %v", lines[0], hash, err)
		return ""
	}
	date := time.Unix(seconds, 0).UTC().Format("2006-01-02 15:04:05")
	r.authorDates.Add(hash, date)
	return date
}

// FirstCommit returns the root commit of the repository history.
func (r *Repository) FirstCommit(ctx context.Context) string {
	out, err := r.git(ctx, "log", "--topo-order", "--reverse", "--do-walk", "--format=%H", "--")
	if err != nil {
		r.log.Errorf("Cannot find the first commit of the repository: %v", err)
		return ""
	}
	lines := splitLines(out)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// SearchMessages returns the hashes of all commits across all branches
// whose message matches the given extended regular expression. The
// match is case insensitive.
func (r *Repository) SearchMessages(ctx context.Context, pattern string) []string {
	out, err := r.git(ctx, "log", "--all", "--format=%H", "--grep="+pattern, "--regexp-ignore-case", "--extended-regexp")
	if err != nil {
		r.log.Errorf("Cannot search the commit messages for the pattern %q: %v", pattern, err)
		return nil
	}
	return splitLines(out)
}

// IsHashValid reports whether a commit hash exists in the repository.
func (r *Repository) IsHashValid(ctx context.Context, hash string) bool {
	_, err := r.git(ctx, "branch", "--contains", hash)
	return err == nil
}

// InMasterBranch reports whether the master branch contains the commit.
func (r *Repository) InMasterBranch(ctx context.Context, hash string) bool {
	out, err := r.git(ctx, "branch", "--contains", hash, "--format=%(refname:short)")
	if err != nil {
		r.log.Errorf("Cannot list the branches containing the commit %s: %v", hash, err)
		return false
	}
	for _, branch := range splitLines(out) {
		if branch == r.masterBranch {
			return true
		}
	}
	return false
}
