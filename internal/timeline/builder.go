// Package timeline expands the affected-file table into a per-file
// timeline across the alternating sequence of vulnerable and neutral
// checkpoints.
package timeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lmarques/vulnhist/internal/git"
	"github.com/lmarques/vulnhist/internal/models"
	"github.com/lmarques/vulnhist/internal/output"
)

// Graph is the slice of repository behavior the builder needs.
type Graph interface {
	FirstCommit(ctx context.Context) string
	TagName(ctx context.Context, hash string) string
	AuthorDate(ctx context.Context, hash string) string
	ChangedFiles(ctx context.Context, from, to string) []git.FileChange
}

// checkpoint is one position of the timeline: the repository's first
// commit, or one side of a (vulnerable, neutral) commit pair.
type checkpoint struct {
	hash       string
	position   int
	vulnerable bool
	tagName    string
	authorDate string
	cves       []string
}

// Builder derives the file-timeline table of one project from its
// affected-file rows.
type Builder struct {
	graph          Graph
	table          *output.TimelineTable
	startAtIndex   int
	writeFrequency int
	log            *logrus.Logger
}

// NewBuilder creates a builder writing to the given table. A negative
// startAtIndex processes the timeline from the beginning.
func NewBuilder(graph Graph, table *output.TimelineTable, startAtIndex, writeFrequency int, logger *logrus.Logger) *Builder {
	return &Builder{
		graph:          graph,
		table:          table,
		startAtIndex:   startAtIndex,
		writeFrequency: writeFrequency,
		log:            logger,
	}
}

// Run walks every adjacent checkpoint pair, recording which files
// changed between them and which of those changes were vulnerable. The
// checkpoints must alternate between vulnerable and neutral; a pair
// that does not alternate aborts the build.
func (b *Builder) Run(ctx context.Context, rows []*models.AffectedFile) error {
	points := b.checkpoints(ctx, rows)
	b.log.Infof("Built a timeline of %d checkpoints.", len(points))

	for i := 0; i+1 < len(points); i++ {
		from, to := points[i], points[i+1]
		if from.vulnerable == to.vulnerable {
			return fmt.Errorf("the checkpoints %s and %s at position %d do not alternate between vulnerable and neutral", from.hash, to.hash, i)
		}
		if b.startAtIndex >= 0 && i < b.startAtIndex {
			continue
		}

		b.processPair(ctx, rows, from, to)

		if i%b.writeFrequency == 0 {
			if err := b.table.Flush(); err != nil {
				return err
			}
			b.log.Infof("Processed %d of %d checkpoint pairs.", i+1, len(points)-1)
		}
	}

	entries := deduplicate(b.table.Entries())
	entries = b.correctConsecutive(entries)
	b.table.SetEntries(entries)
	return b.table.Flush()
}

// checkpoints lists the first commit followed by both sides of every
// distinct (vulnerable, neutral) commit pair, in the order the pairs
// first appear in the affected-file rows.
func (b *Builder) checkpoints(ctx context.Context, rows []*models.AffectedFile) []checkpoint {
	first := b.graph.FirstCommit(ctx)
	points := []checkpoint{{
		hash:       first,
		tagName:    b.graph.TagName(ctx, first),
		authorDate: b.graph.AuthorDate(ctx, first),
	}}

	seen := make(map[[2]string]bool)
	for _, row := range rows {
		pair := [2]string{row.Vulnerable.Hash, row.Neutral.Hash}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		points = append(points,
			newCheckpoint(rows, row.Vulnerable.Hash, len(points), true),
			newCheckpoint(rows, row.Neutral.Hash, len(points)+1, false),
		)
	}
	return points
}

// newCheckpoint fills a checkpoint from the first affected row whose
// matching-side hash equals the checkpoint's hash.
func newCheckpoint(rows []*models.AffectedFile, hash string, position int, vulnerable bool) checkpoint {
	point := checkpoint{hash: hash, position: position, vulnerable: vulnerable}
	for _, row := range rows {
		ref := row.Neutral
		if vulnerable {
			ref = row.Vulnerable
		}
		if ref.Hash == hash {
			point.tagName = ref.TagName
			point.authorDate = ref.AuthorDate
			point.cves = row.CVEs
			break
		}
	}
	return point
}

// processPair records every source file that changed between two
// checkpoints. Files whose vulnerable state is already represented by
// an affected row at the destination are skipped, so a file is never
// labeled neutral and vulnerable at the same checkpoint.
func (b *Builder) processPair(ctx context.Context, rows []*models.AffectedFile, from, to checkpoint) {
	for _, change := range b.graph.ChangedFiles(ctx, from.hash, to.hash) {
		if to.vulnerable && findRow(rows, change.Path, to.hash) != nil {
			continue
		}

		entry := &models.TimelineEntry{
			FilePath:         change.Path,
			TopologicalIndex: from.position,
			Affected:         from.vulnerable,
			Vulnerable:       from.vulnerable,
			CommitHash:       from.hash,
			TagName:          from.tagName,
			AuthorDate:       from.authorDate,
			ChangedLines:     change.FromRanges,
		}
		if !from.vulnerable {
			b.table.Append(entry)
			continue
		}

		row := findRow(rows, change.Path, from.hash)
		if row == nil {
			b.log.Warnf("Cannot find the affected row of the file %s at the vulnerable commit %s.", change.Path, from.hash)
		} else {
			entry.AffectedFunctions = row.VulnerableFunctions
			entry.AffectedClasses = row.VulnerableClasses
		}
		entry.CVEs = from.cves
		b.table.Append(entry)

		neutral := &models.TimelineEntry{
			FilePath:         change.Path,
			TopologicalIndex: to.position,
			Affected:         true,
			Vulnerable:       false,
			CommitHash:       to.hash,
			TagName:          to.tagName,
			AuthorDate:       to.authorDate,
			ChangedLines:     change.ToRanges,
			CVEs:             to.cves,
		}
		if row != nil {
			neutral.AffectedFunctions = row.NeutralFunctions
			neutral.AffectedClasses = row.NeutralClasses
		}
		b.table.Append(neutral)
	}
}

// findRow returns the first affected row matching the path on its
// vulnerable side.
func findRow(rows []*models.AffectedFile, path, vulnerableHash string) *models.AffectedFile {
	for _, row := range rows {
		if row.FilePath == path && row.Vulnerable.Hash == vulnerableHash {
			return row
		}
	}
	return nil
}

// deduplicate drops exact duplicates of (path, index, affected),
// keeping the first occurrence.
func deduplicate(entries []*models.TimelineEntry) []*models.TimelineEntry {
	type rowKey struct {
		path     string
		index    int
		affected bool
	}
	seen := make(map[rowKey]bool)
	var kept []*models.TimelineEntry
	for _, entry := range entries {
		key := rowKey{entry.FilePath, entry.TopologicalIndex, entry.Affected}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, entry)
	}
	return kept
}

// correctConsecutive repairs fixes that were immediately reintroduced:
// when adjacent rows carry the same commit as neutral then vulnerable
// for intersecting CVE sets, the neutral-side rows of the files shared
// by both checkpoints are deleted. Flips over disjoint CVE sets are
// legitimate and only logged. Deletions apply in scan order, so later
// flips see the corrected rows.
func (b *Builder) correctConsecutive(entries []*models.TimelineEntry) []*models.TimelineEntry {
	for j := 0; j+1 < len(entries); j++ {
		first, second := entries[j], entries[j+1]
		if first.CommitHash != second.CommitHash || first.Vulnerable || !second.Vulnerable {
			continue
		}
		if !intersects(first.CVEs, second.CVEs) {
			b.log.Infof("The commit %s turns from neutral to vulnerable for unrelated CVEs.", first.CommitHash)
			continue
		}

		vulnerablePaths := make(map[string]bool)
		for _, entry := range entries {
			if entry.TopologicalIndex == second.TopologicalIndex {
				vulnerablePaths[entry.FilePath] = true
			}
		}

		kept := entries[:0:0]
		for _, entry := range entries {
			if entry.TopologicalIndex == first.TopologicalIndex && vulnerablePaths[entry.FilePath] {
				b.log.Infof("Deleting the neutral row of the file %s at position %d.", entry.FilePath, entry.TopologicalIndex)
				continue
			}
			kept = append(kept, entry)
		}
		entries = kept

		// Resume at the vulnerable row, which is never deleted.
		for k, entry := range entries {
			if entry == second {
				j = k - 1
				break
			}
		}
	}
	return entries
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
