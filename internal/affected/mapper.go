// Package affected maps fix commits to the files and code units they
// repaired, producing the affected-file table.
package affected

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/lmarques/vulnhist/internal/git"
	"github.com/lmarques/vulnhist/internal/models"
	"github.com/lmarques/vulnhist/internal/output"
)

// Graph is the slice of repository behavior the mapper needs.
type Graph interface {
	Parents(ctx context.Context, hash string) []string
	LastChangeHashes(ctx context.Context, hash, path string) []string
	TopoSort(ctx context.Context, hashes []string) []string
	FilterBySourceExtensions(ctx context.Context, hashes []string) []string
	TagName(ctx context.Context, hash string) string
	AuthorDate(ctx context.Context, hash string) string
	ChangedFilesSinceParent(ctx context.Context, hash string) []git.FileChange
	CheckoutAll(ctx context.Context, hash string) error
	HardReset(ctx context.Context) error
	Path() string
}

// UnitExtractor lists the code units defined in a checked out file.
type UnitExtractor interface {
	ExtractFile(ctx context.Context, path string) (functions, classes []models.CodeUnit)
}

// Mapper builds the affected-file table of one project.
type Mapper struct {
	graph          Graph
	extractor      UnitExtractor
	table          *output.AffectedTable
	writeFrequency int
	log            *logrus.Logger
}

// NewMapper creates a mapper writing to the given table.
func NewMapper(graph Graph, extractor UnitExtractor, table *output.AffectedTable, writeFrequency int, logger *logrus.Logger) *Mapper {
	return &Mapper{
		graph:          graph,
		extractor:      extractor,
		table:          table,
		writeFrequency: writeFrequency,
		log:            logger,
	}
}

// Run maps every fix commit of the given vulnerabilities to its
// affected files. The first pass collects diff metadata for each
// neutral commit against each of its parents; the second pass checks
// out both sides of every commit pair and extracts the code units of
// the affected files.
func (m *Mapper) Run(ctx context.Context, vulnerabilities []models.Vulnerability) error {
	sequence, cvesByHash := m.neutralSequence(ctx, vulnerabilities)
	m.log.Infof("Found %d neutral commits that change source files.", len(sequence))

	if err := m.collectDiffMetadata(ctx, sequence, cvesByHash); err != nil {
		return err
	}
	if err := m.collectCodeUnits(ctx); err != nil {
		return err
	}
	return m.table.Flush()
}

// neutralSequence flattens the fix hashes of all vulnerabilities into
// the topologically ordered neutral commit sequence, dropping commits
// that change no source files. The returned map lists the CVEs naming
// each commit.
func (m *Mapper) neutralSequence(ctx context.Context, vulnerabilities []models.Vulnerability) ([]string, map[string][]string) {
	cvesByHash := make(map[string][]string)
	var hashes []string
	for _, vulnerability := range vulnerabilities {
		for _, hash := range vulnerability.CommitHashes {
			if _, seen := cvesByHash[hash]; !seen {
				hashes = append(hashes, hash)
			}
			cvesByHash[hash] = appendUnique(cvesByHash[hash], vulnerability.ID)
		}
	}

	filtered := m.graph.FilterBySourceExtensions(ctx, hashes)
	return m.graph.TopoSort(ctx, filtered), cvesByHash
}

// collectDiffMetadata is the first pass: one row per changed file per
// parent of each neutral commit.
func (m *Mapper) collectDiffMetadata(ctx context.Context, sequence []string, cvesByHash map[string][]string) error {
	for index, neutral := range sequence {
		parents := m.graph.TopoSort(ctx, m.graph.Parents(ctx, neutral))

		neutralRef := models.CommitRef{
			Hash:             neutral,
			TopologicalIndex: index,
			TagName:          m.graph.TagName(ctx, neutral),
			AuthorDate:       m.graph.AuthorDate(ctx, neutral),
			Parents:          parents,
		}
		cves := cvesByHash[neutral]

		for _, change := range m.graph.ChangedFilesSinceParent(ctx, neutral) {
			lastChange := m.graph.LastChangeHashes(ctx, neutral, change.Path)

			for _, parent := range parents {
				m.table.Append(&models.AffectedFile{
					FilePath:         change.Path,
					TopologicalIndex: index,
					ParentCount:      len(parents),
					Vulnerable: models.CommitRef{
						Hash:             parent,
						TopologicalIndex: index,
						TagName:          m.graph.TagName(ctx, parent),
						AuthorDate:       m.graph.AuthorDate(ctx, parent),
						Vulnerable:       true,
					},
					Neutral:          neutralRef,
					VulnerableLines:  change.FromRanges,
					NeutralLines:     change.ToRanges,
					CVEs:             cves,
					LastChangeHashes: lastChange,
				})
			}
		}

		if index%m.writeFrequency == 0 {
			if err := m.table.Flush(); err != nil {
				return err
			}
			m.log.Infof("Processed the diff of %d of %d neutral commits.", index+1, len(sequence))
		}
	}
	return nil
}

// commitPair identifies one checkout group of the second pass.
type commitPair struct {
	index      int
	vulnerable string
	neutral    string
}

// collectCodeUnits is the second pass: group the rows by commit pair,
// check out each side once, and fill in the code unit columns. The
// working tree is reset after every group.
func (m *Mapper) collectCodeUnits(ctx context.Context) error {
	rowsByPair := make(map[commitPair][]*models.AffectedFile)
	var pairs []commitPair
	for _, row := range m.table.Rows() {
		pair := commitPair{row.TopologicalIndex, row.Vulnerable.Hash, row.Neutral.Hash}
		if _, seen := rowsByPair[pair]; !seen {
			pairs = append(pairs, pair)
		}
		rowsByPair[pair] = append(rowsByPair[pair], row)
	}

	for i, pair := range pairs {
		rows := rowsByPair[pair]
		m.fillSide(ctx, rows, pair.vulnerable, true)
		m.fillSide(ctx, rows, pair.neutral, false)

		if err := m.graph.HardReset(ctx); err != nil {
			m.log.Errorf("Cannot reset the working tree after the commit pair (%s, %s): %v", pair.vulnerable, pair.neutral, err)
		}

		if i%m.writeFrequency == 0 {
			if err := m.table.Flush(); err != nil {
				return err
			}
			m.log.Infof("Processed the code units of %d of %d commit pairs.", i+1, len(pairs))
		}
	}
	return nil
}

// fillSide checks out one side of a commit pair and extracts the code
// units of every affected file. A failed checkout skips the side,
// leaving its cells empty.
func (m *Mapper) fillSide(ctx context.Context, rows []*models.AffectedFile, hash string, vulnerable bool) {
	if err := m.graph.CheckoutAll(ctx, hash); err != nil {
		m.log.Errorf("Cannot check out the commit %s: %v", hash, err)
		return
	}

	for _, row := range rows {
		functions, classes := m.extractor.ExtractFile(ctx, filepath.Join(m.graph.Path(), row.FilePath))
		if vulnerable {
			markUnits(functions, row.VulnerableLines, true)
			markUnits(classes, row.VulnerableLines, true)
			row.VulnerableFunctions = functions
			row.VulnerableClasses = classes
		} else {
			markUnits(functions, nil, false)
			markUnits(classes, nil, false)
			row.NeutralFunctions = functions
			row.NeutralClasses = classes
		}
	}
}

// markUnits labels every unit by whether its span overlaps one of the
// vulnerable changed ranges. Units on the neutral side are always No.
func markUnits(units []models.CodeUnit, vulnerableRanges []models.LineRange, vulnerable bool) {
	for i := range units {
		status := "No"
		if vulnerable && overlapsAny(units[i].Lines, vulnerableRanges) {
			status = "Yes"
		}
		units[i].Vulnerable = status
	}
}

func overlapsAny(span models.LineRange, ranges []models.LineRange) bool {
	for _, r := range ranges {
		if span.Overlaps(r) {
			return true
		}
	}
	return false
}

func appendUnique(values []string, value string) []string {
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
