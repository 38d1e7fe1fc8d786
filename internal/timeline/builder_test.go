package timeline

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmarques/vulnhist/internal/git"
	"github.com/lmarques/vulnhist/internal/models"
	"github.com/lmarques/vulnhist/internal/output"
)

// fakeTimelineGraph serves canned diffs between checkpoint pairs.
type fakeTimelineGraph struct {
	first   string
	tags    map[string]string
	dates   map[string]string
	changes map[string][]git.FileChange
}

func (g *fakeTimelineGraph) FirstCommit(_ context.Context) string { return g.first }

func (g *fakeTimelineGraph) TagName(_ context.Context, hash string) string {
	if tag, ok := g.tags[hash]; ok {
		return tag
	}
	return "undefined"
}

func (g *fakeTimelineGraph) AuthorDate(_ context.Context, hash string) string {
	return g.dates[hash]
}

func (g *fakeTimelineGraph) ChangedFiles(_ context.Context, from, to string) []git.FileChange {
	return g.changes[from+":"+to]
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// timelineRows returns three affected rows, one commit pair per CVE.
func timelineRows() []*models.AffectedFile {
	return []*models.AffectedFile{
		{
			FilePath:         "f.c",
			TopologicalIndex: 0,
			ParentCount:      1,
			Vulnerable:       models.CommitRef{Hash: "v1", TopologicalIndex: 0, TagName: "undefined", AuthorDate: "2019-01-01 10:00:00", Vulnerable: true},
			Neutral:          models.CommitRef{Hash: "n1", TopologicalIndex: 0, TagName: "v1.1", AuthorDate: "2019-01-02 10:00:00"},
			CVEs:             []string{"CVE-2019-0001"},
			VulnerableFunctions: []models.CodeUnit{
				{Name: "parse", Signature: "parse(buf_t *b)", Lines: models.LineRange{Begin: 5, End: 9}, Vulnerable: "Yes"},
			},
			NeutralFunctions: []models.CodeUnit{
				{Name: "parse", Signature: "parse(buf_t *b)", Lines: models.LineRange{Begin: 5, End: 10}, Vulnerable: "No"},
			},
		},
		{
			FilePath:         "g.c",
			TopologicalIndex: 1,
			ParentCount:      1,
			Vulnerable:       models.CommitRef{Hash: "v2", TopologicalIndex: 1, TagName: "v1.1", AuthorDate: "2019-02-01 10:00:00", Vulnerable: true},
			Neutral:          models.CommitRef{Hash: "n2", TopologicalIndex: 1, TagName: "undefined", AuthorDate: "2019-02-02 10:00:00"},
			CVEs:             []string{"CVE-2019-0002"},
			VulnerableFunctions: []models.CodeUnit{
				{Name: "validate", Signature: "validate(request_t *req)", Lines: models.LineRange{Begin: 12, End: 20}, Vulnerable: "Yes"},
			},
			NeutralFunctions: []models.CodeUnit{
				{Name: "validate", Signature: "validate(request_t *req)", Lines: models.LineRange{Begin: 12, End: 22}, Vulnerable: "No"},
			},
		},
		{
			FilePath:         "h.cpp",
			TopologicalIndex: 2,
			ParentCount:      1,
			Vulnerable:       models.CommitRef{Hash: "v3", TopologicalIndex: 2, TagName: "undefined", AuthorDate: "2019-03-01 10:00:00", Vulnerable: true},
			Neutral:          models.CommitRef{Hash: "n3", TopologicalIndex: 2, TagName: "v1.2", AuthorDate: "2019-03-02 10:00:00"},
			CVEs:             []string{"CVE-2019-0003"},
			VulnerableClasses: []models.CodeUnit{
				{Name: "Session", Signature: "Session", Kind: "Class", Lines: models.LineRange{Begin: 1, End: 40}, Vulnerable: "Yes"},
			},
			NeutralClasses: []models.CodeUnit{
				{Name: "Session", Signature: "Session", Kind: "Class", Lines: models.LineRange{Begin: 1, End: 42}, Vulnerable: "No"},
			},
		},
	}
}

func newBuilderFixture(t *testing.T, startAtIndex int) (*Builder, *output.TimelineTable) {
	t.Helper()

	graph := &fakeTimelineGraph{
		first: "c0",
		tags:  map[string]string{"c0": "undefined", "n1": "v1.1", "v2": "v1.1", "n3": "v1.2"},
		dates: map[string]string{
			"c0": "2018-12-01 10:00:00",
			"v1": "2019-01-01 10:00:00",
			"n1": "2019-01-02 10:00:00",
			"v2": "2019-02-01 10:00:00",
			"n2": "2019-02-02 10:00:00",
			"v3": "2019-03-01 10:00:00",
			"n3": "2019-03-02 10:00:00",
		},
		changes: map[string][]git.FileChange{
			"c0:v1": {
				{Path: "f.c", FromRanges: nil, ToRanges: []models.LineRange{{Begin: 5, End: 9}}},
				{Path: "other.c", FromRanges: []models.LineRange{{Begin: 1, End: 3}}, ToRanges: []models.LineRange{{Begin: 1, End: 4}}},
			},
			"v1:n1": {
				{Path: "f.c", FromRanges: []models.LineRange{{Begin: 5, End: 9}}, ToRanges: []models.LineRange{{Begin: 5, End: 10}}},
			},
			"n1:v2": {
				{Path: "g.c", FromRanges: nil, ToRanges: []models.LineRange{{Begin: 12, End: 20}}},
				{Path: "other.c", FromRanges: []models.LineRange{{Begin: 1, End: 4}}, ToRanges: []models.LineRange{{Begin: 1, End: 6}}},
			},
			"v2:n2": {
				{Path: "g.c", FromRanges: []models.LineRange{{Begin: 12, End: 20}}, ToRanges: []models.LineRange{{Begin: 12, End: 22}}},
			},
			"n2:v3": {
				{Path: "h.cpp", FromRanges: nil, ToRanges: []models.LineRange{{Begin: 1, End: 40}}},
			},
			"v3:n3": {
				{Path: "h.cpp", FromRanges: []models.LineRange{{Begin: 1, End: 40}}, ToRanges: []models.LineRange{{Begin: 1, End: 42}}},
			},
		},
	}

	table := output.NewTimelineTable(filepath.Join(t.TempDir(), "timeline.csv"))
	return NewBuilder(graph, table, startAtIndex, 10, silentLogger()), table
}

func TestBuilderRun(t *testing.T) {
	builder, table := newBuilderFixture(t, -1)

	err := builder.Run(context.Background(), timelineRows())
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 8)

	t.Run("files repaired at the destination are skipped", func(t *testing.T) {
		assert.Equal(t, "other.c", entries[0].FilePath)
		assert.Equal(t, 0, entries[0].TopologicalIndex)
		assert.False(t, entries[0].Affected)
		assert.False(t, entries[0].Vulnerable)
		assert.Equal(t, "c0", entries[0].CommitHash)
		assert.Empty(t, entries[0].CVEs)
	})

	t.Run("vulnerable side carries the affected row units", func(t *testing.T) {
		assert.Equal(t, &models.TimelineEntry{
			FilePath:         "f.c",
			TopologicalIndex: 1,
			Affected:         true,
			Vulnerable:       true,
			CommitHash:       "v1",
			TagName:          "undefined",
			AuthorDate:       "2019-01-01 10:00:00",
			ChangedLines:     []models.LineRange{{Begin: 5, End: 9}},
			AffectedFunctions: []models.CodeUnit{
				{Name: "parse", Signature: "parse(buf_t *b)", Lines: models.LineRange{Begin: 5, End: 9}, Vulnerable: "Yes"},
			},
			CVEs: []string{"CVE-2019-0001"},
		}, entries[1])
	})

	t.Run("neutral side is paired with the vulnerable one", func(t *testing.T) {
		assert.Equal(t, &models.TimelineEntry{
			FilePath:         "f.c",
			TopologicalIndex: 2,
			Affected:         true,
			Vulnerable:       false,
			CommitHash:       "n1",
			TagName:          "v1.1",
			AuthorDate:       "2019-01-02 10:00:00",
			ChangedLines:     []models.LineRange{{Begin: 5, End: 10}},
			AffectedFunctions: []models.CodeUnit{
				{Name: "parse", Signature: "parse(buf_t *b)", Lines: models.LineRange{Begin: 5, End: 10}, Vulnerable: "No"},
			},
			CVEs: []string{"CVE-2019-0001"},
		}, entries[2])
	})

	t.Run("unrelated changes between checkpoints stay unaffected", func(t *testing.T) {
		assert.Equal(t, "other.c", entries[3].FilePath)
		assert.Equal(t, 2, entries[3].TopologicalIndex)
		assert.False(t, entries[3].Affected)
		assert.Equal(t, "n1", entries[3].CommitHash)
	})

	t.Run("every commit pair gets its own checkpoint positions", func(t *testing.T) {
		assert.Equal(t, 3, entries[4].TopologicalIndex)
		assert.Equal(t, 4, entries[5].TopologicalIndex)
		assert.Equal(t, 5, entries[6].TopologicalIndex)
		assert.Equal(t, 6, entries[7].TopologicalIndex)
		assert.Equal(t, "h.cpp", entries[7].FilePath)
		assert.Equal(t, []models.CodeUnit{
			{Name: "Session", Signature: "Session", Kind: "Class", Lines: models.LineRange{Begin: 1, End: 42}, Vulnerable: "No"},
		}, entries[7].AffectedClasses)
	})

	t.Run("table is written to disk", func(t *testing.T) {
		reread, err := output.ReadTimeline(table.Path())
		require.NoError(t, err)
		require.Len(t, reread, 8)
		assert.Equal(t, entries[1], reread[1])
	})
}

func TestBuilderStartAtIndex(t *testing.T) {
	builder, table := newBuilderFixture(t, 5)

	err := builder.Run(context.Background(), timelineRows())
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "h.cpp", entries[0].FilePath)
	assert.Equal(t, 5, entries[0].TopologicalIndex)
	assert.Equal(t, 6, entries[1].TopologicalIndex)
}

func TestBuilderMissingAffectedRow(t *testing.T) {
	graph := &fakeTimelineGraph{
		first: "c0",
		tags:  map[string]string{},
		dates: map[string]string{"c0": "2018-12-01 10:00:00"},
		changes: map[string][]git.FileChange{
			"v1:n1": {
				{Path: "mystery.c", FromRanges: []models.LineRange{{Begin: 7, End: 7}}, ToRanges: []models.LineRange{{Begin: 7, End: 8}}},
			},
		},
	}
	table := output.NewTimelineTable(filepath.Join(t.TempDir(), "timeline.csv"))
	builder := NewBuilder(graph, table, -1, 10, silentLogger())

	err := builder.Run(context.Background(), timelineRows()[:1])
	require.NoError(t, err)

	entries := table.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "mystery.c", entries[0].FilePath)
	assert.True(t, entries[0].Vulnerable)
	assert.Nil(t, entries[0].AffectedFunctions)
	assert.Nil(t, entries[0].AffectedClasses)
	assert.Equal(t, []string{"CVE-2019-0001"}, entries[0].CVEs)
	assert.False(t, entries[1].Vulnerable)
	assert.Nil(t, entries[1].AffectedFunctions)
}

func TestDeduplicate(t *testing.T) {
	first := &models.TimelineEntry{FilePath: "f.c", TopologicalIndex: 2, Affected: true, CommitHash: "n1"}
	duplicate := &models.TimelineEntry{FilePath: "f.c", TopologicalIndex: 2, Affected: true, CommitHash: "n1", TagName: "v1.1"}
	neutral := &models.TimelineEntry{FilePath: "f.c", TopologicalIndex: 2, Affected: false, CommitHash: "n1"}

	kept := deduplicate([]*models.TimelineEntry{first, duplicate, neutral})

	require.Len(t, kept, 2)
	assert.Same(t, first, kept[0])
	assert.Same(t, neutral, kept[1])
}

func TestCorrectConsecutive(t *testing.T) {
	builder := &Builder{log: silentLogger()}

	entries := func() []*models.TimelineEntry {
		return []*models.TimelineEntry{
			{FilePath: "f.c", TopologicalIndex: 1, Affected: true, Vulnerable: true, CommitHash: "v1", CVEs: []string{"CVE-2019-0001"}},
			{FilePath: "h.c", TopologicalIndex: 2, Affected: false, Vulnerable: false, CommitHash: "n1"},
			{FilePath: "f.c", TopologicalIndex: 2, Affected: true, Vulnerable: false, CommitHash: "n1", CVEs: []string{"CVE-2019-0001", "CVE-2019-0002"}},
			{FilePath: "f.c", TopologicalIndex: 3, Affected: true, Vulnerable: true, CommitHash: "n1", CVEs: []string{"CVE-2019-0002"}},
			{FilePath: "g.c", TopologicalIndex: 3, Affected: true, Vulnerable: true, CommitHash: "n1", CVEs: []string{"CVE-2019-0002"}},
		}
	}

	t.Run("intersecting CVEs delete the neutral rows", func(t *testing.T) {
		input := entries()
		kept := builder.correctConsecutive(input)

		require.Len(t, kept, 4)
		assert.Same(t, input[0], kept[0])
		assert.Same(t, input[1], kept[1])
		assert.Same(t, input[3], kept[2])
		assert.Same(t, input[4], kept[3])
	})

	t.Run("disjoint CVEs are left alone", func(t *testing.T) {
		input := entries()
		input[2].CVEs = []string{"CVE-2019-0009"}
		kept := builder.correctConsecutive(input)
		assert.Len(t, kept, 5)
	})

	t.Run("rows of other files at the neutral position survive", func(t *testing.T) {
		input := entries()
		kept := builder.correctConsecutive(input)
		assert.Equal(t, "h.c", kept[1].FilePath)
	})
}
