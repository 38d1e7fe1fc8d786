package output

import (
	"fmt"
	"strconv"

	"github.com/lmarques/vulnhist/internal/models"
)

// timelineHeader lists the file-timeline table columns in order.
var timelineHeader = []string{
	"File Path",
	"Topological Index",
	"Affected",
	"Vulnerable",
	"Commit Hash",
	"Tag Name",
	"Author Date",
	"Changed Lines",
	"Affected Functions",
	"Affected Classes",
	"CVEs",
}

// TimelineTable buffers timeline entries and rewrites its backing CSV
// file on every flush.
type TimelineTable struct {
	path    string
	entries []*models.TimelineEntry
}

// NewTimelineTable creates an empty table backed by the given path.
func NewTimelineTable(path string) *TimelineTable {
	return &TimelineTable{path: path}
}

// Append adds an entry to the buffer.
func (t *TimelineTable) Append(entry *models.TimelineEntry) {
	t.entries = append(t.entries, entry)
}

// Entries returns the buffered entries.
func (t *TimelineTable) Entries() []*models.TimelineEntry {
	return t.entries
}

// SetEntries replaces the buffered entries. The deduplication and
// correction passes rebuild the table through this.
func (t *TimelineTable) SetEntries(entries []*models.TimelineEntry) {
	t.entries = entries
}

// Len returns the number of buffered entries.
func (t *TimelineTable) Len() int {
	return len(t.entries)
}

// Path returns the backing file path.
func (t *TimelineTable) Path() string {
	return t.path
}

// Flush truncates the backing file and writes out the whole table.
func (t *TimelineTable) Flush() error {
	return WriteTimeline(t.path, t.entries)
}

// WriteTimeline writes a file-timeline table.
func WriteTimeline(path string, entries []*models.TimelineEntry) error {
	records := make([][]string, 0, len(entries)+1)
	records = append(records, timelineHeader)
	for _, entry := range entries {
		records = append(records, encodeTimelineRow(entry))
	}
	return writeCSV(path, records)
}

// ReadTimeline loads a file-timeline table.
func ReadTimeline(path string) ([]*models.TimelineEntry, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}
	column, err := columnIndex(records[0], timelineHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var entries []*models.TimelineEntry
	for i, record := range records[1:] {
		entry, err := decodeTimelineRow(record, column)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func encodeTimelineRow(entry *models.TimelineEntry) []string {
	return []string{
		entry.FilePath,
		strconv.Itoa(entry.TopologicalIndex),
		yesNo(entry.Affected),
		yesNo(entry.Vulnerable),
		entry.CommitHash,
		entry.TagName,
		entry.AuthorDate,
		marshalCell(entry.ChangedLines),
		marshalCell(entry.AffectedFunctions),
		marshalCell(entry.AffectedClasses),
		marshalCell(entry.CVEs),
	}
}

func decodeTimelineRow(record []string, column map[string]int) (*models.TimelineEntry, error) {
	cell := func(name string) string {
		i := column[name]
		if i >= len(record) {
			return ""
		}
		return record[i]
	}

	topologicalIndex, err := cellInt(cell("Topological Index"))
	if err != nil {
		return nil, fmt.Errorf("bad topological index: %w", err)
	}
	changedLines, err := unmarshalCell[models.LineRange](cell("Changed Lines"))
	if err != nil {
		return nil, fmt.Errorf("bad changed lines: %w", err)
	}
	affectedFunctions, err := unmarshalCell[models.CodeUnit](cell("Affected Functions"))
	if err != nil {
		return nil, fmt.Errorf("bad affected functions: %w", err)
	}
	affectedClasses, err := unmarshalCell[models.CodeUnit](cell("Affected Classes"))
	if err != nil {
		return nil, fmt.Errorf("bad affected classes: %w", err)
	}
	cves, err := unmarshalCell[string](cell("CVEs"))
	if err != nil {
		return nil, fmt.Errorf("bad cves: %w", err)
	}

	return &models.TimelineEntry{
		FilePath:          cell("File Path"),
		TopologicalIndex:  topologicalIndex,
		Affected:          cell("Affected") == "Yes",
		Vulnerable:        cell("Vulnerable") == "Yes",
		CommitHash:        cell("Commit Hash"),
		TagName:           cell("Tag Name"),
		AuthorDate:        cell("Author Date"),
		ChangedLines:      changedLines,
		AffectedFunctions: affectedFunctions,
		AffectedClasses:   affectedClasses,
		CVEs:              cves,
	}, nil
}
