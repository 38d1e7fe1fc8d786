package output

import (
	"fmt"
	"strconv"

	"github.com/lmarques/vulnhist/internal/models"
)

// affectedHeader lists the affected-file table columns in order.
var affectedHeader = []string{
	"File Path",
	"Topological Index",
	"Parent Count",
	"Vulnerable Commit Hash",
	"Vulnerable Tag Name",
	"Vulnerable Author Date",
	"Vulnerable Changed Lines",
	"Vulnerable File Functions",
	"Vulnerable File Classes",
	"Neutral Commit Hash",
	"Neutral Tag Name",
	"Neutral Author Date",
	"Neutral Changed Lines",
	"Neutral File Functions",
	"Neutral File Classes",
	"CVEs",
	"Last Change Commit Hashes",
}

// AffectedTable buffers affected-file rows and rewrites its backing
// CSV file on every flush, so partial results survive a crash.
type AffectedTable struct {
	path string
	rows []*models.AffectedFile
}

// NewAffectedTable creates an empty table backed by the given path.
func NewAffectedTable(path string) *AffectedTable {
	return &AffectedTable{path: path}
}

// Append adds a row to the buffer.
func (t *AffectedTable) Append(row *models.AffectedFile) {
	t.rows = append(t.rows, row)
}

// Rows returns the buffered rows for in-place updates.
func (t *AffectedTable) Rows() []*models.AffectedFile {
	return t.rows
}

// Len returns the number of buffered rows.
func (t *AffectedTable) Len() int {
	return len(t.rows)
}

// Path returns the backing file path.
func (t *AffectedTable) Path() string {
	return t.path
}

// Flush truncates the backing file and writes out the whole table.
func (t *AffectedTable) Flush() error {
	return WriteAffected(t.path, t.rows)
}

// WriteAffected writes an affected-file table.
func WriteAffected(path string, rows []*models.AffectedFile) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, affectedHeader)
	for _, row := range rows {
		records = append(records, encodeAffectedRow(row))
	}
	return writeCSV(path, records)
}

// ReadAffected loads an affected-file table. Columns are matched by
// name, so column order does not matter.
func ReadAffected(path string) ([]*models.AffectedFile, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}
	column, err := columnIndex(records[0], affectedHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows []*models.AffectedFile
	for i, record := range records[1:] {
		row, err := decodeAffectedRow(record, column)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func encodeAffectedRow(row *models.AffectedFile) []string {
	return []string{
		row.FilePath,
		strconv.Itoa(row.TopologicalIndex),
		strconv.Itoa(row.ParentCount),
		row.Vulnerable.Hash,
		row.Vulnerable.TagName,
		row.Vulnerable.AuthorDate,
		marshalCell(row.VulnerableLines),
		marshalCell(row.VulnerableFunctions),
		marshalCell(row.VulnerableClasses),
		row.Neutral.Hash,
		row.Neutral.TagName,
		row.Neutral.AuthorDate,
		marshalCell(row.NeutralLines),
		marshalCell(row.NeutralFunctions),
		marshalCell(row.NeutralClasses),
		marshalCell(row.CVEs),
		marshalCell(row.LastChangeHashes),
	}
}

func decodeAffectedRow(record []string, column map[string]int) (*models.AffectedFile, error) {
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
	parentCount, err := cellInt(cell("Parent Count"))
	if err != nil {
		return nil, fmt.Errorf("bad parent count: %w", err)
	}
	vulnerableLines, err := unmarshalCell[models.LineRange](cell("Vulnerable Changed Lines"))
	if err != nil {
		return nil, fmt.Errorf("bad vulnerable changed lines: %w", err)
	}
	vulnerableFunctions, err := unmarshalCell[models.CodeUnit](cell("Vulnerable File Functions"))
	if err != nil {
		return nil, fmt.Errorf("bad vulnerable file functions: %w", err)
	}
	vulnerableClasses, err := unmarshalCell[models.CodeUnit](cell("Vulnerable File Classes"))
	if err != nil {
		return nil, fmt.Errorf("bad vulnerable file classes: %w", err)
	}
	neutralLines, err := unmarshalCell[models.LineRange](cell("Neutral Changed Lines"))
	if err != nil {
		return nil, fmt.Errorf("bad neutral changed lines: %w", err)
	}
	neutralFunctions, err := unmarshalCell[models.CodeUnit](cell("Neutral File Functions"))
	if err != nil {
		return nil, fmt.Errorf("bad neutral file functions: %w", err)
	}
	neutralClasses, err := unmarshalCell[models.CodeUnit](cell("Neutral File Classes"))
	if err != nil {
		return nil, fmt.Errorf("bad neutral file classes: %w", err)
	}
	cves, err := unmarshalCell[string](cell("CVEs"))
	if err != nil {
		return nil, fmt.Errorf("bad cves: %w", err)
	}
	lastChangeHashes, err := unmarshalCell[string](cell("Last Change Commit Hashes"))
	if err != nil {
		return nil, fmt.Errorf("bad last change commit hashes: %w", err)
	}

	return &models.AffectedFile{
		FilePath:         cell("File Path"),
		TopologicalIndex: topologicalIndex,
		ParentCount:      parentCount,
		Vulnerable: models.CommitRef{
			Hash:             cell("Vulnerable Commit Hash"),
			TopologicalIndex: topologicalIndex,
			TagName:          cell("Vulnerable Tag Name"),
			AuthorDate:       cell("Vulnerable Author Date"),
			Vulnerable:       true,
		},
		Neutral: models.CommitRef{
			Hash:             cell("Neutral Commit Hash"),
			TopologicalIndex: topologicalIndex,
			TagName:          cell("Neutral Tag Name"),
			AuthorDate:       cell("Neutral Author Date"),
		},
		VulnerableLines:     vulnerableLines,
		VulnerableFunctions: vulnerableFunctions,
		VulnerableClasses:   vulnerableClasses,
		NeutralLines:        neutralLines,
		NeutralFunctions:    neutralFunctions,
		NeutralClasses:      neutralClasses,
		CVEs:                cves,
		LastChangeHashes:    lastChangeHashes,
	}, nil
}
