// Package output reads and writes the CSV tables that make up the
// data set: the vulnerability list, the affected-file table, the file
// timeline, and the neutral commit export.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Table name prefixes.
const (
	PrefixVulnerabilities = "cve"
	PrefixAffectedFiles   = "affected-files"
	PrefixFileTimeline    = "file-timeline"
	PrefixNeutralCommits  = "neutral-commits"
)

// marshalCell encodes a list cell as JSON. Empty lists become empty
// cells, never "[]".
func marshalCell[T any](values []T) string {
	if len(values) == 0 {
		return ""
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return ""
	}
	return string(encoded)
}

// unmarshalCell decodes a JSON list cell. Empty cells decode to nil.
func unmarshalCell[T any](cell string) ([]T, error) {
	if cell == "" {
		return nil, nil
	}
	var values []T
	if err := json.Unmarshal([]byte(cell), &values); err != nil {
		return nil, err
	}
	return values, nil
}

// yesNo renders a flag as the literal cell value.
func yesNo(flag bool) string {
	if flag {
		return "Yes"
	}
	return "No"
}

// cellInt parses an integer cell, treating the empty cell as zero.
func cellInt(cellValue string) (int, error) {
	if cellValue == "" {
		return 0, nil
	}
	return strconv.Atoi(cellValue)
}

// columnIndex maps column names to their positions in a header row and
// checks that every wanted column is present.
func columnIndex(header, wanted []string) (map[string]int, error) {
	position := make(map[string]int, len(header))
	for i, name := range header {
		position[name] = i
	}
	for _, name := range wanted {
		if _, ok := position[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return position, nil
}

// readCSV loads all records of one CSV file. Rows may have differing
// lengths; missing trailing cells read as empty.
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// writeCSV truncates and rewrites one CSV file.
func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
