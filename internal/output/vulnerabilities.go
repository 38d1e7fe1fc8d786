package output

import (
	"fmt"

	"github.com/lmarques/vulnhist/internal/models"
)

// vulnerabilityHeader lists the vulnerability list columns this tool
// writes. The Bugzilla IDs and Advisory IDs columns are read when
// present because vendor searches key off them.
var vulnerabilityHeader = []string{"CVE", "Git Commit Hashes"}

// ReadVulnerabilities loads a vulnerability list. Rows without a CVE
// are dropped.
func ReadVulnerabilities(path string) ([]models.Vulnerability, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s has no header row", path)
	}
	column, err := columnIndex(records[0], vulnerabilityHeader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var vulnerabilities []models.Vulnerability
	for i, record := range records[1:] {
		cell := func(name string) string {
			pos, ok := column[name]
			if !ok || pos >= len(record) {
				return ""
			}
			return record[pos]
		}

		id := cell("CVE")
		if id == "" {
			continue
		}
		hashes, err := unmarshalCell[string](cell("Git Commit Hashes"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad git commit hashes: %w", path, i+2, err)
		}
		bugIDs, err := unmarshalCell[string](cell("Bugzilla IDs"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad bugzilla ids: %w", path, i+2, err)
		}
		advisoryIDs, err := unmarshalCell[string](cell("Advisory IDs"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad advisory ids: %w", path, i+2, err)
		}

		vulnerabilities = append(vulnerabilities, models.Vulnerability{
			ID:           id,
			CommitHashes: hashes,
			BugIDs:       bugIDs,
			AdvisoryIDs:  advisoryIDs,
		})
	}
	return vulnerabilities, nil
}

// WriteVulnerabilities writes the CVE to fix commit map produced by
// the version control search.
func WriteVulnerabilities(path string, vulnerabilities []models.Vulnerability) error {
	records := make([][]string, 0, len(vulnerabilities)+1)
	records = append(records, vulnerabilityHeader)
	for _, v := range vulnerabilities {
		records = append(records, []string{v.ID, marshalCell(v.CommitHashes)})
	}
	return writeCSV(path, records)
}
