package output

import "github.com/lmarques/vulnhist/internal/models"

// FixAffectedNeutralStatus rewrites an affected-file table so that
// every neutral side code unit reports Vulnerable "No". Returns the
// number of corrected units.
func FixAffectedNeutralStatus(path string) (int, error) {
	rows, err := ReadAffected(path)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, row := range rows {
		fixed += clearVulnerableFlags(row.NeutralFunctions)
		fixed += clearVulnerableFlags(row.NeutralClasses)
	}

	if err := WriteAffected(path, rows); err != nil {
		return fixed, err
	}
	return fixed, nil
}

// FixTimelineNeutralStatus rewrites a file-timeline table so that the
// unit lists of neutral rows report Vulnerable "No". Returns the
// number of corrected units.
func FixTimelineNeutralStatus(path string) (int, error) {
	entries, err := ReadTimeline(path)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, entry := range entries {
		if entry.Affected && !entry.Vulnerable {
			fixed += clearVulnerableFlags(entry.AffectedFunctions)
			fixed += clearVulnerableFlags(entry.AffectedClasses)
		}
	}

	if err := WriteTimeline(path, entries); err != nil {
		return fixed, err
	}
	return fixed, nil
}

// clearVulnerableFlags flips Yes units to No in place.
func clearVulnerableFlags(units []models.CodeUnit) int {
	fixed := 0
	for i := range units {
		if units[i].Vulnerable == "Yes" {
			units[i].Vulnerable = "No"
			fixed++
		}
	}
	return fixed
}
