package output

// neutralHeader lists the neutral commit export columns.
var neutralHeader = []string{"commit", "status"}

// WriteNeutralCommits writes the neutral commit export. Each commit is
// labeled with status 0, the not-vulnerable class of the downstream
// data set.
func WriteNeutralCommits(path string, hashes []string) error {
	records := make([][]string, 0, len(hashes)+1)
	records = append(records, neutralHeader)
	for _, hash := range hashes {
		records = append(records, []string{hash, "0"})
	}
	return writeCSV(path, records)
}
