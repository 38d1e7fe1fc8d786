package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmarques/vulnhist/internal/config"
)

var testProject = config.Project{
	Name:       "Mozilla Firefox",
	ShortName:  "mozilla",
	DatabaseID: 1,
}

func TestTablePath(t *testing.T) {
	namer := NewNamer("/data/output", "20210401212440", false)
	assert.Equal(t,
		filepath.Join("/data/output", "mozilla", "cve-1-mozilla-master-branch-20210401212440.csv"),
		namer.TablePath(testProject, PrefixVulnerabilities))

	allBranches := NewNamer("/data/output", "20210401212440", true)
	assert.Equal(t,
		filepath.Join("/data/output", "mozilla", "affected-files-1-mozilla-all-branches-20210401212440.csv"),
		allBranches.TablePath(testProject, PrefixAffectedFiles))
}

func TestFindTables(t *testing.T) {
	dir := t.TempDir()
	namer := NewNamer(dir, "20210401212440", false)
	require.NoError(t, namer.EnsureProjectDir(testProject))

	older := filepath.Join(namer.ProjectDir(testProject), "cve-1-mozilla-master-branch-20200101000000.csv")
	newer := filepath.Join(namer.ProjectDir(testProject), "cve-1-mozilla-master-branch-20210401212440.csv")
	unrelated := filepath.Join(namer.ProjectDir(testProject), "affected-files-1-mozilla-master-branch-20210401212440.csv")
	otherProject := filepath.Join(namer.ProjectDir(testProject), "cve-2-xen-master-branch-20210401212440.csv")

	for _, path := range []string{newer, older, unrelated, otherProject} {
		require.NoError(t, os.WriteFile(path, []byte("CVE,Git Commit Hashes\n"), 0644))
	}

	assert.Equal(t, []string{older, newer}, namer.FindTables(testProject, PrefixVulnerabilities))
	assert.Equal(t, []string{unrelated}, namer.FindTables(testProject, PrefixAffectedFiles))
	assert.Empty(t, namer.FindTables(testProject, PrefixFileTimeline))
}

func TestReplaceInFilename(t *testing.T) {
	path := filepath.Join("out", "mozilla", "affected-files-1-mozilla-master-branch-20210401212440.csv")
	assert.Equal(t,
		filepath.Join("out", "mozilla", "file-timeline-1-mozilla-master-branch-20210401212440.csv"),
		ReplaceInFilename(path, "affected-files", "file-timeline"))

	// Directory names never change, only the file name does
	nested := filepath.Join("affected-files", "affected-files-1-mozilla-master-branch-1.csv")
	assert.Equal(t,
		filepath.Join("affected-files", "neutral-commits-1-mozilla-master-branch-1.csv"),
		ReplaceInFilename(nested, "affected-files", "neutral-commits"))
}
