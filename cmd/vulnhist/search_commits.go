package main

import (
	"context"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lmarques/vulnhist/internal/config"
	"github.com/lmarques/vulnhist/internal/git"
	"github.com/lmarques/vulnhist/internal/output"
	"github.com/lmarques/vulnhist/internal/vendors"
)

var searchCommitsCmd = &cobra.Command{
	Use:   "search-commits",
	Short: "Search the git log for commits that fix known vulnerabilities",
	Long: `Search each project's git log for commit messages matching its vendor
profile (bug or advisory identifiers) and merge the hits into the
vulnerability list. Short input hashes are expanded to their full
form. Hashes that do not exist in the repository are dropped, and so
are hashes outside the master branch unless search.all_branches is
set.

The newest cve table of each project is read and an updated one is
written next to it.`,
	RunE: runSearchCommits,
}

func runSearchCommits(cmd *cobra.Command, args []string) error {
	return forEachProject(func(project config.Project) error {
		tables, err := findInputTables(project, output.PrefixVulnerabilities)
		if err != nil {
			return err
		}
		inputPath := tables[len(tables)-1]

		vulnerabilities, err := output.ReadVulnerabilities(inputPath)
		if err != nil {
			return err
		}
		logger.Infof("Searching fix commits for %d vulnerabilities of the project %s using %q.", len(vulnerabilities), project.ShortName, inputPath)

		ctx := cmd.Context()
		repo, err := openRepository(project)
		if err != nil {
			return err
		}
		profile := vendors.ForName(project.Vendor, logger)

		total := 0
		for i := range vulnerabilities {
			vulnerability := &vulnerabilities[i]

			hashes := vulnerability.CommitHashes
			for _, pattern := range profile.VCSPatterns(*vulnerability) {
				hashes = append(hashes, repo.SearchMessages(ctx, pattern)...)
			}
			hashes = resolveHashes(ctx, repo, hashes)
			vulnerability.CommitHashes = filterHashes(ctx, repo, dedupeHashes(hashes))
			total += len(vulnerability.CommitHashes)
		}

		outputPath := namer.TablePath(project, output.PrefixVulnerabilities)
		if err := output.WriteVulnerabilities(outputPath, vulnerabilities); err != nil {
			return err
		}

		green := color.New(color.FgGreen)
		green.Printf("%s: %d fix commits across %d vulnerabilities\n", project.ShortName, total, len(vulnerabilities))
		color.New(color.Faint).Printf("  %s\n", outputPath)
		return nil
	})
}

const fullHashLength = 40

// resolveHashes expands abbreviated hashes to their full form, so a
// short input hash and a search hit for the same commit deduplicate.
// Hashes that cannot be resolved are kept for the validity filter.
func resolveHashes(ctx context.Context, repo *git.Repository, hashes []string) []string {
	resolved := make([]string, 0, len(hashes))
	for _, hash := range hashes {
		if len(hash) < fullHashLength {
			if full := repo.ResolveFullHash(ctx, hash); full != "" {
				hash = full
			}
		}
		resolved = append(resolved, hash)
	}
	return resolved
}

// dedupeHashes drops duplicate hashes, keeping the first occurrence.
func dedupeHashes(hashes []string) []string {
	seen := make(map[string]bool, len(hashes))
	var kept []string
	for _, hash := range hashes {
		if seen[hash] {
			continue
		}
		seen[hash] = true
		kept = append(kept, hash)
	}
	return kept
}

// filterHashes drops hashes unknown to the repository and, unless all
// branches are searched, hashes outside the master branch.
func filterHashes(ctx context.Context, repo *git.Repository, hashes []string) []string {
	var kept []string
	for _, hash := range hashes {
		if !repo.IsHashValid(ctx, hash) {
			logger.Warnf("Dropping the unknown commit hash %s.", hash)
			continue
		}
		if !cfg.Search.AllBranches && !repo.InMasterBranch(ctx, hash) {
			logger.Infof("Dropping the commit %s outside the branch %s.", hash, repo.MasterBranch())
			continue
		}
		kept = append(kept, hash)
	}
	return kept
}
