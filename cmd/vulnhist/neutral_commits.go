package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lmarques/vulnhist/internal/config"
	"github.com/lmarques/vulnhist/internal/models"
	"github.com/lmarques/vulnhist/internal/output"
)

var neutralCommitsCmd = &cobra.Command{
	Use:   "neutral-commits",
	Short: "Export the neutral commits inside the configured date window",
	Long: `List the distinct neutral commits of each affected-files table whose
author date falls inside the window set by neutral.after and
neutral.before (inclusive; an empty bound leaves that side open). The
export is a two-column commit/status table with every status 0.`,
	RunE: runNeutralCommits,
}

func runNeutralCommits(cmd *cobra.Command, args []string) error {
	return forEachProject(func(project config.Project) error {
		tables, err := findInputTables(project, output.PrefixAffectedFiles)
		if err != nil {
			return err
		}

		window := fmt.Sprintf("%s-%s-to-%s", output.PrefixNeutralCommits, cfg.Neutral.After, cfg.Neutral.Before)
		green := color.New(color.FgGreen)

		for _, inputPath := range tables {
			rows, err := output.ReadAffected(inputPath)
			if err != nil {
				return err
			}
			logger.Infof("Listing the neutral commits of the project %s in %q.", project.ShortName, inputPath)

			hashes := neutralHashesInWindow(rows, cfg.Neutral.After, cfg.Neutral.Before)
			outputPath := output.ReplaceInFilename(inputPath, output.PrefixAffectedFiles, window)
			if err := output.WriteNeutralCommits(outputPath, hashes); err != nil {
				return err
			}

			green.Printf("%s: %d neutral commits between %q and %q\n", project.ShortName, len(hashes), cfg.Neutral.After, cfg.Neutral.Before)
			color.New(color.Faint).Printf("  %s\n", outputPath)
		}
		return nil
	})
}

// neutralHashesInWindow returns the distinct neutral hashes whose
// author date falls inside the window. Dates compare as strings, which
// matches time order for the YYYY-MM-DD hh:mm:ss format. A date-only
// before bound covers its whole day.
func neutralHashesInWindow(rows []*models.AffectedFile, after, before string) []string {
	seen := make(map[string]bool, len(rows))
	var hashes []string
	for _, row := range rows {
		if seen[row.Neutral.Hash] {
			continue
		}
		seen[row.Neutral.Hash] = true

		date := row.Neutral.AuthorDate
		if after != "" && date < after {
			continue
		}
		if before != "" && date > before && !isSameDayPrefix(date, before) {
			continue
		}
		hashes = append(hashes, row.Neutral.Hash)
	}
	return hashes
}

// isSameDayPrefix reports whether the timestamp falls on the day named
// by a date-only bound.
func isSameDayPrefix(timestamp, bound string) bool {
	return len(bound) == len("2006-01-02") && len(timestamp) > len(bound) && timestamp[:len(bound)] == bound
}
