package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lmarques/vulnhist/internal/config"
	"github.com/lmarques/vulnhist/internal/output"
	"github.com/lmarques/vulnhist/internal/timeline"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Expand the affected-file tables into per-file timelines",
	Long: `Build the file-timeline table of each project: every source file that
changed between consecutive vulnerable and neutral checkpoints, with
the affected code units at the checkpoints where the file carried a
flaw.

Every affected-files table of the project is processed; each produces
a file-timeline table carrying the same name suffix. Set
timeline.start_at_index to resume from a later checkpoint pair.`,
	RunE: runTimeline,
}

func runTimeline(cmd *cobra.Command, args []string) error {
	return forEachProject(func(project config.Project) error {
		tables, err := findInputTables(project, output.PrefixAffectedFiles)
		if err != nil {
			return err
		}

		repo, err := openRepository(project)
		if err != nil {
			return err
		}
		green := color.New(color.FgGreen)

		for _, inputPath := range tables {
			rows, err := output.ReadAffected(inputPath)
			if err != nil {
				return err
			}
			logger.Infof("Building the timeline of the project %s from %d affected rows in %q.", project.ShortName, len(rows), inputPath)

			outputPath := output.ReplaceInFilename(inputPath, output.PrefixAffectedFiles, output.PrefixFileTimeline)
			table := output.NewTimelineTable(outputPath)
			builder := timeline.NewBuilder(repo, table, cfg.Timeline.StartAtIndex, cfg.Output.CSVWriteFrequency, logger)

			if err := builder.Run(cmd.Context(), rows); err != nil {
				return err
			}

			green.Printf("%s: %d timeline rows\n", project.ShortName, table.Len())
			color.New(color.Faint).Printf("  %s\n", outputPath)
		}
		return nil
	})
}
