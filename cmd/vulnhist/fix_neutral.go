package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lmarques/vulnhist/internal/config"
	"github.com/lmarques/vulnhist/internal/output"
)

var fixNeutralStatusCmd = &cobra.Command{
	Use:   "fix-neutral-status",
	Short: "Normalize the vulnerable status of neutral code units",
	Long: `Rewrite every affected-files and file-timeline table in place so that
no code unit on a neutral side is still marked vulnerable. Earlier
table versions may carry Yes in neutral unit cells; after this command
every neutral unit reads No.`,
	RunE: runFixNeutralStatus,
}

func runFixNeutralStatus(cmd *cobra.Command, args []string) error {
	return forEachProject(func(project config.Project) error {
		green := color.New(color.FgGreen)
		faint := color.New(color.Faint)

		affectedTables := namer.FindTables(project, output.PrefixAffectedFiles)
		for _, path := range affectedTables {
			fixed, err := output.FixAffectedNeutralStatus(path)
			if err != nil {
				return err
			}
			logger.Infof("Fixed %d neutral units in %q.", fixed, path)
			green.Printf("%s: fixed %d neutral units\n", project.ShortName, fixed)
			faint.Printf("  %s\n", path)
		}

		timelineTables := namer.FindTables(project, output.PrefixFileTimeline)
		for _, path := range timelineTables {
			fixed, err := output.FixTimelineNeutralStatus(path)
			if err != nil {
				return err
			}
			logger.Infof("Fixed %d neutral units in %q.", fixed, path)
			green.Printf("%s: fixed %d neutral units\n", project.ShortName, fixed)
			faint.Printf("  %s\n", path)
		}

		if len(affectedTables) == 0 && len(timelineTables) == 0 {
			logger.Warnf("No tables found for the project %s.", project.ShortName)
		}
		return nil
	})
}
