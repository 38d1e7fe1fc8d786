package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lmarques/vulnhist/internal/affected"
	"github.com/lmarques/vulnhist/internal/config"
	"github.com/lmarques/vulnhist/internal/output"
	"github.com/lmarques/vulnhist/internal/treesitter"
)

var findAffectedCmd = &cobra.Command{
	Use:   "find-affected",
	Short: "Map fix commits to the files and code units they repaired",
	Long: `Build the affected-file table of each project: for every fix commit in
the vulnerability list, one row per changed source file per parent,
with the functions and classes of both sides of the fix and their
vulnerable status.

Every cve table of the project is processed; each produces an
affected-files table carrying the same name suffix.`,
	RunE: runFindAffected,
}

func runFindAffected(cmd *cobra.Command, args []string) error {
	return forEachProject(func(project config.Project) error {
		tables, err := findInputTables(project, output.PrefixVulnerabilities)
		if err != nil {
			return err
		}

		repo, err := openRepository(project)
		if err != nil {
			return err
		}
		extractor, err := treesitter.NewExtractor(project.Language, logger)
		if err != nil {
			return err
		}
		defer extractor.Close()

		green := color.New(color.FgGreen)
		for _, inputPath := range tables {
			vulnerabilities, err := output.ReadVulnerabilities(inputPath)
			if err != nil {
				return err
			}
			logger.Infof("Finding affected files for %d vulnerabilities of the project %s using %q.", len(vulnerabilities), project.ShortName, inputPath)

			outputPath := output.ReplaceInFilename(inputPath, output.PrefixVulnerabilities, output.PrefixAffectedFiles)
			table := output.NewAffectedTable(outputPath)
			mapper := affected.NewMapper(repo, extractor, table, cfg.Output.CSVWriteFrequency, logger)

			if err := mapper.Run(cmd.Context(), vulnerabilities); err != nil {
				return err
			}

			green.Printf("%s: %d affected file rows\n", project.ShortName, table.Len())
			color.New(color.Faint).Printf("  %s\n", outputPath)
		}
		return nil
	})
}
