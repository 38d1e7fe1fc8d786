package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lmarques/vulnhist/internal/config"
	"github.com/lmarques/vulnhist/internal/git"
	"github.com/lmarques/vulnhist/internal/logging"
	"github.com/lmarques/vulnhist/internal/output"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile     string
	projectName string

	cfg          *config.Config
	logger       *logrus.Logger
	runTimestamp string
	namer        *output.Namer
)

func main() {
	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if path := logging.FilePath(); path != "" {
			fmt.Fprintf(os.Stderr, "See the log at %s for details.\n", path)
		}
		logging.Close()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vulnhist",
	Short: "Vulnerability history labeling for git repositories",
	Long: `Vulnhist labels the history of C and C++ git repositories with known
vulnerability fixes: which commits were vulnerable, which files they
touched, and which functions and classes carried the flaw. The results
are CSV tables suitable for building supervised datasets.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// config init must run before a configuration file exists
		if cmd == configInitCmd {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		runTimestamp = time.Now().Format("20060102150405")
		logger, err = logging.Setup(logging.Config{
			Level:     cfg.Logging.Level,
			Directory: cfg.Logging.Directory,
			Timestamp: runTimestamp,
		})
		if err != nil {
			return err
		}

		namer = output.NewNamer(cfg.Output.Directory, runTimestamp, cfg.Search.AllBranches)

		logger.WithFields(logrus.Fields{
			"run_id":  uuid.NewString(),
			"version": Version,
			"command": cmd.Name(),
		}).Info("Starting vulnhist.")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .vulnhist/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&projectName, "project", "", "run for a single project instead of every enabled one")

	rootCmd.SetVersionTemplate(`vulnhist {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(searchCommitsCmd)
	rootCmd.AddCommand(findAffectedCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(neutralCommitsCmd)
	rootCmd.AddCommand(fixNeutralStatusCmd)
	rootCmd.AddCommand(configCmd)
}

// forEachProject runs fn over the enabled projects in config order, or
// over the single project selected with --project.
func forEachProject(fn func(project config.Project) error) error {
	projects := cfg.EnabledProjects()
	if projectName != "" {
		project, ok := cfg.FindProject(projectName)
		if !ok {
			return fmt.Errorf("unknown project %q", projectName)
		}
		projects = []config.Project{project}
	}
	if len(projects) == 0 {
		return fmt.Errorf("no enabled projects in the configuration")
	}

	for _, project := range projects {
		if err := namer.EnsureProjectDir(project); err != nil {
			return err
		}
		logger.WithField("project", project.ShortName).Info("Processing the project.")
		if err := fn(project); err != nil {
			return fmt.Errorf("project %s: %w", project.ShortName, err)
		}
	}
	return nil
}

// openRepository wraps the project's working copy.
func openRepository(project config.Project) (*git.Repository, error) {
	masterBranch := project.MasterBranch
	if masterBranch == "" {
		masterBranch = "master"
	}
	return git.NewRepository(project.RepositoryPath, masterBranch, logger)
}

// findInputTables lists the project's tables with the given prefix,
// oldest first.
func findInputTables(project config.Project, prefix string) ([]string, error) {
	tables := namer.FindTables(project, prefix)
	if len(tables) == 0 {
		return nil, fmt.Errorf("no %s table found in %s", prefix, namer.ProjectDir(project))
	}
	return tables, nil
}
