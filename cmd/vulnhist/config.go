package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lmarques/vulnhist/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vulnhist configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s", path)
	}

	defaults := config.Default()
	defaults.Projects = []config.Project{{
		Name:           "Example project",
		ShortName:      "example",
		DatabaseID:     1,
		RepositoryPath: "~/repositories/example",
		MasterBranch:   "master",
		Language:       "c",
		Vendor:         "generic",
		Enabled:        false,
	}}

	if err := defaults.Save(path); err != nil {
		return err
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Edit the projects section and enable the repositories to study.")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(".vulnhist", "config.yaml")
}
