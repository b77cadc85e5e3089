package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/config"
	"github.com/blochberger/sokman/internal/store"
)

var initDumpPath string

func init() {
	initCmd.Flags().StringVar(&initDumpPath, "dump", "", "Path to the DBLP XML dump")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sok repository in the current directory",
	Long: `Create a .sokman directory with an empty database and a default
configuration.

Examples:
  sok init
  sok init --dump ~/data/dblp.xml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	if config.IsRepository(cwd) {
		exitWithError(ExitConfigError, "already a sok repository: %s", config.SokmanPath(cwd))
	}

	if err := os.MkdirAll(config.SokmanPath(cwd), 0755); err != nil {
		return err
	}

	cfg := &config.Config{
		DumpPath:   config.ExpandTilde(initDumpPath),
		SourceName: config.DefaultSourceName,
	}
	if err := cfg.Save(cwd); err != nil {
		return err
	}

	db, err := store.Open(config.DBPath(cwd))
	if err != nil {
		return err
	}
	defer db.Close()

	outputHuman("Initialized empty sok repository in %s", config.SokmanPath(cwd))
	return nil
}
