// Package main provides the sok CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/config"
	"github.com/blochberger/sokman/internal/importer"
	"github.com/blochberger/sokman/internal/s2"
	"github.com/blochberger/sokman/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// A .env file may carry S2_API_KEY; absence is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, importer.ErrAborted) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Aborted.")
			os.Exit(ExitAborted)
		}
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sok",
	Short: "Literature review bookkeeping",
	Long: `sok keeps the books of a systematic literature review.

Core features:
  - Import publications from the DBLP dump or the DBLP search API
  - Snowball over the Semantic Scholar citation graph
  - Durable decision caches, so rejected candidates are never re-prompted
  - Topical tags with an implies hierarchy and transitive closure
  - Graphviz exports of the citation graph and the tag DAG

State lives in a .sokman directory holding a SQLite database, the
repository config and the decision caches.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}

// mustFindRepository finds the enclosing sok repository, exits on error.
// Returns the repository root path.
func mustFindRepository() string {
	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}

	root, err := config.FindRepository(cwd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Not in a sok repository. Run 'sok init' first.")
		os.Exit(ExitConfigError)
	}
	return root
}

// mustOpenStore opens the repository database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenStore(root string) *store.DB {
	db, err := store.Open(config.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustLoadConfig loads the repository configuration, exits on error.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustDumpPath resolves the DBLP dump location from the repository or
// global config, exits if neither names one.
func mustDumpPath(cfg *config.Config) string {
	if cfg.DumpPath != "" {
		return cfg.DumpPath
	}
	if path := config.GetGlobalDumpPath(); path != "" {
		return path
	}
	exitWithError(ExitConfigError,
		"no DBLP dump configured; set dump_path in %s", config.ConfigFile)
	return ""
}

// newS2Client builds a Semantic Scholar client. The S2_API_KEY environment
// variable wins over the global config.
func newS2Client() *s2.Client {
	var opts []s2.ClientOption
	if os.Getenv("S2_API_KEY") == "" {
		if key := config.GetS2APIKey(); key != "" {
			opts = append(opts, s2.WithAPIKey(key))
		}
	}
	return s2.NewClient(opts...)
}

// newConsole wires curator interaction to the process streams.
func newConsole() *importer.Console {
	return importer.NewConsole(os.Stdin, os.Stdout, os.Stderr)
}
