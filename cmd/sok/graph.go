package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/graph"
)

var (
	graphMinCitations int
	graphUseID        bool

	graphTagsRoot        string
	graphTagsPublication string
	graphTagsMaxDepth    int
	graphTagsMinCount    int
)

func init() {
	graphCitationsCmd.Flags().IntVar(&graphMinCitations, "min-citations", 0, "Hide publications with fewer relevant citations")
	graphCitationsCmd.Flags().BoolVar(&graphUseID, "id", false, "Label nodes with database ids instead of cite keys")
	graphCmd.AddCommand(graphCitationsCmd)

	graphTagsCmd.Flags().StringVar(&graphTagsRoot, "root", "", "Export only the subgraph implying this tag")
	graphTagsCmd.Flags().StringVar(&graphTagsPublication, "publication", "", "Export only tags reachable from this publication's cite key")
	graphTagsCmd.Flags().IntVar(&graphTagsMaxDepth, "max-depth", 0, "Bound the traversal depth (0 = unlimited)")
	graphTagsCmd.Flags().IntVar(&graphTagsMinCount, "min-count", 0, "Hide tags with fewer transitive publications")
	graphCmd.AddCommand(graphTagsCmd)

	rootCmd.AddCommand(graphCmd)
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export graphs in graphviz format",
}

var graphCitationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "Export the citation graph between primary publications",
	Long: `Write the citation graph to stdout in graphviz format. Only
primary publications appear; cycle diagnostics go to stderr.

Examples:
  sok graph citations | dot -Tpdf -o citations.pdf
  sok graph citations --min-citations 2`,
	Args: cobra.NoArgs,
	RunE: runGraphCitations,
}

func runGraphCitations(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	return graph.WriteCitationGraph(os.Stdout, db, graph.CitationGraphOptions{
		MinCitations: graphMinCitations,
		UseID:        graphUseID,
		Warnf:        outputWarning,
	})
}

var graphTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Export the tag hierarchy",
	Long: `Write the tag DAG to stdout in graphviz format. Edges point from
the more specific tag to the more general tag it implies. Cycle
diagnostics go to stderr.

Examples:
  sok graph tags | dot -Tpdf -o tags.pdf
  sok graph tags --root "API Misuse" --max-depth 2
  sok graph tags --publication DBLP:conf/ccs/Example19`,
	Args: cobra.NoArgs,
	RunE: runGraphTags,
}

func runGraphTags(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	db := mustOpenStore(repoRoot)
	defer db.Close()

	opts := graph.TagGraphOptions{
		MaxDepth: graphTagsMaxDepth,
		MinCount: graphTagsMinCount,
		Warnf:    outputWarning,
	}

	if graphTagsRoot != "" {
		tag, err := db.FindTag(graphTagsRoot)
		if err != nil {
			return err
		}
		opts.Root = &tag
	}

	if graphTagsPublication != "" {
		publication, err := db.PublicationByCiteKey(graphTagsPublication)
		if err != nil {
			return err
		}
		opts.PublicationID = &publication.ID
	}

	return graph.WriteTagGraph(os.Stdout, db, opts)
}
