package main

import (
	"github.com/spf13/cobra"

	"github.com/blochberger/sokman/internal/graph"
	"github.com/blochberger/sokman/internal/store"
)

func init() {
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagMergeCmd)
	tagCmd.AddCommand(tagImplyCmd)
	rootCmd.AddCommand(tagCmd)
}

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage the tag hierarchy",
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with their transitive publication counts",
	Args:  cobra.NoArgs,
	RunE:  runTagList,
}

func runTagList(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	tags, err := db.Tags()
	if err != nil {
		return err
	}

	memo := graph.NewClosureMemo()
	for _, tag := range tags {
		count, err := graph.TransitiveCount(db, tag.ID, memo, outputWarning)
		if err != nil {
			return err
		}
		outputHuman("%4d  %s (%d)", tag.ID, tag.Name, count)
	}
	return nil
}

var tagMergeCmd = &cobra.Command{
	Use:   "merge lhs rhs",
	Short: "Merge all assignments of tag rhs into tag lhs",
	Long: `Merge tag rhs into tag lhs: every publication tagged rhs gets
tagged lhs instead, differing comments are concatenated. Tags may be given
by id, exact name or a unique name fragment.

Examples:
  sok tag merge "TLS" "SSL"`,
	Args: cobra.ExactArgs(2),
	RunE: runTagMerge,
}

func runTagMerge(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	lhs, err := db.FindTag(args[0])
	if err != nil {
		return err
	}
	rhs, err := db.FindTag(args[1])
	if err != nil {
		return err
	}
	if lhs.ID == rhs.ID {
		exitWithError(ExitError, "cannot merge tag with itself: %s", lhs.Name)
	}

	var results []store.TagMergeResult
	err = db.WithTx(func(tx *store.DB) error {
		var err error
		results, err = tx.MergeTags(lhs.ID, rhs.ID)
		return err
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Comment != nil {
			outputHuman("%s <- %s [%s]: %s", lhs.Name, rhs.Name, result.Publication.CiteKey, *result.Comment)
		} else {
			outputHuman("%s <- %s [%s]", lhs.Name, rhs.Name, result.Publication.CiteKey)
		}
	}
	return nil
}

var tagImplyCmd = &cobra.Command{
	Use:   "imply tag implied",
	Short: "Record that a tag entails a more general tag",
	Long: `Record that the first tag is a specialization of the second: every
publication carrying the first tag counts towards the second's transitive
publication set.

Examples:
  sok tag imply "certificate pinning" "TLS"`,
	Args: cobra.ExactArgs(2),
	RunE: runTagImply,
}

func runTagImply(cmd *cobra.Command, args []string) error {
	root := mustFindRepository()
	db := mustOpenStore(root)
	defer db.Close()

	tag, err := db.FindTag(args[0])
	if err != nil {
		return err
	}
	implied, err := db.FindTag(args[1])
	if err != nil {
		return err
	}

	created, err := db.ImplyTag(tag.ID, implied.ID)
	if err != nil {
		return err
	}
	if created {
		outputHuman("'%s' now implies '%s'", tag.Name, implied.Name)
	} else {
		outputHuman("'%s' already implies '%s'", tag.Name, implied.Name)
	}
	return nil
}
