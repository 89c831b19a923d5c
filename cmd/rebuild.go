package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"booksearch/internal/catalog"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from the catalog",
	Long: `Discard the current index and build a new one from every book in the
catalog database. The index is rebuilt automatically when it is missing or
corrupt; use this after editing the database by other means.

Example:
  booksearch rebuild`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	idx, store, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := idx.Rebuild(cmd.Context(), catalog.ReasonManual); err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	st, err := idx.Stats(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Rebuilt index: %d books, %d entries, depth %d\n", st.Books, st.Nodes, st.Depth)
	fmt.Printf("Saved to %s\n", st.Path)
	return nil
}
