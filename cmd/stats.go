package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog and index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	idx, store, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	defer idx.Close()

	st, err := idx.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	fmt.Printf("Catalog:  %s\n", store.Path())
	fmt.Printf("Index:    %s\n", st.Path)
	fmt.Printf("Books:    %d\n", st.Books)
	fmt.Printf("Entries:  %d\n", st.Nodes)
	fmt.Printf("Depth:    %d\n", st.Depth)
	if st.LastRebuild != nil {
		fmt.Printf("Rebuilt:  %s (%s, %d books)\n",
			st.LastRebuild.RebuiltAt.Format("2006-01-02 15:04:05"), st.LastRebuild.Reason, st.LastRebuild.Books)
	}
	return nil
}
