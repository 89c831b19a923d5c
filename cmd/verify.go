package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"booksearch/internal/bktree"
	"booksearch/internal/codec"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [index-file]",
	Short: "Check an index file for corruption",
	Long: `Decode an index file and check that every entry sits at the recorded
distance from each of its ancestors. The file is only read: unlike the other
commands, a corrupt index is reported rather than moved aside and rebuilt.

Exits non-zero when the file is corrupt.

Example:
  booksearch verify
  booksearch verify backup.txt.gz`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	path := cfg.Index.Path
	if len(args) == 1 {
		path = args[0]
	}

	start := time.Now()
	tree, err := codec.LoadWith(path, codec.DecodeOptions{Verify: true})
	if err != nil {
		var decErr *codec.DecodeError
		var invErr *bktree.InvariantError
		switch {
		case errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("no index at %s", path)
		case errors.As(err, &invErr):
			fmt.Printf("%s: misplaced entry %q at [%s]\n", path, invErr.Identifier, invErr.Path)
			fmt.Printf("  distance to ancestor at depth %d is %d, path says %d\n", invErr.Depth, invErr.Got, invErr.Want)
		case errors.As(err, &decErr) && decErr.Line > 0:
			fmt.Printf("%s: line %d: %v\n", path, decErr.Line, decErr.Err)
		}
		return fmt.Errorf("index is corrupt: %w", err)
	}

	fmt.Printf("%s: OK (%d entries, depth %d, %v)\n", path, tree.Len(), tree.Depth(), time.Since(start).Round(time.Millisecond))
	return nil
}
