package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dumpOut      string
	dumpCompress bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write the index in its text format",
	Long: `Write the index in its text format, to stdout or to a file.

Each line holds one entry: the root first as "identifier;refs", then every
other entry as "path;identifier;refs" in insertion order. Author names carry
a leading @.

Example:
  booksearch dump | less
  booksearch dump --out backup.txt.gz --compress`,
	Args: cobra.NoArgs,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().StringVarP(&dumpOut, "out", "o", "", "Write to a file instead of stdout")
	dumpCmd.Flags().BoolVar(&dumpCompress, "compress", false, "Gzip the output file")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	if dumpCompress && dumpOut == "" {
		return fmt.Errorf("--compress needs --out")
	}

	idx, store, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	defer idx.Close()

	if dumpOut == "" {
		return idx.Encode(os.Stdout)
	}

	if err := idx.Export(dumpOut, dumpCompress); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", dumpOut)
	return nil
}
