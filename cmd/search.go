package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"booksearch/internal/bktree"
	"booksearch/internal/catalog"
	"booksearch/internal/models"
)

var (
	searchTolerance int
	searchLimit     int
	searchJSON      bool
	searchRaw       bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>...",
	Short: "Find books by approximate title or author",
	Long: `Search the index for titles and authors within an edit distance of each
query. Matching is case-insensitive. Prefix a query with @ for an author.

Without --tolerance the configured policy picks one from the query length
(by default 70% of its length, at least 1).

Example:
  booksearch search @toolkien
  booksearch search "lord of the rigns" -t 3
  booksearch search dune emma --json
  booksearch search dune --raw          # Index entries instead of books`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTolerance, "tolerance", "t", -1, "Maximum edit distance (-1 = from policy)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", -1, "Maximum hits per query (0 = all, -1 = from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output in JSON format")
	searchCmd.Flags().BoolVar(&searchRaw, "raw", false, "Show matching index entries instead of books")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	idx, store, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	defer idx.Close()

	if searchRaw {
		return printRaw(idx, args)
	}

	limit := cfg.Search.Limit
	if searchLimit >= 0 {
		limit = searchLimit
	}

	s := catalog.NewSearcher(idx,
		catalog.WithWorkers(cfg.Search.Workers),
		catalog.WithLimit(limit),
	)
	results := s.SearchAll(cmd.Context(), args, searchTolerance)

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	failed := 0
	for _, res := range results {
		printResult(res, len(results) > 1)
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(results))
	}
	return nil
}

func printResult(res *models.QueryResult, heading bool) {
	if heading {
		fmt.Printf("%s (tolerance %d)\n", res.Query, res.Tolerance)
		fmt.Println(strings.Repeat("-", 60))
	}

	switch {
	case res.Err != nil:
		fmt.Printf("  error: %v\n", res.Err)
	case len(res.Hits) == 0:
		fmt.Printf("  No matches within distance %d\n", res.Tolerance)
	default:
		for _, hit := range res.Hits {
			matched := hit.MatchedOn
			if hit.Kind == bktree.KindAuthor.String() {
				matched = bktree.AuthorPrefix + matched
			}
			fmt.Printf("  %2d  #%-5d %s\n", hit.Distance, hit.Book.ID, formatBook(hit.Book))
			if !strings.EqualFold(matched, hit.Book.Title) {
				fmt.Printf("             matched %s\n", matched)
			}
		}
	}

	if heading {
		fmt.Println()
	}
}

func printRaw(idx *catalog.Index, queries []string) error {
	type rawResult struct {
		Query     string         `json:"query"`
		Tolerance int            `json:"tolerance"`
		Matches   []bktree.Match `json:"matches"`
	}

	var out []rawResult
	for _, q := range queries {
		tolerance := searchTolerance
		if tolerance < 0 {
			tolerance = idx.Tolerance(q)
		}
		matches := idx.Search(q, tolerance)
		bktree.SortMatches(matches)
		out = append(out, rawResult{Query: q, Tolerance: tolerance, Matches: matches})
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, r := range out {
		fmt.Printf("%s (tolerance %d): %d entries\n", r.Query, r.Tolerance, len(r.Matches))
		for _, m := range r.Matches {
			fmt.Printf("  %2d  %-40s refs %v\n", m.Distance, bktree.FormatIdentifier(m.Kind, m.Identifier), []uint32(m.Refs))
		}
	}
	return nil
}
