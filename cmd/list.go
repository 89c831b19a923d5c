package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"booksearch/internal/models"
	"booksearch/internal/storage"
)

var (
	listJSON   bool
	listLimit  int
	listOffset int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogued books",
	Long: `Display the books in the catalog in the order they were added.

Example:
  booksearch list              # Show first 20 books (default)
  booksearch list -n 0         # Show all books
  booksearch list --offset 20  # Books 21-40`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "Limit number of books to display (0 = all)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Skip first N books (for pagination)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := storage.NewStorage(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	books, err := store.AllBooks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get books: %w", err)
	}

	if len(books) == 0 && !listJSON {
		fmt.Println("The catalog is empty.")
		fmt.Println("Run 'booksearch add <title> --author <name>' to add a book.")
		return nil
	}

	// Apply pagination
	totalBooks := len(books)
	startIdx := min(max(listOffset, 0), len(books))
	books = books[startIdx:]

	if listLimit > 0 && listLimit < len(books) {
		books = books[:listLimit]
	}

	if listJSON {
		if books == nil {
			books = []*models.Book{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(books)
	}

	if len(books) == 0 {
		fmt.Printf("No books in range (offset %d exceeds total %d)\n", listOffset, totalBooks)
		return nil
	}
	printBookTable(books)

	// Show pagination info
	endIdx := startIdx + len(books)
	fmt.Printf("Showing books %d-%d of %d\n", startIdx+1, endIdx, totalBooks)
	if endIdx < totalBooks {
		limitArg := ""
		if listLimit > 0 {
			limitArg = fmt.Sprintf(" -n %d", listLimit)
		}
		fmt.Printf("Next page: booksearch list%s --offset %d\n", limitArg, endIdx)
	}

	return nil
}

func printBookTable(books []*models.Book) {
	fmt.Printf("%-6s  %-40s  %-24s  %s\n", "ID", "Title", "Author", "Year")
	fmt.Println(strings.Repeat("-", 80))

	for _, b := range books {
		year := ""
		if b.Published != 0 {
			year = fmt.Sprint(b.Published)
		}
		fmt.Printf("#%-5d  %-40s  %-24s  %s\n", b.ID, shorten(b.Title, 40), shorten(b.Author, 24), year)
	}
	fmt.Println()
}

// shorten truncates s to maxLen runes, marking the cut with "..."
func shorten(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-3]) + "..."
}
