package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"booksearch/internal/models"
)

var (
	addAuthor string
	addYear   int
	addISBN   string
	addFrom   string
)

var addCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Add books to the catalog and index",
	Long: `Add a book to the catalog. Its title and author are indexed immediately.

With --from, books are read from a CSV file instead, one per row:
  title,author,year,isbn
Only the title column is required. A header row starting with "title" is
skipped.

Example:
  booksearch add "The Hobbit" --author Tolkien --year 1937
  booksearch add --from books.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addAuthor, "author", "a", "", "Author name")
	addCmd.Flags().IntVarP(&addYear, "year", "y", 0, "Year of publication")
	addCmd.Flags().StringVar(&addISBN, "isbn", "", "ISBN")
	addCmd.Flags().StringVar(&addFrom, "from", "", "Import books from a CSV file")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	var books []*models.Book
	switch {
	case addFrom != "" && len(args) > 0:
		return errors.New("give either a title or --from, not both")
	case addFrom != "":
		f, err := os.Open(addFrom)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", addFrom, err)
		}
		books, err = readBooksCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", addFrom, err)
		}
	case len(args) == 1:
		books = []*models.Book{{Title: args[0], Author: addAuthor, Published: addYear, ISBN: addISBN}}
	default:
		return errors.New("a title or --from is required")
	}

	idx, store, err := openIndex(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	for _, b := range books {
		if err := cmd.Context().Err(); err != nil {
			idx.Close()
			return err
		}
		if err := idx.Add(cmd.Context(), b); err != nil {
			idx.Close()
			return fmt.Errorf("failed to add %q: %w", b.Title, err)
		}
		if len(books) == 1 {
			fmt.Printf("Added #%d %s\n", b.ID, formatBook(b))
		}
	}
	if len(books) > 1 {
		fmt.Printf("Added %d books\n", len(books))
	}

	return idx.Close()
}

// readBooksCSV parses title,author,year,isbn rows
func readBooksCSV(r io.Reader) ([]*models.Book, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var books []*models.Book
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if row == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			return nil, fmt.Errorf("row %d: missing title", row)
		}

		b := &models.Book{Title: strings.TrimSpace(rec[0])}
		if len(rec) > 1 {
			b.Author = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			year, err := strconv.Atoi(strings.TrimSpace(rec[2]))
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid year %q", row, rec[2])
			}
			b.Published = year
		}
		if len(rec) > 3 {
			b.ISBN = strings.TrimSpace(rec[3])
		}
		books = append(books, b)
	}
	return books, nil
}

func formatBook(b *models.Book) string {
	s := b.Title
	if b.Author != "" {
		s += " by " + b.Author
	}
	if b.Published != 0 {
		s += fmt.Sprintf(" (%d)", b.Published)
	}
	return s
}
