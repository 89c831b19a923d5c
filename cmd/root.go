package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"booksearch/internal/catalog"
	"booksearch/internal/config"
	"booksearch/internal/storage"
)

var (
	cfgPath   string
	dataDir   string
	dbPath    string
	indexPath string
	logLevel  string
	workers   int

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "booksearch",
	Short: "Fuzzy title and author search for a book catalog",
	Long: `booksearch keeps a small book catalog and finds books by approximate title
or author name, so "toolkien" still finds Tolkien.

Titles and authors are kept in a BK-tree over case-insensitive edit distance,
persisted as a plain text file next to the catalog database. A missing or
corrupt index is rebuilt from the catalog automatically.

Prefix a query with @ to mark it as an author name.

Example usage:
  booksearch add "The Hobbit" --author Tolkien --year 1937
  booksearch search @toolkien              # Find books by author
  booksearch search "hobit" "dune" --json  # Several queries at once
  booksearch verify                        # Check the index file`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default $"+config.EnvConfig+" or "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the catalog and index")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite catalog database")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "Path to the index file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 8, "Number of parallel workers for batch searches")
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
		// Derived paths follow the new data dir unless set explicitly
		cfg.Database = ""
		cfg.Index.Path = ""
	}
	if flags.Changed("db") {
		cfg.Database = dbPath
	}
	if flags.Changed("index") {
		cfg.Index.Path = indexPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("workers") {
		cfg.Search.Workers = workers
	}
	cfg.Resolve()

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// openIndex opens the catalog and its index. Closing the store is left to
// the caller.
func openIndex(ctx context.Context) (*catalog.Index, *storage.Storage, error) {
	store, err := storage.NewStorage(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	policy, err := cfg.TolerancePolicy()
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	idx, err := catalog.Open(ctx, store, catalog.Options{
		IndexPath:     cfg.Index.Path,
		Compress:      cfg.Index.Compress,
		Tolerance:     policy,
		FlushEvery:    cfg.Index.FlushEvery,
		Verify:        cfg.Index.VerifyOnLoad,
		QuarantineDir: cfg.Index.QuarantineDir,
		Logger:        logger,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return idx, store, nil
}
