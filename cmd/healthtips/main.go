package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matthewjhunter/healthtips"
	"github.com/matthewjhunter/healthtips/internal/content"
	"github.com/matthewjhunter/healthtips/internal/logging"
	"github.com/matthewjhunter/healthtips/internal/output"
	"github.com/matthewjhunter/healthtips/internal/storage"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./config/config.yaml"

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "healthtips",
		Short:         "Manage the health tips dataset, accounts, and view log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := output.ParseFormat(outputFormat); err != nil {
				return err
			}
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(initDataCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(viewsCmd())
	rootCmd.AddCommand(importFeedCmd())
	rootCmd.AddCommand(daemonCmd())

	return rootCmd
}

func loadConfig() error {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	loaded, err := storage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return nil
}

func newFormatter(cmd *cobra.Command) *output.Formatter {
	return output.NewFormatterWithWriters(output.Format(outputFormat), cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func openEngine() (*healthtips.Engine, error) {
	engine, err := healthtips.NewEngineFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open data: %w", err)
	}
	return engine, nil
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file (TOML when the path ends in .toml)",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Create config directory
			if dir := filepath.Dir(configPath); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create config directory: %w", err)
				}
			}

			// Check if config already exists
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			data, err := storage.MarshalConfig(storage.DefaultConfig(), configPath)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			return newFormatter(cmd).OutputMessage("Created default config at " + configPath)
		},
	}
}

func initDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-data",
		Short: "Create the account and view log storage if absent",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.Open(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			defer store.Close()

			where := cfg.Storage.UsersPath + ", " + cfg.Storage.ViewsPath
			if cfg.Storage.Backend == storage.BackendSQLite {
				where = cfg.Storage.SQLitePath
			}
			return newFormatter(cmd).OutputMessage(fmt.Sprintf("Storage ready (%s): %s", cfg.Storage.Backend, where))
		},
	}
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search tips by title or category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := content.Load(cfg.Content.Path)
			if err != nil {
				return err
			}

			matches := lib.Search(strings.Join(args, " "))
			tips := make([]healthtips.HealthTip, len(matches))
			for i, t := range matches {
				tips[i] = healthtips.HealthTip{ID: t.ID, Title: t.Title, Category: t.Category, Body: t.Body}
			}
			return newFormatter(cmd).OutputTips(tips)
		},
	}
}

func usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			users, err := engine.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}
			return newFormatter(cmd).OutputUsers(users)
		},
	}
}

func viewsCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "views",
		Short: "List the recommendation view log",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			views, err := engine.ListViews(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("failed to list views: %w", err)
			}
			return newFormatter(cmd).OutputViews(views)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "only show views by this user")
	return cmd
}

func importFeedCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "import-feed <url>",
		Short: "Append RSS/Atom feed items to the dataset as tips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !healthtips.IsCategory(category) {
				return fmt.Errorf("unknown category %q (one of: %s)", category, strings.Join(healthtips.Categories, ", "))
			}

			result, err := content.NewImporter(cfg.Content.Path).Import(cmd.Context(), args[0], category)
			if err != nil {
				return fmt.Errorf("failed to import feed: %w", err)
			}
			return newFormatter(cmd).OutputImportResult(result)
		},
	}
	cmd.Flags().StringVarP(&category, "category", "k", "", "category for imported tips")
	cmd.MarkFlagRequired("category")
	return cmd
}

// importConfiguredFeeds imports every content.feeds entry once. Failures are
// reported and skipped.
func importConfiguredFeeds(ctx context.Context, formatter *output.Formatter) (added int, err error) {
	if len(cfg.Content.Feeds) == 0 {
		return 0, fmt.Errorf("no feeds configured under content.feeds")
	}

	importer := content.NewImporter(cfg.Content.Path)
	for _, src := range cfg.Content.Feeds {
		if !healthtips.IsCategory(src.Category) {
			formatter.Warning("skipping %s: unknown category %q", src.URL, src.Category)
			continue
		}
		result, err := importer.Import(ctx, src.URL, src.Category)
		if err != nil {
			formatter.Warning("%v", err)
			continue
		}
		logging.Info().
			Str("url", src.URL).
			Str("category", src.Category).
			Int("added", result.Added).
			Int("skipped", result.Skipped).
			Msg("feed imported")
		added += result.Added
	}
	return added, nil
}
