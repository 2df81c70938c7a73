package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"homedrive/internal/app"
	"homedrive/internal/config"
	"homedrive/internal/content"
)

var version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config from --config if set, otherwise from the
// default locations.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.ReadFromFile(configPath)
	}
	return config.ReadDefault()
}

// newApp reads the config and creates a fully wired App. The caller must
// defer a.Close().
func newApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "homedrive",
	Short: "Self-hosted file sync and notes server",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve()
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Reconcile the index with the content on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		files, notes, err := a.Scan()
		if err != nil {
			return err
		}

		fmt.Printf("Files: %d indexed, %d skipped\n", files.Indexed, len(files.Skipped))
		fmt.Printf("Notes: %d indexed, %d skipped\n", notes.Indexed, len(notes.Skipped))
		for _, item := range files.Skipped {
			fmt.Printf("  skipped file %s: %s\n", item.Path, item.Reason)
		}
		for _, item := range notes.Skipped {
			fmt.Printf("  skipped note %s: %s\n", item.Path, item.Reason)
		}
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired authentication tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Cleanup()
		if err != nil {
			return err
		}

		fmt.Printf("Removed %d expired tokens\n", removed)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := config.DataDir()
		if err != nil {
			return err
		}

		cfg := config.NewConfig(dataDir)
		path := filepath.Join(dataDir, "homedrive.toml")

		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := config.InitDataDirs(cfg); err != nil {
			return fmt.Errorf("failed to initialize data directories: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Files root: %s\n", cfg.Storage.FilesRoot)
		fmt.Printf("Notes root: %s\n", cfg.Storage.NotesRoot)
		fmt.Printf("Add client public keys to %s\n", cfg.Auth.AuthorizedKeys)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an age identity for at-rest content encryption",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		path := cfg.Encryption.IdentityPath
		if path == "" {
			dataDir, err := config.DataDir()
			if err != nil {
				return err
			}
			path = filepath.Join(dataDir, "identity.age")
		}

		recipient, err := content.GenerateIdentityFile(path)
		if err != nil {
			return err
		}

		fmt.Printf("Identity written to %s\n", path)
		fmt.Printf("Recipient: %s\n", recipient)
		fmt.Println("Set encryption.type = \"age\" and encryption.identity_path in the config to enable.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(versionCmd)
}
