package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/config"
	"github.com/dgallion1/docoutline/internal/version"
)

var (
	configPath  string
	offline     bool
	concurrency int
	logLevel    string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docoutline",
	Short: "Build a nested, summarized outline of a document",
	Long: `docoutline segments a document into blocks, finds its titles, infers how
they nest and rolls summaries up the resulting section tree.

Collaborator calls go to Anthropic or an OpenAI-compatible endpoint; --offline
uses local heuristics instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if offline {
			loaded.Offline()
		}
		if concurrency > 0 {
			loaded.LLM.MaxConcurrent = concurrency
			loaded.Summarize.Concurrency = concurrency
			loaded.Aggregate.Concurrency = concurrency
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("docoutline %s\n", version.String()))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("DOCOUTLINE_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use local collaborators only (no model calls)")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "Concurrent collaborator calls (0 = config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
