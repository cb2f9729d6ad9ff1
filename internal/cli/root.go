package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"kb"
	"kb/config"
)

var (
	cfgFile  string
	storeDir string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "Local knowledge base with incremental sync and retrieval",
	Long: `kb indexes the documents in a directory into a locally persisted
knowledge base, keeps the index synchronized with changes on disk, and
answers questions about the content by retrieving relevant chunks and
delegating answer synthesis to a language model.

Example usage:
  kb sync ./docs                  # Index or update a directory
  kb query -q "What is X?"        # Ask a question about the documents
  kb search -q "X" -k 5           # Retrieve chunks without the model
  kb stats                        # Show index contents`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys may live in a .env file next to the working directory.
		_ = godotenv.Load()

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(storeDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <store>/kb.yaml)")
	rootCmd.PersistentFlags().StringVarP(&storeDir, "store", "s", ".kb", "knowledge base storage directory")
}

func openKnowledgeBase() (*kb.KnowledgeBase, error) {
	base, err := kb.Open(storeDir, kb.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}
	return base, nil
}
