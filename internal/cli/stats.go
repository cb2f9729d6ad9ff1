package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"kb/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base contents",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	base, err := openKnowledgeBase()
	if err != nil {
		return err
	}
	defer base.Close()

	stats, err := base.Stats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Printf("Store:     %s\n", config.StoreDBPath(storeDir))
	fmt.Printf("Documents: %d\n", stats.Documents)
	fmt.Printf("Chunks:    %d\n", stats.Chunks)
	fmt.Printf("Embedding: %s/%s (%d dims)\n", cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension)
	return nil
}
