package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all indexed documents and vectors",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	base, err := openKnowledgeBase()
	if err != nil {
		return err
	}
	defer base.Close()

	if err := base.Clear(); err != nil {
		return fmt.Errorf("failed to clear knowledge base: %w", err)
	}

	fmt.Println("Knowledge base cleared.")
	return nil
}
