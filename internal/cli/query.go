package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queryText string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a question about the indexed documents",
	Long: `Retrieve the chunks most relevant to the question and ask the
configured language model to answer using them as context.

Examples:
  kb query -q "What color is the sky?"
  kb query -q "How is authentication configured?"`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "question to answer (required)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	base, err := openKnowledgeBase()
	if err != nil {
		return err
	}
	defer base.Close()

	answer, err := base.Query(cmd.Context(), queryText)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	fmt.Println(answer)
	return nil
}
