package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchText string
	searchTopK int
	searchJSON bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Retrieve relevant chunks without the language model",
	Long: `Embed the query and print the most similar indexed chunks with
their cosine similarity scores. No language model is involved.

Examples:
  kb search -q "sky color"
  kb search -q "database setup" -k 10 --json`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchText, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	base, err := openKnowledgeBase()
	if err != nil {
		return err
	}
	defer base.Close()

	topK := cfg.Query.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}

	results, err := base.Search(cmd.Context(), searchText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results for: %s\n\n", len(results), searchText)
	for i, r := range results {
		fmt.Printf("%d. %s#%d (score %.4f)\n", i+1, r.Path, r.Seq, r.Score)
		text := r.Text
		if len(text) > 200 {
			text = text[:200] + "..."
		}
		for _, line := range strings.Split(text, "\n") {
			fmt.Printf("   %s\n", line)
		}
		fmt.Println()
	}
	return nil
}
