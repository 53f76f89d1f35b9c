package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/dataq-go/internal/logging"
)

// NewHistoryCmd constructs the `dataq history` command, which prints the most
// recent answers from the history trail.
func NewHistoryCmd() *cobra.Command {
	var datasetID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent answers and their routing decisions",
		Long: `Show the most recent answers recorded in the history trail.

Each entry shows the question, the routing strategy and reason, and the
provenance of the answer (generated SQL or retrieved chunk IDs).

Examples:
  dataq history
  dataq history --dataset sales --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			h := openHistory(log)
			if h == nil {
				return fmt.Errorf("history: no history store available")
			}
			defer h.Close()

			entries, err := h.Recent(ctx, datasetID, limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Println("no recorded answers")
				return nil
			}

			for _, e := range entries {
				strategyColor := color.New(color.FgCyan)
				if e.Strategy == "rag" {
					strategyColor = color.New(color.FgMagenta)
				}
				fmt.Printf("%s  ", e.CreatedAt.Format("2006-01-02 15:04:05"))
				strategyColor.Printf("[%s]", e.Strategy)
				fmt.Printf(" %s  %s\n", e.Reason, e.Question)
				if e.Dataset != "" {
					fmt.Printf("    dataset: %s\n", e.Dataset)
				}
				if e.SQL != "" {
					fmt.Printf("    sql: %s\n", e.SQL)
				}
				if len(e.ChunkIDs) > 0 {
					fmt.Printf("    chunks: %s\n", strings.Join(e.ChunkIDs, ", "))
				}
				if e.Degraded {
					color.Yellow("    degraded")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&datasetID, "dataset", "d", "", "Only show answers for this dataset")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of entries to show")

	return cmd
}
