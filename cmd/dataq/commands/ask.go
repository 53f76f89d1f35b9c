package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/dataq-go/internal/logging"
	"github.com/54b3r/dataq-go/internal/router"
)

// NewAskCmd constructs the `dataq ask` command, which routes a single natural
// language question and prints the answer with its routing decision.
func NewAskCmd() *cobra.Command {
	var csvPath string
	var datasetID string
	var modeFlag string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your data",
		Long: `Ask a natural language question about loaded tabular data.

Precise questions (counts, averages, lookups) are answered directly with SQL
or dataset statistics. Open-ended analytical questions are answered with
retrieval-augmented generation over the indexed data summaries.

Set DATAQ_DB to a SQLite database path to enable SQL answers. Pass --csv to
load a CSV file for the question. Use --mode to force a routing strategy.

Examples:
  dataq ask --csv sales.csv "what is the average sales?"
  DATAQ_DB=shop.db dataq ask "how many customers are there?"
  dataq ask --csv sales.csv --mode rag "analyze the regional sales patterns"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			mode, err := router.ParseMode(modeFlag)
			if err != nil {
				return err //nolint:wrapcheck // configuration error carries field and value
			}

			deps, err := buildEngine(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer deps.Close()

			if datasetID == "" {
				switch {
				case csvPath != "":
					datasetID = strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
				default:
					datasetID = "db"
				}
			}

			if csvPath != "" {
				if _, err := deps.engine.LoadCSV(ctx, datasetID, csvPath); err != nil {
					return fmt.Errorf("ask: %w", err)
				}
			}
			if deps.intro != nil {
				if _, err := deps.engine.LoadSchema(ctx, datasetID); err != nil {
					return fmt.Errorf("ask: %w", err)
				}
			}

			a, err := deps.engine.Ask(ctx, router.Request{
				DatasetID: datasetID,
				Question:  strings.Join(args, " "),
				Mode:      mode,
			})
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}

			printAnswer(a, verbose)
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to load for this question")
	cmd.Flags().StringVarP(&datasetID, "dataset", "d", "", "Dataset ID to ask against (default: CSV file stem)")
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", "", "Force routing strategy: auto, rag, or traditional")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show retrieved chunks and matched routing terms")

	return cmd
}

// printAnswer renders an answer to stdout with the routing decision up top.
func printAnswer(a *router.Answer, verbose bool) {
	strategyColor := color.New(color.FgCyan, color.Bold)
	if a.Decision.Strategy == router.StrategyRAG {
		strategyColor = color.New(color.FgMagenta, color.Bold)
	}

	strategyColor.Printf("[%s]", a.Decision.Strategy)
	fmt.Printf(" %s", a.Decision.Reason)
	if a.Decision.Score != 0 {
		fmt.Printf(" (score %+d)", a.Decision.Score)
	}
	fmt.Println()

	if a.Degraded {
		color.Yellow("warning: answer produced on a fallback path")
	}
	if verbose && len(a.Decision.Matched) > 0 {
		fmt.Printf("matched terms: %s\n", strings.Join(a.Decision.Matched, ", "))
	}

	fmt.Println()
	fmt.Println(a.Text)

	if a.SQL != "" {
		fmt.Println()
		color.New(color.Faint).Printf("sql: %s\n", a.SQL)
	}
	if verbose && len(a.Retrieved) > 0 {
		fmt.Println()
		color.New(color.Faint).Println("retrieved chunks:")
		for _, r := range a.Retrieved {
			color.New(color.Faint).Printf("  %d. [%s] %s (%.3f)\n", r.Rank, r.Chunk.Kind, r.Chunk.ID, r.Score)
		}
	}
}
