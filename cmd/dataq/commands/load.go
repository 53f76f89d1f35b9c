package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/54b3r/dataq-go/internal/logging"
)

// NewLoadCmd constructs the `dataq load` command, which loads CSV files and
// database schemas into the chunk index (and the optional Qdrant mirror).
func NewLoadCmd() *cobra.Command {
	var datasetID string
	var withSchema bool
	var seedSample bool

	cmd := &cobra.Command{
		Use:   "load [csv files...]",
		Short: "Load CSV files or a database schema into the index",
		Long: `Load tabular data and publish its retrieval index.

Each CSV file becomes one dataset, indexed under its file stem (override with
--dataset for a single file). With --schema the SQLite database at DATAQ_DB is
introspected and its schema summaries are indexed as well. --sample seeds the
database with a small demo dataset first.

When QDRANT_HOST is set, vector indexes are mirrored into Qdrant so they can
be inspected with Qdrant tooling.

Examples:
  dataq load sales.csv orders.csv
  dataq load --dataset q3 report-2026-q3.csv
  DATAQ_DB=shop.db dataq load --schema --sample`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(args) == 0 && !withSchema {
				return fmt.Errorf("load: provide CSV files or --schema")
			}
			if datasetID != "" && len(args) > 1 {
				return fmt.Errorf("load: --dataset applies to a single CSV file")
			}

			deps, err := buildEngine(ctx, log, false)
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			defer deps.Close()

			mirror, err := buildMirror(ctx, log)
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			if mirror != nil {
				defer mirror.Close()
			}

			var loaded []string

			for _, path := range args {
				id := datasetID
				if id == "" {
					id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				ds, err := deps.engine.LoadCSV(ctx, id, path)
				if err != nil {
					return fmt.Errorf("load: %w", err)
				}
				fmt.Printf("loaded %s: %d rows, %d columns\n", id, ds.RowCount(), len(ds.Columns))
				loaded = append(loaded, id)
			}

			if withSchema {
				if deps.intro == nil {
					return fmt.Errorf("load: --schema requires DATAQ_DB to be set")
				}
				if seedSample {
					if err := deps.intro.Seed(ctx); err != nil {
						return fmt.Errorf("load: seed: %w", err)
					}
					fmt.Println("seeded sample tables")
				}
				id := datasetID
				if id == "" {
					id = "db"
				}
				snap, err := deps.engine.LoadSchema(ctx, id)
				if err != nil {
					return fmt.Errorf("load: %w", err)
				}
				fmt.Printf("loaded schema %s: %d tables\n", id, len(snap.Tables))
				loaded = append(loaded, id)
			}

			for _, id := range loaded {
				ix, ok := deps.registry.Get(id)
				if !ok {
					continue
				}
				fmt.Printf("indexed %s: %d chunks (%s)\n", id, ix.Len(), ix.Mode)

				if mirror != nil {
					if err := mirror.Mirror(ctx, ix); err != nil {
						color.Yellow("warning: could not mirror %s to qdrant: %v", id, err)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&datasetID, "dataset", "d", "", "Dataset ID override (single CSV or schema)")
	cmd.Flags().BoolVar(&withSchema, "schema", false, "Index the schema of the database at DATAQ_DB")
	cmd.Flags().BoolVar(&seedSample, "sample", false, "Seed the database with sample tables before indexing")

	return cmd
}
