// Package chunk converts structured datasets into retrievable text chunks.
// Schema snapshots become per-table and per-column chunks; CSV datasets
// become a summary chunk, per-column chunks, and capped row-window chunks.
// Chunk IDs are deterministic, so re-indexing the same dataset produces the
// same IDs and upserts replace rather than duplicate.
package chunk

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/54b3r/dataq-go/internal/schema"
	"github.com/54b3r/dataq-go/internal/tabular"
)

// Kind classifies what a chunk describes.
type Kind string

const (
	// KindSchemaTable is a chunk summarising one relational table.
	KindSchemaTable Kind = "schema-table"
	// KindSchemaColumn is a chunk describing one table column.
	KindSchemaColumn Kind = "schema-column"
	// KindCSVSummary is the overview chunk for a CSV dataset.
	KindCSVSummary Kind = "csv-summary"
	// KindCSVColumn is a chunk describing one CSV column.
	KindCSVColumn Kind = "csv-column"
	// KindCSVRows is a chunk carrying a window of raw rows.
	KindCSVRows Kind = "csv-rows"
)

const (
	// rowsPerChunk is the number of data rows per row-window chunk.
	rowsPerChunk = 10
	// maxRowChunks caps how many row windows a single dataset contributes.
	maxRowChunks = 10
	// topValueCap caps the value counts rendered into column chunks.
	topValueCap = 5
)

// Chunk is one indexable unit of text about a dataset.
type Chunk struct {
	// ID is a deterministic identifier derived from dataset, kind, and position.
	ID string

	// Kind classifies the chunk content.
	Kind Kind

	// DatasetID names the dataset this chunk was derived from.
	DatasetID string

	// Text is the retrievable content.
	Text string
}

// FromSchema renders a schema snapshot into table and column chunks.
func FromSchema(datasetID string, snap *schema.Snapshot) []Chunk {
	var chunks []Chunk
	for _, t := range snap.Tables {
		var cols []string
		for _, c := range t.Columns {
			cols = append(cols, fmt.Sprintf("%s (%s)", c.Name, c.Type))
		}
		text := fmt.Sprintf("Table %s has %d rows and columns: %s.",
			t.Name, t.RowCount, strings.Join(cols, ", "))
		if len(t.SampleRows) > 0 {
			var rows []string
			for _, r := range t.SampleRows {
				rows = append(rows, strings.Join(r, ", "))
			}
			text += " Sample rows: " + strings.Join(rows, "; ") + "."
		}
		chunks = append(chunks, New(datasetID, KindSchemaTable, "table/"+t.Name, text))

		for _, c := range t.Columns {
			ctext := fmt.Sprintf("Column %s.%s has type %s.", t.Name, c.Name, c.Type)
			if len(c.Samples) > 0 {
				ctext += " Example values: " + strings.Join(c.Samples, ", ") + "."
			}
			chunks = append(chunks, New(datasetID, KindSchemaColumn,
				"column/"+t.Name+"."+c.Name, ctext))
		}
	}
	return chunks
}

// FromDataset renders a CSV dataset into a summary chunk, column chunks, and
// row-window chunks. Row windows are capped so huge files cannot flood the
// index; the summary still reports the full row count.
func FromDataset(datasetID string, ds *tabular.Dataset) []Chunk {
	// A dataset with no columns and no rows has nothing to retrieve; its
	// index stays empty so forced-RAG questions fall back instead of
	// answering from a vacuous summary.
	if len(ds.Columns) == 0 && ds.RowCount() == 0 {
		return nil
	}

	chunks := []Chunk{
		New(datasetID, KindCSVSummary, "summary", ds.Overview()),
	}

	for _, c := range ds.Columns {
		text := fmt.Sprintf("Column %s is %s.", c.Name, c.Type)
		switch c.Type {
		case tabular.TypeNumeric:
			if cs, err := ds.Stats(c.Name); err == nil {
				text += fmt.Sprintf(" Stats: count=%d mean=%.2f min=%.2f max=%.2f sum=%.2f.",
					cs.Count, cs.Mean, cs.Min, cs.Max, cs.Sum)
			}
		default:
			if top := ds.TopValues(c.Name, topValueCap); len(top) > 0 {
				var vals []string
				for _, vc := range top {
					vals = append(vals, fmt.Sprintf("%s (%d)", vc.Value, vc.Count))
				}
				text += " Top values: " + strings.Join(vals, ", ") + "."
			}
		}
		chunks = append(chunks, New(datasetID, KindCSVColumn, "column/"+c.Name, text))
	}

	header := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		header = append(header, c.Name)
	}
	for w := 0; w*rowsPerChunk < ds.RowCount() && w < maxRowChunks; w++ {
		start := w * rowsPerChunk
		end := start + rowsPerChunk
		if end > ds.RowCount() {
			end = ds.RowCount()
		}
		var lines []string
		lines = append(lines, strings.Join(header, ", "))
		for _, row := range ds.Rows[start:end] {
			lines = append(lines, strings.Join(row, ", "))
		}
		text := fmt.Sprintf("Rows %d-%d of %s:\n%s",
			start+1, end, ds.Name, strings.Join(lines, "\n"))
		chunks = append(chunks, New(datasetID, KindCSVRows, fmt.Sprintf("rows/%d", w), text))
	}

	return chunks
}

// New builds a chunk with a deterministic ID from its coordinates.
func New(datasetID string, kind Kind, position, text string) Chunk {
	return Chunk{
		ID:        id(datasetID, kind, position),
		Kind:      kind,
		DatasetID: datasetID,
		Text:      text,
	}
}

// id derives a stable identifier from the chunk coordinates.
func id(datasetID string, kind Kind, position string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%s#%s", datasetID, kind, position)))
	return fmt.Sprintf("%x", h[:16])
}
