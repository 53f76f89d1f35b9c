// Package tabular implements the statistics collaborator: it loads CSV data
// into an in-memory dataset, infers column types, and computes the aggregates,
// correlations, and distributions that back traditional-path answers and the
// chunk indexer's column summaries.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/montanaflynn/stats"
)

// ColumnType is the inferred type of a dataset column.
type ColumnType int

const (
	// TypeCategorical marks text columns.
	TypeCategorical ColumnType = iota
	// TypeNumeric marks columns where every non-empty value parses as a number.
	TypeNumeric
)

// String returns the type name used in column summaries and chunk text.
func (t ColumnType) String() string {
	if t == TypeNumeric {
		return "numeric"
	}
	return "categorical"
}

// Column describes one dataset column.
type Column struct {
	// Name is the header name.
	Name string
	// Type is the inferred column type.
	Type ColumnType
}

// Dataset is an immutable in-memory tabular dataset. Rows are stored as
// strings exactly as read; numeric access parses on demand.
type Dataset struct {
	// Name identifies the dataset (file stem or caller-chosen ID).
	Name string
	// Columns are the typed columns in header order.
	Columns []Column
	// Rows holds the data rows, each parallel to Columns.
	Rows [][]string
}

// LoadCSV reads a CSV stream with a header row into a Dataset, inferring a
// type per column. An empty body (header only, or nothing at all) yields a
// valid dataset with zero rows.
func LoadCSV(name string, r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Dataset{Name: name}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tabular: read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tabular: read row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, rec)
	}

	ds := &Dataset{Name: name, Rows: rows}
	for ci, h := range header {
		ds.Columns = append(ds.Columns, Column{Name: h, Type: inferType(rows, ci)})
	}
	return ds, nil
}

// LoadCSVFile opens and loads a CSV file, naming the dataset after the path.
func LoadCSVFile(name, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadCSV(name, f)
}

// inferType returns TypeNumeric when every non-empty value in the column
// parses as a float and at least one value is present.
func inferType(rows [][]string, col int) ColumnType {
	seen := false
	for _, row := range rows {
		if col >= len(row) || row[col] == "" {
			continue
		}
		if _, err := strconv.ParseFloat(row[col], 64); err != nil {
			return TypeCategorical
		}
		seen = true
	}
	if seen {
		return TypeNumeric
	}
	return TypeCategorical
}

// RowCount returns the number of data rows.
func (d *Dataset) RowCount() int { return len(d.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// NullCount returns the number of empty values in the named column.
func (d *Dataset) NullCount(name string) int {
	ci := d.ColumnIndex(name)
	if ci < 0 {
		return 0
	}
	n := 0
	for _, row := range d.Rows {
		if ci >= len(row) || row[ci] == "" {
			n++
		}
	}
	return n
}

// NumericValues returns all parseable values of the named column.
func (d *Dataset) NumericValues(name string) []float64 {
	ci := d.ColumnIndex(name)
	if ci < 0 {
		return nil
	}
	var vals []float64
	for _, row := range d.Rows {
		if ci >= len(row) || row[ci] == "" {
			continue
		}
		if v, err := strconv.ParseFloat(row[ci], 64); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}

// ValueCount pairs a categorical value with its occurrence count.
type ValueCount struct {
	// Value is the raw cell value.
	Value string
	// Count is the number of rows holding it.
	Count int
}

// TopValues returns the n most frequent non-empty values of the named column,
// ordered by descending count; ties keep first-appearance order so results
// are deterministic.
func (d *Dataset) TopValues(name string, n int) []ValueCount {
	ci := d.ColumnIndex(name)
	if ci < 0 || n <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range d.Rows {
		if ci >= len(row) || row[ci] == "" {
			continue
		}
		if _, ok := counts[row[ci]]; !ok {
			order = append(order, row[ci])
		}
		counts[row[ci]]++
	}

	out := make([]ValueCount, 0, len(order))
	for _, v := range order {
		out = append(out, ValueCount{Value: v, Count: counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ColumnStats holds descriptive statistics for a numeric column.
type ColumnStats struct {
	// Column is the column name.
	Column string
	// Count is the number of parseable values.
	Count int
	// Mean, Min, Max, Sum, StdDev are the usual descriptive statistics.
	Mean, Min, Max, Sum, StdDev float64
}

// Stats computes descriptive statistics for a numeric column.
// Returns an error for unknown or empty columns.
func (d *Dataset) Stats(name string) (*ColumnStats, error) {
	vals := d.NumericValues(name)
	if len(vals) == 0 {
		return nil, fmt.Errorf("tabular: column %q has no numeric values", name)
	}

	data := stats.Float64Data(vals)
	mean, err := data.Mean()
	if err != nil {
		return nil, fmt.Errorf("tabular: mean %q: %w", name, err)
	}
	min, err := data.Min()
	if err != nil {
		return nil, fmt.Errorf("tabular: min %q: %w", name, err)
	}
	max, err := data.Max()
	if err != nil {
		return nil, fmt.Errorf("tabular: max %q: %w", name, err)
	}
	sum, err := data.Sum()
	if err != nil {
		return nil, fmt.Errorf("tabular: sum %q: %w", name, err)
	}
	sd, err := data.StandardDeviation()
	if err != nil {
		return nil, fmt.Errorf("tabular: stddev %q: %w", name, err)
	}

	return &ColumnStats{
		Column: name,
		Count:  len(vals),
		Mean:   mean,
		Min:    min,
		Max:    max,
		Sum:    sum,
		StdDev: sd,
	}, nil
}

// Correlation holds the Pearson correlation between two numeric columns.
type Correlation struct {
	// A and B are the column names.
	A, B string
	// R is the Pearson correlation coefficient.
	R float64
}

// Correlations computes pairwise Pearson correlations between all numeric
// columns, ordered by descending absolute strength. Columns whose value
// counts differ (ragged missing data) are skipped pairwise.
func (d *Dataset) Correlations() []Correlation {
	var numeric []string
	for _, c := range d.Columns {
		if c.Type == TypeNumeric {
			numeric = append(numeric, c.Name)
		}
	}

	var out []Correlation
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			a := d.NumericValues(numeric[i])
			b := d.NumericValues(numeric[j])
			if len(a) != len(b) || len(a) < 2 {
				continue
			}
			r, err := stats.Correlation(a, b)
			if err != nil {
				continue
			}
			out = append(out, Correlation{A: numeric[i], B: numeric[j], R: r})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return abs(out[i].R) > abs(out[j].R)
	})
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
