package tabular

import (
	"fmt"
	"strings"
)

// Statistic is the machine-readable payload attached to answers produced by
// the analyzer, alongside the human-readable text.
type Statistic struct {
	// Metric names the computed statistic (mean, sum, count, max, min, corr).
	Metric string `json:"metric"`
	// Column is the column the statistic was computed over, when applicable.
	Column string `json:"column,omitempty"`
	// Value is the computed value.
	Value float64 `json:"value"`
}

// AnswerQuestion computes a statistics answer for a natural-language question
// against this dataset. Dispatch is keyword-driven; when a question names a
// column, the answer is scoped to it, otherwise all applicable columns are
// summarised. Unrecognised questions fall back to a dataset overview.
func (d *Dataset) AnswerQuestion(question string) (string, *Statistic, error) {
	if d.RowCount() == 0 {
		return "", nil, fmt.Errorf("tabular: dataset %q is empty", d.Name)
	}

	q := strings.ToLower(question)
	switch {
	case containsAny(q, "average", "mean"):
		return d.answerAggregate(question, "mean")
	case containsAny(q, "sum", "total"):
		return d.answerAggregate(question, "sum")
	case containsAny(q, "count", "how many"):
		return d.answerCount(question)
	case containsAny(q, "max", "maximum", "highest"):
		return d.answerAggregate(question, "max")
	case containsAny(q, "min", "minimum", "lowest"):
		return d.answerAggregate(question, "min")
	case containsAny(q, "correlation", "relationship"):
		return d.answerCorrelation()
	case containsAny(q, "distribution", "spread"):
		return d.answerDistribution(question)
	case containsAny(q, "columns", "fields"):
		return fmt.Sprintf("Columns in the dataset: %s", strings.Join(d.columnNames(), ", ")), nil, nil
	case containsAny(q, "shape", "size", "dimensions"):
		return fmt.Sprintf("Dataset shape: %d rows, %d columns", d.RowCount(), len(d.Columns)), nil, nil
	case containsAny(q, "summary", "overview"):
		return d.Overview(), nil, nil
	default:
		return d.Overview(), nil, nil
	}
}

// answerAggregate handles mean/sum/max/min questions for the mentioned column,
// or for every numeric column when none is named.
func (d *Dataset) answerAggregate(question, metric string) (string, *Statistic, error) {
	if col := d.mentionedColumn(question); col != "" {
		cs, err := d.Stats(col)
		if err != nil {
			return "", nil, err
		}
		v := cs.metric(metric)
		return fmt.Sprintf("%s of %s: %.2f", metricLabel(metric), col, v),
			&Statistic{Metric: metric, Column: col, Value: v}, nil
	}

	var lines []string
	var first *Statistic
	for _, c := range d.Columns {
		if c.Type != TypeNumeric {
			continue
		}
		cs, err := d.Stats(c.Name)
		if err != nil {
			continue
		}
		v := cs.metric(metric)
		if first == nil {
			first = &Statistic{Metric: metric, Column: c.Name, Value: v}
		}
		lines = append(lines, fmt.Sprintf("  %s: %.2f", c.Name, v))
	}
	if len(lines) == 0 {
		return "", nil, fmt.Errorf("tabular: no numeric columns for %s", metric)
	}
	return fmt.Sprintf("%s by column:\n%s", metricLabel(metric), strings.Join(lines, "\n")), first, nil
}

// answerCount returns value counts for a named categorical column, the
// non-empty count for a named numeric column, or the total row count.
func (d *Dataset) answerCount(question string) (string, *Statistic, error) {
	col := d.mentionedColumn(question)
	if col == "" {
		n := d.RowCount()
		return fmt.Sprintf("Total number of rows: %d", n),
			&Statistic{Metric: "count", Value: float64(n)}, nil
	}

	ci := d.ColumnIndex(col)
	if d.Columns[ci].Type == TypeCategorical {
		var lines []string
		for _, vc := range d.TopValues(col, 10) {
			lines = append(lines, fmt.Sprintf("  %s: %d", vc.Value, vc.Count))
		}
		return fmt.Sprintf("Value counts for %s:\n%s", col, strings.Join(lines, "\n")),
			&Statistic{Metric: "count", Column: col, Value: float64(d.RowCount() - d.NullCount(col))}, nil
	}

	n := d.RowCount() - d.NullCount(col)
	return fmt.Sprintf("Non-empty count for %s: %d", col, n),
		&Statistic{Metric: "count", Column: col, Value: float64(n)}, nil
}

// answerCorrelation reports the strongest pairwise correlations.
func (d *Dataset) answerCorrelation() (string, *Statistic, error) {
	corrs := d.Correlations()
	if len(corrs) == 0 {
		return "", nil, fmt.Errorf("tabular: need at least 2 numeric columns for correlations")
	}

	limit := len(corrs)
	if limit > 5 {
		limit = 5
	}
	var lines []string
	for _, c := range corrs[:limit] {
		lines = append(lines, fmt.Sprintf("  %s - %s: %.3f", c.A, c.B, c.R))
	}
	top := corrs[0]
	return "Strongest correlations:\n" + strings.Join(lines, "\n"),
		&Statistic{Metric: "corr", Column: top.A + "/" + top.B, Value: top.R}, nil
}

// answerDistribution describes the spread of the mentioned column.
func (d *Dataset) answerDistribution(question string) (string, *Statistic, error) {
	col := d.mentionedColumn(question)
	if col == "" {
		return "Please name the column whose distribution you want to see.", nil, nil
	}

	ci := d.ColumnIndex(col)
	if d.Columns[ci].Type == TypeCategorical {
		var lines []string
		for _, vc := range d.TopValues(col, 10) {
			lines = append(lines, fmt.Sprintf("  %s: %d", vc.Value, vc.Count))
		}
		return fmt.Sprintf("Distribution of %s:\n%s", col, strings.Join(lines, "\n")), nil, nil
	}

	cs, err := d.Stats(col)
	if err != nil {
		return "", nil, err
	}
	text := fmt.Sprintf("Distribution of %s: count=%d mean=%.2f stddev=%.2f min=%.2f max=%.2f",
		col, cs.Count, cs.Mean, cs.StdDev, cs.Min, cs.Max)
	return text, &Statistic{Metric: "stddev", Column: col, Value: cs.StdDev}, nil
}

// Overview returns a short text description of the dataset shape and columns,
// used both as a fallback answer and by operators exploring a new file.
func (d *Dataset) Overview() string {
	numeric, categorical := 0, 0
	for _, c := range d.Columns {
		if c.Type == TypeNumeric {
			numeric++
		} else {
			categorical++
		}
	}
	nulls := 0
	for _, c := range d.Columns {
		nulls += d.NullCount(c.Name)
	}
	return fmt.Sprintf(
		"Dataset %s: %d rows, %d columns (%d numeric, %d categorical), %d missing values. Columns: %s",
		d.Name, d.RowCount(), len(d.Columns), numeric, categorical, nulls,
		strings.Join(d.columnNames(), ", "))
}

// mentionedColumn returns the first column whose name appears in the
// question, case-insensitively.
func (d *Dataset) mentionedColumn(question string) string {
	q := strings.ToLower(question)
	for _, c := range d.Columns {
		if strings.Contains(q, strings.ToLower(c.Name)) {
			return c.Name
		}
	}
	return ""
}

// columnNames returns the header names in order.
func (d *Dataset) columnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		names = append(names, c.Name)
	}
	return names
}

// metric selects the named value from computed column stats.
func (cs *ColumnStats) metric(name string) float64 {
	switch name {
	case "mean":
		return cs.Mean
	case "sum":
		return cs.Sum
	case "max":
		return cs.Max
	case "min":
		return cs.Min
	default:
		return cs.Mean
	}
}

// metricLabel maps a metric key to its display label.
func metricLabel(name string) string {
	switch name {
	case "mean":
		return "Average"
	case "sum":
		return "Total"
	case "max":
		return "Maximum"
	case "min":
		return "Minimum"
	default:
		return name
	}
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
