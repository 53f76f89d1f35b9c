// Package sqlgen turns natural-language questions into SQL statements using
// a declarative pattern table matched against the introspected schema. It
// makes no correctness guarantee about the generated SQL beyond syntactic
// validity for the matched pattern; callers surface the statement alongside
// the answer so the operator can audit it.
package sqlgen

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern pairs a compiled question pattern with the builder that renders
// the SQL for its capture groups.
type pattern struct {
	// name identifies the pattern for tests.
	name string
	// re is the compiled question pattern.
	re *regexp.Regexp
	// build renders SQL from the match groups and available tables.
	build func(groups []string, tables []string) (string, bool)
}

// rawSQL matches questions that are already SQL and can pass through as-is.
var rawSQL = regexp.MustCompile(`(?i)^\s*select\b`)

// patterns is the ordered pattern table. First match wins.
var patterns = []pattern{
	{
		name: "count",
		re:   regexp.MustCompile(`(?i)\b(?:how many|count|number of)\s+(\w+?)s?\b`),
		build: func(g, tables []string) (string, bool) {
			if t := findTable(g[1], tables); t != "" {
				return fmt.Sprintf("SELECT COUNT(*) AS count FROM %s;", t), true
			}
			return "", false
		},
	},
	{
		name: "average",
		re:   regexp.MustCompile(`(?i)\b(?:average|avg|mean)\s+(\w+)\b`),
		build: func(g, tables []string) (string, bool) {
			col := g[1]
			t := guessTableForColumn(col, tables)
			return fmt.Sprintf("SELECT AVG(%s) AS average_%s FROM %s;", col, col, t), true
		},
	},
	{
		name: "sum",
		re:   regexp.MustCompile(`(?i)\b(?:total|sum)\s+(?:of\s+)?(\w+)\b`),
		build: func(g, tables []string) (string, bool) {
			col := g[1]
			t := guessTableForColumn(col, tables)
			return fmt.Sprintf("SELECT SUM(%s) AS total_%s FROM %s;", col, col, t), true
		},
	},
	{
		name: "max",
		re:   regexp.MustCompile(`(?i)\b(?:highest|maximum|max|largest)\s+(\w+)\b`),
		build: func(g, tables []string) (string, bool) {
			col := g[1]
			t := guessTableForColumn(col, tables)
			return fmt.Sprintf("SELECT MAX(%s) AS max_%s FROM %s;", col, col, t), true
		},
	},
	{
		name: "min",
		re:   regexp.MustCompile(`(?i)\b(?:lowest|minimum|min|smallest)\s+(\w+)\b`),
		build: func(g, tables []string) (string, bool) {
			col := g[1]
			t := guessTableForColumn(col, tables)
			return fmt.Sprintf("SELECT MIN(%s) AS min_%s FROM %s;", col, col, t), true
		},
	},
	{
		name: "select_all",
		re:   regexp.MustCompile(`(?i)\b(?:show|list|get|display|view)\s+(?:all\s+)?(\w+?)s?\b`),
		build: func(g, tables []string) (string, bool) {
			if t := findTable(g[1], tables); t != "" {
				return fmt.Sprintf("SELECT * FROM %s;", t), true
			}
			return "", false
		},
	},
}

// columnTables maps common column-name fragments to the table that owns them,
// used when a question names a column but no table.
var columnTables = []struct{ fragment, table string }{
	{"age", "customers"},
	{"price", "products"},
	{"amount", "orders"},
	{"total", "orders"},
	{"quantity", "orders"},
	{"sales", "orders"},
}

// Generate builds a SQL statement for the question against the given tables.
// Questions that already are SQL pass through untouched. Returns false when
// no pattern or keyword fallback applies.
func Generate(question string, tables []string) (string, bool) {
	if rawSQL.MatchString(question) {
		return strings.TrimSpace(question), true
	}

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(question)
		if m == nil {
			continue
		}
		if sql, ok := p.build(m, tables); ok {
			return sql, true
		}
	}

	// Keyword fallbacks for questions the pattern table cannot parse.
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "revenue") || strings.Contains(q, "sales"):
		if hasTable(tables, "orders") {
			return "SELECT SUM(total_amount) AS total_revenue FROM orders;", true
		}
	}
	for _, t := range tables {
		if strings.Contains(q, strings.TrimSuffix(t, "s")) {
			return fmt.Sprintf("SELECT * FROM %s LIMIT 10;", t), true
		}
	}

	return "", false
}

// findTable returns the best table match for a word: exact first, then a
// containment match in either direction (so "customer" finds "customers").
func findTable(word string, tables []string) string {
	if word == "" {
		return ""
	}
	w := strings.ToLower(word)
	for _, t := range tables {
		if w == t {
			return t
		}
	}
	for _, t := range tables {
		if strings.Contains(t, w) || strings.Contains(w, t) {
			return t
		}
	}
	return ""
}

// guessTableForColumn picks the table most likely to own a column, falling
// back to the first table.
func guessTableForColumn(column string, tables []string) string {
	c := strings.ToLower(column)
	for _, m := range columnTables {
		if strings.Contains(c, m.fragment) && hasTable(tables, m.table) {
			return m.table
		}
	}
	if len(tables) > 0 {
		return tables[0]
	}
	return "customers"
}

// hasTable reports whether name is in tables.
func hasTable(tables []string, name string) bool {
	for _, t := range tables {
		if t == name {
			return true
		}
	}
	return false
}
