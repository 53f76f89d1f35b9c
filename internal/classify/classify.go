// Package classify decides, from lexical features alone, whether a question
// needs retrieval-augmented context or can be answered by direct structured
// analysis. Classification is driven by a declarative rule table so that
// boundary behaviour can be unit tested without touching control flow, and
// the keyword weights can be tuned without code changes elsewhere.
//
// The decision rule is sign-of-difference: a question is analytical when the
// summed weight of analytical matches exceeds the summed weight of structured
// matches. Ties fall back to the structured path, which is cheaper and
// deterministic.
package classify

import (
	"regexp"
	"strings"
)

// Category labels a rule as evidence for one of the two routing strategies.
type Category int

const (
	// CategoryStructured marks keywords that indicate direct schema or
	// statistics questions (answerable without retrieval).
	CategoryStructured Category = iota
	// CategoryAnalytical marks keywords that indicate open-ended analysis
	// questions benefiting from retrieved context.
	CategoryAnalytical
)

// Rule is a single classification pattern. Patterns are matched
// case-insensitively on word boundaries, so "table" matches "tables?"
// questions but not "comfortable".
type Rule struct {
	// Name identifies the rule in Result.Matched, for provenance and tests.
	Name string
	// Pattern is the compiled word-boundary pattern.
	Pattern *regexp.Regexp
	// Weight is the rule's contribution to the score. All default rules
	// weigh 1; the field exists so operators can tune individual keywords.
	Weight int
	// Category assigns the rule to the structured or analytical set.
	Category Category
}

// rule compiles a case-insensitive word-boundary pattern for a keyword or
// phrase. Panics on invalid input, which is acceptable for the static table.
func rule(name string, cat Category) Rule {
	return Rule{
		Name:     name,
		Pattern:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`),
		Weight:   1,
		Category: cat,
	}
}

// defaultRules is the built-in rule table. The two sets are disjoint: no
// keyword appears in both categories.
var defaultRules = []Rule{
	// Structured markers: schema exploration, SQL, direct aggregates.
	rule("count", CategoryStructured),
	rule("how many", CategoryStructured),
	rule("sum", CategoryStructured),
	rule("total", CategoryStructured),
	rule("average", CategoryStructured),
	rule("mean", CategoryStructured),
	rule("maximum", CategoryStructured),
	rule("minimum", CategoryStructured),
	rule("highest", CategoryStructured),
	rule("lowest", CategoryStructured),
	rule("schema", CategoryStructured),
	rule("table", CategoryStructured),
	rule("tables", CategoryStructured),
	rule("column", CategoryStructured),
	rule("columns", CategoryStructured),
	rule("database", CategoryStructured),
	rule("sql", CategoryStructured),
	rule("select", CategoryStructured),
	rule("query", CategoryStructured),
	rule("list", CategoryStructured),
	rule("show", CategoryStructured),
	rule("distribution", CategoryStructured),

	// Analytical markers: open-ended analysis needing retrieved context.
	rule("analyze", CategoryAnalytical),
	rule("analyse", CategoryAnalytical),
	rule("pattern", CategoryAnalytical),
	rule("patterns", CategoryAnalytical),
	rule("trend", CategoryAnalytical),
	rule("trends", CategoryAnalytical),
	rule("correlation", CategoryAnalytical),
	rule("insight", CategoryAnalytical),
	rule("insights", CategoryAnalytical),
	rule("relationship", CategoryAnalytical),
	rule("compare", CategoryAnalytical),
	rule("comparison", CategoryAnalytical),
	rule("similarity", CategoryAnalytical),
	rule("difference", CategoryAnalytical),
	rule("explain", CategoryAnalytical),
	rule("why", CategoryAnalytical),
	rule("understand", CategoryAnalytical),
	rule("explore", CategoryAnalytical),
	rule("investigate", CategoryAnalytical),
	rule("tell me about", CategoryAnalytical),
}

// Result is the outcome of classifying a single question.
type Result struct {
	// Analytical is true when the question should take the RAG path,
	// index availability permitting.
	Analytical bool
	// Score is analytical weight minus structured weight. Zero means a tie,
	// which resolves to the structured path.
	Score int
	// Matched lists the names of all rules that fired, in table order.
	Matched []string
}

// Classifier scores questions against a rule table. The zero value is not
// usable; construct with [New] or [Default].
type Classifier struct {
	rules []Rule
}

// New constructs a Classifier from an explicit rule table. Intended for
// tests and for operators supplying tuned keyword weights.
func New(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Default returns a Classifier using the built-in rule table.
func Default() *Classifier {
	return New(defaultRules)
}

// Classify scores the question against the rule table. It is deterministic
// and idempotent: identical input always yields an identical Result.
func (c *Classifier) Classify(question string) Result {
	var res Result
	for _, r := range c.rules {
		if !r.Pattern.MatchString(question) {
			continue
		}
		res.Matched = append(res.Matched, r.Name)
		switch r.Category {
		case CategoryAnalytical:
			res.Score += r.Weight
		case CategoryStructured:
			res.Score -= r.Weight
		}
	}
	res.Analytical = res.Score > 0
	return res
}

// Target identifies which traditional collaborator should handle a question.
type Target int

const (
	// TargetAmbiguous means neither signal fired; the router resolves the
	// ambiguity based on which datasets are loaded.
	TargetAmbiguous Target = iota
	// TargetSchema dispatches to the schema introspector / SQL generator.
	TargetSchema
	// TargetTabular dispatches to the tabular statistics analyzer.
	TargetTabular
)

// String returns the target name for logs and provenance records.
func (t Target) String() string {
	switch t {
	case TargetSchema:
		return "schema"
	case TargetTabular:
		return "tabular"
	default:
		return "ambiguous"
	}
}

// schemaSignal matches keywords that unambiguously indicate schema or SQL
// intent. A hit here wins outright over statistics keywords so that raw SQL
// fragments ("SELECT COUNT(*) FROM customers") never land on the analyzer.
var schemaSignal = regexp.MustCompile(`(?i)\b(schema|table|tables|database|sql|select|insert|update|delete|join|describe|structure)\b`)

// statSignal matches keywords that indicate numeric or aggregate questions
// over an in-memory tabular dataset.
var statSignal = regexp.MustCompile(`(?i)\b(average|mean|sum|total|count|how many|maximum|minimum|max|min|highest|lowest|correlation|distribution|median|stddev|csv)\b`)

// Dispatch chooses the traditional-path collaborator for a question using
// the same lexical signals as classification. Schema intent takes priority;
// pure aggregate language goes to the analyzer; anything else is ambiguous.
func Dispatch(question string) Target {
	q := strings.TrimSpace(question)
	switch {
	case schemaSignal.MatchString(q):
		return TargetSchema
	case statSignal.MatchString(q):
		return TargetTabular
	default:
		return TargetAmbiguous
	}
}
