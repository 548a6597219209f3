package validator

import (
	"regexp"

	"sqlgate/gateway/base"
)

// Pattern is one compiled rejection rule.
type Pattern struct {
	// Name is a human-readable identifier for the pattern.
	Name string

	// Category classifies the violation the pattern detects.
	Category base.ViolationCategory

	// Regex is the compiled regular expression.
	Regex *regexp.Regexp

	// Description explains what this pattern rejects.
	Description string

	// Severity indicates the risk level (1-10).
	Severity int
}

// PatternSet holds the rejection rules applied to every statement.
type PatternSet struct {
	patterns []*Pattern
}

// NewPatternSet creates a pattern set with the default read-only policy rules.
func NewPatternSet() *PatternSet {
	return &PatternSet{patterns: defaultPatterns()}
}

// Patterns returns all patterns in the set.
func (ps *PatternSet) Patterns() []*Pattern {
	return ps.patterns
}

// Add appends extra patterns, e.g. keywords loaded from a policy file.
func (ps *PatternSet) Add(patterns ...*Pattern) {
	ps.patterns = append(ps.patterns, patterns...)
}

// KeywordPattern builds a word-boundary rejection pattern for a single
// forbidden keyword. Multi-word keywords ("START TRANSACTION") are matched
// with flexible whitespace.
func KeywordPattern(keyword string) *Pattern {
	expr := `(?i)\b` + regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(keyword), `\s+`) + `\b`
	return &Pattern{
		Name:        "forbidden_" + keyword,
		Category:    base.CategoryForbiddenKeyword,
		Regex:       regexp.MustCompile(expr),
		Description: "Statement contains forbidden keyword " + keyword,
		Severity:    10,
	}
}

// forbiddenKeywords are rejected anywhere in the statement text. The scan is
// deliberately naive about string literals: a SELECT that merely quotes one
// of these words is rejected rather than risk letting a write through.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
	"GRANT", "REVOKE", "COMMIT", "ROLLBACK", "START TRANSACTION",
	"CALL", "EXECUTE",
}

// defaultPatterns returns the built-in rejection rules.
func defaultPatterns() []*Pattern {
	patterns := []*Pattern{
		// Statement chaining: a terminator followed by further SQL is a
		// classic stacked-query injection vector.
		{
			Name:        "stacked_statement",
			Category:    base.CategoryDangerousPattern,
			Regex:       regexp.MustCompile(`;\s*\S`),
			Description: "Detects statement-terminator chaining (; followed by further SQL)",
			Severity:    10,
		},
		{
			Name:        "line_comment",
			Category:    base.CategoryDangerousPattern,
			Regex:       regexp.MustCompile(`--`),
			Description: "Detects double-dash line comment",
			Severity:    8,
		},
		{
			Name:        "block_comment",
			Category:    base.CategoryDangerousPattern,
			Regex:       regexp.MustCompile(`/\*`),
			Description: "Detects inline block comment",
			Severity:    8,
		},
	}

	for _, kw := range forbiddenKeywords {
		patterns = append(patterns, KeywordPattern(kw))
	}

	return patterns
}
