package validator

import (
	"errors"
	"regexp"
	"strings"

	"sqlgate/gateway/base"
)

// leadingKeywordRegex extracts the first SQL keyword of a statement.
var leadingKeywordRegex = regexp.MustCompile(`^[\s(]*([A-Za-z]+)`)

// Validator is a pure, stateless analyzer of SQL text against the gateway's
// read-only security policy. It never touches the database and is safe to
// call with adversarial input.
type Validator struct {
	patterns    *PatternSet
	maxQueryLen int
	snippetLen  int
}

// Option is a functional option for configuring a Validator.
type Option func(*Validator)

// WithPatternSet sets a custom pattern set.
func WithPatternSet(ps *PatternSet) Option {
	return func(v *Validator) {
		v.patterns = ps
	}
}

// WithMaxQueryLength sets the maximum statement length accepted.
func WithMaxQueryLength(maxLen int) Option {
	return func(v *Validator) {
		v.maxQueryLen = maxLen
	}
}

// WithPolicy applies extra forbidden keywords from a loaded policy file.
func WithPolicy(p *Policy) Option {
	return func(v *Validator) {
		if p == nil {
			return
		}
		for _, kw := range p.ForbiddenKeywords {
			v.patterns.Add(KeywordPattern(kw))
		}
		if p.MaxQueryLength > 0 {
			v.maxQueryLen = p.MaxQueryLength
		}
	}
}

// New creates a Validator with the default read-only policy.
func New(opts ...Option) *Validator {
	v := &Validator{
		patterns:    NewPatternSet(),
		maxQueryLen: 65536,
		snippetLen:  100,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Validate checks a statement against the policy. It returns nil for a
// single, comment-free, balanced SELECT and a *base.ValidationError for
// everything else.
//
// Rules, in order: empty input, single-SELECT requirement, forbidden
// keywords / dangerous patterns, unbalanced parentheses.
func (v *Validator) Validate(sql string) error {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return base.NewValidationError(base.CategoryEmpty, "query is empty")
	}

	if len(trimmed) > v.maxQueryLen {
		return base.NewValidationError(base.CategorySyntax,
			"query exceeds maximum length of %d characters", v.maxQueryLen)
	}

	keyword := leadingKeyword(trimmed)
	if keyword != "SELECT" {
		if keyword == "" {
			return base.NewValidationError(base.CategorySyntax, "statement does not start with a SQL keyword")
		}
		return base.NewValidationError(base.CategoryNonSelect,
			"only SELECT statements are allowed, got %s", keyword)
	}

	// A single trailing terminator is tolerated; the pattern set catches
	// any terminator followed by further SQL.
	for _, pattern := range v.patterns.Patterns() {
		if pattern.Regex.MatchString(trimmed) {
			return base.NewValidationError(pattern.Category, "%s", pattern.Description)
		}
	}

	if !balancedParens(trimmed) {
		return base.NewValidationError(base.CategorySyntax, "unbalanced parentheses in query")
	}

	return nil
}

// Report is the never-failing validation payload backing validate_query.
type Report struct {
	Valid     bool                   `json:"valid"`
	QueryType string                 `json:"query_type,omitempty"`
	Message   string                 `json:"message"`
	Category  base.ViolationCategory `json:"category,omitempty"`
}

// Check runs Validate and folds the outcome into a Report instead of an
// error, so protocol callers can always return a payload.
func (v *Validator) Check(sql string) Report {
	if err := v.Validate(sql); err != nil {
		report := Report{Valid: false, Message: err.Error()}
		var verr *base.ValidationError
		if errors.As(err, &verr) {
			report.Message = verr.Reason
			report.Category = verr.Category
		}
		return report
	}
	return Report{Valid: true, QueryType: "SELECT", Message: "query is valid"}
}

// leadingKeyword returns the upper-cased first keyword of the statement,
// skipping leading whitespace and opening parentheses.
func leadingKeyword(sql string) string {
	match := leadingKeywordRegex.FindStringSubmatch(sql)
	if match == nil {
		return ""
	}
	return strings.ToUpper(match[1])
}

// balancedParens checks parenthesis nesting without ever going negative.
func balancedParens(sql string) bool {
	depth := 0
	for _, r := range sql {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
