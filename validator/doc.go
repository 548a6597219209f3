// Package validator enforces the gateway's read-only SQL policy.
//
// Validation is pure text analysis: no database access, no state. A
// statement passes only if it is a single SELECT with no forbidden
// keywords, no statement chaining, no comment markers, and balanced
// parentheses. Each rejection carries a category (empty, non_select,
// forbidden_keyword, dangerous_pattern, syntax) and a human-readable
// reason.
//
// Create a validator with the default policy:
//
//	v := validator.New()
//	if err := v.Validate(sql); err != nil {
//	    // *base.ValidationError with category and reason
//	}
//
// Check never fails and is meant for dry-run validation endpoints:
//
//	report := v.Check(sql) // {Valid, QueryType, Message, Category}
//
// Operators can extend the forbidden-keyword set through a YAML policy
// file loaded with LoadPolicy and applied via WithPolicy.
package validator
