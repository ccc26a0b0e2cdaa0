package property

import "strings"

// Rule describes how one field's extracted text is cleaned.
type Rule struct {
	// Trim strips surrounding whitespace and collapses inner runs to one space
	Trim bool
	// Lower case-folds the value
	Lower bool
}

// Rules maps a field name to its normalization rule. Fields without an entry
// are trimmed only.
type Rules map[string]Rule

// DefaultRules case-folds the identity-like fields used for matching and keeps
// display fields such as price in their original casing.
var DefaultRules = Rules{
	FieldURL:    {Trim: true, Lower: true},
	FieldTitle:  {Trim: true, Lower: true},
	FieldSuburb: {Trim: true, Lower: true},
}

// Apply normalizes value for field; an empty result becomes NotAvailable.
func (r Rules) Apply(field, value string) string {
	rule, ok := r[field]
	if !ok {
		rule = Rule{Trim: true}
	}

	if rule.Trim {
		value = strings.Join(strings.Fields(value), " ")
	}
	if rule.Lower {
		value = strings.ToLower(value)
	}
	if value == "" {
		return NotAvailable
	}
	return value
}

// NormalizeURL applies the url rule, giving the key used by every store
func NormalizeURL(url string) string {
	return DefaultRules.Apply(FieldURL, url)
}
