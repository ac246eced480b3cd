package errorhandling

import (
	"path"
	"strings"
)

// DetailRetryType is the details key that overrides rule-based classification
// when it names a valid RetryType.
const DetailRetryType = "retry_type"

// Rule maps matching failures to a RetryType. Every non-empty matcher must
// match for the rule to apply.
type Rule struct {
	Name string
	// KindPattern is a case-insensitive path.Match glob over the failure kind.
	KindPattern string
	// Category matches case-insensitively; empty matches any category.
	Category string
	// Match is an optional predicate over failure details.
	Match     func(details map[string]any) bool
	RetryType RetryType
}

// Classifier is an immutable ordered list of rules.
type Classifier struct {
	rules []Rule
}

// NewClassifier returns a classifier evaluating rules in order.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: normalizeRules(rules)}
}

// DefaultClassifier returns the stock rules for audio processing failures.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		Rule{Name: "timeout", KindPattern: "*timeout*", RetryType: RetryTransient},
		Rule{Name: "network", KindPattern: "*network*", RetryType: RetryTransient},
		Rule{Name: "connection", KindPattern: "*connection*", RetryType: RetryTransient},
		Rule{Name: "busy", KindPattern: "*busy*", RetryType: RetryTransient},
		Rule{Name: "temporary", KindPattern: "*temporar*", RetryType: RetryTransient},
		Rule{Name: "interrupted", KindPattern: "*interrupt*", RetryType: RetryTransient},
		Rule{Name: "memory", KindPattern: "*memory*", RetryType: RetryResource},
		Rule{Name: "disk", KindPattern: "*disk*", RetryType: RetryResource},
		Rule{Name: "quota", KindPattern: "*quota*", RetryType: RetryResource},
		Rule{Name: "exhausted", KindPattern: "*exhaust*", RetryType: RetryResource},
		Rule{Name: "resource category", Category: "RESOURCE", RetryType: RetryResource},
		Rule{Name: "not found", KindPattern: "*notfound*", RetryType: RetryTerminal},
		Rule{Name: "not found (underscore)", KindPattern: "*not_found*", RetryType: RetryTerminal},
		Rule{Name: "permission", KindPattern: "*permission*", RetryType: RetryTerminal},
		Rule{Name: "validation", KindPattern: "*validation*", RetryType: RetryTerminal},
		Rule{Name: "value", KindPattern: "valueerror", RetryType: RetryTerminal},
		Rule{Name: "unsupported", KindPattern: "*unsupported*", RetryType: RetryTerminal},
		Rule{Name: "format", KindPattern: "*formaterror", RetryType: RetryTerminal},
		Rule{Name: "format (underscore)", KindPattern: "*format_error", RetryType: RetryTerminal},
		Rule{Name: "decode", KindPattern: "*decode*", RetryType: RetryTerminal},
		Rule{Name: "corrupt", KindPattern: "*corrupt*", RetryType: RetryTerminal},
		Rule{Name: "configuration", Category: "CONFIG", RetryType: RetryTerminal},
	)
}

// With returns a copy of c with rules appended after the existing ones.
func (c *Classifier) With(rules ...Rule) *Classifier {
	merged := make([]Rule, 0, len(c.Rules())+len(rules))
	merged = append(merged, c.Rules()...)
	merged = append(merged, normalizeRules(rules)...)
	return &Classifier{rules: merged}
}

// Rules returns a copy of the rule list.
func (c *Classifier) Rules() []Rule {
	if c == nil {
		return nil
	}
	return append([]Rule(nil), c.rules...)
}

// Classify returns the RetryType of the first matching rule, or RetryUnknown.
// A valid details["retry_type"] takes precedence over the rules.
func (c *Classifier) Classify(kind, category string, details map[string]any) RetryType {
	if explicit, ok := explicitRetryType(details); ok {
		return explicit
	}
	if c == nil {
		return RetryUnknown
	}
	kind = strings.ToLower(strings.TrimSpace(kind))
	for _, rule := range c.rules {
		if ruleMatches(rule, kind, category, details) {
			return rule.RetryType
		}
	}
	return RetryUnknown
}

// ruleMatches reports whether rule applies. A panicking predicate counts as
// no match.
func ruleMatches(rule Rule, kind, category string, details map[string]any) (matched bool) {
	if rule.KindPattern != "" {
		ok, err := path.Match(rule.KindPattern, kind)
		if err != nil || !ok {
			return false
		}
	}
	if rule.Category != "" && !strings.EqualFold(rule.Category, strings.TrimSpace(category)) {
		return false
	}
	if rule.Match != nil {
		defer func() {
			if recover() != nil {
				matched = false
			}
		}()
		return rule.Match(details)
	}
	return true
}

func explicitRetryType(details map[string]any) (RetryType, bool) {
	if details == nil {
		return "", false
	}
	var raw string
	switch v := details[DetailRetryType].(type) {
	case string:
		raw = v
	case RetryType:
		raw = string(v)
	default:
		return "", false
	}
	r, err := ParseRetryType(raw)
	if err != nil {
		return "", false
	}
	return r, true
}

func normalizeRules(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		rule.KindPattern = strings.ToLower(strings.TrimSpace(rule.KindPattern))
		if !rule.RetryType.Valid() {
			rule.RetryType = RetryUnknown
		}
		out = append(out, rule)
	}
	return out
}
