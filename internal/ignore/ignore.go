// Package ignore decides which repository paths are hidden from the tree.
package ignore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	pathSeparator = "/"
	wildcard      = "*"
	// wildcardExpression replaces every wildcard in a full-path rule. The rest of
	// the rule is passed to the regular expression compiler unescaped, so a "."
	// in the rule matches any character.
	wildcardExpression = ".*"

	errorCompileRuleFormat = "compile ignore rule %q: %w"
)

// Kind identifies how a rule is interpreted.
type Kind int

const (
	// KindExact matches the final path segment exactly.
	KindExact Kind = iota
	// KindPrefix matches final path segments starting with the rule text.
	KindPrefix
	// KindSuffix matches final path segments ending with the rule text.
	KindSuffix
	// KindSubstring matches final path segments containing the rule text.
	KindSubstring
	// KindFullPath matches the whole path against a wildcard expression.
	KindFullPath
)

// String returns a short label for the kind.
func (kind Kind) String() string {
	switch kind {
	case KindPrefix:
		return "prefix"
	case KindSuffix:
		return "suffix"
	case KindSubstring:
		return "substring"
	case KindFullPath:
		return "path"
	default:
		return "exact"
	}
}

// Classify reports which interpretation applies to a pattern.
func Classify(pattern string) Kind {
	if strings.Contains(pattern, pathSeparator) {
		return KindFullPath
	}
	leading := strings.HasPrefix(pattern, wildcard)
	trailing := strings.HasSuffix(pattern, wildcard)
	switch {
	case leading && trailing && len(pattern) > 1:
		return KindSubstring
	case leading:
		return KindSuffix
	case trailing:
		return KindPrefix
	default:
		return KindExact
	}
}

// Rule is a single prepared ignore pattern.
type Rule struct {
	Pattern    string
	Kind       Kind
	text       string
	expression *regexp.Regexp
}

// NewRule prepares a pattern. Only full-path patterns can fail, when the
// pattern is not a valid regular expression.
func NewRule(pattern string) (Rule, error) {
	rule := Rule{Pattern: pattern, Kind: Classify(pattern)}
	switch rule.Kind {
	case KindFullPath:
		compiled, compileError := compileFullPath(pattern)
		if compileError != nil {
			return Rule{}, fmt.Errorf(errorCompileRuleFormat, pattern, compileError)
		}
		rule.expression = compiled
	case KindSubstring:
		rule.text = pattern[1 : len(pattern)-1]
	case KindSuffix:
		rule.text = strings.TrimPrefix(pattern, wildcard)
	case KindPrefix:
		rule.text = strings.TrimSuffix(pattern, wildcard)
	default:
		rule.text = pattern
	}
	return rule, nil
}

// Matches reports whether the rule hides the given path.
func (rule Rule) Matches(path string) bool {
	if rule.Kind == KindFullPath {
		return rule.expression != nil && rule.expression.MatchString(path)
	}
	name := lastSegment(path)
	switch rule.Kind {
	case KindSubstring:
		return strings.Contains(name, rule.text)
	case KindSuffix:
		return strings.HasSuffix(name, rule.text)
	case KindPrefix:
		return strings.HasPrefix(name, rule.text)
	default:
		return name == rule.text
	}
}

// Matches reports whether pattern hides path. A full-path pattern that is not a
// valid regular expression never matches.
func Matches(path string, pattern string) bool {
	rule, ruleError := NewRule(pattern)
	if ruleError != nil {
		return false
	}
	return rule.Matches(path)
}

// RuleSet is an ordered collection of prepared rules.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet prepares every pattern, skipping blank ones. Patterns that cannot
// be prepared are left out of the set and reported together in the error.
func NewRuleSet(patterns []string) (RuleSet, error) {
	rules := make([]Rule, 0, len(patterns))
	var ruleErrors []error
	for _, pattern := range patterns {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		rule, ruleError := NewRule(pattern)
		if ruleError != nil {
			ruleErrors = append(ruleErrors, ruleError)
			continue
		}
		rules = append(rules, rule)
	}
	return RuleSet{rules: rules}, errors.Join(ruleErrors...)
}

// Hidden reports whether any rule matches the path.
func (ruleSet RuleSet) Hidden(path string) bool {
	for _, rule := range ruleSet.rules {
		if rule.Matches(path) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns in order.
func (ruleSet RuleSet) Patterns() []string {
	patterns := make([]string, 0, len(ruleSet.rules))
	for _, rule := range ruleSet.rules {
		patterns = append(patterns, rule.Pattern)
	}
	return patterns
}

// Len returns the number of rules.
func (ruleSet RuleSet) Len() int {
	return len(ruleSet.rules)
}

func compileFullPath(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^" + strings.ReplaceAll(pattern, wildcard, wildcardExpression) + "$")
}

func lastSegment(path string) string {
	separatorIndex := strings.LastIndex(path, pathSeparator)
	if separatorIndex < 0 {
		return path
	}
	return path[separatorIndex+1:]
}
