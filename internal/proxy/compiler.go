// Package proxy implements the rule compilation and matching engine and the
// streaming forwarding pipeline.
//
// Rule source templates contain literal path segments plus placeholders:
// {name} captures one path segment (no '/'), {*name} captures one or more
// characters of any kind, including '/'. Captured values are substituted
// into the rule's target template at every occurrence of the same token.
package proxy

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// placeholderPattern finds {name} and {*name} tokens in a source template.
// Placeholder names are word characters only.
var placeholderPattern = regexp.MustCompile(`\{(\*?)(\w+)\}`)

// CompileError reports a rule whose source template could not be compiled.
// The rule is skipped; the rest of the table still loads.
type CompileError struct {
	RuleName string
	Source   string
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile rule %q (source %q): %v", e.RuleName, e.Source, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// CompiledRule is an immutable, match-ready rule. It is owned by exactly one
// rule table snapshot and never mutated after construction.
type CompiledRule struct {
	ID      int64
	Name    string
	Source  string
	Target  string
	Timeout time.Duration

	pattern      *regexp.Regexp
	placeholders []string // original token text, capture-group order
}

// Compile translates a source template into a CompiledRule.
//
// The generated matcher is anchored to the whole path and tolerates a
// trailing query string, which is not captured. Placeholder tokens are
// recorded in encounter order, which corresponds 1:1 to capture groups.
func Compile(id int64, name, source, target string, timeout time.Duration) (*CompiledRule, error) {
	var pattern strings.Builder
	pattern.WriteString("^")

	var placeholders []string
	lastEnd := 0

	for _, match := range placeholderPattern.FindAllStringSubmatchIndex(source, -1) {
		start, end := match[0], match[1]
		wildcard := match[3] > match[2] // non-empty '*' group
		paramName := source[match[4]:match[5]]

		pattern.WriteString(regexp.QuoteMeta(source[lastEnd:start]))

		if wildcard {
			pattern.WriteString("(.+)")
			placeholders = append(placeholders, "{*"+paramName+"}")
		} else {
			pattern.WriteString("([^/]+)")
			placeholders = append(placeholders, "{"+paramName+"}")
		}
		lastEnd = end
	}

	pattern.WriteString(regexp.QuoteMeta(source[lastEnd:]))
	pattern.WriteString(`(?:\?.*)?$`)

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, &CompileError{RuleName: name, Source: source, Err: err}
	}

	return &CompiledRule{
		ID:           id,
		Name:         name,
		Source:       source,
		Target:       target,
		Timeout:      timeout,
		pattern:      re,
		placeholders: placeholders,
	}, nil
}

// MatchTarget tests path against the rule and, on a match, returns the
// target URL with every occurrence of each placeholder token replaced by
// its captured value. Substitution is purely textual.
func (r *CompiledRule) MatchTarget(path string) (string, bool) {
	captures := r.pattern.FindStringSubmatch(path)
	if captures == nil {
		return "", false
	}

	target := r.Target
	for i, token := range r.placeholders {
		target = strings.ReplaceAll(target, token, captures[i+1])
	}
	return target, true
}

// Placeholders returns the placeholder tokens in capture-group order.
func (r *CompiledRule) Placeholders() []string {
	return r.placeholders
}
