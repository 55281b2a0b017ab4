package main

import (
	"regexp"
	"strings"
)

// QueryClassification is the safety verdict for a raw SQL string.
type QueryClassification int

const (
	ReadOnly QueryClassification = iota
	Mutating
)

func (c QueryClassification) String() string {
	if c == Mutating {
		return "mutating"
	}
	return "read-only"
}

var readOnlyPrefixes = []string{"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH"}

var mutatingKeywords = []string{"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE"}

// mutatingWord matches a mutating keyword as a whole word in upper-cased SQL.
var mutatingWord = regexp.MustCompile(`(?:^|[^A-Z0-9_])(?:` + strings.Join(mutatingKeywords, "|") + `)(?:[^A-Z0-9_]|$)`)

// Classifier decides whether raw SQL may run without an explicit write override.
//
// The default mode matches on a read-only prefix first and only then scans for
// mutating keywords, so "SELECT 1; DROP TABLE x" is read-only. Strict mode
// strips literals and comments with Strip, splits statements on ';' and
// requires every statement to start with a read-only keyword and contain no
// mutating keyword.
type Classifier struct {
	Strict bool
	Strip  func(sql string) string
}

// Classify returns the classification of query. The query itself is never modified.
func (c Classifier) Classify(query string) QueryClassification {
	if c.Strict {
		return c.classifyStatements(query)
	}
	return classifyPrefix(query)
}

func classifyPrefix(query string) QueryClassification {
	upper := strings.ToUpper(strings.TrimSpace(query))

	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return ReadOnly
		}
	}

	for _, kw := range mutatingKeywords {
		if strings.Contains(upper, kw) {
			return Mutating
		}
	}

	return ReadOnly
}

func (c Classifier) classifyStatements(query string) QueryClassification {
	cleaned := query
	if c.Strip != nil {
		cleaned = c.Strip(query)
	}

	for _, stmt := range strings.Split(cleaned, ";") {
		upper := strings.ToUpper(strings.TrimSpace(stmt))
		if upper == "" {
			continue
		}
		if !hasReadOnlyKeyword(upper) || mutatingWord.MatchString(upper) {
			return Mutating
		}
	}
	return ReadOnly
}

// hasReadOnlyKeyword reports whether the statement's first word is a read-only keyword.
func hasReadOnlyKeyword(upper string) bool {
	end := strings.IndexFunc(upper, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r == '_')
	})
	first := upper
	if end >= 0 {
		first = upper[:end]
	}
	for _, prefix := range readOnlyPrefixes {
		if first == prefix {
			return true
		}
	}
	return false
}
