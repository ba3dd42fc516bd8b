// Package filter implements whitespace-tokenised substring search over
// catalog records. A record matches when every query token occurs in its
// lowercased haystack; there is no ranking or fuzzy matching.
package filter

import "strings"

// Tokenize lowercases the query and splits it on whitespace, dropping empty tokens.
func Tokenize(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Query is a parsed search query.
type Query struct {
	tokens []string
}

// Parse builds a Query from raw search text.
func Parse(text string) Query {
	return Query{tokens: Tokenize(text)}
}

// Empty reports whether the query has no tokens and therefore matches everything.
func (q Query) Empty() bool { return len(q.tokens) == 0 }

// Tokens returns a copy of the query tokens.
func (q Query) Tokens() []string { return append([]string(nil), q.tokens...) }

// Match reports whether every token is a case-insensitive substring of haystack.
func (q Query) Match(haystack string) bool {
	if q.Empty() {
		return true
	}
	hay := strings.ToLower(haystack)
	for _, tok := range q.tokens {
		if !strings.Contains(hay, tok) {
			return false
		}
	}
	return true
}

// Apply returns the items whose haystack matches. An empty query returns
// items unchanged; otherwise input order is preserved in a new slice.
func Apply[T any](items []T, text string, haystack func(T) string) []T {
	q := Parse(text)
	if q.Empty() {
		return items
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if q.Match(haystack(item)) {
			out = append(out, item)
		}
	}
	return out
}

// Names filters a list of names by the query.
func Names(names []string, text string) []string {
	return Apply(names, text, func(s string) string { return s })
}
