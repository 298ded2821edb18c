// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textutil provides tokenization helpers shared by the search
// adapters: stop-word stripping, part-number detection, and part-number
// normalization.
package textutil

import (
	"regexp"
	"strings"
)

// stopWords are tokens stripped before keyword matching. The structured
// and graph adapters share this policy so their keyword sets agree.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "do": true, "does": true,
	"for": true, "from": true, "have": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "my": true, "need": true,
	"of": true, "on": true, "or": true, "the": true, "this": true,
	"to": true, "want": true, "we": true, "what": true, "where": true,
	"which": true, "with": true, "you": true,
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9.\-/]*`)

// Keywords tokenizes the query, lowercases tokens, and drops stop words
// and single-character tokens.
func Keywords(query string) []string {
	var out []string
	for _, tok := range tokenRe.FindAllString(query, -1) {
		tok = strings.ToLower(strings.Trim(tok, ".-/"))
		if len(tok) <= 1 || stopWords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Phrase returns the cleaned keyword phrase: keywords joined by single
// spaces.
func Phrase(query string) string {
	return strings.Join(Keywords(query), " ")
}

// Part-number shapes seen across heavy-equipment catalogs:
// two-to-three letters + dash + 4-7 digits (AT-123456), digit groups
// joined by dashes (123-4567), and letter+digit runs with no dash
// (RE504836).
var partNumberRes = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Za-z]{2,3}-\d{4,7}\b`),
	regexp.MustCompile(`\b\d{2,5}-\d{2,6}(?:-\d{1,4})?\b`),
	regexp.MustCompile(`\b[A-Za-z]{1,3}\d{4,8}\b`),
}

// PartNumbers extracts part-number-shaped tokens from the query, in
// order of appearance, deduplicated after normalization.
func PartNumbers(query string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, re := range partNumberRes {
		for _, m := range re.FindAllString(query, -1) {
			key := NormalizePartNumber(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.ToUpper(m))
		}
	}
	return out
}

// NormalizePartNumber uppercases and strips dashes and spaces so that
// "at-123456" and "AT 123456" compare equal.
func NormalizePartNumber(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// StripPartNumbers removes detected part-number tokens from the query
// and returns the remaining text.
func StripPartNumbers(query string) string {
	out := query
	for _, re := range partNumberRes {
		out = re.ReplaceAllString(out, " ")
	}
	return strings.Join(strings.Fields(out), " ")
}

// UnionStrings appends items from add that are not already in dst,
// preserving first-seen order.
func UnionStrings(dst, add []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range add {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}
