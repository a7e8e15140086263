package quiz

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopwords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "against": true, "also": true,
	"because": true, "been": true, "before": true, "being": true, "below": true, "between": true,
	"both": true, "could": true, "does": true, "doing": true, "down": true, "during": true,
	"each": true, "even": true, "every": true, "from": true, "further": true, "have": true,
	"having": true, "here": true, "into": true, "just": true, "like": true, "made": true,
	"make": true, "makes": true, "many": true, "more": true, "most": true, "much": true,
	"must": true, "only": true, "other": true, "over": true, "same": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true, "them": true,
	"then": true, "there": true, "these": true, "they": true, "this": true, "those": true,
	"through": true, "under": true, "until": true, "very": true, "video": true, "want": true,
	"were": true, "what": true, "when": true, "where": true, "which": true, "while": true,
	"will": true, "with": true, "would": true, "your": true, "yours": true, "really": true,
	"thing": true, "things": true, "going": true, "know": true, "people": true, "something": true,
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// extractKeywords returns up to n salient terms of text: no stopwords, at
// least four runes, longest first, ties in order of first appearance.
func extractKeywords(text string, n int) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range tokenize(text) {
		tok = strings.Trim(tok, "-")
		if utf8.RuneCountInString(tok) < 4 || stopwords[tok] || seen[tok] || isNumber(tok) {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return utf8.RuneCountInString(terms[i]) > utf8.RuneCountInString(terms[j])
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

// candidateSentences returns the distinct sentences of text with at least
// minWords words, in reading order.
func candidateSentences(text string, minWords int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if len(strings.Fields(s)) < minWords {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
