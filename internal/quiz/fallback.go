package quiz

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pavelanni/ytlearner/internal/content"
	"github.com/pavelanni/ytlearner/internal/model"
)

const (
	minSentenceWords   = 6
	rubricKeywordCount = 3
	maxDistractors     = 3
	blank              = "_____"
)

type candidate struct {
	sentence string
	term     string
	keywords []string
}

// candidates picks one sentence per distinct salient term.
func candidates(m model.Material) []candidate {
	var out []candidate
	used := make(map[string]bool)
	for _, s := range candidateSentences(content.Text(m), minSentenceWords) {
		kws := extractKeywords(s, rubricKeywordCount)
		if len(kws) == 0 || used[kws[0]] {
			continue
		}
		used[kws[0]] = true
		out = append(out, candidate{sentence: s, term: kws[0], keywords: kws})
	}
	return out
}

// fallbackQuestions builds a quiz from the material text alone. MCQs blank
// out a sentence's key term, short answers ask the student to explain it.
func fallbackQuestions(m model.Material, numMCQ, numShort int, cfg GenerationConfig) ([]model.Question, error) {
	cands := candidates(m)
	if need := numMCQ + numShort; len(cands) < need {
		return nil, fmt.Errorf("%w: material %q yields %d usable sentences, need %d",
			ErrGenerationUnavailable, m.Ref, len(cands), need)
	}

	var pool []string
	for _, c := range cands {
		pool = append(pool, c.keywords...)
	}

	questions := make([]model.Question, 0, numMCQ+numShort)
	for i := range numMCQ {
		c := cands[i]
		options := append([]string{c.term}, distractors(c, pool)...)
		if len(options) < 2 {
			return nil, fmt.Errorf("%w: no distractors for term %q", ErrGenerationUnavailable, c.term)
		}
		sort.Strings(options)
		questions = append(questions, model.Question{
			ID:        len(questions),
			Type:      model.QuestionMCQ,
			Prompt:    "Fill in the blank: " + blankOut(c.sentence, c.term),
			MaxPoints: cfg.MCQPoints,
			Topic:     c.term,
			MCQ:       &model.MCQ{Options: options, CorrectAnswer: c.term},
		})
	}
	for i := range numShort {
		c := cands[numMCQ+i]
		questions = append(questions, model.Question{
			ID:        len(questions),
			Type:      model.QuestionShort,
			Prompt:    fmt.Sprintf("In your own words, explain what the video says about %s.", c.term),
			MaxPoints: cfg.ShortPoints,
			Topic:     c.term,
			Short: &model.ShortAnswer{
				CorrectAnswer:  c.sentence,
				RubricKeywords: c.keywords,
			},
		})
	}
	return questions, nil
}

func distractors(c candidate, pool []string) []string {
	var out []string
	picked := map[string]bool{c.term: true}
	for _, kw := range c.keywords {
		picked[kw] = true
	}
	for _, term := range pool {
		if picked[term] {
			continue
		}
		picked[term] = true
		out = append(out, term)
		if len(out) == maxDistractors {
			break
		}
	}
	return out
}

// blankOut replaces whole-word occurrences of term, ignoring case.
func blankOut(sentence, term string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(term))
	var b strings.Builder
	last := 0
	for _, loc := range re.FindAllStringIndex(sentence, -1) {
		if !wholeWord(sentence, loc[0], loc[1]) {
			continue
		}
		b.WriteString(sentence[last:loc[0]])
		b.WriteString(blank)
		last = loc[1]
	}
	b.WriteString(sentence[last:])
	return b.String()
}

// wholeWord reports whether s[start:end] is not part of a longer token.
func wholeWord(s string, start, end int) bool {
	if r, _ := utf8.DecodeLastRuneInString(s[:start]); start > 0 && isWordRune(r) {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(s[end:]); end < len(s) && isWordRune(r) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'
}
