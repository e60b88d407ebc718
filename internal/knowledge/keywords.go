package knowledge

import (
	"sort"
	"strings"
	"unicode"
)

// Context keyword extraction parameters.
const (
	// contextWindow is how many trailing context messages are examined.
	contextWindow = 5

	// minKeywordLen: words must be longer than this to count.
	minKeywordLen = 3

	// maxKeywords is the cap on extracted keywords.
	maxKeywords = 10

	// augmentKeywords is how many keywords are OR-ed onto the query.
	augmentKeywords = 3
)

// stopwords that never become context keywords. Fixed set; keyword
// extraction is a ranking nudge, not NLP.
var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "also": {}, "been": {},
	"before": {}, "being": {}, "could": {}, "does": {}, "doing": {},
	"down": {}, "each": {}, "from": {}, "have": {}, "having": {},
	"here": {}, "into": {}, "just": {}, "like": {}, "more": {},
	"most": {}, "only": {}, "other": {}, "over": {}, "same": {},
	"should": {}, "some": {}, "such": {}, "than": {}, "that": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "those": {}, "through": {}, "under": {},
	"until": {}, "very": {}, "want": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "while": {}, "will": {},
	"with": {}, "would": {}, "your": {},
}

// ExtractKeywords pulls the most frequent significant words from the last
// contextWindow messages. Words are lowercased, stopwords and short words
// dropped, and the top maxKeywords by frequency returned. Ties are broken
// alphabetically so extraction is deterministic.
func ExtractKeywords(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	if len(messages) > contextWindow {
		messages = messages[len(messages)-contextWindow:]
	}

	freq := make(map[string]int)
	for _, msg := range messages {
		for _, word := range splitWords(msg) {
			if len(word) <= minKeywordLen {
				continue
			}
			if _, stop := stopwords[word]; stop {
				continue
			}
			freq[word]++
		}
	}
	if len(freq) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(freq))
	for w := range freq {
		keywords = append(keywords, w)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if freq[keywords[i]] != freq[keywords[j]] {
			return freq[keywords[i]] > freq[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

// AugmentQuery appends an OR-disjunction of the top keywords to the query,
// in websearch_to_tsquery syntax. Context nudges candidate retrieval but
// never replaces explicit intent — the original query terms stay first.
func AugmentQuery(query string, keywords []string) string {
	if len(keywords) == 0 {
		return query
	}
	if len(keywords) > augmentKeywords {
		keywords = keywords[:augmentKeywords]
	}

	var b strings.Builder
	b.WriteString(query)
	for _, kw := range keywords {
		b.WriteString(" OR ")
		b.WriteString(kw)
	}
	return b.String()
}

// splitWords lowercases s and splits it on anything that is not a letter
// or digit.
func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
