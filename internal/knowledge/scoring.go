package knowledge

import "strings"

// Scoring weights. The final score is:
//
//	rank × source_weight × word_factor × personality_factor
//	  + project_boost + context_bonus + access_bonus + priorWeight × prior
//
// where rank is the native full-text rank and prior is the stored
// relevance score normalized to 0-1.
const (
	// word_factor shaping: entries between richWordsMin and richWordsMax
	// words score 1.0; thinner entries are penalized harder than very
	// long ones.
	richWordsMin    = 100
	richWordsMax    = 5000
	thinWordFactor  = 0.7
	longWordFactor  = 0.9

	// Context keyword bonuses, per matched keyword.
	contextBodyBonus  = 0.1
	contextTitleBonus = 0.2

	// Access bonus: access_count/100, capped.
	accessBonusCap     = 0.1
	accessBonusDivisor = 100

	// Stored prior: relevance_score/priorScale, weighted by priorWeight.
	priorWeight = 0.2
	priorScale  = 10
)

// wordFactor shapes scores by entry length, favoring 100-5000 word
// entries.
func wordFactor(wordCount int) float64 {
	switch {
	case wordCount < richWordsMin:
		return thinWordFactor
	case wordCount > richWordsMax:
		return longWordFactor
	default:
		return 1.0
	}
}

// accessBonus rewards frequently retrieved entries, capped so popularity
// never dominates relevance.
func accessBonus(accessCount int) float64 {
	bonus := float64(accessCount) / accessBonusDivisor
	if bonus > accessBonusCap {
		return accessBonusCap
	}
	return bonus
}

// contextBonus counts context keywords appearing in the entry: title
// matches are worth twice a body match.
func contextBonus(e *Entry, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	title := strings.ToLower(e.Title)
	body := strings.ToLower(e.Content)

	var bonus float64
	for _, kw := range keywords {
		if strings.Contains(body, kw) {
			bonus += contextBodyBonus
		}
		if strings.Contains(title, kw) {
			bonus += contextTitleBonus
		}
	}
	return bonus
}

// scoreCandidate computes the final score for one candidate.
func scoreCandidate(c *Candidate, strategy Strategy, keywords []string) float64 {
	score := c.Rank * c.SourceWeight * wordFactor(c.WordCount) * strategy.Factor(&c.Entry)
	score += c.ProjectBoost
	score += contextBonus(&c.Entry, keywords)
	score += accessBonus(c.AccessCount)
	score += priorWeight * (c.RelevanceScore / priorScale)
	return score
}

// Related-entry composite weights: a shared project outranks topic
// overlap, with the stored prior and popularity as tie-breakers.
const (
	relatedProjectWeight = 2.0
	relatedTopicWeight   = 0.5
)

// scoreRelated computes the composite ordering score for Related results.
func scoreRelated(c *Candidate, ref *Entry) float64 {
	var score float64

	if c.ProjectID != nil && ref.ProjectID != nil && *c.ProjectID == *ref.ProjectID {
		score += relatedProjectWeight
	}
	score += relatedTopicWeight * float64(topicOverlap(c.KeyTopics, ref.KeyTopics))
	score += priorWeight * (c.RelevanceScore / priorScale)
	score += accessBonus(c.AccessCount)

	return score
}

// topicOverlap counts key topics present in both sets.
func topicOverlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[strings.ToLower(t)] = struct{}{}
	}
	var n int
	for _, t := range b {
		if _, ok := set[strings.ToLower(t)]; ok {
			n++
		}
	}
	return n
}
