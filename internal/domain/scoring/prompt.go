package scoring

import (
	"regexp"
	"strings"
)

// domainTerms are technical nouns whose presence in a prompt signals the
// user is reasoning about MCP/infrastructure plumbing rather than issuing
// a plain request.
var domainTerms = []string{
	"authentication", "config", "configuration", "api", "schema", "protocol",
	"database", "token", "permission", "certificate", "encryption", "webhook",
	"endpoint", "credential", "session",
}

// logicalConnectives signal conditional or multi-step reasoning in a prompt.
var logicalConnectives = []string{
	"if", "when", "filter", "transform", "unless", "otherwise", "except", "while",
}

// actionVerbs are common tool-call verbs; seeing several in one prompt
// suggests the user is juggling multiple operations at once.
var actionVerbs = []string{
	"create", "update", "delete", "list", "read", "write", "fetch", "send",
	"call", "invoke", "parse", "validate", "remove", "install",
}

// domainTermCap bounds the prompt_complexity contribution from domain
// terminology so a single keyword-stuffed prompt can't dominate the score.
const domainTermCap = 5

var numericRef = regexp.MustCompile(`\d`)

// promptComplexity implements spec.md §4.6's prompt_complexity formula:
// base 20, plus per-term/per-connective additions, plus small length and
// multi-verb/numeric bonuses, clamped to [0,100].
func promptComplexity(prompt string) float64 {
	score := 20.0
	lower := strings.ToLower(prompt)
	words := strings.Fields(lower)

	domainHits := countWordHits(lower, domainTerms)
	if domainHits > domainTermCap {
		domainHits = domainTermCap
	}
	score += float64(domainHits) * 8

	connectiveHits := countWordHits(lower, logicalConnectives)
	score += float64(connectiveHits) * 10

	switch {
	case len(words) > 15:
		score += 10
	case len(words) > 5:
		score += 5
	}

	if countWordHits(lower, actionVerbs) >= 2 {
		score += 5
	}
	if numericRef.MatchString(prompt) {
		score += 5
	}

	return clamp(score, 0, 100)
}

// countWordHits counts how many of terms appear as whole words in text.
func countWordHits(text string, terms []string) int {
	count := 0
	for _, term := range terms {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`)
		count += len(re.FindAllString(text, -1))
	}
	return count
}
