package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const maxQueryLength = 100

// Compiled regex patterns for query preprocessing
var (
	// Characters the Finding API rejects or treats as operators
	querySpecialChars = regexp.MustCompile(`[#%+@!^*()=\[\]{}<>|\\~"` + "`" + `]`)

	// Marketplace price annotations like "$50", "$1,200 obo"
	queryPricePattern = regexp.MustCompile(`\$[\d,.]+`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)

	// Lone punctuation left behind after removals
	orphanPunctuation   = regexp.MustCompile(`\s+[,\-;:/]+\s+`)
	trailingPunctuation = regexp.MustCompile(`[,\-;:/]+\s*$`)
	leadingPunctuation  = regexp.MustCompile(`^\s*[,\-;:/]+`)

	// Cache keys only keep letters, digits and spaces
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
)

// queryNoisePhrases are seller annotations that never help a sold-items search
var queryNoisePhrases = []string{
	"or best offer", "pickup only", "pick up only", "must go", "must sell",
	"price firm", "firm price", "negotiable", "like new", "brand new",
	"great condition", "good condition", "excellent condition", "no lowballs",
}

// noisePhrasePattern matches any noise phrase case-insensitively
var noisePhrasePattern = compileNoisePhrases(queryNoisePhrases)

func compileNoisePhrases(phrases []string) *regexp.Regexp {
	quoted := make([]string, len(phrases))
	for i, phrase := range phrases {
		quoted[i] = regexp.QuoteMeta(phrase)
	}
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

// queryNoiseWords are single-word annotations removed from queries
var queryNoiseWords = map[string]bool{
	"obo":       true,
	"firm":      true,
	"cheap":     true,
	"asap":      true,
	"wow":       true,
	"sale":      true,
	"deal":      true,
	"nib":       true,
	"nwt":       true,
	"used":      true,
	"free":      true,
	"shipping":  true,
	"available": true,
}

// QueryPreprocessor cleans listing titles and model answers into search keywords
type QueryPreprocessor struct {
	logger *zap.Logger
}

// NewQueryPreprocessor creates a new query preprocessor. logger may be nil.
func NewQueryPreprocessor(logger *zap.Logger) *QueryPreprocessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryPreprocessor{logger: logger}
}

// PreprocessQuery cleans a title for the sold-items search.
// Removes prices, emoji, seller annotations and API-hostile characters, and limits length.
// If cleaning removes everything, the trimmed original is returned.
func (p *QueryPreprocessor) PreprocessQuery(title string) string {
	original := strings.TrimSpace(title)
	if original == "" {
		return ""
	}

	// Step 1: Drop emoji and other symbols
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) || r == '$' {
			return r
		}
		return ' '
	}, original)

	// Step 2: Remove price annotations
	cleaned = queryPricePattern.ReplaceAllString(cleaned, " ")

	// Step 3: Sanitize characters the API rejects
	cleaned = strings.ReplaceAll(cleaned, "&", " and ")
	cleaned = querySpecialChars.ReplaceAllString(cleaned, " ")

	// Step 4: Remove noise phrases and words
	cleaned = removeNoisePhrases(cleaned)
	cleaned = removeNoiseWords(cleaned)

	// Step 5: Clean up punctuation that's now orphaned
	cleaned = cleanOrphanedPunctuation(cleaned)

	// Step 6: Normalize whitespace
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		cleaned = original
	}

	// Step 7: Limit query length, cutting at a word boundary when possible
	if len(cleaned) > maxQueryLength {
		cleaned = truncateRunes(cleaned, maxQueryLength)
		if lastSpace := strings.LastIndex(cleaned, " "); lastSpace > maxQueryLength/2 {
			cleaned = cleaned[:lastSpace]
		}
	}

	p.logger.Debug("preprocessed query", zap.String("input", original), zap.String("output", cleaned))

	return cleaned
}

// truncateRunes cuts s to at most n bytes without splitting a character
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// removeNoisePhrases removes multi-word seller annotations, case-insensitively
func removeNoisePhrases(s string) string {
	return noisePhrasePattern.ReplaceAllString(s, " ")
}

// removeNoiseWords removes single-word annotations, preserving the case of kept words
func removeNoiseWords(s string) string {
	words := strings.Fields(s)
	kept := make([]string, 0, len(words))

	for _, word := range words {
		cleanWord := strings.ToLower(strings.Trim(word, ",.!?;:-'"))
		if !queryNoiseWords[cleanWord] {
			kept = append(kept, word)
		}
	}

	return strings.Join(kept, " ")
}

// cleanOrphanedPunctuation removes punctuation that's now alone (e.g., lone commas)
func cleanOrphanedPunctuation(s string) string {
	result := orphanPunctuation.ReplaceAllString(s, " ")
	result = trailingPunctuation.ReplaceAllString(result, "")
	result = leadingPunctuation.ReplaceAllString(result, "")
	return result
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Converts to lowercase, removes special characters, and trims whitespace.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, "")
	result = multiSpacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}
