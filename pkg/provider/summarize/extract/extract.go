// Package extract provides the offline extractive summariser used as the
// final fallback of the summarisation chain. It needs no credentials and no
// network, so it always produces a result.
//
// The algorithm is deliberately simple: the transcript is split into
// sentences, the leading and trailing ~30% form the narrative summary, and
// keyword filters pull out highlights per category. Keyword sets are
// localisable; English and Vietnamese ship built in, with English as the
// fallback for unknown languages.
package extract

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/meetscribe/meetscribe/pkg/provider/summarize"
)

// category caps, in sentences.
const (
	maxKeyPoints   = 5
	maxActionItems = 3
	maxDecisions   = 3
	maxTopics      = 5
)

// minSentenceLen filters out fragments left over by the sentence splitter.
const minSentenceLen = 10

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// keywordSets maps a language tag to the per-category keyword filters.
// Patterns are matched case-insensitively against whole sentences.
var keywordSets = map[string]map[string]*regexp.Regexp{
	"en": {
		"keyPoints":   regexp.MustCompile(`(?i)\b(important|key|main|critical|significant|highlight|note)\b`),
		"actionItems": regexp.MustCompile(`(?i)\b(will|need to|must|should|todo|action|follow up|by (monday|tuesday|wednesday|thursday|friday|next week))\b`),
		"decisions":   regexp.MustCompile(`(?i)\b(decided|agreed|conclusion|approved|confirmed|final)\b`),
		"topics":      regexp.MustCompile(`(?i)\b(about|regarding|discuss|topic|agenda|concerning)\b`),
	},
	"vi": {
		"keyPoints":   regexp.MustCompile(`(?i)(quan trọng|chính|cốt lõi|đáng chú ý|lưu ý)`),
		"actionItems": regexp.MustCompile(`(?i)(sẽ|cần|phải|nhiệm vụ|hành động|theo dõi|giao cho)`),
		"decisions":   regexp.MustCompile(`(?i)(quyết định|đồng ý|thống nhất|kết luận|phê duyệt|chốt)`),
		"topics":      regexp.MustCompile(`(?i)(về việc|liên quan|thảo luận|chủ đề|nội dung|bàn về)`),
	},
}

// Provider implements summarize.Provider with a pure extractive strategy.
// It never fails on non-empty input, making it the terminal chain element.
type Provider struct{}

// New creates a new extractive Provider.
func New() *Provider { return &Provider{} }

// Name implements summarize.Provider.
func (p *Provider) Name() string { return "custom" }

// Summarize implements summarize.Provider.
func (p *Provider) Summarize(_ context.Context, req summarize.Request) (*summarize.Result, error) {
	sentences := SplitSentences(req.Text)
	if len(sentences) == 0 {
		return nil, fmt.Errorf("extract: no usable sentences in transcript: %w", summarize.ErrUnavailable)
	}

	kw := keywordsFor(req.Language)
	return &summarize.Result{
		Summary:     composeSummary(sentences),
		KeyPoints:   filterSentences(sentences, kw["keyPoints"], maxKeyPoints),
		ActionItems: filterSentences(sentences, kw["actionItems"], maxActionItems),
		Decisions:   filterSentences(sentences, kw["decisions"], maxDecisions),
		Topics:      filterSentences(sentences, kw["topics"], maxTopics),
		Source:      p.Name(),
	}, nil
}

// SplitSentences breaks text into sentences on terminal punctuation runs,
// dropping fragments of 10 characters or fewer.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if len(s) > minSentenceLen {
			out = append(out, s)
		}
	}
	return out
}

// composeSummary picks the leading ceil(0.3n/2) and trailing floor(0.3n/2)
// sentences. Openings state the agenda and closings state the outcome; the
// middle is the least information-dense part of most meetings.
func composeSummary(sentences []string) string {
	n := len(sentences)
	head := int(math.Ceil(float64(n) * 0.3 / 2))
	tail := int(math.Floor(float64(n) * 0.3 / 2))
	if head < 1 {
		head = 1
	}
	if head+tail > n {
		head, tail = n, 0
	}

	parts := append([]string{}, sentences[:head]...)
	parts = append(parts, sentences[n-tail:]...)
	return strings.Join(parts, ". ")
}

// filterSentences returns up to max sentences matching re, in transcript order.
func filterSentences(sentences []string, re *regexp.Regexp, max int) []string {
	var out []string
	for _, s := range sentences {
		if re.MatchString(s) {
			out = append(out, s)
			if len(out) == max {
				break
			}
		}
	}
	return out
}

// keywordsFor resolves the keyword set for a BCP-47 tag, falling back to
// English.
func keywordsFor(language string) map[string]*regexp.Regexp {
	tag := strings.ToLower(language)
	if i := strings.IndexByte(tag, '-'); i > 0 {
		tag = tag[:i]
	}
	if set, ok := keywordSets[tag]; ok {
		return set
	}
	return keywordSets["en"]
}
