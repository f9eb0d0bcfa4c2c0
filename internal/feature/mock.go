package feature

import (
	"context"
	"hash/fnv"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/semantic"
)

// Word lists behind the sentiment and emphasis heuristics. The mock
// extractor makes no linguistic claims; it exists so the pipeline has a
// deterministic, dependency-free source of plausible feature vectors.
var (
	positiveWords = wordSet("good", "great", "love", "happy", "wonderful",
		"bright", "joy", "calm", "warm", "hope", "sweet", "beautiful",
		"delight", "success", "win")
	negativeWords = wordSet("bad", "sad", "hate", "dark", "fear", "terrible",
		"awful", "pain", "loss", "cold", "anger", "gloom", "broken", "fail",
		"death")
	intensifiers = wordSet("very", "really", "extremely", "absolutely",
		"utterly", "totally", "deeply")
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

type mockExtractor struct {
	cfg config.FeatureConfig
}

// NewMockExtractor returns the built-in text featureizer. Same text in, same
// document out, across runs and processes.
func NewMockExtractor(cfg config.FeatureConfig) Extractor {
	return &mockExtractor{cfg: cfg}
}

func (m *mockExtractor) Extract(_ context.Context, text string) (semantic.Document, error) {
	spans := splitSentences(text)
	if len(spans) == 0 {
		return semantic.Document{}, nil
	}

	docFreq := map[string]int{}
	for _, sp := range spans {
		for _, w := range tokenize(text[sp.start:sp.end]) {
			docFreq[w]++
		}
	}
	top := topWords(docFreq, 5)

	var doc semantic.Document
	seen := map[string]struct{}{}
	for _, sp := range spans {
		raw := text[sp.start:sp.end]
		words := tokenize(raw)
		if len(words) == 0 {
			continue
		}
		doc.Segments = append(doc.Segments, semantic.Segment{
			Index:        len(doc.Segments),
			SourceStart:  sp.start,
			SourceEnd:    sp.end,
			Text:         raw,
			DurationHint: durationHint(countWords(raw), m.cfg),
			Features: semantic.Features{
				semantic.DimSentiment:  sentimentScore(words),
				semantic.DimTopicality: topicalityScore(words, top),
				semantic.DimNovelty:    noveltyScore(words, seen),
				semantic.DimEmphasis:   emphasisScore(raw, words),
				semantic.DimTopic:      topicScore(words),
			},
		})
		for _, w := range words {
			seen[w] = struct{}{}
		}
	}
	return doc, nil
}

type span struct{ start, end int }

// splitSentences cuts the text at sentence terminators and newlines. Offsets
// are byte positions into the original text, leading and trailing whitespace
// excluded; runs of terminators stay attached to their sentence.
func splitSentences(text string) []span {
	var spans []span
	segStart := -1
	for i, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			if segStart >= 0 {
				spans = append(spans, span{segStart, i + utf8.RuneLen(r)})
				segStart = -1
			} else if n := len(spans); n > 0 && spans[n-1].end == i {
				spans[n-1].end = i + utf8.RuneLen(r)
			}
		case r == '\n':
			if segStart >= 0 {
				spans = append(spans, span{segStart, trimTrailing(text, segStart, i)})
				segStart = -1
			}
		case segStart == -1 && !unicode.IsSpace(r):
			segStart = i
		}
	}
	if segStart >= 0 {
		spans = append(spans, span{segStart, trimTrailing(text, segStart, len(text))})
	}
	return spans
}

func trimTrailing(text string, start, end int) int {
	for end > start && unicode.IsSpace(rune(text[end-1])) {
		end--
	}
	return end
}

// tokenize lowercases and keeps letter and digit runs only.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// sentimentScore returns (positive-negative)/hits over the lexicon hits, so
// a segment matching only positive words scores exactly 1.
func sentimentScore(words []string) float64 {
	var pos, neg int
	for _, w := range words {
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	hits := pos + neg
	if hits == 0 {
		return 0
	}
	return float64(pos-neg) / float64(hits)
}

// topicalityScore is the share of tokens that belong to the document's most
// frequent content words.
func topicalityScore(words []string, top map[string]struct{}) float64 {
	var hits int
	for _, w := range words {
		if _, ok := top[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// topWords ranks content words (4+ runes) by document frequency, ties broken
// lexically so identical text always yields the same set.
func topWords(freq map[string]int, n int) map[string]struct{} {
	type wordCount struct {
		word  string
		count int
	}
	ranked := make([]wordCount, 0, len(freq))
	for w, c := range freq {
		if utf8.RuneCountInString(w) < 4 {
			continue
		}
		ranked = append(ranked, wordCount{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	top := make(map[string]struct{}, len(ranked))
	for _, wc := range ranked {
		top[wc.word] = struct{}{}
	}
	return top
}

// noveltyScore is the share of distinct words not seen in earlier segments.
func noveltyScore(words []string, seen map[string]struct{}) float64 {
	distinct := map[string]struct{}{}
	for _, w := range words {
		distinct[w] = struct{}{}
	}
	var fresh int
	for w := range distinct {
		if _, ok := seen[w]; !ok {
			fresh++
		}
	}
	return float64(fresh) / float64(len(distinct))
}

// emphasisScore counts exclamation marks, shouted words, and intensifiers
// relative to segment length.
func emphasisScore(raw string, words []string) float64 {
	markers := strings.Count(raw, "!")
	for _, field := range strings.Fields(raw) {
		if isShout(field) {
			markers++
		}
	}
	for _, w := range words {
		if _, ok := intensifiers[w]; ok {
			markers++
		}
	}
	score := float64(markers) / float64(len(words))
	if score > 1 {
		score = 1
	}
	return score
}

func isShout(word string) bool {
	letters := 0
	for _, r := range word {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

// topicScore folds the segment's dominant word into a stable [0,1) bucket.
// FNV keeps the value identical across processes, unlike the runtime string
// hash.
func topicScore(words []string) float64 {
	freq := map[string]int{}
	for _, w := range words {
		freq[w]++
	}
	dominant := ""
	best := 0
	for w, c := range freq {
		if c > best || (c == best && w < dominant) {
			dominant = w
			best = c
		}
	}
	h := fnv.New32a()
	h.Write([]byte(dominant))
	return float64(h.Sum32()%1000) / 1000
}
