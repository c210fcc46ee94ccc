package docmatch

import (
	"strings"

	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/clarion-health/screening/pkg/matcher"
)

// Confidence weights per match source. The ordering is load-bearing:
// filename >= content phrase > content single word > section tag. A
// document's overall confidence is the max across sources, never an
// average.
type Config struct {
	FilenameConfidence      float64
	ContentPhraseConfidence float64
	ContentWordConfidence   float64
	SectionConfidence       float64
	ContextRadius           int
}

func DefaultConfig() Config {
	return Config{
		FilenameConfidence:      0.90,
		ContentPhraseConfidence: 0.85,
		ContentWordConfidence:   0.70,
		SectionConfidence:       0.60,
		ContextRadius:           40,
	}
}

type Matcher struct {
	cfg Config
}

func New(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Match runs the keyword matcher against the document's filename, body
// text and section tag with the definition's three keyword lists, and
// returns every candidate found. A document without extracted text
// simply skips the content check.
func (m *Matcher) Match(doc models.Document, def models.ScreeningDefinition) []models.MatchCandidate {
	filenameKeywords := def.FilenameKeywords
	contentKeywords := def.ContentKeywords
	sectionKeywords := def.SectionKeywords

	if !def.HasKeywords() {
		// Unconfigured definitions still get baseline matching from
		// keywords derived from the definition name.
		fallback := FallbackKeywords(def.Name)
		filenameKeywords = fallback
		contentKeywords = fallback
		sectionKeywords = fallback
	}

	var candidates []models.MatchCandidate
	candidates = append(candidates, m.matchField(doc, def, doc.Filename, filenameKeywords, models.SourceFilename)...)

	if doc.Text != "" {
		candidates = append(candidates, m.matchField(doc, def, doc.Text, contentKeywords, models.SourceContent)...)
	}

	if doc.SectionTag != "" {
		candidates = append(candidates, m.matchField(doc, def, doc.SectionTag, sectionKeywords, models.SourceSection)...)
	}

	return candidates
}

func (m *Matcher) matchField(doc models.Document, def models.ScreeningDefinition, haystack string, keywords []string, source models.MatchSource) []models.MatchCandidate {
	if haystack == "" || len(keywords) == 0 {
		return nil
	}

	set, err := matcher.Compile(keywords)
	if err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"definition_id": def.ID,
			"source":        string(source),
		}).Warn("failed to compile keyword set, skipping field")
		return nil
	}

	var candidates []models.MatchCandidate
	for _, match := range set.FindMatches(haystack) {
		candidates = append(candidates, models.MatchCandidate{
			DefinitionID: def.ID,
			DocumentID:   doc.ID,
			Source:       source,
			Pattern:      match.Pattern,
			Confidence:   m.confidence(source, match.IsPhrase),
			Context:      snippet(haystack, match.Start, match.End, m.cfg.ContextRadius),
		})
	}
	return candidates
}

func (m *Matcher) confidence(source models.MatchSource, isPhrase bool) float64 {
	switch source {
	case models.SourceFilename:
		return m.cfg.FilenameConfidence
	case models.SourceContent:
		if isPhrase {
			return m.cfg.ContentPhraseConfidence
		}
		return m.cfg.ContentWordConfidence
	case models.SourceSection:
		return m.cfg.SectionConfidence
	default:
		return 0
	}
}

// Best returns the highest-confidence candidate of a set. Multiple weak
// signals are never averaged into a combined score.
func Best(candidates []models.MatchCandidate) (models.MatchCandidate, bool) {
	var best models.MatchCandidate
	found := false
	for _, c := range candidates {
		if !found || c.Confidence > best.Confidence {
			best = c
			found = true
		}
	}
	return best, found
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "for": {}, "of": {}, "the": {}, "with": {},
	"test": {}, "tests": {}, "screening": {}, "scan": {}, "exam": {},
	"examination": {}, "study": {}, "panel": {},
}

// FallbackKeywords derives keywords mechanically from a definition name:
// lowercase, split on whitespace, stopwords dropped.
func FallbackKeywords(name string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(name)) {
		word = strings.Trim(word, ".,;:()")
		if word == "" {
			continue
		}
		if _, skip := stopwords[word]; skip {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

func snippet(haystack string, start, end, radius int) string {
	if radius <= 0 {
		return haystack[start:end]
	}
	from := start - radius
	if from < 0 {
		from = 0
	}
	to := end + radius
	if to > len(haystack) {
		to = len(haystack)
	}
	return strings.TrimSpace(haystack[from:to])
}
