package docmatch

import (
	"os"
	"testing"
	"time"

	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func mammographyDefinition() models.ScreeningDefinition {
	return models.ScreeningDefinition{
		ID:               "def-mammo",
		Name:             "Mammography Screening",
		Active:           true,
		ContentKeywords:  []string{"mammogram", "mammography", "breast us"},
		FilenameKeywords: []string{"mammo", "mammogram"},
		SectionKeywords:  []string{"radiology"},
		Frequency:        models.Frequency{Magnitude: 2, Unit: "year"},
	}
}

func doc(filename, text, section string) models.Document {
	return models.Document{
		ID:         "doc-1",
		PatientID:  "patient-1",
		Filename:   filename,
		Text:       text,
		SectionTag: section,
		IngestedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestConfidenceOrderingAcrossSources(t *testing.T) {
	m := New(DefaultConfig())
	def := mammographyDefinition()

	candidates := m.Match(doc("mammogram_2025.pdf", "routine mammography performed, breast US follow-up", "radiology"), def)
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}

	bySource := map[models.MatchSource]float64{}
	for _, c := range candidates {
		if c.Confidence > bySource[c.Source] {
			bySource[c.Source] = c.Confidence
		}
	}

	if bySource[models.SourceFilename] < bySource[models.SourceContent] {
		t.Fatalf("filename confidence %v must be >= content %v", bySource[models.SourceFilename], bySource[models.SourceContent])
	}
	if bySource[models.SourceContent] <= bySource[models.SourceSection] {
		t.Fatalf("content confidence %v must exceed section %v", bySource[models.SourceContent], bySource[models.SourceSection])
	}
}

func TestPhraseOutscoresSingleWordInContent(t *testing.T) {
	m := New(DefaultConfig())
	def := mammographyDefinition()

	candidates := m.Match(doc("report.pdf", "breast us and mammogram both mentioned", ""), def)

	var phrase, word float64
	for _, c := range candidates {
		if c.Source != models.SourceContent {
			continue
		}
		if c.Pattern == "breast us" {
			phrase = c.Confidence
		}
		if c.Pattern == "mammogram" {
			word = c.Confidence
		}
	}
	if phrase == 0 || word == 0 {
		t.Fatalf("expected both phrase and word candidates, got %v", candidates)
	}
	if phrase <= word {
		t.Fatalf("phrase confidence %v must exceed single-word %v", phrase, word)
	}
}

func TestBestTakesMaxNotAverage(t *testing.T) {
	m := New(DefaultConfig())
	def := mammographyDefinition()

	candidates := m.Match(doc("mammogram.pdf", "mammography noted", "radiology"), def)
	best, ok := Best(candidates)
	if !ok {
		t.Fatal("expected a best candidate")
	}
	if best.Confidence != DefaultConfig().FilenameConfidence {
		t.Fatalf("expected max confidence %v, got %v", DefaultConfig().FilenameConfidence, best.Confidence)
	}
	// An average of the three sources would land below the filename
	// weight; max must win.
	for _, c := range candidates {
		if c.Confidence > best.Confidence {
			t.Fatalf("candidate %v exceeds reported best %v", c, best)
		}
	}
}

func TestNoFalsePositivesOnUnrelatedText(t *testing.T) {
	m := New(DefaultConfig())
	def := mammographyDefinition()

	candidates := m.Match(doc("visit_note.pdf", "average risk patient with suspicious lesions", "progress note"), def)
	if len(candidates) != 0 {
		t.Fatalf("expected zero candidates, got %v", candidates)
	}
}

func TestMissingTextSkipsContentCheck(t *testing.T) {
	m := New(DefaultConfig())
	def := mammographyDefinition()

	candidates := m.Match(doc("mammogram.pdf", "", "radiology"), def)
	for _, c := range candidates {
		if c.Source == models.SourceContent {
			t.Fatalf("content candidate produced for document without text: %v", c)
		}
	}
	if len(candidates) == 0 {
		t.Fatal("expected filename and section candidates")
	}
}

func TestFallbackKeywordsFromDefinitionName(t *testing.T) {
	def := models.ScreeningDefinition{
		ID:        "def-dxa",
		Name:      "DXA Bone Density Scan",
		Active:    true,
		Frequency: models.Frequency{Magnitude: 2, Unit: "year"},
	}

	keywords := FallbackKeywords(def.Name)
	if len(keywords) != 3 {
		t.Fatalf("expected [dxa bone density], got %v", keywords)
	}

	m := New(DefaultConfig())
	candidates := m.Match(doc("dxa_scan.pdf", "", ""), def)
	if len(candidates) == 0 {
		t.Fatal("expected fallback keywords to match the filename")
	}
	if candidates[0].Source != models.SourceFilename {
		t.Fatalf("expected filename source, got %s", candidates[0].Source)
	}
}

func TestContextSnippetSurroundsMatch(t *testing.T) {
	m := New(DefaultConfig())
	def := mammographyDefinition()

	text := "history reviewed in detail; screening mammography performed today without complication"
	candidates := m.Match(doc("report.pdf", text, ""), def)
	if len(candidates) == 0 {
		t.Fatal("expected a content candidate")
	}
	for _, c := range candidates {
		if c.Source == models.SourceContent && c.Context == "" {
			t.Fatalf("expected non-empty context for %v", c)
		}
	}
}
