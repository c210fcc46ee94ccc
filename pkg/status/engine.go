package status

import (
	"sort"
	"time"

	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/clarion-health/screening/pkg/docmatch"
)

type Config struct {
	// Minimum confidence for a match candidate to count as evidence.
	AcceptanceThreshold float64
	// How far before the due-by date an assignment flips to Due Soon.
	LeadTimeBuffer time.Duration
	// How long a never-screened patient stays Due before the engine can
	// call the assignment Incomplete.
	GracePeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		AcceptanceThreshold: 0.6,
		LeadTimeBuffer:      30 * 24 * time.Hour,
		GracePeriod:         30 * 24 * time.Hour,
	}
}

type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// DocumentCandidates pairs a document with the match candidates the
// document matcher produced for it against one definition.
type DocumentCandidates struct {
	Document   models.Document
	Candidates []models.MatchCandidate
}

type Determination struct {
	Status          models.Status
	LastCompleted   *time.Time
	ChosenDocuments []models.DocumentLink
}

// Determine computes the current status and completion anchor for one
// (patient, definition) pair. eligibleSince anchors the never-screened
// rules; nil means the eligibility start is unknown and the assignment
// defaults to Due.
func (e *Engine) Determine(docs []DocumentCandidates, def models.ScreeningDefinition, eligibleSince *time.Time, asOf time.Time) Determination {
	links := e.qualifyingLinks(docs)

	if len(links) == 0 {
		return Determination{Status: e.neverScreened(def, eligibleSince, asOf)}
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].EffectiveDate.After(links[j].EffectiveDate)
	})

	lastCompleted := links[0].EffectiveDate
	dueBy := def.Frequency.AddTo(lastCompleted)

	var st models.Status
	switch {
	case dueBy.After(asOf.Add(e.cfg.LeadTimeBuffer)):
		st = models.StatusComplete
	case dueBy.After(asOf):
		st = models.StatusDueSoon
	default:
		// The due-by date has passed: a new cycle has started.
		st = models.StatusDue
	}

	return Determination{
		Status:          st,
		LastCompleted:   &lastCompleted,
		ChosenDocuments: links,
	}
}

// qualifyingLinks keeps, per document, the single best candidate at or
// above the acceptance threshold. Confidence combines by max across
// sources, never by averaging.
func (e *Engine) qualifyingLinks(docs []DocumentCandidates) []models.DocumentLink {
	var links []models.DocumentLink
	for _, dc := range docs {
		best, ok := docmatch.Best(dc.Candidates)
		if !ok || best.Confidence < e.cfg.AcceptanceThreshold {
			continue
		}
		links = append(links, models.DocumentLink{
			DocumentID:    dc.Document.ID,
			Confidence:    best.Confidence,
			Source:        best.Source,
			EffectiveDate: dc.Document.EffectiveDate(),
		})
	}
	return links
}

// neverScreened distinguishes "not yet due" from "overdue with no
// evidence ever found". The boundary is one full expected cycle past the
// eligibility start, extended by the configured grace period.
func (e *Engine) neverScreened(def models.ScreeningDefinition, eligibleSince *time.Time, asOf time.Time) models.Status {
	if eligibleSince == nil {
		return models.StatusDue
	}
	cycleEnd := def.Frequency.AddTo(*eligibleSince)
	graceEnd := eligibleSince.Add(e.cfg.GracePeriod)
	if asOf.After(cycleEnd) && asOf.After(graceEnd) {
		return models.StatusIncomplete
	}
	return models.StatusDue
}
