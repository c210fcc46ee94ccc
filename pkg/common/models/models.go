package models

import (
	"strings"
	"time"
)

// Assignment lifecycle states
type Status string

const (
	StatusDue        Status = "due"
	StatusDueSoon    Status = "due_soon"
	StatusIncomplete Status = "incomplete"
	StatusComplete   Status = "complete"
)

// Definition change kinds carried on the event bus
type ChangeKind string

const (
	KeywordsChanged            ChangeKind = "keywords_changed"
	CutoffOrFrequencyChanged   ChangeKind = "cutoff_or_frequency_changed"
	DemographicCriteriaChanged ChangeKind = "demographic_criteria_changed"
	ActivationToggled          ChangeKind = "activation_toggled"
)

type ChangeEvent struct {
	DefinitionID string     `json:"definition_id"`
	Kind         ChangeKind `json:"kind"`
	Active       bool       `json:"active"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

type ConditionRecord struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

type PatientSnapshot struct {
	ID         string            `json:"id"`
	BirthDate  *time.Time        `json:"birth_date,omitempty"`
	Sex        string            `json:"sex"`
	Conditions []ConditionRecord `json:"conditions"`
}

// AgeAt returns the patient age in whole years at the given date, or -1
// when the birth date is unknown.
func (p PatientSnapshot) AgeAt(at time.Time) int {
	if p.BirthDate == nil {
		return -1
	}
	years := at.Year() - p.BirthDate.Year()
	anniversary := p.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

type Document struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patient_id"`
	Filename     string     `json:"filename"`
	Text         string     `json:"text,omitempty"`
	SectionTag   string     `json:"section_tag,omitempty"`
	AuthoredDate *time.Time `json:"authored_date,omitempty"`
	IngestedAt   time.Time  `json:"ingested_at"`
}

// EffectiveDate is the authored date when known, the ingestion timestamp
// otherwise. All recency logic goes through this.
func (d Document) EffectiveDate() time.Time {
	if d.AuthoredDate != nil {
		return *d.AuthoredDate
	}
	return d.IngestedAt
}

type Frequency struct {
	Magnitude int    `json:"magnitude"`
	Unit      string `json:"unit"` // day, week, month, year
}

func (f Frequency) AddTo(t time.Time) time.Time {
	switch strings.ToLower(f.Unit) {
	case "day", "days":
		return t.AddDate(0, 0, f.Magnitude)
	case "week", "weeks":
		return t.AddDate(0, 0, 7*f.Magnitude)
	case "month", "months":
		return t.AddDate(0, f.Magnitude, 0)
	case "year", "years":
		return t.AddDate(f.Magnitude, 0, 0)
	default:
		return t.AddDate(0, f.Magnitude, 0)
	}
}

func (f Frequency) IsZero() bool {
	return f.Magnitude <= 0
}

type ScreeningDefinition struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Active            bool              `json:"active"`
	MinAge            *int              `json:"min_age,omitempty"`
	MaxAge            *int              `json:"max_age,omitempty"`
	Sex               string            `json:"sex,omitempty"`
	TriggerConditions []ConditionRecord `json:"trigger_conditions,omitempty"`
	Frequency         Frequency         `json:"frequency"`
	ContentKeywords   []string          `json:"content_keywords,omitempty"`
	FilenameKeywords  []string          `json:"filename_keywords,omitempty"`
	SectionKeywords   []string          `json:"section_keywords,omitempty"`
}

func (d ScreeningDefinition) HasKeywords() bool {
	return len(d.ContentKeywords) > 0 || len(d.FilenameKeywords) > 0 || len(d.SectionKeywords) > 0
}

type MatchSource string

const (
	SourceContent  MatchSource = "content"
	SourceFilename MatchSource = "filename"
	SourceSection  MatchSource = "section"
)

// MatchCandidate is transient evidence produced fresh on each evaluation.
type MatchCandidate struct {
	DefinitionID string      `json:"definition_id"`
	DocumentID   string      `json:"document_id"`
	Source       MatchSource `json:"source"`
	Pattern      string      `json:"pattern"`
	Confidence   float64     `json:"confidence"`
	Context      string      `json:"context,omitempty"`
}

// DocumentLink is the persisted evidence record on an assignment.
type DocumentLink struct {
	DocumentID    string      `json:"document_id"`
	Confidence    float64     `json:"confidence"`
	Source        MatchSource `json:"source"`
	EffectiveDate time.Time   `json:"effective_date"`
}

// AssignmentResult is the per-patient instance of a screening
// definition. EligibleSince anchors the never-screened status rules and
// is set when the assignment is first created.
type AssignmentResult struct {
	PatientID     string         `json:"patient_id"`
	DefinitionID  string         `json:"definition_id"`
	Status        Status         `json:"status"`
	LastCompleted *time.Time     `json:"last_completed,omitempty"`
	Visible       bool           `json:"visible"`
	EligibleSince *time.Time     `json:"eligible_since,omitempty"`
	Links         []DocumentLink `json:"links"`
}

type RefreshSummary struct {
	DefinitionID       string     `json:"definition_id"`
	ChangeKind         ChangeKind `json:"change_kind"`
	PatientsAffected   int        `json:"patients_affected"`
	AssignmentsUpdated int        `json:"assignments_updated"`
	DocumentsLinked    int        `json:"documents_linked"`
	Errors             int        `json:"errors"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        time.Time  `json:"completed_at"`
}

// MatchExplanation is the read-only diagnostic surface for one
// (patient, definition) pair.
type MatchExplanation struct {
	PatientID         string           `json:"patient_id"`
	DefinitionID      string           `json:"definition_id"`
	Eligible          bool             `json:"eligible"`
	EligibilityReason string           `json:"eligibility_reason"`
	Candidates        []MatchCandidate `json:"candidates"`
	ChosenDocuments   []DocumentLink   `json:"chosen_documents"`
}
