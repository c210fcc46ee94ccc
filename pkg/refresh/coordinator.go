package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/clarion-health/screening/pkg/docmatch"
	"github.com/clarion-health/screening/pkg/eligibility"
	"github.com/clarion-health/screening/pkg/status"
)

// ErrStoreUnavailable aborts the in-flight batch. Units committed before
// the failure stay committed; the summary reports partial completion.
var ErrStoreUnavailable = errors.New("assignment store unavailable")

type PatientDirectory interface {
	GetSnapshot(ctx context.Context, patientID string) (models.PatientSnapshot, error)
	ListPatientIDs(ctx context.Context) ([]string, error)
}

type DocumentSource interface {
	GetForPatient(ctx context.Context, patientID string) ([]models.Document, error)
	PatientIDsMatchingKeywords(ctx context.Context, keywords []string) ([]string, error)
}

type DefinitionSource interface {
	Get(ctx context.Context, id string) (models.ScreeningDefinition, error)
	ListActive(ctx context.Context) ([]models.ScreeningDefinition, error)
}

type AssignmentStore interface {
	Get(ctx context.Context, patientID, definitionID string) (models.AssignmentResult, bool, error)
	Upsert(ctx context.Context, rec models.AssignmentResult) error
	GetForPatient(ctx context.Context, patientID string) ([]models.AssignmentResult, error)
	PatientIDsForDefinition(ctx context.Context, definitionID string, onlyVisible bool) ([]string, error)
	SetVisibility(ctx context.Context, patientID, definitionID string, visible bool) error
	SetVisibilityForDefinition(ctx context.Context, definitionID string, visible bool) (int, error)
}

// SummaryPublisher receives the refresh summary after each run. The
// Kafka producer satisfies this; a nil publisher disables it.
type SummaryPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, payload interface{}) error
}

type Config struct {
	BatchSize      int
	PatientTimeout time.Duration
	BatchTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      50,
		PatientTimeout: 10 * time.Second,
		BatchTimeout:   10 * time.Minute,
	}
}

type Deps struct {
	Patients    PatientDirectory
	Documents   DocumentSource
	Definitions DefinitionSource
	Store       AssignmentStore
	Matcher     *docmatch.Matcher
	Status      *status.Engine
	Summaries   SummaryPublisher
}

// Coordinator owns the change-driven recompute strategy: each change
// kind maps to the minimal set of patients whose assignments need
// rederiving, and that set is processed in bounded, fault-isolated
// batches.
type Coordinator struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

func New(cfg Config, deps Deps) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.PatientTimeout <= 0 {
		cfg.PatientTimeout = DefaultConfig().PatientTimeout
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultConfig().BatchTimeout
	}
	return &Coordinator{cfg: cfg, deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// RefreshDefinition is the targeted-recompute entry point. The change
// kind selects the scope; the result is a summary, never a raw error
// from an individual patient unit.
func (c *Coordinator) RefreshDefinition(ctx context.Context, definitionID string, kind models.ChangeKind) (models.RefreshSummary, error) {
	summary := models.RefreshSummary{
		DefinitionID: definitionID,
		ChangeKind:   kind,
		StartedAt:    c.now(),
	}

	def, err := c.deps.Definitions.Get(ctx, definitionID)
	if err != nil {
		return summary, fmt.Errorf("loading definition %s: %w", definitionID, err)
	}

	var runErr error
	switch kind {
	case models.ActivationToggled:
		runErr = c.refreshActivation(ctx, def, &summary)
	case models.KeywordsChanged, models.CutoffOrFrequencyChanged:
		runErr = c.refreshMatching(ctx, def, &summary)
	case models.DemographicCriteriaChanged:
		runErr = c.refreshDemographics(ctx, def, &summary)
	default:
		return summary, fmt.Errorf("unknown change kind %q", kind)
	}

	summary.CompletedAt = c.now()
	c.publishSummary(ctx, summary)

	logger.Log.WithFields(map[string]interface{}{
		"definition_id":       summary.DefinitionID,
		"change_kind":         string(summary.ChangeKind),
		"patients_affected":   summary.PatientsAffected,
		"assignments_updated": summary.AssignmentsUpdated,
		"documents_linked":    summary.DocumentsLinked,
		"errors":              summary.Errors,
	}).Info("definition refresh finished")

	return summary, runErr
}

// Deactivation hides, never deletes. Reactivation restores the hidden
// history and then fills gaps for patients who became eligible while
// the definition was inactive.
func (c *Coordinator) refreshActivation(ctx context.Context, def models.ScreeningDefinition, summary *models.RefreshSummary) error {
	if !def.Active {
		hidden, err := c.deps.Store.SetVisibilityForDefinition(ctx, def.ID, false)
		if err != nil {
			return fmt.Errorf("hiding assignments: %w", ErrStoreUnavailable)
		}
		summary.PatientsAffected = hidden
		summary.AssignmentsUpdated = hidden
		return nil
	}

	restored, err := c.deps.Store.SetVisibilityForDefinition(ctx, def.ID, true)
	if err != nil {
		return fmt.Errorf("restoring assignments: %w", ErrStoreUnavailable)
	}
	summary.AssignmentsUpdated += restored

	all, err := c.deps.Patients.ListPatientIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing patients: %w", err)
	}
	holders, err := c.deps.Store.PatientIDsForDefinition(ctx, def.ID, false)
	if err != nil {
		return fmt.Errorf("listing assignment holders: %w", ErrStoreUnavailable)
	}

	return c.processBatches(ctx, difference(all, holders), def, summary)
}

// Keyword and cutoff edits touch existing visible holders plus any
// patient whose documents might now newly qualify. That scope comes from
// a coarse document prefilter, not a global sweep.
func (c *Coordinator) refreshMatching(ctx context.Context, def models.ScreeningDefinition, summary *models.RefreshSummary) error {
	holders, err := c.deps.Store.PatientIDsForDefinition(ctx, def.ID, true)
	if err != nil {
		return fmt.Errorf("listing assignment holders: %w", ErrStoreUnavailable)
	}

	keywords := keywordsOfInterest(def)
	candidates, err := c.deps.Documents.PatientIDsMatchingKeywords(ctx, keywords)
	if err != nil {
		return fmt.Errorf("prefiltering documents: %w", err)
	}

	return c.processBatches(ctx, union(holders, candidates), def, summary)
}

// Demographic edits re-derive eligibility across the whole population
// for this one definition; document matching only runs for patients who
// end up eligible.
func (c *Coordinator) refreshDemographics(ctx context.Context, def models.ScreeningDefinition, summary *models.RefreshSummary) error {
	all, err := c.deps.Patients.ListPatientIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing patients: %w", err)
	}
	return c.processBatches(ctx, all, def, summary)
}

// EvaluatePatient recomputes one patient across every active definition
// and returns the resulting assignment states.
func (c *Coordinator) EvaluatePatient(ctx context.Context, patientID string) ([]models.AssignmentResult, error) {
	defs, err := c.deps.Definitions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active definitions: %w", err)
	}

	asOf := c.now()
	var results []models.AssignmentResult
	for _, def := range defs {
		unit, err := c.recomputePatient(ctx, patientID, def, asOf)
		if err != nil {
			if errors.Is(err, ErrStoreUnavailable) {
				return results, err
			}
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"patient_id":    patientID,
				"definition_id": def.ID,
			}).Warn("skipping definition during patient evaluation")
			continue
		}
		if unit.record != nil {
			results = append(results, *unit.record)
		}
	}
	return results, nil
}

// Explain reruns eligibility, matching and status for one pair without
// persisting anything.
func (c *Coordinator) Explain(ctx context.Context, patientID, definitionID string) (models.MatchExplanation, error) {
	explanation := models.MatchExplanation{PatientID: patientID, DefinitionID: definitionID}

	def, err := c.deps.Definitions.Get(ctx, definitionID)
	if err != nil {
		return explanation, err
	}
	snapshot, err := c.deps.Patients.GetSnapshot(ctx, patientID)
	if err != nil {
		return explanation, err
	}

	asOf := c.now()
	result := eligibility.Evaluate(snapshot, def, asOf)
	explanation.Eligible = result.Eligible
	explanation.EligibilityReason = result.Reason
	if !result.Eligible {
		return explanation, nil
	}

	docs, err := c.deps.Documents.GetForPatient(ctx, patientID)
	if err != nil {
		return explanation, err
	}

	var docCandidates []status.DocumentCandidates
	for _, doc := range docs {
		candidates := c.deps.Matcher.Match(doc, def)
		explanation.Candidates = append(explanation.Candidates, candidates...)
		docCandidates = append(docCandidates, status.DocumentCandidates{Document: doc, Candidates: candidates})
	}

	eligibleSince := c.eligibleSince(ctx, patientID, def.ID, asOf)
	determination := c.deps.Status.Determine(docCandidates, def, eligibleSince, asOf)
	explanation.ChosenDocuments = determination.ChosenDocuments
	return explanation, nil
}

type unitResult struct {
	updated bool
	linked  int
	record  *models.AssignmentResult
}

// processBatches walks the target patients in bounded groups. Each
// patient is an isolated unit of work: its own timeout, its own panic
// boundary, its own commit. Only a store outage stops the run.
func (c *Coordinator) processBatches(ctx context.Context, patientIDs []string, def models.ScreeningDefinition, summary *models.RefreshSummary) error {
	if len(patientIDs) == 0 {
		return nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, c.cfg.BatchTimeout)
	defer cancel()

	asOf := c.now()
	for start := 0; start < len(patientIDs); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(patientIDs) {
			end = len(patientIDs)
		}

		for _, patientID := range patientIDs[start:end] {
			if batchCtx.Err() != nil {
				logger.Log.WithFields(map[string]interface{}{
					"definition_id": def.ID,
					"remaining":     len(patientIDs) - start,
				}).Warn("batch timeout reached, stopping new units")
				return nil
			}

			unit, err := c.runUnit(batchCtx, patientID, def, asOf)
			summary.PatientsAffected++
			if err != nil {
				if errors.Is(err, ErrStoreUnavailable) {
					summary.Errors++
					return err
				}
				summary.Errors++
				logger.Log.WithError(err).WithFields(map[string]interface{}{
					"patient_id":    patientID,
					"definition_id": def.ID,
				}).Error("patient unit failed, prior state preserved")
				continue
			}
			if unit.updated {
				summary.AssignmentsUpdated++
			}
			summary.DocumentsLinked += unit.linked
		}
	}
	return nil
}

// runUnit wraps one patient's recompute with a timeout and a panic
// boundary so a single bad unit never takes down the batch.
func (c *Coordinator) runUnit(ctx context.Context, patientID string, def models.ScreeningDefinition, asOf time.Time) (unit unitResult, err error) {
	unitCtx, cancel := context.WithTimeout(ctx, c.cfg.PatientTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in patient unit: %v", r)
		}
	}()

	unit, err = c.recomputePatient(unitCtx, patientID, def, asOf)
	if err == nil && unitCtx.Err() != nil {
		err = fmt.Errorf("patient unit timed out: %w", unitCtx.Err())
	}
	return unit, err
}

// recomputePatient is the saga for one (patient, definition) pair:
// eligibility, then matching, then status, then one batched write. It is
// a pure function of current inputs, which is what makes refresh
// idempotent.
func (c *Coordinator) recomputePatient(ctx context.Context, patientID string, def models.ScreeningDefinition, asOf time.Time) (unitResult, error) {
	snapshot, err := c.deps.Patients.GetSnapshot(ctx, patientID)
	if err != nil {
		return unitResult{}, fmt.Errorf("loading patient snapshot: %w", err)
	}

	existing, found, err := c.deps.Store.Get(ctx, patientID, def.ID)
	if err != nil {
		return unitResult{}, fmt.Errorf("reading assignment: %w", ErrStoreUnavailable)
	}

	result := eligibility.Evaluate(snapshot, def, asOf)
	if !result.Eligible {
		if found && existing.Visible {
			if err := c.deps.Store.SetVisibility(ctx, patientID, def.ID, false); err != nil {
				return unitResult{}, fmt.Errorf("hiding assignment: %w", ErrStoreUnavailable)
			}
			return unitResult{updated: true}, nil
		}
		// Ineligible and no assignment: nothing to create.
		return unitResult{}, nil
	}

	docs, err := c.deps.Documents.GetForPatient(ctx, patientID)
	if err != nil {
		return unitResult{}, fmt.Errorf("loading documents: %w", err)
	}

	var docCandidates []status.DocumentCandidates
	for _, doc := range docs {
		docCandidates = append(docCandidates, status.DocumentCandidates{
			Document:   doc,
			Candidates: c.deps.Matcher.Match(doc, def),
		})
	}

	eligibleSince := asOf
	if found && existing.EligibleSince != nil {
		eligibleSince = *existing.EligibleSince
	}

	determination := c.deps.Status.Determine(docCandidates, def, &eligibleSince, asOf)

	record := models.AssignmentResult{
		PatientID:     patientID,
		DefinitionID:  def.ID,
		Status:        determination.Status,
		LastCompleted: determination.LastCompleted,
		Visible:       def.Active,
		EligibleSince: &eligibleSince,
		Links:         determination.ChosenDocuments,
	}

	if found && assignmentsEqual(existing, record) {
		return unitResult{linked: len(record.Links), record: &existing}, nil
	}

	if err := c.deps.Store.Upsert(ctx, record); err != nil {
		return unitResult{}, fmt.Errorf("writing assignment: %w", ErrStoreUnavailable)
	}
	return unitResult{updated: true, linked: len(record.Links), record: &record}, nil
}

func (c *Coordinator) eligibleSince(ctx context.Context, patientID, definitionID string, asOf time.Time) *time.Time {
	existing, found, err := c.deps.Store.Get(ctx, patientID, definitionID)
	if err == nil && found && existing.EligibleSince != nil {
		return existing.EligibleSince
	}
	return &asOf
}

func (c *Coordinator) publishSummary(ctx context.Context, summary models.RefreshSummary) {
	if c.deps.Summaries == nil {
		return
	}
	if err := c.deps.Summaries.PublishEvent(ctx, "refresh_summary", "refresh", summary); err != nil {
		logger.Log.WithError(err).WithField("definition_id", summary.DefinitionID).Warn("failed to publish refresh summary")
	}
}

func keywordsOfInterest(def models.ScreeningDefinition) []string {
	if !def.HasKeywords() {
		return docmatch.FallbackKeywords(def.Name)
	}
	var keywords []string
	keywords = append(keywords, def.ContentKeywords...)
	keywords = append(keywords, def.FilenameKeywords...)
	keywords = append(keywords, def.SectionKeywords...)
	return keywords
}

func assignmentsEqual(a, b models.AssignmentResult) bool {
	if a.Status != b.Status || a.Visible != b.Visible {
		return false
	}
	if !timePtrEqual(a.LastCompleted, b.LastCompleted) || !timePtrEqual(a.EligibleSince, b.EligibleSince) {
		return false
	}
	if len(a.Links) != len(b.Links) {
		return false
	}
	for i := range a.Links {
		if a.Links[i].DocumentID != b.Links[i].DocumentID ||
			a.Links[i].Confidence != b.Links[i].Confidence ||
			a.Links[i].Source != b.Links[i].Source ||
			!a.Links[i].EffectiveDate.Equal(b.Links[i].EffectiveDate) {
			return false
		}
	}
	return true
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func difference(all, exclude []string) []string {
	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}
	var out []string
	for _, id := range all {
		if _, skip := excluded[id]; !skip {
			out = append(out, id)
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
