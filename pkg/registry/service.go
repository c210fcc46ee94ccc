package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/clarion-health/screening/pkg/common/kafka"
	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/clarion-health/screening/pkg/terminology"
	"github.com/google/uuid"
)

var (
	errNameRequired     = errors.New("definition name required")
	errAgeBoundsInvalid = errors.New("min_age exceeds max_age")
	errSexInvalid       = errors.New("sex restriction must be male or female")
	errFrequencyInvalid = errors.New("frequency magnitude must be positive")
)

// ConfigurationError marks a screening definition with internally
// inconsistent constraints. It is raised at save time, never tolerated
// at match time.
type ConfigurationError struct {
	reason error
}

func (e ConfigurationError) Error() string {
	return e.reason.Error()
}

func (e ConfigurationError) Unwrap() error {
	return e.reason
}

func IsConfigurationError(err error) bool {
	var ce ConfigurationError
	return errors.As(err, &ce)
}

type Service struct {
	repo     *Repository
	producer *kafka.Producer
	catalog  terminology.Catalog
}

func NewService(repo *Repository, producer *kafka.Producer, catalog terminology.Catalog) *Service {
	return &Service{repo: repo, producer: producer, catalog: catalog}
}

func Validate(def models.ScreeningDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return ConfigurationError{reason: errNameRequired}
	}
	if def.MinAge != nil && def.MaxAge != nil && *def.MinAge > *def.MaxAge {
		return ConfigurationError{reason: fmt.Errorf("min_age %d, max_age %d: %w", *def.MinAge, *def.MaxAge, errAgeBoundsInvalid)}
	}
	if sex := strings.ToLower(strings.TrimSpace(def.Sex)); sex != "" && sex != "male" && sex != "female" {
		return ConfigurationError{reason: fmt.Errorf("sex %q: %w", def.Sex, errSexInvalid)}
	}
	if def.Frequency.IsZero() {
		return ConfigurationError{reason: errFrequencyInvalid}
	}
	return nil
}

// Save creates or updates a definition, resolves trigger-condition
// display names from the terminology catalog, and publishes one typed
// change event per changed aspect.
func (s *Service) Save(ctx context.Context, def models.ScreeningDefinition) (models.ScreeningDefinition, error) {
	if err := Validate(def); err != nil {
		return models.ScreeningDefinition{}, err
	}

	s.resolveTriggerDisplays(&def)

	if def.ID == "" {
		def.ID = uuid.New().String()
		if err := s.repo.Create(ctx, def); err != nil {
			return models.ScreeningDefinition{}, fmt.Errorf("persisting definition: %w", err)
		}
		// A brand-new definition needs a full eligibility pass, which is
		// exactly the demographic-change recompute scope.
		s.publish(ctx, def, models.DemographicCriteriaChanged)
		return def, nil
	}

	previous, err := s.repo.Get(ctx, def.ID)
	if err != nil {
		return models.ScreeningDefinition{}, err
	}

	if err := s.repo.Update(ctx, def); err != nil {
		return models.ScreeningDefinition{}, fmt.Errorf("persisting definition: %w", err)
	}

	for _, kind := range DiffChangeKinds(previous, def) {
		s.publish(ctx, def, kind)
	}
	return def, nil
}

// SetActive flips the activation flag and publishes the toggle event.
func (s *Service) SetActive(ctx context.Context, id string, active bool) error {
	def, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if def.Active == active {
		return nil
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	def.Active = active
	s.publish(ctx, def, models.ActivationToggled)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (models.ScreeningDefinition, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListActive(ctx context.Context) ([]models.ScreeningDefinition, error) {
	return s.repo.ListActive(ctx)
}

func (s *Service) ListAll(ctx context.Context) ([]models.ScreeningDefinition, error) {
	return s.repo.ListAll(ctx)
}

// DiffChangeKinds maps an edit to the typed change events that describe
// it, so the refresh coordinator can pick the minimal recompute scope.
func DiffChangeKinds(previous, next models.ScreeningDefinition) []models.ChangeKind {
	var kinds []models.ChangeKind
	if !reflect.DeepEqual(previous.ContentKeywords, next.ContentKeywords) ||
		!reflect.DeepEqual(previous.FilenameKeywords, next.FilenameKeywords) ||
		!reflect.DeepEqual(previous.SectionKeywords, next.SectionKeywords) {
		kinds = append(kinds, models.KeywordsChanged)
	}
	if previous.Frequency != next.Frequency {
		kinds = append(kinds, models.CutoffOrFrequencyChanged)
	}
	if !reflect.DeepEqual(previous.MinAge, next.MinAge) ||
		!reflect.DeepEqual(previous.MaxAge, next.MaxAge) ||
		!strings.EqualFold(previous.Sex, next.Sex) ||
		!reflect.DeepEqual(previous.TriggerConditions, next.TriggerConditions) {
		kinds = append(kinds, models.DemographicCriteriaChanged)
	}
	if previous.Active != next.Active {
		kinds = append(kinds, models.ActivationToggled)
	}
	return kinds
}

func (s *Service) resolveTriggerDisplays(def *models.ScreeningDefinition) {
	for i, trigger := range def.TriggerConditions {
		if trigger.Display != "" || trigger.Code == "" {
			continue
		}
		if display, ok := s.catalog.DisplayForCode(trigger.Code); ok {
			def.TriggerConditions[i].Display = display
		}
	}
}

func (s *Service) publish(ctx context.Context, def models.ScreeningDefinition, kind models.ChangeKind) {
	if s.producer == nil {
		return
	}
	event := models.ChangeEvent{
		DefinitionID: def.ID,
		Kind:         kind,
		Active:       def.Active,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.producer.PublishEvent(ctx, string(kind), "registry", event); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"definition_id": def.ID,
			"change_kind":   string(kind),
		}).Error("failed to publish definition change event")
	}
}
