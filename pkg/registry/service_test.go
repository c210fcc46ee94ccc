package registry

import (
	"testing"

	"github.com/clarion-health/screening/pkg/common/models"
)

func intPtr(v int) *int { return &v }

func validDefinition() models.ScreeningDefinition {
	return models.ScreeningDefinition{
		Name:      "HbA1c Test",
		Active:    true,
		Frequency: models.Frequency{Magnitude: 3, Unit: "month"},
	}
}

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	if err := Validate(validDefinition()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsInvertedAgeBounds(t *testing.T) {
	def := validDefinition()
	def.MinAge = intPtr(70)
	def.MaxAge = intPtr(50)

	err := Validate(def)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %T", err)
	}
}

func TestValidateRejectsUnknownSex(t *testing.T) {
	def := validDefinition()
	def.Sex = "other"
	if err := Validate(def); !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestValidateRejectsZeroFrequency(t *testing.T) {
	def := validDefinition()
	def.Frequency = models.Frequency{}
	if err := Validate(def); !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestValidateRequiresName(t *testing.T) {
	def := validDefinition()
	def.Name = "  "
	if err := Validate(def); !IsConfigurationError(err) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestDiffChangeKinds(t *testing.T) {
	base := validDefinition()
	base.ID = "def-1"
	base.ContentKeywords = []string{"hba1c"}

	edited := base
	edited.ContentKeywords = []string{"hba1c", "hemoglobin a1c"}
	kinds := DiffChangeKinds(base, edited)
	if len(kinds) != 1 || kinds[0] != models.KeywordsChanged {
		t.Fatalf("expected keywords change, got %v", kinds)
	}

	edited = base
	edited.Frequency = models.Frequency{Magnitude: 6, Unit: "month"}
	kinds = DiffChangeKinds(base, edited)
	if len(kinds) != 1 || kinds[0] != models.CutoffOrFrequencyChanged {
		t.Fatalf("expected frequency change, got %v", kinds)
	}

	edited = base
	edited.MinAge = intPtr(45)
	kinds = DiffChangeKinds(base, edited)
	if len(kinds) != 1 || kinds[0] != models.DemographicCriteriaChanged {
		t.Fatalf("expected demographic change, got %v", kinds)
	}

	edited = base
	edited.Active = false
	kinds = DiffChangeKinds(base, edited)
	if len(kinds) != 1 || kinds[0] != models.ActivationToggled {
		t.Fatalf("expected activation toggle, got %v", kinds)
	}

	if kinds = DiffChangeKinds(base, base); len(kinds) != 0 {
		t.Fatalf("expected no change kinds for identical definitions, got %v", kinds)
	}
}
