package eligibility

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

var asOf = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func birthDate(age int) *time.Time {
	d := asOf.AddDate(-age, 0, -1)
	return &d
}

func intPtr(v int) *int { return &v }

func diabeticPatient() models.PatientSnapshot {
	return models.PatientSnapshot{
		ID:        "patient-1",
		BirthDate: birthDate(55),
		Sex:       "female",
		Conditions: []models.ConditionRecord{
			{System: "snomed", Code: "73211009", Display: "Diabetes mellitus type 2"},
		},
	}
}

func hba1cDefinition() models.ScreeningDefinition {
	return models.ScreeningDefinition{
		ID:     "def-hba1c",
		Name:   "HbA1c Test",
		Active: true,
		TriggerConditions: []models.ConditionRecord{
			{System: "snomed", Code: "73211009", Display: "Diabetes mellitus"},
		},
		Frequency: models.Frequency{Magnitude: 3, Unit: "month"},
	}
}

func TestEligibleWhenAllChecksPass(t *testing.T) {
	result := Evaluate(diabeticPatient(), hba1cDefinition(), asOf)
	if !result.Eligible {
		t.Fatalf("expected eligible, got reason %q", result.Reason)
	}
}

func TestAgeBounds(t *testing.T) {
	def := hba1cDefinition()
	def.MinAge = intPtr(50)
	def.MaxAge = intPtr(75)

	young := diabeticPatient()
	young.BirthDate = birthDate(40)
	if result := Evaluate(young, def, asOf); result.Eligible {
		t.Fatal("expected ineligible below minimum age")
	}

	old := diabeticPatient()
	old.BirthDate = birthDate(80)
	if result := Evaluate(old, def, asOf); result.Eligible {
		t.Fatal("expected ineligible above maximum age")
	}

	inRange := diabeticPatient()
	inRange.BirthDate = birthDate(60)
	if result := Evaluate(inRange, def, asOf); !result.Eligible {
		t.Fatalf("expected eligible in range, got %q", result.Reason)
	}
}

func TestMissingBirthDateSkipsAgeCheck(t *testing.T) {
	def := hba1cDefinition()
	def.MinAge = intPtr(50)

	patient := diabeticPatient()
	patient.BirthDate = nil
	if result := Evaluate(patient, def, asOf); !result.Eligible {
		t.Fatalf("expected age check skipped for missing birth date, got %q", result.Reason)
	}
}

func TestSexRestriction(t *testing.T) {
	def := hba1cDefinition()
	def.Sex = "female"

	if result := Evaluate(diabeticPatient(), def, asOf); !result.Eligible {
		t.Fatalf("expected eligible female patient, got %q", result.Reason)
	}

	male := diabeticPatient()
	male.Sex = "male"
	if result := Evaluate(male, def, asOf); result.Eligible {
		t.Fatal("expected ineligible for sex restriction")
	}
}

func TestTriggerConditionByCode(t *testing.T) {
	patient := diabeticPatient()
	patient.Conditions = []models.ConditionRecord{
		{System: "snomed", Code: "73211009", Display: "unrelated label"},
	}
	if result := Evaluate(patient, hba1cDefinition(), asOf); !result.Eligible {
		t.Fatalf("expected code match, got %q", result.Reason)
	}
}

func TestTriggerConditionByDisplayFallback(t *testing.T) {
	patient := diabeticPatient()
	patient.Conditions = []models.ConditionRecord{
		{System: "icd10", Code: "E11.9", Display: "Type 2 diabetes mellitus without complications"},
	}
	if result := Evaluate(patient, hba1cDefinition(), asOf); !result.Eligible {
		t.Fatalf("expected display fallback match, got %q", result.Reason)
	}
}

func TestNonDiabeticPatientExcluded(t *testing.T) {
	patient := diabeticPatient()
	patient.Conditions = []models.ConditionRecord{
		{System: "snomed", Code: "38341003", Display: "Hypertensive disorder"},
	}
	result := Evaluate(patient, hba1cDefinition(), asOf)
	if result.Eligible {
		t.Fatal("expected ineligible without a diabetes condition")
	}
	if result.Reason == "" {
		t.Fatal("expected a diagnostic reason")
	}
}

func TestEmptyTriggerListPasses(t *testing.T) {
	def := hba1cDefinition()
	def.TriggerConditions = nil

	patient := diabeticPatient()
	patient.Conditions = nil
	if result := Evaluate(patient, def, asOf); !result.Eligible {
		t.Fatalf("expected unconditional pass with no triggers, got %q", result.Reason)
	}
}

// Each check is independently necessary: a patient failing the age check
// stays ineligible no matter how the trigger list changes.
func TestChecksAreIndependentlyNecessary(t *testing.T) {
	def := hba1cDefinition()
	def.MinAge = intPtr(65)

	patient := diabeticPatient()
	patient.BirthDate = birthDate(55)

	if result := Evaluate(patient, def, asOf); result.Eligible {
		t.Fatal("expected ineligible on age")
	}

	def.TriggerConditions = nil
	if result := Evaluate(patient, def, asOf); result.Eligible {
		t.Fatal("clearing trigger conditions must not override a failed age check")
	}

	def.TriggerConditions = []models.ConditionRecord{
		{System: "snomed", Code: "38341003", Display: "Hypertensive disorder"},
	}
	if result := Evaluate(patient, def, asOf); result.Eligible {
		t.Fatal("changing trigger conditions must not override a failed age check")
	}
}
