package eligibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/clarion-health/screening/pkg/common/logger"
	"github.com/clarion-health/screening/pkg/common/models"
)

type Result struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason"`
}

func eligible() Result {
	return Result{Eligible: true, Reason: "all criteria met"}
}

func ineligible(format string, args ...interface{}) Result {
	return Result{Eligible: false, Reason: fmt.Sprintf(format, args...)}
}

// Evaluate decides whether a patient is eligible for a screening
// definition at the given date. It is stateless: the same snapshot and
// definition always yield the same result. The first failing check
// supplies the reason.
func Evaluate(patient models.PatientSnapshot, def models.ScreeningDefinition, asOf time.Time) Result {
	if result := checkAge(patient, def, asOf); !result.Eligible {
		return result
	}
	if result := checkSex(patient, def); !result.Eligible {
		return result
	}
	if result := checkTriggerConditions(patient, def); !result.Eligible {
		return result
	}
	return eligible()
}

func checkAge(patient models.PatientSnapshot, def models.ScreeningDefinition, asOf time.Time) Result {
	if def.MinAge == nil && def.MaxAge == nil {
		return eligible()
	}

	age := patient.AgeAt(asOf)
	if age < 0 {
		// Missing birth date is a data gap, not a hard failure; the
		// age check is skipped.
		logger.Log.WithFields(map[string]interface{}{
			"patient_id":    patient.ID,
			"definition_id": def.ID,
		}).Warn("patient has no birth date, skipping age check")
		return eligible()
	}

	if def.MinAge != nil && age < *def.MinAge {
		return ineligible("patient age %d below minimum %d", age, *def.MinAge)
	}
	if def.MaxAge != nil && age > *def.MaxAge {
		return ineligible("patient age %d above maximum %d", age, *def.MaxAge)
	}
	return eligible()
}

func checkSex(patient models.PatientSnapshot, def models.ScreeningDefinition) Result {
	restriction := strings.ToLower(strings.TrimSpace(def.Sex))
	if restriction == "" {
		return eligible()
	}
	if !strings.EqualFold(patient.Sex, restriction) {
		return ineligible("definition restricted to sex %q, patient is %q", restriction, patient.Sex)
	}
	return eligible()
}

func checkTriggerConditions(patient models.PatientSnapshot, def models.ScreeningDefinition) Result {
	if len(def.TriggerConditions) == 0 {
		return eligible()
	}

	for _, trigger := range def.TriggerConditions {
		for _, condition := range patient.Conditions {
			if trigger.Code != "" && condition.Code == trigger.Code {
				return eligible()
			}
			// Display-name fallback: a case-insensitive substring match
			// on the trigger display covers conditions coded in another
			// terminology.
			if trigger.Display != "" && condition.Display != "" &&
				strings.Contains(strings.ToLower(condition.Display), strings.ToLower(trigger.Display)) {
				return eligible()
			}
		}
	}
	return ineligible("no active condition matches the %d trigger condition(s)", len(def.TriggerConditions))
}
