package assignment

import (
	"encoding/json"
	"time"

	"github.com/clarion-health/screening/pkg/common/models"
	"gorm.io/datatypes"
)

type assignmentModel struct {
	ID            string         `gorm:"primaryKey;column:id"`
	PatientID     string         `gorm:"column:patient_id;uniqueIndex:idx_patient_definition"`
	DefinitionID  string         `gorm:"column:definition_id;uniqueIndex:idx_patient_definition"`
	Status        string         `gorm:"column:status"`
	LastCompleted *time.Time     `gorm:"column:last_completed"`
	Visible       bool           `gorm:"column:visible"`
	EligibleSince *time.Time     `gorm:"column:eligible_since"`
	Links         datatypes.JSON `gorm:"column:links"`
	CreatedAt     time.Time      `gorm:"column:created_at"`
	UpdatedAt     time.Time      `gorm:"column:updated_at"`
}

func (assignmentModel) TableName() string {
	return "screening_assignments"
}

func toDomain(model *assignmentModel) models.AssignmentResult {
	result := models.AssignmentResult{
		PatientID:     model.PatientID,
		DefinitionID:  model.DefinitionID,
		Status:        models.Status(model.Status),
		LastCompleted: model.LastCompleted,
		Visible:       model.Visible,
		EligibleSince: model.EligibleSince,
	}
	if len(model.Links) > 0 {
		_ = json.Unmarshal(model.Links, &result.Links)
	}
	return result
}
