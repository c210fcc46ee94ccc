package registry

import (
	"encoding/json"
	"time"

	"github.com/clarion-health/screening/pkg/common/models"
	"gorm.io/datatypes"
)

type definitionModel struct {
	ID                string         `gorm:"primaryKey;column:id"`
	Name              string         `gorm:"column:name"`
	Active            bool           `gorm:"column:active"`
	MinAge            *int           `gorm:"column:min_age"`
	MaxAge            *int           `gorm:"column:max_age"`
	Sex               string         `gorm:"column:sex"`
	TriggerConditions datatypes.JSON `gorm:"column:trigger_conditions"`
	FrequencyCount    int            `gorm:"column:frequency_count"`
	FrequencyUnit     string         `gorm:"column:frequency_unit"`
	ContentKeywords   datatypes.JSON `gorm:"column:content_keywords"`
	FilenameKeywords  datatypes.JSON `gorm:"column:filename_keywords"`
	SectionKeywords   datatypes.JSON `gorm:"column:section_keywords"`
	CreatedAt         time.Time      `gorm:"column:created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at"`
}

func (definitionModel) TableName() string {
	return "screening_definitions"
}

func toModel(def models.ScreeningDefinition) *definitionModel {
	triggers, _ := json.Marshal(def.TriggerConditions)
	content, _ := json.Marshal(def.ContentKeywords)
	filename, _ := json.Marshal(def.FilenameKeywords)
	section, _ := json.Marshal(def.SectionKeywords)
	return &definitionModel{
		ID:                def.ID,
		Name:              def.Name,
		Active:            def.Active,
		MinAge:            def.MinAge,
		MaxAge:            def.MaxAge,
		Sex:               def.Sex,
		TriggerConditions: datatypes.JSON(triggers),
		FrequencyCount:    def.Frequency.Magnitude,
		FrequencyUnit:     def.Frequency.Unit,
		ContentKeywords:   datatypes.JSON(content),
		FilenameKeywords:  datatypes.JSON(filename),
		SectionKeywords:   datatypes.JSON(section),
	}
}

func toDomain(model *definitionModel) models.ScreeningDefinition {
	def := models.ScreeningDefinition{
		ID:     model.ID,
		Name:   model.Name,
		Active: model.Active,
		MinAge: model.MinAge,
		MaxAge: model.MaxAge,
		Sex:    model.Sex,
		Frequency: models.Frequency{
			Magnitude: model.FrequencyCount,
			Unit:      model.FrequencyUnit,
		},
	}
	if len(model.TriggerConditions) > 0 {
		_ = json.Unmarshal(model.TriggerConditions, &def.TriggerConditions)
	}
	if len(model.ContentKeywords) > 0 {
		_ = json.Unmarshal(model.ContentKeywords, &def.ContentKeywords)
	}
	if len(model.FilenameKeywords) > 0 {
		_ = json.Unmarshal(model.FilenameKeywords, &def.FilenameKeywords)
	}
	if len(model.SectionKeywords) > 0 {
		_ = json.Unmarshal(model.SectionKeywords, &def.SectionKeywords)
	}
	return def
}
