package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/clarion-health/screening/pkg/common/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("screening assignment not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&assignmentModel{})
}

// Upsert writes the whole assignment, document links included, as one
// batched write per patient. (patient_id, definition_id) is unique.
func (r *Repository) Upsert(ctx context.Context, rec models.AssignmentResult) error {
	links, err := json.Marshal(rec.Links)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	model := &assignmentModel{
		ID:            uuid.New().String(),
		PatientID:     rec.PatientID,
		DefinitionID:  rec.DefinitionID,
		Status:        string(rec.Status),
		LastCompleted: rec.LastCompleted,
		Visible:       rec.Visible,
		EligibleSince: rec.EligibleSince,
		Links:         datatypes.JSON(links),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "patient_id"}, {Name: "definition_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "last_completed", "visible", "eligible_since", "links", "updated_at",
		}),
	}).Create(model).Error
}

func (r *Repository) Get(ctx context.Context, patientID, definitionID string) (models.AssignmentResult, bool, error) {
	var model assignmentModel
	result := r.db.WithContext(ctx).
		First(&model, "patient_id = ? AND definition_id = ?", patientID, definitionID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.AssignmentResult{}, false, nil
	}
	if result.Error != nil {
		return models.AssignmentResult{}, false, result.Error
	}
	return toDomain(&model), true, nil
}

func (r *Repository) GetForPatient(ctx context.Context, patientID string) ([]models.AssignmentResult, error) {
	var records []assignmentModel
	if err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("definition_id").
		Find(&records).Error; err != nil {
		return nil, err
	}
	results := make([]models.AssignmentResult, 0, len(records))
	for i := range records {
		results = append(results, toDomain(&records[i]))
	}
	return results, nil
}

// PatientIDsForDefinition lists holders of an assignment for one
// definition, optionally restricted to visible assignments.
func (r *Repository) PatientIDsForDefinition(ctx context.Context, definitionID string, onlyVisible bool) ([]string, error) {
	query := r.db.WithContext(ctx).Model(&assignmentModel{}).
		Where("definition_id = ?", definitionID)
	if onlyVisible {
		query = query.Where("visible = ?", true)
	}
	var ids []string
	if err := query.Pluck("patient_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// SetVisibility toggles soft visibility for one assignment. Rows are
// never deleted.
func (r *Repository) SetVisibility(ctx context.Context, patientID, definitionID string, visible bool) error {
	result := r.db.WithContext(ctx).Model(&assignmentModel{}).
		Where("patient_id = ? AND definition_id = ?", patientID, definitionID).
		Updates(map[string]interface{}{
			"visible":    visible,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVisibilityForDefinition hides or restores every assignment of one
// definition in a single statement, returning the number of rows
// touched.
func (r *Repository) SetVisibilityForDefinition(ctx context.Context, definitionID string, visible bool) (int, error) {
	result := r.db.WithContext(ctx).Model(&assignmentModel{}).
		Where("definition_id = ? AND visible = ?", definitionID, !visible).
		Updates(map[string]interface{}{
			"visible":    visible,
			"updated_at": time.Now().UTC(),
		})
	return int(result.RowsAffected), result.Error
}
