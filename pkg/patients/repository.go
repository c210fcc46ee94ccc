package patients

import (
	"context"
	"errors"

	"github.com/clarion-health/screening/pkg/common/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("patient not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&patientModel{}, &conditionModel{})
}

// GetSnapshot assembles the read-only patient view the engine evaluates
// against: demographics plus active conditions.
func (r *Repository) GetSnapshot(ctx context.Context, patientID string) (models.PatientSnapshot, error) {
	var patient patientModel
	result := r.db.WithContext(ctx).First(&patient, "id = ?", patientID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.PatientSnapshot{}, ErrNotFound
	}
	if result.Error != nil {
		return models.PatientSnapshot{}, result.Error
	}

	var conditions []conditionModel
	if err := r.db.WithContext(ctx).
		Where("patient_id = ? AND active = ?", patientID, true).
		Find(&conditions).Error; err != nil {
		return models.PatientSnapshot{}, err
	}

	snapshot := models.PatientSnapshot{
		ID:        patient.ID,
		BirthDate: patient.BirthDate,
		Sex:       patient.Sex,
	}
	for _, c := range conditions {
		snapshot.Conditions = append(snapshot.Conditions, models.ConditionRecord{
			System:  c.System,
			Code:    c.Code,
			Display: c.Display,
		})
	}
	return snapshot, nil
}

func (r *Repository) ListPatientIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&patientModel{}).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
