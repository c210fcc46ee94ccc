package documents

import (
	"context"
	"strings"

	"github.com/clarion-health/screening/pkg/common/models"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&documentModel{})
}

func (r *Repository) GetForPatient(ctx context.Context, patientID string) ([]models.Document, error) {
	var records []documentModel
	if err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("ingested_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, models.Document{
			ID:           rec.ID,
			PatientID:    rec.PatientID,
			Filename:     rec.Filename,
			Text:         rec.Text,
			SectionTag:   rec.SectionTag,
			AuthoredDate: rec.AuthoredDate,
			IngestedAt:   rec.IngestedAt,
		})
	}
	return docs, nil
}

// PatientIDsMatchingKeywords is the coarse documents-of-interest
// prefilter for keyword-change refreshes: a case-insensitive substring
// scan over filename, text and section tag. The keyword matcher applies
// the strict boundary semantics afterwards; this only bounds which
// patients are worth re-matching.
func (r *Repository) PatientIDsMatchingKeywords(ctx context.Context, keywords []string) ([]string, error) {
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	query := r.db.WithContext(ctx).Model(&documentModel{})
	var filter *gorm.DB
	for _, kw := range cleaned {
		pattern := "%" + kw + "%"
		clause := r.db.Where("filename ILIKE ?", pattern).
			Or("text ILIKE ?", pattern).
			Or("section_tag ILIKE ?", pattern)
		if filter == nil {
			filter = clause
		} else {
			filter = filter.Or(clause)
		}
	}

	var ids []string
	if err := query.Where(filter).
		Distinct("patient_id").
		Pluck("patient_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
