package registry

import (
	"context"
	"errors"
	"time"

	"github.com/clarion-health/screening/pkg/common/models"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("screening definition not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&definitionModel{})
}

func (r *Repository) Create(ctx context.Context, def models.ScreeningDefinition) error {
	model := toModel(def)
	model.CreatedAt = time.Now().UTC()
	model.UpdatedAt = model.CreatedAt
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *Repository) Update(ctx context.Context, def models.ScreeningDefinition) error {
	model := toModel(def)
	model.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&definitionModel{}).
		Where("id = ?", def.ID).
		Updates(map[string]interface{}{
			"name":               model.Name,
			"active":             model.Active,
			"min_age":            model.MinAge,
			"max_age":            model.MaxAge,
			"sex":                model.Sex,
			"trigger_conditions": model.TriggerConditions,
			"frequency_count":    model.FrequencyCount,
			"frequency_unit":     model.FrequencyUnit,
			"content_keywords":   model.ContentKeywords,
			"filename_keywords":  model.FilenameKeywords,
			"section_keywords":   model.SectionKeywords,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).Model(&definitionModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"active":     active,
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

func (r *Repository) Get(ctx context.Context, id string) (models.ScreeningDefinition, error) {
	var model definitionModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return models.ScreeningDefinition{}, ErrNotFound
	}
	if result.Error != nil {
		return models.ScreeningDefinition{}, result.Error
	}
	return toDomain(&model), nil
}

func (r *Repository) ListActive(ctx context.Context) ([]models.ScreeningDefinition, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("active = ?", true))
}

func (r *Repository) ListAll(ctx context.Context) ([]models.ScreeningDefinition, error) {
	return r.list(ctx, r.db.WithContext(ctx))
}

func (r *Repository) list(ctx context.Context, query *gorm.DB) ([]models.ScreeningDefinition, error) {
	var records []definitionModel
	if err := query.Order("name").Find(&records).Error; err != nil {
		return nil, err
	}
	defs := make([]models.ScreeningDefinition, 0, len(records))
	for i := range records {
		defs = append(defs, toDomain(&records[i]))
	}
	return defs, nil
}
