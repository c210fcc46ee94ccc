package documents

import (
	"time"
)

type documentModel struct {
	ID           string     `gorm:"primaryKey;column:id"`
	PatientID    string     `gorm:"column:patient_id;index"`
	Filename     string     `gorm:"column:filename"`
	Text         string     `gorm:"column:text"`
	SectionTag   string     `gorm:"column:section_tag"`
	AuthoredDate *time.Time `gorm:"column:authored_date"`
	IngestedAt   time.Time  `gorm:"column:ingested_at"`
}

func (documentModel) TableName() string {
	return "patient_documents"
}
