package patients

import (
	"time"
)

type patientModel struct {
	ID        string     `gorm:"primaryKey;column:id"`
	BirthDate *time.Time `gorm:"column:birth_date"`
	Sex       string     `gorm:"column:sex"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (patientModel) TableName() string {
	return "patients"
}

type conditionModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	PatientID string    `gorm:"column:patient_id;index"`
	System    string    `gorm:"column:system"`
	Code      string    `gorm:"column:code"`
	Display   string    `gorm:"column:display"`
	Active    bool      `gorm:"column:active"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (conditionModel) TableName() string {
	return "patient_conditions"
}
