package models

import "time"

// Cell represents the physical battery cell under test
type Cell struct {
	ID              uint      `gorm:"column:cell_id;primaryKey;autoIncrement"`
	Name            string    `gorm:"column:name;type:varchar(100);uniqueIndex;not null"`
	Chemistry       string    `gorm:"column:chemistry;type:varchar(50)"`
	NominalCapacity float64   `gorm:"column:nominal_capacity"` // Ah
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`

	// Relationships
	Experiments []Experiment `gorm:"foreignKey:CellID"`
}
