package models

import "time"

// Experiment represents one ingestion unit: a single battery test upload.
// EndDate is filled in after ingestion completes, from the last measurement
// timestamp. ValidationReport holds the advisory validation report as JSON.
type Experiment struct {
	ID               uint       `gorm:"column:experiment_id;primaryKey;autoIncrement"`
	Name             string     `gorm:"column:name;type:varchar(200);not null"`
	Operator         string     `gorm:"column:operator;type:varchar(100)"`
	NominalCapacity  float64    `gorm:"column:nominal_capacity"` // Ah
	StartDate        *time.Time `gorm:"column:start_date"`
	EndDate          *time.Time `gorm:"column:end_date"` // Null until ingestion finishes
	ValidationReport string     `gorm:"column:validation_report;type:text"`
	CellID           *uint      `gorm:"column:cell_id;index"`
	Cell             *Cell      `gorm:"foreignKey:CellID"`
	MachineID        *uint      `gorm:"column:machine_id;index"`
	Machine          *Machine   `gorm:"foreignKey:MachineID"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Steps          []Step          `gorm:"foreignKey:ExperimentID"`
	ProcessedFiles []ProcessedFile `gorm:"foreignKey:ExperimentID"`
}
