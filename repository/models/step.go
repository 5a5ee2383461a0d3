package models

import "time"

// Step represents one discrete test phase (charge/discharge/rest) within an
// Experiment. StepNumber is unique within an Experiment, not globally.
type Step struct {
	ID           uint        `gorm:"column:step_id;primaryKey;autoIncrement"`
	ExperimentID uint        `gorm:"column:experiment_id;uniqueIndex:idx_experiment_step_number;not null"`
	Experiment   *Experiment `gorm:"foreignKey:ExperimentID"`
	StepNumber   int         `gorm:"column:step_number;uniqueIndex:idx_experiment_step_number;not null"`
	StepType     string      `gorm:"column:step_type;type:varchar(50);not null"`
	StepName     string      `gorm:"column:step_name;type:varchar(100)"`
	Status       string      `gorm:"column:status;type:varchar(50)"`
	StartTime    *time.Time  `gorm:"column:start_time"`
	EndTime      *time.Time  `gorm:"column:end_time"`
	StartVoltage float64     `gorm:"column:start_voltage"` // V
	EndVoltage   float64     `gorm:"column:end_voltage"`   // V
	Capacity     float64     `gorm:"column:capacity"`      // Ah
	Energy       float64     `gorm:"column:energy"`        // Wh
	Temperature  float64     `gorm:"column:temperature"`   // degC
	CRate        float64     `gorm:"column:c_rate"`        // |current| / nominal capacity
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime"`

	// Relationships
	Measurements []Measurement `gorm:"foreignKey:StepID"`
}
