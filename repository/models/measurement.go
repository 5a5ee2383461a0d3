package models

import "time"

// Measurement represents one sampled point within a Step. StepID must
// reference a Step belonging to the Experiment being ingested in the same
// run; a cross-experiment reference is a corruption bug, not a valid state.
type Measurement struct {
	ID            uint      `gorm:"column:measurement_id;primaryKey;autoIncrement"`
	StepID        uint      `gorm:"column:step_id;index;not null"`
	Step          *Step     `gorm:"foreignKey:StepID"`
	ExecutionTime float64   `gorm:"column:execution_time;not null"` // seconds since step start
	Voltage       float64   `gorm:"column:voltage"`                 // V
	Current       float64   `gorm:"column:current"`                 // A
	Temperature   float64   `gorm:"column:temperature"`             // degC
	Capacity      float64   `gorm:"column:capacity"`                // Ah
	Energy        float64   `gorm:"column:energy"`                  // Wh
	StateOfCharge *float64  `gorm:"column:state_of_charge"`         // percent, null if absent
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
