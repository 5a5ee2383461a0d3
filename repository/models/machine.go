package models

import "time"

// Machine represents the cycler machine the test ran on
type Machine struct {
	ID        uint      `gorm:"column:machine_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:varchar(100);uniqueIndex;not null"`
	Model     string    `gorm:"column:model;type:varchar(100)"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`

	// Relationships
	Experiments []Experiment `gorm:"foreignKey:MachineID"`
}
