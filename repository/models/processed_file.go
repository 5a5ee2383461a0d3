package models

import "time"

// File types accepted by the ingestion pipeline
const (
	FileTypeStep   = "step"
	FileTypeDetail = "detail"
)

// ProcessedFile is the durable dedup ledger: one row per successfully
// ingested file. A file whose hash already exists here is never re-ingested.
type ProcessedFile struct {
	ID           uint        `gorm:"column:processed_file_id;primaryKey;autoIncrement"`
	FileHash     string      `gorm:"column:file_hash;type:varchar(64);uniqueIndex;not null"`
	FileType     string      `gorm:"column:file_type;type:varchar(10);not null"`
	FileName     string      `gorm:"column:file_name;type:varchar(255)"`
	RowCount     int         `gorm:"column:row_count;not null"`
	ExperimentID uint        `gorm:"column:experiment_id;index;not null"`
	Experiment   *Experiment `gorm:"foreignKey:ExperimentID"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime"`
}
