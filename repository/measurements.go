package repository

import (
	"github.com/sam831212/battery-etl/repository/models"
)

// InsertMeasurementBatch inserts one batch of measurements in its own
// transaction. Batches commit independently: a failure here rolls back only
// this batch, and previously committed batches stay valid.
func (r *Repository) InsertMeasurementBatch(batch []models.Measurement) *RepositoryError {
	if len(batch) == 0 {
		return nil
	}

	dbTx := r.db.Begin()
	if dbTx.Error != nil {
		return wrapDBError(dbTx.Error, "Failed to start transaction")
	}

	if err := dbTx.Create(&batch).Error; err != nil {
		dbTx.Rollback()
		return wrapDBError(err, "Failed to insert measurement batch")
	}

	if err := dbTx.Commit().Error; err != nil {
		return &RepositoryError{
			Code:    ErrCodeCommitFailed,
			Message: "Failed to commit measurement batch",
			Detail:  err.Error(),
		}
	}
	return nil
}

// CountMeasurements returns the number of measurements stored for an
// experiment's steps.
func (r *Repository) CountMeasurements(experimentID uint) (int64, *RepositoryError) {
	var count int64
	err := r.db.Model(&models.Measurement{}).
		Joins("JOIN steps ON steps.step_id = measurements.step_id").
		Where("steps.experiment_id = ?", experimentID).
		Count(&count).Error
	if err != nil {
		return 0, wrapDBError(err, "Failed to count measurements")
	}
	return count, nil
}
