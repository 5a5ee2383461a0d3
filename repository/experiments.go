package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sam831212/battery-etl/repository/models"
)

// ExperimentMeta is the experiment metadata supplied by the caller
// alongside an upload.
type ExperimentMeta struct {
	Name            string
	Operator        string
	NominalCapacity float64
	StartDate       *time.Time
	CellName        string
	Chemistry       string
	MachineName     string
	MachineModel    string
}

// CreateExperiment creates the Experiment row for one ingestion unit,
// resolving Cell and Machine by name (created on first use). The returned
// Experiment has a durable id; Steps cannot be inserted before this
// commits.
func (r *Repository) CreateExperiment(meta ExperimentMeta) (*models.Experiment, *RepositoryError) {
	experiment := models.Experiment{
		Name:            meta.Name,
		Operator:        meta.Operator,
		NominalCapacity: meta.NominalCapacity,
		StartDate:       meta.StartDate,
	}

	dbTx := r.db.Begin()
	if dbTx.Error != nil {
		return nil, wrapDBError(dbTx.Error, "Failed to start transaction")
	}

	if meta.CellName != "" {
		cell := models.Cell{Name: meta.CellName, Chemistry: meta.Chemistry, NominalCapacity: meta.NominalCapacity}
		if err := dbTx.Where(models.Cell{Name: meta.CellName}).FirstOrCreate(&cell).Error; err != nil {
			dbTx.Rollback()
			return nil, wrapDBError(err, "Failed to resolve cell")
		}
		experiment.CellID = &cell.ID
	}

	if meta.MachineName != "" {
		machine := models.Machine{Name: meta.MachineName, Model: meta.MachineModel}
		if err := dbTx.Where(models.Machine{Name: meta.MachineName}).FirstOrCreate(&machine).Error; err != nil {
			dbTx.Rollback()
			return nil, wrapDBError(err, "Failed to resolve machine")
		}
		experiment.MachineID = &machine.ID
	}

	if err := dbTx.Create(&experiment).Error; err != nil {
		dbTx.Rollback()
		return nil, wrapDBError(err, "Failed to create experiment")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, &RepositoryError{
			Code:    ErrCodeCommitFailed,
			Message: "Failed to commit transaction",
			Detail:  err.Error(),
		}
	}

	return &experiment, nil
}

// FinalizeExperiment stores the validation report and sets end_date from
// the last measurement timestamp. endDate may be nil when the detail file
// carried no parseable timestamps.
func (r *Repository) FinalizeExperiment(experimentID uint, endDate *time.Time, validationReport string) *RepositoryError {
	updates := map[string]interface{}{
		"validation_report": validationReport,
	}
	if endDate != nil {
		updates["end_date"] = *endDate
	}

	result := r.db.Model(&models.Experiment{}).Where("experiment_id = ?", experimentID).Updates(updates)
	if result.Error != nil {
		return wrapDBError(result.Error, "Failed to finalize experiment")
	}
	if result.RowsAffected == 0 {
		return &RepositoryError{
			Code:    ErrCodeEntityNotFound,
			Message: "Experiment does not exist",
			Detail:  fmt.Sprintf("Experiment with id %d does not exist", experimentID),
		}
	}
	return nil
}

// GetExperiment loads one experiment with its steps, cell and machine.
func (r *Repository) GetExperiment(experimentID uint) (*models.Experiment, *RepositoryError) {
	var experiment models.Experiment
	err := r.db.Preload("Steps").Preload("Cell").Preload("Machine").
		Where("experiment_id = ?", experimentID).First(&experiment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &RepositoryError{
				Code:    ErrCodeEntityNotFound,
				Message: "Experiment does not exist",
				Detail:  fmt.Sprintf("Experiment with id %d does not exist", experimentID),
			}
		}
		return nil, wrapDBError(err, "Database error")
	}
	return &experiment, nil
}
