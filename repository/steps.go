package repository

import (
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/sam831212/battery-etl/repository/models"
)

// RegisterSteps persists the step records for an experiment and builds the
// step_number -> step_id mapping that measurement ingestion depends on.
//
// The steps are committed before the mapping is built: a flush alone leaves
// ids that can still be rolled back, and a measurement referencing a rolled
// back step id is a silent integrity violation. Callers needing
// same-transaction continuation pass the active handle as dbTx; passing nil
// makes the registrar open (and commit) its own transaction.
//
// selected is the caller's intended selection. Any selected step_number
// missing from the mapping after commit is fatal; ingestion must abort
// before any measurement write.
func (r *Repository) RegisterSteps(dbTx *gorm.DB, experimentID uint, steps []models.Step, selected []int) ([]models.Step, map[int]uint, *RepositoryError) {
	ownTx := dbTx == nil
	if ownTx {
		dbTx = r.db.Begin()
		if dbTx.Error != nil {
			return nil, nil, wrapDBError(dbTx.Error, "Failed to start transaction")
		}
	}

	for i := range steps {
		steps[i].ExperimentID = experimentID
		if err := dbTx.Create(&steps[i]).Error; err != nil {
			dbTx.Rollback()
			return nil, nil, wrapDBError(err, fmt.Sprintf("Failed to create step %d", steps[i].StepNumber))
		}
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, nil, &RepositoryError{
			Code:    ErrCodeCommitFailed,
			Message: "Failed to commit steps",
			Detail:  err.Error(),
		}
	}

	// Ids are durable now. Null ids should not occur post-commit; filtering
	// them keeps a broken driver from poisoning the mapping.
	mapping := make(map[int]uint, len(steps))
	for _, step := range steps {
		if step.ID == 0 {
			continue
		}
		mapping[step.StepNumber] = step.ID
	}

	var missing []int
	for _, stepNumber := range selected {
		if _, ok := mapping[stepNumber]; !ok {
			missing = append(missing, stepNumber)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, nil, &RepositoryError{
			Code:    ErrCodeStructural,
			Message: "Step mapping incomplete",
			Detail:  fmt.Sprintf("selected step numbers %v have no registered step", missing),
		}
	}

	return steps, mapping, nil
}
