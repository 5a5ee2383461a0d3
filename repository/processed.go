package repository

import (
	"log"

	"github.com/sam831212/battery-etl/repository/models"
)

// IsFileProcessed checks the dedup ledger for an exact hash match. On a
// storage error a single retry is attempted; if that also fails the file is
// treated as unprocessed. Both failures are logged so operators can audit
// any duplicate ingestion this lets through.
func (r *Repository) IsFileProcessed(fileHash string) bool {
	var count int64
	err := r.db.Model(&models.ProcessedFile{}).Where("file_hash = ?", fileHash).Count(&count).Error
	if err != nil {
		log.Printf("Dedup check failed, retrying on a fresh connection: %v", err)
		// Ping re-establishes the pool's backing connection so the retry
		// does not reuse the one that just failed.
		if sqlDB, poolErr := r.db.DB(); poolErr == nil {
			if pingErr := sqlDB.Ping(); pingErr != nil {
				log.Printf("Connection ping failed: %v", pingErr)
			}
		}
		err = r.db.Model(&models.ProcessedFile{}).Where("file_hash = ?", fileHash).Count(&count).Error
		if err != nil {
			log.Printf("Dedup check failed twice, treating file as unprocessed: %v", err)
			return false
		}
	}
	return count > 0
}

// RecordProcessedFile writes the audit/dedup record for one ingested file.
// Called only after the full ingestion run has committed; the hash gates
// future dedup checks.
func (r *Repository) RecordProcessedFile(fileHash, fileType, fileName string, rowCount int, experimentID uint) *RepositoryError {
	record := models.ProcessedFile{
		FileHash:     fileHash,
		FileType:     fileType,
		FileName:     fileName,
		RowCount:     rowCount,
		ExperimentID: experimentID,
	}

	dbTx := r.db.Begin()
	if dbTx.Error != nil {
		return wrapDBError(dbTx.Error, "Failed to start transaction")
	}
	if err := dbTx.Create(&record).Error; err != nil {
		dbTx.Rollback()
		return wrapDBError(err, "Failed to record processed file")
	}
	if err := dbTx.Commit().Error; err != nil {
		return &RepositoryError{
			Code:    ErrCodeCommitFailed,
			Message: "Failed to commit processed file record",
			Detail:  err.Error(),
		}
	}
	return nil
}
