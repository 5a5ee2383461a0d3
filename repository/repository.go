package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sam831212/battery-etl/repository/models"
)

// PostgreSQL error codes as constants
const (
	// Class 23 — Integrity Constraint Violation
	PgErrForeignKeyViolation = "23503" // foreign_key_violation
	PgErrUniqueViolation     = "23505" // unique_violation
	PgErrCheckViolation      = "23514" // check_violation
	PgErrNotNullViolation    = "23502" // not_null_violation

	// Class 22 — Data Exception
	PgErrNumericValueOutOfRange = "22003" // numeric_value_out_of_range
	PgErrInvalidDatetimeFormat  = "22007" // invalid_datetime_format

	// Class 08 — Connection Exception
	PgErrConnectionException = "08000" // connection_exception
	PgErrConnectionFailure   = "08006" // connection_failure

	// Class 40 — Transaction Rollback
	PgErrTransactionRollback = "40000" // transaction_rollback
)

// Repository-level error codes
const (
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeEntityNotFound = "ENTITY_NOT_FOUND"
	ErrCodeStructural     = "STRUCTURAL_ERROR"
	ErrCodeDuplicateFile  = "DUPLICATE_FILE"
	ErrCodeCommitFailed   = "COMMIT_FAILED"
)

// RepositoryError represent an error in the repository layer
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
}

// wrapDBError converts a gorm/pg error into a RepositoryError, passing
// PostgreSQL error codes through so handlers can switch on them.
func wrapDBError(err error, message string) *RepositoryError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &RepositoryError{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Detail:  pgErr.Detail,
		}
	}
	return &RepositoryError{
		Code:    ErrCodeDatabase,
		Message: message,
		Detail:  err.Error(),
	}
}

type Repository struct {
	db *gorm.DB
}

func NewRepository() *Repository {
	return &Repository{}
}

// ConnectDB connects to PostgreSQL with retry; the database container may
// still be starting when the service comes up.
func (r *Repository) ConnectDB(dsn string) error {
	var lastErr error
	for i := range 10 {
		log.Printf("Connection attempt %d...\n", i+1)
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			lastErr = err
			log.Printf("Connection attempt %d failed: %v\n", i+1, err)
			time.Sleep(2 * time.Second)
			continue
		}
		r.db = db
		log.Println("Connected to Postgres")
		return nil
	}
	return fmt.Errorf("failed to connect to database: %w", lastErr)
}

// OpenSQLite opens a SQLite database file. Used for the shared-database-file
// deployment mode (synchronized through dblock) and in tests.
func (r *Repository) OpenSQLite(path string) error {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	r.db = db
	return nil
}

// DB exposes the underlying handle for callers that need to pass an active
// transaction explicitly.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) Migrate() error {
	err := r.db.AutoMigrate(
		&models.Cell{},
		&models.Machine{},
		&models.Experiment{},
		&models.Step{},
		&models.Measurement{},
		&models.ProcessedFile{},
	)
	if err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed successfully")
	return nil
}
