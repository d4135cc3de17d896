package repository

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wms-package-engine/repository/models"
)

// PostgreSQL error codes the engine cares about
const (
	PgErrUniqueViolation     = "23505" // unique_violation
	PgErrForeignKeyViolation = "23503" // foreign_key_violation
	PgErrCheckViolation      = "23514" // check_violation
)

// Repository error codes. The first group are business-rule outcomes the
// HTTP layer maps to 4xx, the second group are infrastructure failures.
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInvalidState         = "INVALID_STATE"
	ErrCodeInvalidQuantity      = "INVALID_QUANTITY"
	ErrCodeInsufficientQuantity = "INSUFFICIENT_QUANTITY"
	ErrCodeUniqueViolation      = "UNIQUE_VIOLATION"
	ErrCodeSessionActive        = "SESSION_ACTIVE"

	ErrCodeDatabase           = "DATABASE_ERROR"
	ErrCodeCreateFailed       = "CREATE_FAILED"
	ErrCodeUpdateFailed       = "UPDATE_FAILED"
	ErrCodeCommitFailed       = "COMMIT_FAILED"
	ErrCodeAdapterUnavailable = "ADAPTER_UNAVAILABLE"
)

// RepositoryError represents repository layer errors
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Detail)
}

// IsBusinessError reports whether the error is an expected business-rule
// outcome rather than an infrastructure failure.
func (e *RepositoryError) IsBusinessError() bool {
	switch e.Code {
	case ErrCodeNotFound, ErrCodeInvalidState, ErrCodeInvalidQuantity,
		ErrCodeInsufficientQuantity, ErrCodeUniqueViolation, ErrCodeSessionActive:
		return true
	}
	return false
}

// BarcodeAllocator supplies candidate barcodes for new packages. The engine
// only guarantees uniqueness, retrying allocation on collision.
type BarcodeAllocator interface {
	NextBarcode() string
}

// UUIDBarcodeAllocator is the default allocator
type UUIDBarcodeAllocator struct{}

func (UUIDBarcodeAllocator) NextBarcode() string {
	return fmt.Sprintf("PKG-%s", strings.ToUpper(uuid.New().String()[:8]))
}

// DetectorConfig holds the consistency-detection tunables
type DetectorConfig struct {
	Epsilon         float64 // quantity deltas at or below this are ignored
	MediumThreshold float64 // |delta| at or above this is medium severity
	HighThreshold   float64 // |delta| at or above this is high severity
}

// DefaultDetectorConfig returns the stock thresholds
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Epsilon:         0.000001,
		MediumThreshold: 5,
		HighThreshold:   20,
	}
}

// Repository handles all database operations for the package engine
type Repository struct {
	db       *gorm.DB
	locks    *keyedMutex
	barcodes BarcodeAllocator
	detector DetectorConfig
}

// NewRepository creates a new repository instance with default barcode
// allocation and detector thresholds.
func NewRepository() *Repository {
	return &Repository{
		locks:    newKeyedMutex(),
		barcodes: UUIDBarcodeAllocator{},
		detector: DefaultDetectorConfig(),
	}
}

// SetBarcodeAllocator overrides the default barcode source
func (r *Repository) SetBarcodeAllocator(a BarcodeAllocator) {
	r.barcodes = a
}

// SetDetectorConfig overrides the detection thresholds
func (r *Repository) SetDetectorConfig(cfg DetectorConfig) {
	r.detector = cfg
}

// ConnectDB establishes the database connection and performs migrations
func (r *Repository) ConnectDB(dsn string) error {
	for i := 0; i < 10; i++ {
		log.Printf("Database connection attempt %d...\n", i+1)
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			log.Printf("Connection attempt %d failed: %v\n", i+1, err)
			time.Sleep(2 * time.Second)
			continue
		}
		r.db = db
		log.Println("✓ Connected to database")

		if err := r.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to connect to database after 10 attempts")
}

// UseDB attaches an already-open GORM connection and runs migrations.
// Tests use this with an in-memory SQLite database.
func (r *Repository) UseDB(db *gorm.DB) error {
	r.db = db
	return r.Migrate()
}

// Migrate performs database schema migrations
func (r *Repository) Migrate() error {
	log.Println("Running database migrations...")

	migrator := r.db.Migrator()

	// Order matters due to foreign keys
	tables := []interface{}{
		&models.Package{},
		&models.PackageContent{},
		&models.PackageTransaction{},
		&models.PackageLocationHistory{},
		&models.PackageInconsistency{},
		&models.PickListCheckSession{},
		&models.PickListCheckItem{},
		&models.PickListCheckPackage{},
		&models.PickListPackage{},
	}

	for _, table := range tables {
		if !migrator.HasTable(table) {
			if err := migrator.CreateTable(table); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}

// Seed creates a few demo packages for local development
func (r *Repository) Seed() {
	var packageCount int64
	r.db.Model(&models.Package{}).Count(&packageCount)
	if packageCount > 0 {
		log.Println("Seed data already exists, skipping...")
		return
	}

	log.Println("Seeding database with demo packages...")

	bin10 := 10
	packages := []models.Package{
		{ID: "PKG-DEMO-001", Barcode: "PKG-DEMO-001", Status: models.PackageStatusOpen, WhsCode: "WH1", BinEntry: &bin10, CreatedBy: "seed"},
		{ID: "PKG-DEMO-002", Barcode: "PKG-DEMO-002", Status: models.PackageStatusOpen, WhsCode: "WH1", CreatedBy: "seed"},
	}
	for _, pkg := range packages {
		r.db.Create(&pkg)
		r.db.Create(&models.PackageLocationHistory{
			PackageID:           pkg.ID,
			MovementType:        "create",
			ToWhsCode:           pkg.WhsCode,
			ToBinEntry:          pkg.BinEntry,
			SourceOperationType: models.SourceOperationPackage,
			UserID:              "seed",
		})
	}

	log.Println("✓ Database seeding completed")
}

// dbError maps a low-level store error onto a RepositoryError, classifying
// PostgreSQL unique violations so callers see them as business outcomes.
func dbError(err error, message string) *RepositoryError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == PgErrUniqueViolation {
			return &RepositoryError{
				Code:    ErrCodeUniqueViolation,
				Message: message,
				Detail:  pgErr.Detail,
			}
		}
		return &RepositoryError{
			Code:    ErrCodeDatabase,
			Message: message,
			Detail:  fmt.Sprintf("pg error %s: %s", pgErr.Code, pgErr.Message),
		}
	}
	// SQLite reports constraint failures as plain errors
	if strings.Contains(strings.ToLower(err.Error()), "unique") {
		return &RepositoryError{
			Code:    ErrCodeUniqueViolation,
			Message: message,
			Detail:  err.Error(),
		}
	}
	return &RepositoryError{
		Code:    ErrCodeDatabase,
		Message: message,
		Detail:  err.Error(),
	}
}

func commitError(err error) *RepositoryError {
	return &RepositoryError{
		Code:    ErrCodeCommitFailed,
		Message: "Failed to commit transaction",
		Detail:  err.Error(),
	}
}

func notFound(entity, id string) *RepositoryError {
	return &RepositoryError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Detail:  fmt.Sprintf("%s %s does not exist", entity, id),
	}
}
