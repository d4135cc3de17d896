package repository

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wms-package-engine/repository/models"
)

// newTestRepository opens an in-memory SQLite database and runs migrations.
// A single connection keeps every query on the same in-memory database.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := NewRepository()
	if err := repo.UseDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return repo
}

// sequenceBarcodeAllocator returns pre-set barcodes in order, so collisions
// can be provoked deterministically.
type sequenceBarcodeAllocator struct {
	barcodes []string
	next     int
}

func (a *sequenceBarcodeAllocator) NextBarcode() string {
	if a.next >= len(a.barcodes) {
		return fmt.Sprintf("PKG-OVERFLOW-%d", a.next)
	}
	barcode := a.barcodes[a.next]
	a.next++
	return barcode
}

func mustCreatePackage(t *testing.T, repo *Repository, whsCode string) *models.Package {
	t.Helper()
	pkg, repoErr := repo.CreatePackage(whsCode, nil, "tester", "", nil)
	if repoErr != nil {
		t.Fatalf("CreatePackage failed: %v", repoErr)
	}
	return pkg
}

func TestSeedIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)

	repo.Seed()
	repo.Seed()

	var count int64
	if err := repo.db.Model(&models.Package{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 seeded packages, got %d", count)
	}
}

func TestRepositoryErrorClassification(t *testing.T) {
	business := &RepositoryError{Code: ErrCodeInsufficientQuantity, Message: "not enough"}
	if !business.IsBusinessError() {
		t.Errorf("%s should be a business error", business.Code)
	}

	infra := &RepositoryError{Code: ErrCodeDatabase, Message: "boom"}
	if infra.IsBusinessError() {
		t.Errorf("%s should not be a business error", infra.Code)
	}
}
