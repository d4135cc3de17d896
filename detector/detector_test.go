package detector

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wms-package-engine/repository"
)

// signalAdapter reports each detection query on a channel
type signalAdapter struct {
	called chan struct{}
}

func (a *signalAdapter) IsAvailable() bool { return true }

func (a *signalAdapter) GetOnHandQuantities(scope *repository.DetectionScope) ([]repository.OnHandQuantity, error) {
	select {
	case a.called <- struct{}{}:
	default:
	}
	return nil, nil
}

func TestDetectorRunsImmediatelyOnStart(t *testing.T) {
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

	repo := repository.NewRepository()
	if err := repo.UseDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	adapter := &signalAdapter{called: make(chan struct{}, 1)}

	// The interval is far longer than the test: only the startup pass can
	// reach the adapter
	d := NewDetector(repo, adapter, time.Hour)
	d.Start()
	defer d.Stop()

	select {
	case <-adapter.called:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a detection pass at startup, none happened")
	}
}
