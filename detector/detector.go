package detector

import (
	"log"
	"time"

	"wms-package-engine/repository"
)

// Detector runs consistency detection on a fixed interval until stopped
type Detector struct {
	repo     *repository.Repository
	adapter  repository.InventoryAdapter
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewDetector creates a background detector. A non-positive interval falls
// back to one hour.
func NewDetector(repo *repository.Repository, adapter repository.InventoryAdapter, interval time.Duration) *Detector {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Detector{
		repo:     repo,
		adapter:  adapter,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the detection loop in its own goroutine
func (d *Detector) Start() {
	log.Printf("Starting consistency detector (interval: %s)", d.interval)

	go func() {
		defer close(d.done)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		// First pass right away, so a fresh boot surfaces inconsistencies
		// without waiting a full interval
		d.runOnce()

		for {
			select {
			case <-ticker.C:
				d.runOnce()
			case <-d.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight run to finish
func (d *Detector) Stop() {
	close(d.stop)
	<-d.done
	log.Println("✓ Consistency detector stopped")
}

func (d *Detector) runOnce() {
	findings, err := d.repo.RunDetection(d.adapter, nil)
	if err != nil {
		if err.Code == repository.ErrCodeAdapterUnavailable {
			log.Printf("⚠️  Detection run skipped: %s", err.Detail)
			return
		}
		log.Printf("❌ Detection run failed: %v", err)
		return
	}

	if len(findings) == 0 {
		log.Println("Detection run completed, no inconsistencies")
		return
	}
	log.Printf("Detection run completed, %d inconsistency finding(s)", len(findings))
}
