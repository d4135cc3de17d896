package repository

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"wms-package-engine/repository/models"
)

// OnHandQuantity is one ERP on-hand record for an (item, location) key
type OnHandQuantity struct {
	ItemCode string  `json:"item_code"`
	BatchNo  *string `json:"batch_no"`
	SerialNo *string `json:"serial_no"`
	WhsCode  string  `json:"whs_code"`
	BinEntry *int    `json:"bin_entry"`
	Quantity float64 `json:"quantity"`
}

// DetectionScope optionally narrows a detection run
type DetectionScope struct {
	WhsCode  string `json:"whs_code"`
	ItemCode string `json:"item_code"`
}

// InventoryAdapter supplies authoritative on-hand quantities from the ERP.
// Package contents carry no batch or serial granularity, so detection
// aggregates the returned records per (item, warehouse, bin); any batch or
// serial detail on a record is informational and does not split the key.
type InventoryAdapter interface {
	IsAvailable() bool
	GetOnHandQuantities(scope *DetectionScope) ([]OnHandQuantity, error)
}

type quantityKey struct {
	ItemCode string
	WhsCode  string
	BinEntry int // -1 when no bin
}

func (k quantityKey) binEntry() *int {
	if k.BinEntry < 0 {
		return nil
	}
	bin := k.BinEntry
	return &bin
}

func makeKey(itemCode, whsCode string, binEntry *int) quantityKey {
	bin := -1
	if binEntry != nil {
		bin = *binEntry
	}
	return quantityKey{ItemCode: itemCode, WhsCode: whsCode, BinEntry: bin}
}

// RunDetection compares ERP on-hand quantities against the WMS package
// aggregate per (item, warehouse, bin) key and files one inconsistency per
// offending key. Re-detecting an unresolved key updates the existing row in
// place instead of duplicating it.
//
// The run reads a best-effort snapshot: a mutation racing a run can produce
// a transient finding that the next run clears again. If the adapter is
// unavailable the run aborts without emitting anything.
//
// Runs are serialized: the background ticker and the on-demand endpoint
// share one repository, and overlapping runs would race the find-or-create
// dedupe into duplicate findings.
func (r *Repository) RunDetection(adapter InventoryAdapter, scope *DetectionScope) ([]models.PackageInconsistency, *RepositoryError) {
	unlock := r.locks.Lock("consistency:detect")
	defer unlock()

	if adapter == nil || !adapter.IsAvailable() {
		return nil, &RepositoryError{
			Code:    ErrCodeAdapterUnavailable,
			Message: "External inventory adapter is unavailable",
			Detail:  "detection run aborted, no inconsistencies were emitted",
		}
	}

	erpRecords, err := adapter.GetOnHandQuantities(scope)
	if err != nil {
		return nil, &RepositoryError{
			Code:    ErrCodeAdapterUnavailable,
			Message: "Failed to query external inventory",
			Detail:  err.Error(),
		}
	}

	erpByKey := make(map[quantityKey]float64)
	for _, record := range erpRecords {
		erpByKey[makeKey(record.ItemCode, record.WhsCode, record.BinEntry)] += record.Quantity
	}

	wmsByKey, repoErr := r.aggregateWmsQuantities(scope)
	if repoErr != nil {
		return nil, repoErr
	}

	keys := make(map[quantityKey]struct{})
	for key := range erpByKey {
		keys[key] = struct{}{}
	}
	for key := range wmsByKey {
		keys[key] = struct{}{}
	}

	now := time.Now()
	var findings []models.PackageInconsistency

	dbTx := r.db.Begin()
	for key := range keys {
		erpQty := erpByKey[key]
		wmsQty := wmsByKey[key]
		delta := erpQty - wmsQty
		if math.Abs(delta) <= r.detector.Epsilon {
			continue
		}

		incType := models.InconsistencyTypeShortage
		switch {
		case wmsQty > erpQty && math.Abs(erpQty) <= r.detector.Epsilon:
			incType = models.InconsistencyTypeOrphan
		case wmsQty > erpQty:
			incType = models.InconsistencyTypeOverage
		}

		finding := models.PackageInconsistency{
			ItemCode:    key.ItemCode,
			WhsCode:     key.WhsCode,
			BinEntry:    key.binEntry(),
			ErpQuantity: erpQty,
			WmsQuantity: wmsQty,
			Type:        incType,
			Severity:    r.classifySeverity(delta),
			DetectedAt:  now,
			ErrorDetails: fmt.Sprintf("erp=%v wms=%v delta=%v for item %s at %s",
				erpQty, wmsQty, delta, key.ItemCode, locationLabel(key)),
		}

		// Attach the largest contributing package for drill-down
		if pkgID, barcode, pkgQty, repoErr := r.topContributor(dbTx, key); repoErr == nil && pkgID != "" {
			id := pkgID
			finding.PackageID = &id
			finding.Barcode = barcode
			finding.PackageQuantity = pkgQty
		}

		saved, repoErr := upsertInconsistency(dbTx, finding)
		if repoErr != nil {
			dbTx.Rollback()
			return nil, repoErr
		}
		findings = append(findings, *saved)
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return findings, nil
}

// aggregateWmsQuantities sums content quantities over open and locked
// packages, grouped by (item, warehouse, bin).
func (r *Repository) aggregateWmsQuantities(scope *DetectionScope) (map[quantityKey]float64, *RepositoryError) {
	type aggregateRow struct {
		ItemCode string
		WhsCode  string
		BinEntry *int
		Total    float64
	}

	query := r.db.Model(&models.PackageContent{}).
		Select("package_contents.item_code, package_contents.whs_code, package_contents.bin_entry, SUM(package_contents.quantity) AS total").
		Joins("JOIN packages ON packages.package_id = package_contents.package_id").
		Where("packages.status IN ?", []string{models.PackageStatusOpen, models.PackageStatusLocked}).
		Group("package_contents.item_code, package_contents.whs_code, package_contents.bin_entry")

	if scope != nil {
		if scope.WhsCode != "" {
			query = query.Where("package_contents.whs_code = ?", scope.WhsCode)
		}
		if scope.ItemCode != "" {
			query = query.Where("package_contents.item_code = ?", scope.ItemCode)
		}
	}

	var rows []aggregateRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, dbError(err, "Failed to aggregate package quantities")
	}

	result := make(map[quantityKey]float64, len(rows))
	for _, row := range rows {
		result[makeKey(row.ItemCode, row.WhsCode, row.BinEntry)] = row.Total
	}
	return result, nil
}

// topContributor returns the open/locked package holding the most quantity
// for the key, for drill-down on a finding.
func (r *Repository) topContributor(dbTx *gorm.DB, key quantityKey) (string, string, float64, *RepositoryError) {
	query := dbTx.Model(&models.PackageContent{}).
		Select("package_contents.package_id, packages.barcode, package_contents.quantity").
		Joins("JOIN packages ON packages.package_id = package_contents.package_id").
		Where("packages.status IN ?", []string{models.PackageStatusOpen, models.PackageStatusLocked}).
		Where("package_contents.item_code = ? AND package_contents.whs_code = ?", key.ItemCode, key.WhsCode)
	if key.BinEntry >= 0 {
		query = query.Where("package_contents.bin_entry = ?", key.BinEntry)
	} else {
		query = query.Where("package_contents.bin_entry IS NULL")
	}

	var row struct {
		PackageID string
		Barcode   string
		Quantity  float64
	}
	err := query.Order("package_contents.quantity DESC").Limit(1).Scan(&row).Error
	if err != nil {
		return "", "", 0, dbError(err, "Failed to find contributing package")
	}
	return row.PackageID, row.Barcode, row.Quantity, nil
}

// upsertInconsistency updates an unresolved finding for the same
// (item, location, type) key in place, or creates a new row.
func upsertInconsistency(dbTx *gorm.DB, finding models.PackageInconsistency) (*models.PackageInconsistency, *RepositoryError) {
	query := dbTx.Where(
		"item_code = ? AND whs_code = ? AND type = ? AND is_resolved = ?",
		finding.ItemCode, finding.WhsCode, finding.Type, false,
	)
	if finding.BinEntry != nil {
		query = query.Where("bin_entry = ?", *finding.BinEntry)
	} else {
		query = query.Where("bin_entry IS NULL")
	}

	var existing models.PackageInconsistency
	err := query.First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dbError(err, "Failed to look up existing inconsistency")
		}
		if err := dbTx.Create(&finding).Error; err != nil {
			return nil, dbError(err, "Failed to create inconsistency")
		}
		return &finding, nil
	}

	existing.ErpQuantity = finding.ErpQuantity
	existing.WmsQuantity = finding.WmsQuantity
	existing.PackageQuantity = finding.PackageQuantity
	existing.PackageID = finding.PackageID
	existing.Barcode = finding.Barcode
	existing.Severity = finding.Severity
	existing.DetectedAt = finding.DetectedAt
	existing.ErrorDetails = finding.ErrorDetails
	if err := dbTx.Save(&existing).Error; err != nil {
		return nil, dbError(err, "Failed to update inconsistency")
	}
	return &existing, nil
}

// ResolveInconsistency attaches a manual resolution to a finding. It is an
// audit annotation only and does not mutate inventory.
func (r *Repository) ResolveInconsistency(id uint, action, resolver string) (*models.PackageInconsistency, *RepositoryError) {
	dbTx := r.db.Begin()

	var inconsistency models.PackageInconsistency
	err := dbTx.Where("inconsistency_id = ?", id).First(&inconsistency).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Inconsistency", fmt.Sprintf("%d", id))
		}
		return nil, dbError(err, "Failed to load inconsistency")
	}

	if inconsistency.IsResolved {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: "Inconsistency already resolved",
			Detail:  fmt.Sprintf("inconsistency %d was resolved at %v", id, inconsistency.ResolvedAt),
		}
	}

	now := time.Now()
	inconsistency.IsResolved = true
	inconsistency.ResolvedAt = &now
	inconsistency.ResolvedBy = &resolver
	inconsistency.ResolutionAction = &action
	if err := dbTx.Save(&inconsistency).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to resolve inconsistency")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}
	return &inconsistency, nil
}

// InconsistencyFilter narrows ListUnresolvedInconsistencies
type InconsistencyFilter struct {
	WhsCode  string `json:"whs_code"`
	ItemCode string `json:"item_code"`
	Type     string `json:"type"`
}

// ListUnresolvedInconsistencies returns open findings, newest first
func (r *Repository) ListUnresolvedInconsistencies(filter *InconsistencyFilter) ([]models.PackageInconsistency, *RepositoryError) {
	query := r.db.Where("is_resolved = ?", false)
	if filter != nil {
		if filter.WhsCode != "" {
			query = query.Where("whs_code = ?", filter.WhsCode)
		}
		if filter.ItemCode != "" {
			query = query.Where("item_code = ?", filter.ItemCode)
		}
		if filter.Type != "" {
			query = query.Where("type = ?", filter.Type)
		}
	}

	var findings []models.PackageInconsistency
	if err := query.Order("detected_at DESC, inconsistency_id DESC").Find(&findings).Error; err != nil {
		return nil, dbError(err, "Failed to list inconsistencies")
	}
	return findings, nil
}

func (r *Repository) classifySeverity(delta float64) string {
	abs := math.Abs(delta)
	switch {
	case abs >= r.detector.HighThreshold:
		return models.SeverityHigh
	case abs >= r.detector.MediumThreshold:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func locationLabel(key quantityKey) string {
	if key.BinEntry < 0 {
		return key.WhsCode
	}
	return fmt.Sprintf("%s/bin %d", key.WhsCode, key.BinEntry)
}
