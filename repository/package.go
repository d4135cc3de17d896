package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wms-package-engine/repository/models"
)

// quantities closer to zero than this are treated as zero
const quantityEpsilon = 1e-9

const maxBarcodeAttempts = 5

const (
	maxCustomAttributes     = 32
	maxCustomAttributeValue = 512
)

// SourceOperation identifies the warehouse workflow that caused a mutation
type SourceOperation struct {
	Type   string
	ID     *int
	LineID *int
}

// PackageDirect attributes a mutation to direct package management rather
// than a document workflow.
func PackageDirect() SourceOperation {
	return SourceOperation{Type: models.SourceOperationPackage}
}

// CreatePackage allocates a fresh barcode and creates an open package at the
// given location, with its creation movement recorded. Barcode allocation is
// retried a bounded number of times on collision.
func (r *Repository) CreatePackage(whsCode string, binEntry *int, createdBy, notes string, attributes map[string]string) (*models.Package, *RepositoryError) {
	if whsCode == "" {
		return nil, &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: "Warehouse code is required",
			Detail:  "a package must be created at a warehouse location",
		}
	}

	attrJSON, repoErr := encodeAttributes(attributes)
	if repoErr != nil {
		return nil, repoErr
	}

	var lastErr *RepositoryError
	for attempt := 1; attempt <= maxBarcodeAttempts; attempt++ {
		barcode := r.barcodes.NextBarcode()

		pkg := models.Package{
			ID:               fmt.Sprintf("PKG-%s", uuid.New().String()[:8]),
			Barcode:          barcode,
			Status:           models.PackageStatusOpen,
			WhsCode:          whsCode,
			BinEntry:         binEntry,
			CreatedBy:        createdBy,
			Notes:            notes,
			CustomAttributes: attrJSON,
		}

		dbTx := r.db.Begin()

		// The unique index is the backstop; this check keeps the error
		// portable across stores.
		var existing int64
		if err := dbTx.Model(&models.Package{}).Where("barcode = ?", barcode).Count(&existing).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to check barcode uniqueness")
		}
		if existing > 0 {
			dbTx.Rollback()
			lastErr = &RepositoryError{
				Code:    ErrCodeUniqueViolation,
				Message: "Barcode already in use",
				Detail:  fmt.Sprintf("barcode %s is already assigned", barcode),
			}
			continue
		}

		if err := dbTx.Create(&pkg).Error; err != nil {
			dbTx.Rollback()
			lastErr = dbError(err, "Failed to create package")
			if lastErr.Code == ErrCodeUniqueViolation {
				continue
			}
			return nil, lastErr
		}

		movement := models.PackageLocationHistory{
			PackageID:           pkg.ID,
			MovementType:        "create",
			ToWhsCode:           whsCode,
			ToBinEntry:          binEntry,
			SourceOperationType: models.SourceOperationPackage,
			UserID:              createdBy,
		}
		if err := dbTx.Create(&movement).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to record package creation movement")
		}

		if err := dbTx.Commit().Error; err != nil {
			return nil, commitError(err)
		}
		return &pkg, nil
	}

	return nil, lastErr
}

// AddItem adds quantity of an item to an open package, appending an add
// ledger entry and updating the content aggregate in one atomic unit.
func (r *Repository) AddItem(packageID, itemCode string, quantity float64, uomCode string, source SourceOperation, userID string) (*models.Package, *RepositoryError) {
	if quantity <= 0 {
		return nil, invalidQuantity(quantity)
	}

	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status != models.PackageStatusOpen {
		dbTx.Rollback()
		return nil, notOpen(pkg)
	}

	var content models.PackageContent
	err := dbTx.Where("package_id = ? AND item_code = ?", packageID, itemCode).First(&content).Error
	switch {
	case err == nil:
		content.Quantity += quantity
		if err := dbTx.Save(&content).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to update package content")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		content = models.PackageContent{
			PackageID: packageID,
			ItemCode:  itemCode,
			Quantity:  quantity,
			UoMCode:   uomCode,
			WhsCode:   pkg.WhsCode,
			BinEntry:  pkg.BinEntry,
		}
		if err := dbTx.Create(&content).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to create package content")
		}
	default:
		dbTx.Rollback()
		return nil, dbError(err, "Failed to load package content")
	}

	if repoErr := appendTransaction(dbTx, packageID, models.TransactionTypeAdd, itemCode, quantity, uomCode, source, userID, ""); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// RemoveItem removes quantity of an item from an open package. Removal
// beyond the available content quantity fails without changing anything; a
// content row driven to zero is deleted.
func (r *Repository) RemoveItem(packageID, itemCode string, quantity float64, uomCode string, source SourceOperation, userID string) (*models.Package, *RepositoryError) {
	if quantity <= 0 {
		return nil, invalidQuantity(quantity)
	}

	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status != models.PackageStatusOpen {
		dbTx.Rollback()
		return nil, notOpen(pkg)
	}

	var content models.PackageContent
	err := dbTx.Where("package_id = ? AND item_code = ?", packageID, itemCode).First(&content).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, insufficientQuantity(itemCode, 0, quantity)
		}
		return nil, dbError(err, "Failed to load package content")
	}

	if content.Quantity+quantityEpsilon < quantity {
		dbTx.Rollback()
		return nil, insufficientQuantity(itemCode, content.Quantity, quantity)
	}

	remaining := content.Quantity - quantity
	if remaining <= quantityEpsilon {
		if err := dbTx.Delete(&content).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to remove emptied package content")
		}
	} else {
		content.Quantity = remaining
		if err := dbTx.Save(&content).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to update package content")
		}
	}

	if repoErr := appendTransaction(dbTx, packageID, models.TransactionTypeRemove, itemCode, quantity, uomCode, source, userID, ""); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// AdjustItem sets an item's content quantity to an absolute value, appending
// an adjust ledger entry carrying the signed delta. Used by inventory
// counting corrections.
func (r *Repository) AdjustItem(packageID, itemCode string, newQuantity float64, uomCode string, source SourceOperation, userID string) (*models.Package, *RepositoryError) {
	if newQuantity < 0 {
		return nil, invalidQuantity(newQuantity)
	}

	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status != models.PackageStatusOpen {
		dbTx.Rollback()
		return nil, notOpen(pkg)
	}

	var content models.PackageContent
	current := 0.0
	hasRow := true
	err := dbTx.Where("package_id = ? AND item_code = ?", packageID, itemCode).First(&content).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to load package content")
		}
		hasRow = false
	} else {
		current = content.Quantity
	}

	delta := newQuantity - current
	if math.Abs(delta) <= quantityEpsilon {
		dbTx.Rollback()
		return r.GetPackage(packageID)
	}

	switch {
	case newQuantity <= quantityEpsilon:
		if hasRow {
			if err := dbTx.Delete(&content).Error; err != nil {
				dbTx.Rollback()
				return nil, dbError(err, "Failed to remove emptied package content")
			}
		}
	case hasRow:
		content.Quantity = newQuantity
		if err := dbTx.Save(&content).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to update package content")
		}
	default:
		content = models.PackageContent{
			PackageID: packageID,
			ItemCode:  itemCode,
			Quantity:  newQuantity,
			UoMCode:   uomCode,
			WhsCode:   pkg.WhsCode,
			BinEntry:  pkg.BinEntry,
		}
		if err := dbTx.Create(&content).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to create package content")
		}
	}

	if repoErr := appendTransaction(dbTx, packageID, models.TransactionTypeAdjust, itemCode, delta, uomCode, source, userID, ""); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// MovePackage relocates a package to another warehouse/bin, records the
// movement and mirrors the new location onto all content rows in the same
// atomic unit. Cancelled packages cannot move.
func (r *Repository) MovePackage(packageID, toWhsCode string, toBinEntry *int, source SourceOperation, userID string) (*models.Package, *RepositoryError) {
	if toWhsCode == "" {
		return nil, &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: "Warehouse code is required",
			Detail:  "a package cannot be moved to an empty location",
		}
	}

	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status == models.PackageStatusCancelled {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: "Package is cancelled",
			Detail:  fmt.Sprintf("package %s is cancelled and cannot be moved", packageID),
		}
	}

	fromWhs := pkg.WhsCode
	fromBin := pkg.BinEntry

	pkg.WhsCode = toWhsCode
	pkg.BinEntry = toBinEntry
	if err := dbTx.Save(pkg).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to update package location")
	}

	// Content location is a denormalized mirror of the package location
	err := dbTx.Model(&models.PackageContent{}).
		Where("package_id = ?", packageID).
		Updates(map[string]interface{}{
			"whs_code":  toWhsCode,
			"bin_entry": toBinEntry,
		}).Error
	if err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to update content locations")
	}

	movement := models.PackageLocationHistory{
		PackageID:           packageID,
		MovementType:        "move",
		FromWhsCode:         &fromWhs,
		FromBinEntry:        fromBin,
		ToWhsCode:           toWhsCode,
		ToBinEntry:          toBinEntry,
		SourceOperationType: source.Type,
		SourceOperationID:   source.ID,
		UserID:              userID,
	}
	if err := dbTx.Create(&movement).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to record package movement")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// ClosePackage transitions an open package to closed
func (r *Repository) ClosePackage(packageID, userID string) (*models.Package, *RepositoryError) {
	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status != models.PackageStatusOpen {
		dbTx.Rollback()
		return nil, transitionError(pkg, models.PackageStatusClosed)
	}

	now := time.Now()
	pkg.Status = models.PackageStatusClosed
	pkg.ClosedAt = &now
	pkg.ClosedBy = &userID
	if err := dbTx.Save(pkg).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to close package")
	}

	if repoErr := appendTransaction(dbTx, packageID, models.TransactionTypeClose, "", 0, "", PackageDirect(), userID, ""); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// CancelPackage transitions an open or locked package to cancelled. The
// ledger receives one cancel entry per remaining content line so it shows
// the full quantity being zeroed, and the content rows are cleared.
func (r *Repository) CancelPackage(packageID, reason, userID string) (*models.Package, *RepositoryError) {
	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status != models.PackageStatusOpen && pkg.Status != models.PackageStatusLocked {
		dbTx.Rollback()
		return nil, transitionError(pkg, models.PackageStatusCancelled)
	}

	var contents []models.PackageContent
	if err := dbTx.Where("package_id = ?", packageID).Find(&contents).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to load package contents")
	}

	for _, content := range contents {
		if repoErr := appendTransaction(dbTx, packageID, models.TransactionTypeCancel, content.ItemCode, content.Quantity, content.UoMCode, PackageDirect(), userID, reason); repoErr != nil {
			dbTx.Rollback()
			return nil, repoErr
		}
	}

	if len(contents) > 0 {
		if err := dbTx.Where("package_id = ?", packageID).Delete(&models.PackageContent{}).Error; err != nil {
			dbTx.Rollback()
			return nil, dbError(err, "Failed to clear package contents")
		}
	}

	pkg.Status = models.PackageStatusCancelled
	pkg.LockReason = nil
	if reason != "" {
		pkg.Notes = reason
	}
	if err := dbTx.Save(pkg).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to cancel package")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// LockPackage places an open package on hold
func (r *Repository) LockPackage(packageID, reason, userID string) (*models.Package, *RepositoryError) {
	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status != models.PackageStatusOpen {
		dbTx.Rollback()
		return nil, transitionError(pkg, models.PackageStatusLocked)
	}

	pkg.Status = models.PackageStatusLocked
	pkg.LockReason = &reason
	if err := dbTx.Save(pkg).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to lock package")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// UnlockPackage releases a locked package back to open
func (r *Repository) UnlockPackage(packageID, userID string) (*models.Package, *RepositoryError) {
	unlock := r.locks.Lock(packageID)
	defer unlock()

	dbTx := r.db.Begin()

	pkg, repoErr := loadPackage(dbTx, packageID)
	if repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}
	if pkg.Status != models.PackageStatusLocked {
		dbTx.Rollback()
		return nil, transitionError(pkg, models.PackageStatusOpen)
	}

	pkg.Status = models.PackageStatusOpen
	pkg.LockReason = nil
	if err := dbTx.Save(pkg).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to unlock package")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}

	return r.GetPackage(packageID)
}

// GetPackage retrieves a package with its current contents
func (r *Repository) GetPackage(packageID string) (*models.Package, *RepositoryError) {
	var pkg models.Package
	err := r.db.Preload("Contents").Where("package_id = ?", packageID).First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Package", packageID)
		}
		return nil, dbError(err, "Failed to load package")
	}
	return &pkg, nil
}

// GetPackageByBarcode retrieves a package by its barcode
func (r *Repository) GetPackageByBarcode(barcode string) (*models.Package, *RepositoryError) {
	var pkg models.Package
	err := r.db.Preload("Contents").Where("barcode = ?", barcode).First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Package", barcode)
		}
		return nil, dbError(err, "Failed to load package")
	}
	return &pkg, nil
}

// GetContents returns the current content rows of a package
func (r *Repository) GetContents(packageID string) ([]models.PackageContent, *RepositoryError) {
	if _, repoErr := r.GetPackage(packageID); repoErr != nil {
		return nil, repoErr
	}
	var contents []models.PackageContent
	if err := r.db.Where("package_id = ?", packageID).Order("item_code").Find(&contents).Error; err != nil {
		return nil, dbError(err, "Failed to load package contents")
	}
	return contents, nil
}

// GetTransactionHistory returns the package's ledger entries in insertion order
func (r *Repository) GetTransactionHistory(packageID string) ([]models.PackageTransaction, *RepositoryError) {
	if _, repoErr := r.GetPackage(packageID); repoErr != nil {
		return nil, repoErr
	}
	var txs []models.PackageTransaction
	if err := r.db.Where("package_id = ?", packageID).Order("transaction_id").Find(&txs).Error; err != nil {
		return nil, dbError(err, "Failed to load transaction history")
	}
	return txs, nil
}

// GetTransactionsBySource returns ledger entries caused by one source operation
func (r *Repository) GetTransactionsBySource(sourceType string, sourceID int) ([]models.PackageTransaction, *RepositoryError) {
	var txs []models.PackageTransaction
	err := r.db.Where("source_operation_type = ? AND source_operation_id = ?", sourceType, sourceID).
		Order("transaction_id").Find(&txs).Error
	if err != nil {
		return nil, dbError(err, "Failed to load transactions by source operation")
	}
	return txs, nil
}

// GetLocationHistory returns the package's movement records in insertion order
func (r *Repository) GetLocationHistory(packageID string) ([]models.PackageLocationHistory, *RepositoryError) {
	if _, repoErr := r.GetPackage(packageID); repoErr != nil {
		return nil, repoErr
	}
	var movements []models.PackageLocationHistory
	if err := r.db.Where("package_id = ?", packageID).Order("movement_id").Find(&movements).Error; err != nil {
		return nil, dbError(err, "Failed to load location history")
	}
	return movements, nil
}

// ContentDifference is one item where ledger replay and stored content disagree
type ContentDifference struct {
	ItemCode        string  `json:"item_code"`
	LedgerQuantity  float64 `json:"ledger_quantity"`
	ContentQuantity float64 `json:"content_quantity"`
}

// ConsistencyCheckResult is the outcome of replaying a package's ledger
// against its stored contents.
type ConsistencyCheckResult struct {
	PackageID   string              `json:"package_id"`
	Consistent  bool                `json:"consistent"`
	Differences []ContentDifference `json:"differences,omitempty"`
}

// ValidatePackageConsistency recomputes the package's contents from the full
// ledger and compares them with the stored rows. Any divergence here is a
// structural fault in the engine, not a business discrepancy, so it is
// reported directly instead of being filed as a PackageInconsistency.
func (r *Repository) ValidatePackageConsistency(packageID string) (*ConsistencyCheckResult, *RepositoryError) {
	if _, repoErr := r.GetPackage(packageID); repoErr != nil {
		return nil, repoErr
	}

	var txs []models.PackageTransaction
	if err := r.db.Where("package_id = ?", packageID).Find(&txs).Error; err != nil {
		return nil, dbError(err, "Failed to load transaction history")
	}

	replayed := make(map[string]float64)
	for _, tx := range txs {
		replayed[tx.ItemCode] += signedQuantity(tx)
	}

	var contents []models.PackageContent
	if err := r.db.Where("package_id = ?", packageID).Find(&contents).Error; err != nil {
		return nil, dbError(err, "Failed to load package contents")
	}
	stored := make(map[string]float64)
	for _, content := range contents {
		stored[content.ItemCode] = content.Quantity
	}

	result := &ConsistencyCheckResult{PackageID: packageID, Consistent: true}
	for item, ledgerQty := range replayed {
		if item == "" {
			continue // close entries carry no item
		}
		if math.Abs(ledgerQty-stored[item]) > quantityEpsilon {
			result.Consistent = false
			result.Differences = append(result.Differences, ContentDifference{
				ItemCode:        item,
				LedgerQuantity:  ledgerQty,
				ContentQuantity: stored[item],
			})
		}
	}
	for item, storedQty := range stored {
		if _, seen := replayed[item]; !seen {
			result.Consistent = false
			result.Differences = append(result.Differences, ContentDifference{
				ItemCode:        item,
				LedgerQuantity:  0,
				ContentQuantity: storedQty,
			})
		}
	}

	return result, nil
}

// signedQuantity maps a ledger entry onto its content delta. Adjust entries
// already store the signed delta.
func signedQuantity(tx models.PackageTransaction) float64 {
	switch tx.Type {
	case models.TransactionTypeAdd:
		return tx.Quantity
	case models.TransactionTypeRemove, models.TransactionTypeCancel:
		return -tx.Quantity
	case models.TransactionTypeAdjust:
		return tx.Quantity
	default:
		return 0
	}
}

func appendTransaction(dbTx *gorm.DB, packageID, txType, itemCode string, quantity float64, uomCode string, source SourceOperation, userID, notes string) *RepositoryError {
	entry := models.PackageTransaction{
		PackageID:           packageID,
		Type:                txType,
		ItemCode:            itemCode,
		Quantity:            quantity,
		UoMCode:             uomCode,
		SourceOperationType: source.Type,
		SourceOperationID:   source.ID,
		SourceLineID:        source.LineID,
		UserID:              userID,
		Notes:               notes,
	}
	if err := dbTx.Create(&entry).Error; err != nil {
		return dbError(err, "Failed to append ledger entry")
	}
	return nil
}

func loadPackage(dbTx *gorm.DB, packageID string) (*models.Package, *RepositoryError) {
	var pkg models.Package
	err := dbTx.Where("package_id = ?", packageID).First(&pkg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Package", packageID)
		}
		return nil, dbError(err, "Failed to load package")
	}
	return &pkg, nil
}

func encodeAttributes(attributes map[string]string) (string, *RepositoryError) {
	if len(attributes) == 0 {
		return "", nil
	}
	if len(attributes) > maxCustomAttributes {
		return "", &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: "Too many custom attributes",
			Detail:  fmt.Sprintf("at most %d attributes are allowed", maxCustomAttributes),
		}
	}
	for key, value := range attributes {
		if len(value) > maxCustomAttributeValue {
			return "", &RepositoryError{
				Code:    ErrCodeInvalidState,
				Message: "Custom attribute value too large",
				Detail:  fmt.Sprintf("attribute %s exceeds %d bytes", key, maxCustomAttributeValue),
			}
		}
	}
	encoded, err := json.Marshal(attributes)
	if err != nil {
		return "", &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: "Failed to encode custom attributes",
			Detail:  err.Error(),
		}
	}
	return string(encoded), nil
}

func invalidQuantity(quantity float64) *RepositoryError {
	return &RepositoryError{
		Code:    ErrCodeInvalidQuantity,
		Message: "Quantity must be positive",
		Detail:  fmt.Sprintf("got %v", quantity),
	}
}

func insufficientQuantity(itemCode string, available, requested float64) *RepositoryError {
	return &RepositoryError{
		Code:    ErrCodeInsufficientQuantity,
		Message: "Not enough quantity in package",
		Detail:  fmt.Sprintf("item %s has %v, requested %v", itemCode, available, requested),
	}
}

func notOpen(pkg *models.Package) *RepositoryError {
	return &RepositoryError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("Package is %s", pkg.Status),
		Detail:  fmt.Sprintf("package %s must be open for content changes, current status is %s", pkg.ID, pkg.Status),
	}
}

func transitionError(pkg *models.Package, target string) *RepositoryError {
	return &RepositoryError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("Package is %s", pkg.Status),
		Detail:  fmt.Sprintf("package %s cannot go from %s to %s", pkg.ID, pkg.Status, target),
	}
}
