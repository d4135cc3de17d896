package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wms-package-engine/repository/models"
)

// pickListLockKey serializes pick-list level mutations on the keyed mutex,
// in the same way package ids serialize package mutations.
func pickListLockKey(pickListID int) string {
	return fmt.Sprintf("picklist:%d", pickListID)
}

// StartCheckSession opens a verification session for a pick list. Only one
// non-terminal session per pick list may exist at a time; the check and the
// insert run under the pick list's mutex so concurrent starts cannot both
// pass the count.
func (r *Repository) StartCheckSession(pickListID int, userID string) (*models.PickListCheckSession, *RepositoryError) {
	unlock := r.locks.Lock(pickListLockKey(pickListID))
	defer unlock()

	dbTx := r.db.Begin()

	var active int64
	err := dbTx.Model(&models.PickListCheckSession{}).
		Where("pick_list_id = ? AND status = ?", pickListID, models.CheckSessionStarted).
		Count(&active).Error
	if err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to check for active sessions")
	}
	if active > 0 {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    ErrCodeSessionActive,
			Message: "Pick list already has an active check session",
			Detail:  fmt.Sprintf("pick list %d has a session in progress; complete or cancel it first", pickListID),
		}
	}

	session := models.PickListCheckSession{
		ID:         fmt.Sprintf("CHK-%s", uuid.New().String()[:8]),
		PickListID: pickListID,
		Status:     models.CheckSessionStarted,
		StartedBy:  userID,
	}
	if err := dbTx.Create(&session).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to create check session")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}
	return &session, nil
}

// CheckItem records one item scan in a started session. Successive scans of
// the same item are all kept as separate rows.
func (r *Repository) CheckItem(sessionID, itemCode string, quantity float64, uomCode, binCode, userID string) (*models.PickListCheckItem, *RepositoryError) {
	if quantity <= 0 {
		return nil, invalidQuantity(quantity)
	}

	dbTx := r.db.Begin()

	if repoErr := requireStartedSession(dbTx, sessionID); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	checkItem := models.PickListCheckItem{
		SessionID: sessionID,
		ItemCode:  itemCode,
		Quantity:  quantity,
		UoMCode:   uomCode,
		BinCode:   binCode,
		CheckedBy: userID,
	}
	if err := dbTx.Create(&checkItem).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to record item check")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}
	return &checkItem, nil
}

// CheckPackage records a package scan in a started session. A package can be
// checked into a session only once.
func (r *Repository) CheckPackage(sessionID, packageID, userID string) (*models.PickListCheckPackage, *RepositoryError) {
	dbTx := r.db.Begin()

	if repoErr := requireStartedSession(dbTx, sessionID); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	if _, repoErr := loadPackage(dbTx, packageID); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	var duplicate int64
	err := dbTx.Model(&models.PickListCheckPackage{}).
		Where("session_id = ? AND package_id = ?", sessionID, packageID).
		Count(&duplicate).Error
	if err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to check for duplicate package scan")
	}
	if duplicate > 0 {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    ErrCodeUniqueViolation,
			Message: "Package already checked in this session",
			Detail:  fmt.Sprintf("package %s was already scanned into session %s", packageID, sessionID),
		}
	}

	checkPackage := models.PickListCheckPackage{
		SessionID: sessionID,
		PackageID: packageID,
		CheckedBy: userID,
	}
	if err := dbTx.Create(&checkPackage).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to record package check")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}
	return &checkPackage, nil
}

// CompleteCheckSession transitions a started session to completed
func (r *Repository) CompleteCheckSession(sessionID, userID string) (*models.PickListCheckSession, *RepositoryError) {
	return r.finishCheckSession(sessionID, models.CheckSessionCompleted)
}

// CancelCheckSession transitions a started session to cancelled
func (r *Repository) CancelCheckSession(sessionID, userID string) (*models.PickListCheckSession, *RepositoryError) {
	return r.finishCheckSession(sessionID, models.CheckSessionCancelled)
}

func (r *Repository) finishCheckSession(sessionID, target string) (*models.PickListCheckSession, *RepositoryError) {
	dbTx := r.db.Begin()

	var session models.PickListCheckSession
	err := dbTx.Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		dbTx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Check session", sessionID)
		}
		return nil, dbError(err, "Failed to load check session")
	}

	if session.Status != models.CheckSessionStarted {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: fmt.Sprintf("Check session is %s", session.Status),
			Detail:  fmt.Sprintf("session %s cannot go from %s to %s", sessionID, session.Status, target),
		}
	}

	now := time.Now()
	session.Status = target
	session.FinishedAt = &now
	if err := dbTx.Save(&session).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to finish check session")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}
	return &session, nil
}

// GetCheckSession retrieves a session with its item and package scans
func (r *Repository) GetCheckSession(sessionID string) (*models.PickListCheckSession, *RepositoryError) {
	var session models.PickListCheckSession
	err := r.db.Preload("Items").Preload("Packages").Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("Check session", sessionID)
		}
		return nil, dbError(err, "Failed to load check session")
	}
	return &session, nil
}

// AssignPickListPackage links a package to a pick-list operation. A source
// package belongs to one specific pick line (line id required, unique per
// line and package); a target package is the container for the whole
// operation (line id absent, unique per pick list and package). Uniqueness is
// a check-then-insert under the pick list's mutex; the role decides which
// columns make up the key, which a single schema index cannot express.
func (r *Repository) AssignPickListPackage(pickListID int, pickLineID *int, packageID, role string) (*models.PickListPackage, *RepositoryError) {
	switch role {
	case models.PickPackageRoleSource:
		if pickLineID == nil {
			return nil, &RepositoryError{
				Code:    ErrCodeInvalidState,
				Message: "Source assignments require a pick line",
				Detail:  fmt.Sprintf("package %s cannot be a source for pick list %d without a line id", packageID, pickListID),
			}
		}
	case models.PickPackageRoleTarget:
		if pickLineID != nil {
			return nil, &RepositoryError{
				Code:    ErrCodeInvalidState,
				Message: "Target assignments are per pick list, not per line",
				Detail:  fmt.Sprintf("package %s cannot be a target for a single line of pick list %d", packageID, pickListID),
			}
		}
	default:
		return nil, &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: "Unknown pick package role",
			Detail:  fmt.Sprintf("role must be %q or %q, got %q", models.PickPackageRoleSource, models.PickPackageRoleTarget, role),
		}
	}

	unlock := r.locks.Lock(pickListLockKey(pickListID))
	defer unlock()

	dbTx := r.db.Begin()

	if _, repoErr := loadPackage(dbTx, packageID); repoErr != nil {
		dbTx.Rollback()
		return nil, repoErr
	}

	query := dbTx.Model(&models.PickListPackage{}).
		Where("pick_list_id = ? AND package_id = ? AND role = ?", pickListID, packageID, role)
	if role == models.PickPackageRoleSource {
		query = query.Where("pick_line_id = ?", *pickLineID)
	}
	var duplicate int64
	if err := query.Count(&duplicate).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to check pick package uniqueness")
	}
	if duplicate > 0 {
		dbTx.Rollback()
		return nil, &RepositoryError{
			Code:    ErrCodeUniqueViolation,
			Message: "Package already assigned in this role",
			Detail:  fmt.Sprintf("package %s is already a %s for pick list %d", packageID, role, pickListID),
		}
	}

	assignment := models.PickListPackage{
		PickListID: pickListID,
		PickLineID: pickLineID,
		PackageID:  packageID,
		Role:       role,
	}
	if err := dbTx.Create(&assignment).Error; err != nil {
		dbTx.Rollback()
		return nil, dbError(err, "Failed to assign pick package")
	}

	if err := dbTx.Commit().Error; err != nil {
		return nil, commitError(err)
	}
	return &assignment, nil
}

func requireStartedSession(dbTx *gorm.DB, sessionID string) *RepositoryError {
	var session models.PickListCheckSession
	err := dbTx.Where("session_id = ?", sessionID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("Check session", sessionID)
		}
		return dbError(err, "Failed to load check session")
	}
	if session.Status != models.CheckSessionStarted {
		return &RepositoryError{
			Code:    ErrCodeInvalidState,
			Message: fmt.Sprintf("Check session is %s", session.Status),
			Detail:  fmt.Sprintf("session %s no longer accepts scans", sessionID),
		}
	}
	return nil
}
