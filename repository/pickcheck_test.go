package repository

import (
	"sync"
	"testing"

	"wms-package-engine/repository/models"
)

func TestStartCheckSessionEnforcesSingleActiveSession(t *testing.T) {
	repo := newTestRepository(t)

	session, repoErr := repo.StartCheckSession(100, "checker")
	if repoErr != nil {
		t.Fatalf("StartCheckSession failed: %v", repoErr)
	}
	if session.Status != models.CheckSessionStarted {
		t.Errorf("expected started, got %s", session.Status)
	}

	if _, repoErr := repo.StartCheckSession(100, "other"); repoErr == nil || repoErr.Code != ErrCodeSessionActive {
		t.Errorf("second session: expected SESSION_ACTIVE, got %v", repoErr)
	}

	// A different pick list is unaffected
	if _, repoErr := repo.StartCheckSession(101, "checker"); repoErr != nil {
		t.Errorf("unrelated pick list blocked: %v", repoErr)
	}

	// Once the session finishes, a new one may start
	if _, repoErr := repo.CompleteCheckSession(session.ID, "checker"); repoErr != nil {
		t.Fatalf("CompleteCheckSession failed: %v", repoErr)
	}
	if _, repoErr := repo.StartCheckSession(100, "checker"); repoErr != nil {
		t.Errorf("restart after completion failed: %v", repoErr)
	}
}

func TestStartCheckSessionConcurrentStartsYieldOneSession(t *testing.T) {
	repo := newTestRepository(t)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan *RepositoryError, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, repoErr := repo.StartCheckSession(900, "checker")
			errs <- repoErr
		}()
	}
	wg.Wait()
	close(errs)

	started, rejected := 0, 0
	for repoErr := range errs {
		switch {
		case repoErr == nil:
			started++
		case repoErr.Code == ErrCodeSessionActive:
			rejected++
		default:
			t.Errorf("unexpected error: %v", repoErr)
		}
	}
	if started != 1 || rejected != attempts-1 {
		t.Errorf("expected 1 start and %d rejections, got %d and %d", attempts-1, started, rejected)
	}

	var count int64
	if err := repo.db.Model(&models.PickListCheckSession{}).
		Where("pick_list_id = ? AND status = ?", 900, models.CheckSessionStarted).
		Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one started session for pick list 900, got %d", count)
	}
}

func TestCheckItemKeepsRepeatedScans(t *testing.T) {
	repo := newTestRepository(t)

	session, repoErr := repo.StartCheckSession(100, "checker")
	if repoErr != nil {
		t.Fatalf("StartCheckSession failed: %v", repoErr)
	}

	if _, repoErr := repo.CheckItem(session.ID, "ITEM-A", 3, "EA", "BIN-01", "checker"); repoErr != nil {
		t.Fatalf("CheckItem failed: %v", repoErr)
	}
	if _, repoErr := repo.CheckItem(session.ID, "ITEM-A", 2, "EA", "BIN-02", "checker"); repoErr != nil {
		t.Fatalf("repeated CheckItem failed: %v", repoErr)
	}

	loaded, repoErr := repo.GetCheckSession(session.ID)
	if repoErr != nil {
		t.Fatalf("GetCheckSession failed: %v", repoErr)
	}
	if len(loaded.Items) != 2 {
		t.Errorf("expected 2 item scans, got %d", len(loaded.Items))
	}
}

func TestCheckItemValidation(t *testing.T) {
	repo := newTestRepository(t)

	session, repoErr := repo.StartCheckSession(100, "checker")
	if repoErr != nil {
		t.Fatalf("StartCheckSession failed: %v", repoErr)
	}

	if _, repoErr := repo.CheckItem(session.ID, "ITEM-A", 0, "EA", "", "checker"); repoErr == nil || repoErr.Code != ErrCodeInvalidQuantity {
		t.Errorf("zero quantity: expected INVALID_QUANTITY, got %v", repoErr)
	}
	if _, repoErr := repo.CheckItem("CHK-NOPE", "ITEM-A", 1, "EA", "", "checker"); repoErr == nil || repoErr.Code != ErrCodeNotFound {
		t.Errorf("missing session: expected NOT_FOUND, got %v", repoErr)
	}
}

func TestCheckPackageRejectsDuplicateScan(t *testing.T) {
	repo := newTestRepository(t)
	pkg := mustCreatePackage(t, repo, "WH1")

	session, repoErr := repo.StartCheckSession(100, "checker")
	if repoErr != nil {
		t.Fatalf("StartCheckSession failed: %v", repoErr)
	}

	if _, repoErr := repo.CheckPackage(session.ID, pkg.ID, "checker"); repoErr != nil {
		t.Fatalf("CheckPackage failed: %v", repoErr)
	}
	if _, repoErr := repo.CheckPackage(session.ID, pkg.ID, "checker"); repoErr == nil || repoErr.Code != ErrCodeUniqueViolation {
		t.Errorf("duplicate scan: expected UNIQUE_VIOLATION, got %v", repoErr)
	}
	if _, repoErr := repo.CheckPackage(session.ID, "PKG-NOPE", "checker"); repoErr == nil || repoErr.Code != ErrCodeNotFound {
		t.Errorf("unknown package: expected NOT_FOUND, got %v", repoErr)
	}

	// The same package can be scanned into a different session
	other, repoErr := repo.StartCheckSession(101, "checker")
	if repoErr != nil {
		t.Fatalf("StartCheckSession failed: %v", repoErr)
	}
	if _, repoErr := repo.CheckPackage(other.ID, pkg.ID, "checker"); repoErr != nil {
		t.Errorf("scan into other session failed: %v", repoErr)
	}
}

func TestFinishedSessionRejectsScansAndTransitions(t *testing.T) {
	repo := newTestRepository(t)
	pkg := mustCreatePackage(t, repo, "WH1")

	session, repoErr := repo.StartCheckSession(100, "checker")
	if repoErr != nil {
		t.Fatalf("StartCheckSession failed: %v", repoErr)
	}

	cancelled, repoErr := repo.CancelCheckSession(session.ID, "checker")
	if repoErr != nil {
		t.Fatalf("CancelCheckSession failed: %v", repoErr)
	}
	if cancelled.Status != models.CheckSessionCancelled || cancelled.FinishedAt == nil {
		t.Errorf("cancel state wrong: %+v", cancelled)
	}

	if _, repoErr := repo.CheckItem(session.ID, "ITEM-A", 1, "EA", "", "checker"); repoErr == nil || repoErr.Code != ErrCodeInvalidState {
		t.Errorf("scan into cancelled session: expected INVALID_STATE, got %v", repoErr)
	}
	if _, repoErr := repo.CheckPackage(session.ID, pkg.ID, "checker"); repoErr == nil || repoErr.Code != ErrCodeInvalidState {
		t.Errorf("package scan into cancelled session: expected INVALID_STATE, got %v", repoErr)
	}
	if _, repoErr := repo.CompleteCheckSession(session.ID, "checker"); repoErr == nil || repoErr.Code != ErrCodeInvalidState {
		t.Errorf("complete after cancel: expected INVALID_STATE, got %v", repoErr)
	}
}

func TestAssignPickListPackageConcurrentDuplicates(t *testing.T) {
	repo := newTestRepository(t)
	pkg := mustCreatePackage(t, repo, "WH1")

	line := 1
	const attempts = 6
	var wg sync.WaitGroup
	errs := make(chan *RepositoryError, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, repoErr := repo.AssignPickListPackage(300, &line, pkg.ID, models.PickPackageRoleSource)
			errs <- repoErr
		}()
	}
	wg.Wait()
	close(errs)

	assigned, rejected := 0, 0
	for repoErr := range errs {
		switch {
		case repoErr == nil:
			assigned++
		case repoErr.Code == ErrCodeUniqueViolation:
			rejected++
		default:
			t.Errorf("unexpected error: %v", repoErr)
		}
	}
	if assigned != 1 || rejected != attempts-1 {
		t.Errorf("expected 1 assignment and %d rejections, got %d and %d", attempts-1, assigned, rejected)
	}

	var count int64
	if err := repo.db.Model(&models.PickListPackage{}).
		Where("pick_list_id = ? AND package_id = ? AND role = ?", 300, pkg.ID, models.PickPackageRoleSource).
		Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one assignment row, got %d", count)
	}
}

func TestAssignPickListPackageRoles(t *testing.T) {
	repo := newTestRepository(t)
	pkg := mustCreatePackage(t, repo, "WH1")
	target := mustCreatePackage(t, repo, "WH1")

	line := 1

	// Source assignments need a pick line, targets must not have one
	if _, repoErr := repo.AssignPickListPackage(200, nil, pkg.ID, models.PickPackageRoleSource); repoErr == nil || repoErr.Code != ErrCodeInvalidState {
		t.Errorf("source without line: expected INVALID_STATE, got %v", repoErr)
	}
	if _, repoErr := repo.AssignPickListPackage(200, &line, target.ID, models.PickPackageRoleTarget); repoErr == nil || repoErr.Code != ErrCodeInvalidState {
		t.Errorf("target with line: expected INVALID_STATE, got %v", repoErr)
	}
	if _, repoErr := repo.AssignPickListPackage(200, &line, pkg.ID, "driver"); repoErr == nil || repoErr.Code != ErrCodeInvalidState {
		t.Errorf("unknown role: expected INVALID_STATE, got %v", repoErr)
	}

	assignment, repoErr := repo.AssignPickListPackage(200, &line, pkg.ID, models.PickPackageRoleSource)
	if repoErr != nil {
		t.Fatalf("source assignment failed: %v", repoErr)
	}
	if assignment.Role != models.PickPackageRoleSource || assignment.PickLineID == nil || *assignment.PickLineID != line {
		t.Errorf("assignment fields wrong: %+v", assignment)
	}

	if _, repoErr := repo.AssignPickListPackage(200, &line, pkg.ID, models.PickPackageRoleSource); repoErr == nil || repoErr.Code != ErrCodeUniqueViolation {
		t.Errorf("duplicate source: expected UNIQUE_VIOLATION, got %v", repoErr)
	}

	// The same package may serve another line, and both roles at once
	otherLine := 2
	if _, repoErr := repo.AssignPickListPackage(200, &otherLine, pkg.ID, models.PickPackageRoleSource); repoErr != nil {
		t.Errorf("second line assignment failed: %v", repoErr)
	}
	if _, repoErr := repo.AssignPickListPackage(200, nil, pkg.ID, models.PickPackageRoleTarget); repoErr != nil {
		t.Errorf("target assignment of source package failed: %v", repoErr)
	}

	if _, repoErr := repo.AssignPickListPackage(200, nil, pkg.ID, models.PickPackageRoleTarget); repoErr == nil || repoErr.Code != ErrCodeUniqueViolation {
		t.Errorf("duplicate target: expected UNIQUE_VIOLATION, got %v", repoErr)
	}

	if _, repoErr := repo.AssignPickListPackage(200, nil, "PKG-NOPE", models.PickPackageRoleTarget); repoErr == nil || repoErr.Code != ErrCodeNotFound {
		t.Errorf("unknown package: expected NOT_FOUND, got %v", repoErr)
	}
}
