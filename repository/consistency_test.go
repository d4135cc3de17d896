package repository

import (
	"errors"
	"sync"
	"testing"

	"wms-package-engine/repository/models"
)

// fakeAdapter is an in-memory InventoryAdapter for detection tests
type fakeAdapter struct {
	available bool
	records   []OnHandQuantity
	err       error
}

func (a *fakeAdapter) IsAvailable() bool { return a.available }

func (a *fakeAdapter) GetOnHandQuantities(scope *DetectionScope) ([]OnHandQuantity, error) {
	if a.err != nil {
		return nil, a.err
	}
	var out []OnHandQuantity
	for _, record := range a.records {
		if scope != nil {
			if scope.WhsCode != "" && record.WhsCode != scope.WhsCode {
				continue
			}
			if scope.ItemCode != "" && record.ItemCode != scope.ItemCode {
				continue
			}
		}
		out = append(out, record)
	}
	return out, nil
}

func TestRunDetectionAbortsWhenAdapterUnavailable(t *testing.T) {
	repo := newTestRepository(t)

	_, repoErr := repo.RunDetection(&fakeAdapter{available: false}, nil)
	if repoErr == nil || repoErr.Code != ErrCodeAdapterUnavailable {
		t.Fatalf("expected ADAPTER_UNAVAILABLE, got %v", repoErr)
	}

	_, repoErr = repo.RunDetection(nil, nil)
	if repoErr == nil || repoErr.Code != ErrCodeAdapterUnavailable {
		t.Fatalf("nil adapter: expected ADAPTER_UNAVAILABLE, got %v", repoErr)
	}

	findings, listErr := repo.ListUnresolvedInconsistencies(nil)
	if listErr != nil {
		t.Fatalf("ListUnresolvedInconsistencies failed: %v", listErr)
	}
	if len(findings) != 0 {
		t.Errorf("aborted run must not emit findings, got %d", len(findings))
	}
}

func TestRunDetectionAbortsOnAdapterError(t *testing.T) {
	repo := newTestRepository(t)

	adapter := &fakeAdapter{available: true, err: errors.New("connection refused")}
	_, repoErr := repo.RunDetection(adapter, nil)
	if repoErr == nil || repoErr.Code != ErrCodeAdapterUnavailable {
		t.Fatalf("expected ADAPTER_UNAVAILABLE, got %v", repoErr)
	}
}

func TestRunDetectionClassifiesShortageOverageOrphan(t *testing.T) {
	repo := newTestRepository(t)

	shortagePkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(shortagePkg.ID, "ITEM-SHORT", 4, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}
	overagePkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(overagePkg.ID, "ITEM-OVER", 30, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}
	orphanPkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(orphanPkg.ID, "ITEM-ORPHAN", 2, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}

	adapter := &fakeAdapter{
		available: true,
		records: []OnHandQuantity{
			{ItemCode: "ITEM-SHORT", WhsCode: "WH1", Quantity: 10}, // erp 10, wms 4
			{ItemCode: "ITEM-OVER", WhsCode: "WH1", Quantity: 5},   // erp 5, wms 30
			{ItemCode: "ITEM-OK", WhsCode: "WH1", Quantity: 0},     // no delta
			// ITEM-ORPHAN has no erp record at all
		},
	}

	findings, repoErr := repo.RunDetection(adapter, nil)
	if repoErr != nil {
		t.Fatalf("RunDetection failed: %v", repoErr)
	}
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}

	byItem := make(map[string]models.PackageInconsistency)
	for _, finding := range findings {
		byItem[finding.ItemCode] = finding
	}

	short := byItem["ITEM-SHORT"]
	if short.Type != models.InconsistencyTypeShortage {
		t.Errorf("ITEM-SHORT: expected shortage, got %s", short.Type)
	}
	if short.Severity != models.SeverityMedium {
		t.Errorf("ITEM-SHORT: delta 6 should be medium, got %s", short.Severity)
	}
	if short.ErpQuantity != 10 || short.WmsQuantity != 4 {
		t.Errorf("ITEM-SHORT: wrong quantities: %+v", short)
	}
	if short.PackageID == nil || *short.PackageID != shortagePkg.ID {
		t.Errorf("ITEM-SHORT: expected contributing package %s, got %+v", shortagePkg.ID, short.PackageID)
	}

	over := byItem["ITEM-OVER"]
	if over.Type != models.InconsistencyTypeOverage {
		t.Errorf("ITEM-OVER: expected overage, got %s", over.Type)
	}
	if over.Severity != models.SeverityHigh {
		t.Errorf("ITEM-OVER: delta 25 should be high, got %s", over.Severity)
	}

	orphan := byItem["ITEM-ORPHAN"]
	if orphan.Type != models.InconsistencyTypeOrphan {
		t.Errorf("ITEM-ORPHAN: expected orphan_package, got %s", orphan.Type)
	}
	if orphan.Severity != models.SeverityLow {
		t.Errorf("ITEM-ORPHAN: delta 2 should be low, got %s", orphan.Severity)
	}
}

func TestRunDetectionIgnoresClosedAndCancelledPackages(t *testing.T) {
	repo := newTestRepository(t)

	closedPkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(closedPkg.ID, "ITEM-A", 5, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}
	if _, repoErr := repo.ClosePackage(closedPkg.ID, "alice"); repoErr != nil {
		t.Fatalf("ClosePackage failed: %v", repoErr)
	}

	lockedPkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(lockedPkg.ID, "ITEM-A", 3, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}
	if _, repoErr := repo.LockPackage(lockedPkg.ID, "hold", "alice"); repoErr != nil {
		t.Fatalf("LockPackage failed: %v", repoErr)
	}

	// Closed content does not count toward the live aggregate; locked does
	adapter := &fakeAdapter{
		available: true,
		records:   []OnHandQuantity{{ItemCode: "ITEM-A", WhsCode: "WH1", Quantity: 3}},
	}

	findings, repoErr := repo.RunDetection(adapter, nil)
	if repoErr != nil {
		t.Fatalf("RunDetection failed: %v", repoErr)
	}
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}

func TestRunDetectionDeduplicatesUnresolvedFindings(t *testing.T) {
	repo := newTestRepository(t)

	pkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(pkg.ID, "ITEM-A", 4, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}

	adapter := &fakeAdapter{
		available: true,
		records:   []OnHandQuantity{{ItemCode: "ITEM-A", WhsCode: "WH1", Quantity: 10}},
	}

	first, repoErr := repo.RunDetection(adapter, nil)
	if repoErr != nil {
		t.Fatalf("first RunDetection failed: %v", repoErr)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(first))
	}

	// The discrepancy grows before the next run
	adapter.records[0].Quantity = 30

	second, repoErr := repo.RunDetection(adapter, nil)
	if repoErr != nil {
		t.Fatalf("second RunDetection failed: %v", repoErr)
	}
	if len(second) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(second))
	}
	if second[0].ID != first[0].ID {
		t.Errorf("re-detection must update the unresolved row in place, got new row %d", second[0].ID)
	}
	if second[0].ErpQuantity != 30 || second[0].Severity != models.SeverityHigh {
		t.Errorf("re-detection must refresh quantities and severity: %+v", second[0])
	}

	unresolved, _ := repo.ListUnresolvedInconsistencies(nil)
	if len(unresolved) != 1 {
		t.Errorf("expected 1 unresolved finding, got %d", len(unresolved))
	}
}

func TestConcurrentDetectionRunsFileOneFinding(t *testing.T) {
	repo := newTestRepository(t)

	pkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(pkg.ID, "ITEM-A", 4, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}

	adapter := &fakeAdapter{
		available: true,
		records:   []OnHandQuantity{{ItemCode: "ITEM-A", WhsCode: "WH1", Quantity: 10}},
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, repoErr := repo.RunDetection(adapter, nil); repoErr != nil {
				t.Errorf("RunDetection failed: %v", repoErr)
			}
		}()
	}
	wg.Wait()

	unresolved, repoErr := repo.ListUnresolvedInconsistencies(nil)
	if repoErr != nil {
		t.Fatalf("ListUnresolvedInconsistencies failed: %v", repoErr)
	}
	if len(unresolved) != 1 {
		t.Errorf("racing runs must dedupe into one finding, got %d", len(unresolved))
	}
}

func TestResolveInconsistency(t *testing.T) {
	repo := newTestRepository(t)

	pkg := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(pkg.ID, "ITEM-A", 4, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}

	adapter := &fakeAdapter{
		available: true,
		records:   []OnHandQuantity{{ItemCode: "ITEM-A", WhsCode: "WH1", Quantity: 10}},
	}
	findings, repoErr := repo.RunDetection(adapter, nil)
	if repoErr != nil || len(findings) != 1 {
		t.Fatalf("RunDetection failed: %v (%d findings)", repoErr, len(findings))
	}

	resolved, repoErr := repo.ResolveInconsistency(findings[0].ID, "stock corrected in ERP", "supervisor")
	if repoErr != nil {
		t.Fatalf("ResolveInconsistency failed: %v", repoErr)
	}
	if !resolved.IsResolved || resolved.ResolvedBy == nil || *resolved.ResolvedBy != "supervisor" {
		t.Errorf("resolution fields missing: %+v", resolved)
	}

	if _, repoErr := repo.ResolveInconsistency(findings[0].ID, "again", "supervisor"); repoErr == nil || repoErr.Code != ErrCodeInvalidState {
		t.Errorf("double resolve: expected INVALID_STATE, got %v", repoErr)
	}
	if _, repoErr := repo.ResolveInconsistency(99999, "missing", "supervisor"); repoErr == nil || repoErr.Code != ErrCodeNotFound {
		t.Errorf("missing id: expected NOT_FOUND, got %v", repoErr)
	}

	unresolved, _ := repo.ListUnresolvedInconsistencies(nil)
	if len(unresolved) != 0 {
		t.Errorf("resolved finding must leave the unresolved list, got %d", len(unresolved))
	}

	// A still-present discrepancy files a fresh finding on the next run
	again, repoErr := repo.RunDetection(adapter, nil)
	if repoErr != nil || len(again) != 1 {
		t.Fatalf("RunDetection after resolve failed: %v (%d findings)", repoErr, len(again))
	}
	if again[0].ID == findings[0].ID {
		t.Error("resolved rows must not be reopened")
	}
}

func TestListUnresolvedInconsistenciesFilter(t *testing.T) {
	repo := newTestRepository(t)

	wh1 := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(wh1.ID, "ITEM-A", 1, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}
	wh2 := mustCreatePackage(t, repo, "WH2")
	if _, repoErr := repo.AddItem(wh2.ID, "ITEM-B", 1, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}

	adapter := &fakeAdapter{
		available: true,
		records: []OnHandQuantity{
			{ItemCode: "ITEM-A", WhsCode: "WH1", Quantity: 10},
			{ItemCode: "ITEM-B", WhsCode: "WH2", Quantity: 10},
		},
	}
	if _, repoErr := repo.RunDetection(adapter, nil); repoErr != nil {
		t.Fatalf("RunDetection failed: %v", repoErr)
	}

	all, _ := repo.ListUnresolvedInconsistencies(nil)
	if len(all) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(all))
	}

	wh1Only, _ := repo.ListUnresolvedInconsistencies(&InconsistencyFilter{WhsCode: "WH1"})
	if len(wh1Only) != 1 || wh1Only[0].ItemCode != "ITEM-A" {
		t.Errorf("warehouse filter failed: %+v", wh1Only)
	}

	shortages, _ := repo.ListUnresolvedInconsistencies(&InconsistencyFilter{Type: models.InconsistencyTypeShortage})
	if len(shortages) != 2 {
		t.Errorf("type filter failed: %+v", shortages)
	}
}

func TestRunDetectionScope(t *testing.T) {
	repo := newTestRepository(t)

	wh1 := mustCreatePackage(t, repo, "WH1")
	if _, repoErr := repo.AddItem(wh1.ID, "ITEM-A", 1, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}
	wh2 := mustCreatePackage(t, repo, "WH2")
	if _, repoErr := repo.AddItem(wh2.ID, "ITEM-B", 1, "EA", PackageDirect(), "alice"); repoErr != nil {
		t.Fatalf("AddItem failed: %v", repoErr)
	}

	adapter := &fakeAdapter{
		available: true,
		records: []OnHandQuantity{
			{ItemCode: "ITEM-A", WhsCode: "WH1", Quantity: 10},
			{ItemCode: "ITEM-B", WhsCode: "WH2", Quantity: 10},
		},
	}

	findings, repoErr := repo.RunDetection(adapter, &DetectionScope{WhsCode: "WH2"})
	if repoErr != nil {
		t.Fatalf("RunDetection failed: %v", repoErr)
	}
	if len(findings) != 1 || findings[0].WhsCode != "WH2" {
		t.Errorf("scoped run must only cover WH2: %+v", findings)
	}
}

func TestClassifySeverityThresholds(t *testing.T) {
	repo := newTestRepository(t)
	repo.SetDetectorConfig(DetectorConfig{Epsilon: 0.01, MediumThreshold: 5, HighThreshold: 20})

	cases := []struct {
		delta float64
		want  string
	}{
		{0.5, models.SeverityLow},
		{-4.99, models.SeverityLow},
		{5, models.SeverityMedium},
		{-19.5, models.SeverityMedium},
		{20, models.SeverityHigh},
		{-300, models.SeverityHigh},
	}
	for _, tc := range cases {
		if got := repo.classifySeverity(tc.delta); got != tc.want {
			t.Errorf("classifySeverity(%v) = %s, want %s", tc.delta, got, tc.want)
		}
	}
}
