package models

import "time"

// Package statuses
const (
	PackageStatusOpen      = "open"
	PackageStatusClosed    = "closed"
	PackageStatusLocked    = "locked"
	PackageStatusCancelled = "cancelled"
)

// Ledger transaction types
const (
	TransactionTypeAdd    = "add"
	TransactionTypeRemove = "remove"
	TransactionTypeAdjust = "adjust"
	TransactionTypeClose  = "close"
	TransactionTypeCancel = "cancel"
)

// Source operation types, correlating ledger entries to the warehouse
// workflow that caused them
const (
	SourceOperationGoodsReceipt = "goods_receipt"
	SourceOperationTransfer     = "transfer"
	SourceOperationPicking      = "picking"
	SourceOperationCounting     = "inventory_counting"
	SourceOperationPackage      = "package"
)

// Inconsistency types and severities
const (
	InconsistencyTypeShortage = "shortage"
	InconsistencyTypeOverage  = "overage"
	InconsistencyTypeOrphan   = "orphan_package"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Pick-list check session statuses
const (
	CheckSessionStarted   = "started"
	CheckSessionCompleted = "completed"
	CheckSessionCancelled = "cancelled"
)

// Pick-list package roles
const (
	PickPackageRoleSource = "source"
	PickPackageRoleTarget = "target"
)

// Package represents a physical barcoded container tracked through the warehouse
type Package struct {
	ID               string     `gorm:"column:package_id;primaryKey;type:varchar(50)" json:"package_id"`
	Barcode          string     `gorm:"column:barcode;type:varchar(100);uniqueIndex;not null" json:"barcode"`
	Status           string     `gorm:"column:status;type:varchar(20);not null;default:'open'" json:"status"` // open, closed, locked, cancelled
	WhsCode          string     `gorm:"column:whs_code;type:varchar(20);index;not null" json:"whs_code"`
	BinEntry         *int       `gorm:"column:bin_entry;index" json:"bin_entry"`
	CreatedBy        string     `gorm:"column:created_by;type:varchar(50);not null" json:"created_by"`
	ClosedAt         *time.Time `gorm:"column:closed_at" json:"closed_at"`
	ClosedBy         *string    `gorm:"column:closed_by;type:varchar(50)" json:"closed_by"`
	LockReason       *string    `gorm:"column:lock_reason;type:varchar(255)" json:"lock_reason"`
	Notes            string     `gorm:"column:notes;type:text" json:"notes"`
	CustomAttributes string     `gorm:"column:custom_attributes;type:text" json:"custom_attributes"` // opaque JSON blob, not interpreted
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Contents     []PackageContent         `gorm:"foreignKey:PackageID" json:"contents,omitempty"`
	Transactions []PackageTransaction     `gorm:"foreignKey:PackageID" json:"-"`
	Movements    []PackageLocationHistory `gorm:"foreignKey:PackageID" json:"-"`
}

// PackageContent is the current composition of a package, one row per item.
// It is a materialized view over the package's ledger: the quantity must
// always equal the signed sum of the package+item transactions, and a row
// reduced to zero is deleted rather than kept at zero.
type PackageContent struct {
	ID        uint      `gorm:"column:content_id;primaryKey;autoIncrement" json:"content_id"`
	PackageID string    `gorm:"column:package_id;type:varchar(50);not null;uniqueIndex:idx_content_pkg_item" json:"package_id"`
	ItemCode  string    `gorm:"column:item_code;type:varchar(50);not null;uniqueIndex:idx_content_pkg_item" json:"item_code"`
	Quantity  float64   `gorm:"column:quantity;not null" json:"quantity"`
	UoMCode   string    `gorm:"column:uom_code;type:varchar(20)" json:"uom_code"`
	WhsCode   string    `gorm:"column:whs_code;type:varchar(20);index;not null" json:"whs_code"` // mirror of the package location
	BinEntry  *int      `gorm:"column:bin_entry;index" json:"bin_entry"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// PackageTransaction is an immutable ledger entry. Rows are only ever
// inserted; no update or delete path exists in the repository.
type PackageTransaction struct {
	ID                  uint      `gorm:"column:transaction_id;primaryKey;autoIncrement" json:"transaction_id"`
	PackageID           string    `gorm:"column:package_id;type:varchar(50);index;not null" json:"package_id"`
	Type                string    `gorm:"column:type;type:varchar(20);not null" json:"type"` // add, remove, adjust, close, cancel
	ItemCode            string    `gorm:"column:item_code;type:varchar(50);index" json:"item_code"`
	Quantity            float64   `gorm:"column:quantity;not null" json:"quantity"` // signed for adjust, positive otherwise
	UoMCode             string    `gorm:"column:uom_code;type:varchar(20)" json:"uom_code"`
	SourceOperationType string    `gorm:"column:source_operation_type;type:varchar(30);index:idx_tx_source;not null" json:"source_operation_type"`
	SourceOperationID   *int      `gorm:"column:source_operation_id;index:idx_tx_source" json:"source_operation_id"`
	SourceLineID        *int      `gorm:"column:source_line_id" json:"source_line_id"`
	UserID              string    `gorm:"column:user_id;type:varchar(50);not null" json:"user_id"`
	Notes               string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// PackageLocationHistory is an immutable movement record. The latest row's
// "to" location always equals the package's current location.
type PackageLocationHistory struct {
	ID                  uint      `gorm:"column:movement_id;primaryKey;autoIncrement" json:"movement_id"`
	PackageID           string    `gorm:"column:package_id;type:varchar(50);index;not null" json:"package_id"`
	MovementType        string    `gorm:"column:movement_type;type:varchar(30);not null" json:"movement_type"`
	FromWhsCode         *string   `gorm:"column:from_whs_code;type:varchar(20)" json:"from_whs_code"` // nil on the creation entry
	FromBinEntry        *int      `gorm:"column:from_bin_entry" json:"from_bin_entry"`
	ToWhsCode           string    `gorm:"column:to_whs_code;type:varchar(20);not null" json:"to_whs_code"`
	ToBinEntry          *int      `gorm:"column:to_bin_entry" json:"to_bin_entry"`
	SourceOperationType string    `gorm:"column:source_operation_type;type:varchar(30)" json:"source_operation_type"`
	SourceOperationID   *int      `gorm:"column:source_operation_id" json:"source_operation_id"`
	UserID              string    `gorm:"column:user_id;type:varchar(50);not null" json:"user_id"`
	Notes               string    `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// PackageInconsistency is a discrepancy detected between ERP and WMS
// quantities. Rows are created by detection runs and only ever mutated to
// attach a resolution.
type PackageInconsistency struct {
	ID               uint       `gorm:"column:inconsistency_id;primaryKey;autoIncrement" json:"inconsistency_id"`
	PackageID        *string    `gorm:"column:package_id;type:varchar(50);index" json:"package_id"` // nil for bin/item-level findings
	Barcode          string     `gorm:"column:barcode;type:varchar(100)" json:"barcode"`
	ItemCode         string     `gorm:"column:item_code;type:varchar(50);index;not null" json:"item_code"`
	BatchNo          *string    `gorm:"column:batch_no;type:varchar(50)" json:"batch_no"`
	SerialNo         *string    `gorm:"column:serial_no;type:varchar(50)" json:"serial_no"`
	WhsCode          string     `gorm:"column:whs_code;type:varchar(20);index;not null" json:"whs_code"`
	BinEntry         *int       `gorm:"column:bin_entry" json:"bin_entry"`
	ErpQuantity      float64    `gorm:"column:erp_quantity;not null" json:"erp_quantity"`
	WmsQuantity      float64    `gorm:"column:wms_quantity;not null" json:"wms_quantity"`
	PackageQuantity  float64    `gorm:"column:package_quantity;not null" json:"package_quantity"`
	Type             string     `gorm:"column:type;type:varchar(30);index;not null" json:"type"` // shortage, overage, orphan_package
	Severity         string     `gorm:"column:severity;type:varchar(10);not null" json:"severity"`
	DetectedAt       time.Time  `gorm:"column:detected_at;not null" json:"detected_at"`
	IsResolved       bool       `gorm:"column:is_resolved;default:false;index" json:"is_resolved"`
	ResolvedAt       *time.Time `gorm:"column:resolved_at" json:"resolved_at"`
	ResolvedBy       *string    `gorm:"column:resolved_by;type:varchar(50)" json:"resolved_by"`
	ResolutionAction *string    `gorm:"column:resolution_action;type:varchar(255)" json:"resolution_action"`
	ErrorDetails     string     `gorm:"column:error_details;type:text" json:"error_details"`
}

// PickListCheckSession groups the item and package scans of one verification
// pass over a pick list. At most one non-terminal session per pick list.
type PickListCheckSession struct {
	ID         string     `gorm:"column:session_id;primaryKey;type:varchar(50)" json:"session_id"`
	PickListID int        `gorm:"column:pick_list_id;index;not null" json:"pick_list_id"`
	Status     string     `gorm:"column:status;type:varchar(20);not null" json:"status"` // started, completed, cancelled
	StartedBy  string     `gorm:"column:started_by;type:varchar(50);not null" json:"started_by"`
	StartedAt  time.Time  `gorm:"column:started_at;autoCreateTime" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at"`

	// Relationships
	Items    []PickListCheckItem    `gorm:"foreignKey:SessionID" json:"items,omitempty"`
	Packages []PickListCheckPackage `gorm:"foreignKey:SessionID" json:"packages,omitempty"`
}

// PickListCheckItem is one item scan within a check session. Duplicate scans
// of the same item are allowed and kept as separate rows.
type PickListCheckItem struct {
	ID        uint      `gorm:"column:check_item_id;primaryKey;autoIncrement" json:"check_item_id"`
	SessionID string    `gorm:"column:session_id;type:varchar(50);index;not null" json:"session_id"`
	ItemCode  string    `gorm:"column:item_code;type:varchar(50);not null" json:"item_code"`
	Quantity  float64   `gorm:"column:quantity;not null" json:"quantity"`
	UoMCode   string    `gorm:"column:uom_code;type:varchar(20)" json:"uom_code"`
	BinCode   string    `gorm:"column:bin_code;type:varchar(50)" json:"bin_code"`
	CheckedBy string    `gorm:"column:checked_by;type:varchar(50);not null" json:"checked_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// PickListCheckPackage is one package scan within a check session, unique
// per (session, package).
type PickListCheckPackage struct {
	ID        uint      `gorm:"column:check_package_id;primaryKey;autoIncrement" json:"check_package_id"`
	SessionID string    `gorm:"column:session_id;type:varchar(50);not null;uniqueIndex:idx_check_session_pkg" json:"session_id"`
	PackageID string    `gorm:"column:package_id;type:varchar(50);not null;uniqueIndex:idx_check_session_pkg" json:"package_id"`
	CheckedBy string    `gorm:"column:checked_by;type:varchar(50);not null" json:"checked_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// PickListPackage associates a package with a pick-list operation, either as
// the source of one specific pick line or as the target container for the
// whole operation. Uniqueness differs by role and is enforced in the
// repository: source rows are unique per (pick list, line, package), target
// rows per (pick list, package).
type PickListPackage struct {
	ID         uint      `gorm:"column:pick_package_id;primaryKey;autoIncrement" json:"pick_package_id"`
	PickListID int       `gorm:"column:pick_list_id;index:idx_pick_pkg;not null" json:"pick_list_id"`
	PickLineID *int      `gorm:"column:pick_line_id" json:"pick_line_id"` // required for source, absent for target
	PackageID  string    `gorm:"column:package_id;index:idx_pick_pkg;not null" json:"package_id"`
	Role       string    `gorm:"column:role;type:varchar(10);not null" json:"role"` // source, target
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
