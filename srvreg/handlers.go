package srvreg

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"wms-package-engine/repository"
	"wms-package-engine/repository/models"
)

// statusForError maps repository error codes onto HTTP status codes.
// Business-rule outcomes become 4xx, infrastructure failures 5xx.
func statusForError(dbErr *repository.RepositoryError) int {
	switch dbErr.Code {
	case repository.ErrCodeNotFound:
		return http.StatusNotFound
	case repository.ErrCodeInvalidQuantity, repository.ErrCodeInsufficientQuantity:
		return http.StatusBadRequest
	case repository.ErrCodeInvalidState, repository.ErrCodeUniqueViolation, repository.ErrCodeSessionActive:
		return http.StatusConflict
	case repository.ErrCodeAdapterUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(dbErr *repository.RepositoryError) *Response {
	payload := map[string]string{
		"error": dbErr.Message,
		"code":  dbErr.Code,
	}
	if dbErr.Detail != "" {
		payload["detail"] = dbErr.Detail
	}
	body, _ := json.Marshal(payload)
	return &Response{
		StatusCode: statusForError(dbErr),
		Headers:    defaultHeaders,
		Body:       string(body),
	}
}

func jsonResponse(statusCode int, payload interface{}) *Response {
	body, _ := json.Marshal(payload)
	return &Response{
		StatusCode: statusCode,
		Headers:    defaultHeaders,
		Body:       string(body),
	}
}

func badRequest(message string) *Response {
	return jsonResponse(http.StatusBadRequest, map[string]string{"error": message})
}

// pathSegment returns the idx-th segment of the path, or "" when absent
func pathSegment(path string, idx int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if idx >= len(parts) {
		return ""
	}
	return parts[idx]
}

// sourceOperation builds a repository.SourceOperation from request fields,
// defaulting to direct package management.
func sourceOperation(sourceType string, sourceID, sourceLineID *int) repository.SourceOperation {
	if sourceType == "" {
		sourceType = models.SourceOperationPackage
	}
	return repository.SourceOperation{
		Type:   sourceType,
		ID:     sourceID,
		LineID: sourceLineID,
	}
}

// InfoHandler returns engine information
func (sr *ServiceRegistry) InfoHandler(req *Request) (*Response, error) {
	unresolved, dbErr := sr.repository.ListUnresolvedInconsistencies(nil)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"service":                   "wms-package-engine",
		"status":                    "active",
		"unresolved_inconsistencies": len(unresolved),
	}), nil
}

// CreatePackageHandler creates a new open package
func (sr *ServiceRegistry) CreatePackageHandler(req *Request) (*Response, error) {
	var body struct {
		WhsCode    string            `json:"whs_code"`
		BinEntry   *int              `json:"bin_entry"`
		UserID     string            `json:"user_id"`
		Notes      string            `json:"notes"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.WhsCode == "" || body.UserID == "" {
		return badRequest("whs_code and user_id are required"), nil
	}

	pkg, dbErr := sr.repository.CreatePackage(body.WhsCode, body.BinEntry, body.UserID, body.Notes, body.Attributes)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message": "Package created",
		"package": pkg,
	}), nil
}

// GetPackageHandler returns a package with its contents
func (sr *ServiceRegistry) GetPackageHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	pkg, dbErr := sr.repository.GetPackage(packageID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{"package": pkg}), nil
}

type itemRequest struct {
	ItemCode     string  `json:"item_code"`
	Quantity     float64 `json:"quantity"`
	UoMCode      string  `json:"uom_code"`
	UserID       string  `json:"user_id"`
	SourceType   string  `json:"source_type"`
	SourceID     *int    `json:"source_id"`
	SourceLineID *int    `json:"source_line_id"`
}

// AddItemHandler adds item quantity to a package
func (sr *ServiceRegistry) AddItemHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	var body itemRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.ItemCode == "" || body.UserID == "" {
		return badRequest("item_code and user_id are required"), nil
	}

	pkg, dbErr := sr.repository.AddItem(packageID, body.ItemCode, body.Quantity, body.UoMCode,
		sourceOperation(body.SourceType, body.SourceID, body.SourceLineID), body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Item added",
		"package": pkg,
	}), nil
}

// RemoveItemHandler removes item quantity from a package
func (sr *ServiceRegistry) RemoveItemHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	var body itemRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.ItemCode == "" || body.UserID == "" {
		return badRequest("item_code and user_id are required"), nil
	}

	pkg, dbErr := sr.repository.RemoveItem(packageID, body.ItemCode, body.Quantity, body.UoMCode,
		sourceOperation(body.SourceType, body.SourceID, body.SourceLineID), body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Item removed",
		"package": pkg,
	}), nil
}

// AdjustItemHandler sets an item's quantity to an absolute counted value
func (sr *ServiceRegistry) AdjustItemHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	var body struct {
		ItemCode    string  `json:"item_code"`
		NewQuantity float64 `json:"new_quantity"`
		UoMCode     string  `json:"uom_code"`
		UserID      string  `json:"user_id"`
		SourceType  string  `json:"source_type"`
		SourceID    *int    `json:"source_id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.ItemCode == "" || body.UserID == "" {
		return badRequest("item_code and user_id are required"), nil
	}

	sourceType := body.SourceType
	if sourceType == "" {
		sourceType = models.SourceOperationCounting
	}

	pkg, dbErr := sr.repository.AdjustItem(packageID, body.ItemCode, body.NewQuantity, body.UoMCode,
		sourceOperation(sourceType, body.SourceID, nil), body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Item adjusted",
		"package": pkg,
	}), nil
}

// MovePackageHandler relocates a package
func (sr *ServiceRegistry) MovePackageHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	var body struct {
		ToWhsCode  string `json:"to_whs_code"`
		ToBinEntry *int   `json:"to_bin_entry"`
		UserID     string `json:"user_id"`
		SourceType string `json:"source_type"`
		SourceID   *int   `json:"source_id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.ToWhsCode == "" || body.UserID == "" {
		return badRequest("to_whs_code and user_id are required"), nil
	}

	pkg, dbErr := sr.repository.MovePackage(packageID, body.ToWhsCode, body.ToBinEntry,
		sourceOperation(body.SourceType, body.SourceID, nil), body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Package moved",
		"package": pkg,
	}), nil
}

type statusChangeRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

func parseStatusChange(req *Request) (*statusChangeRequest, *Response) {
	var body statusChangeRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return nil, badRequest(fmt.Sprintf("Invalid request body: %s", err.Error()))
	}
	if body.UserID == "" {
		return nil, badRequest("user_id is required")
	}
	return &body, nil
}

// ClosePackageHandler closes an open package
func (sr *ServiceRegistry) ClosePackageHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	body, errResp := parseStatusChange(req)
	if errResp != nil {
		return errResp, nil
	}

	pkg, dbErr := sr.repository.ClosePackage(packageID, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Package closed",
		"package": pkg,
	}), nil
}

// CancelPackageHandler cancels an open or locked package
func (sr *ServiceRegistry) CancelPackageHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	body, errResp := parseStatusChange(req)
	if errResp != nil {
		return errResp, nil
	}

	pkg, dbErr := sr.repository.CancelPackage(packageID, body.Reason, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Package cancelled",
		"package": pkg,
	}), nil
}

// LockPackageHandler places a package on hold
func (sr *ServiceRegistry) LockPackageHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	body, errResp := parseStatusChange(req)
	if errResp != nil {
		return errResp, nil
	}

	pkg, dbErr := sr.repository.LockPackage(packageID, body.Reason, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Package locked",
		"package": pkg,
	}), nil
}

// UnlockPackageHandler releases a locked package
func (sr *ServiceRegistry) UnlockPackageHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	body, errResp := parseStatusChange(req)
	if errResp != nil {
		return errResp, nil
	}

	pkg, dbErr := sr.repository.UnlockPackage(packageID, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Package unlocked",
		"package": pkg,
	}), nil
}

// TransactionHistoryHandler returns the package's ledger entries
func (sr *ServiceRegistry) TransactionHistoryHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	txs, dbErr := sr.repository.GetTransactionHistory(packageID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"package_id":   packageID,
		"transactions": txs,
	}), nil
}

// LocationHistoryHandler returns the package's movement records
func (sr *ServiceRegistry) LocationHistoryHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	movements, dbErr := sr.repository.GetLocationHistory(packageID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"package_id": packageID,
		"movements":  movements,
	}), nil
}

// ValidatePackageHandler replays the ledger against stored contents
func (sr *ServiceRegistry) ValidatePackageHandler(req *Request) (*Response, error) {
	packageID := pathSegment(req.Path, 1)

	result, dbErr := sr.repository.ValidatePackageConsistency(packageID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, result), nil
}

// RunDetectionHandler triggers an on-demand consistency detection run
func (sr *ServiceRegistry) RunDetectionHandler(req *Request) (*Response, error) {
	var scope repository.DetectionScope
	if strings.TrimSpace(req.Body) != "" {
		if err := json.Unmarshal([]byte(req.Body), &scope); err != nil {
			return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
		}
	}

	findings, dbErr := sr.repository.RunDetection(sr.adapter, &scope)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message":         "Detection run completed",
		"finding_count":   len(findings),
		"inconsistencies": findings,
	}), nil
}

// ListUnresolvedHandler lists open inconsistencies
func (sr *ServiceRegistry) ListUnresolvedHandler(req *Request) (*Response, error) {
	filter := repository.InconsistencyFilter{
		WhsCode:  req.QueryParam("whs_code"),
		ItemCode: req.QueryParam("item_code"),
		Type:     req.QueryParam("type"),
	}

	findings, dbErr := sr.repository.ListUnresolvedInconsistencies(&filter)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"count":           len(findings),
		"inconsistencies": findings,
	}), nil
}

// ResolveInconsistencyHandler attaches a manual resolution to a finding
func (sr *ServiceRegistry) ResolveInconsistencyHandler(req *Request) (*Response, error) {
	idSegment := pathSegment(req.Path, 1)
	id, err := strconv.ParseUint(idSegment, 10, 32)
	if err != nil {
		return badRequest(fmt.Sprintf("Invalid inconsistency id %q", idSegment)), nil
	}

	var body struct {
		Action string `json:"action"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.Action == "" || body.UserID == "" {
		return badRequest("action and user_id are required"), nil
	}

	inconsistency, dbErr := sr.repository.ResolveInconsistency(uint(id), body.Action, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message":       "Inconsistency resolved",
		"inconsistency": inconsistency,
	}), nil
}

// StartCheckSessionHandler opens a pick-list verification session
func (sr *ServiceRegistry) StartCheckSessionHandler(req *Request) (*Response, error) {
	var body struct {
		PickListID int    `json:"pick_list_id"`
		UserID     string `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.PickListID <= 0 || body.UserID == "" {
		return badRequest("pick_list_id and user_id are required"), nil
	}

	session, dbErr := sr.repository.StartCheckSession(body.PickListID, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message": "Check session started",
		"session": session,
	}), nil
}

// GetCheckSessionHandler returns a session with its scans
func (sr *ServiceRegistry) GetCheckSessionHandler(req *Request) (*Response, error) {
	sessionID := pathSegment(req.Path, 1)

	session, dbErr := sr.repository.GetCheckSession(sessionID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{"session": session}), nil
}

// CheckItemHandler records an item scan
func (sr *ServiceRegistry) CheckItemHandler(req *Request) (*Response, error) {
	sessionID := pathSegment(req.Path, 1)

	var body struct {
		ItemCode string  `json:"item_code"`
		Quantity float64 `json:"quantity"`
		UoMCode  string  `json:"uom_code"`
		BinCode  string  `json:"bin_code"`
		UserID   string  `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.ItemCode == "" || body.UserID == "" {
		return badRequest("item_code and user_id are required"), nil
	}

	checkItem, dbErr := sr.repository.CheckItem(sessionID, body.ItemCode, body.Quantity, body.UoMCode, body.BinCode, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message":    "Item checked",
		"check_item": checkItem,
	}), nil
}

// CheckPackageHandler records a package scan
func (sr *ServiceRegistry) CheckPackageHandler(req *Request) (*Response, error) {
	sessionID := pathSegment(req.Path, 1)

	var body struct {
		PackageID string `json:"package_id"`
		UserID    string `json:"user_id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.PackageID == "" || body.UserID == "" {
		return badRequest("package_id and user_id are required"), nil
	}

	checkPackage, dbErr := sr.repository.CheckPackage(sessionID, body.PackageID, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message":       "Package checked",
		"check_package": checkPackage,
	}), nil
}

// CompleteCheckSessionHandler completes a session
func (sr *ServiceRegistry) CompleteCheckSessionHandler(req *Request) (*Response, error) {
	sessionID := pathSegment(req.Path, 1)

	body, errResp := parseStatusChange(req)
	if errResp != nil {
		return errResp, nil
	}

	session, dbErr := sr.repository.CompleteCheckSession(sessionID, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Check session completed",
		"session": session,
	}), nil
}

// CancelCheckSessionHandler cancels a session
func (sr *ServiceRegistry) CancelCheckSessionHandler(req *Request) (*Response, error) {
	sessionID := pathSegment(req.Path, 1)

	body, errResp := parseStatusChange(req)
	if errResp != nil {
		return errResp, nil
	}

	session, dbErr := sr.repository.CancelCheckSession(sessionID, body.UserID)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message": "Check session cancelled",
		"session": session,
	}), nil
}

// AssignPickPackageHandler links a package to a pick list as source or target
func (sr *ServiceRegistry) AssignPickPackageHandler(req *Request) (*Response, error) {
	idSegment := pathSegment(req.Path, 1)
	pickListID, err := strconv.Atoi(idSegment)
	if err != nil || pickListID <= 0 {
		return badRequest(fmt.Sprintf("Invalid pick list id %q", idSegment)), nil
	}

	var body struct {
		PackageID  string `json:"package_id"`
		Role       string `json:"role"`
		PickLineID *int   `json:"pick_line_id"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return badRequest(fmt.Sprintf("Invalid request body: %s", err.Error())), nil
	}
	if body.PackageID == "" || body.Role == "" {
		return badRequest("package_id and role are required"), nil
	}

	assignment, dbErr := sr.repository.AssignPickListPackage(pickListID, body.PickLineID, body.PackageID, body.Role)
	if dbErr != nil {
		return errorResponse(dbErr), nil
	}

	return jsonResponse(http.StatusCreated, map[string]interface{}{
		"message":    "Package assigned to pick list",
		"assignment": assignment,
	}), nil
}
