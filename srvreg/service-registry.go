package srvreg

import (
	"fmt"
	"log"
	"strings"

	"wms-package-engine/repository"
)

// Request represents an incoming HTTP request
type Request struct {
	Method string
	Path   string
	Body   string
	Query  map[string]string
}

// QueryParam returns the named query parameter, or "" when absent
func (req *Request) QueryParam(name string) string {
	if req.Query == nil {
		return ""
	}
	return req.Query[name]
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// HandlerFunc is a function that handles a request
type HandlerFunc func(*Request) (*Response, error)

// ServiceRegistry manages all service handlers
type ServiceRegistry struct {
	handlers   map[string]map[string]HandlerFunc
	repository *repository.Repository
	adapter    repository.InventoryAdapter
}

var defaultHeaders = map[string]string{
	"Content-Type": "application/json",
}

// NewServiceRegistry creates a new service registry
func NewServiceRegistry(repo *repository.Repository, adapter repository.InventoryAdapter) *ServiceRegistry {
	return &ServiceRegistry{
		handlers:   make(map[string]map[string]HandlerFunc),
		repository: repo,
		adapter:    adapter,
	}
}

// RegisterHandler registers a handler for a specific method and path
func (sr *ServiceRegistry) RegisterHandler(method, path string, handler HandlerFunc) {
	if sr.handlers[method] == nil {
		sr.handlers[method] = make(map[string]HandlerFunc)
	}
	sr.handlers[method][path] = handler
	log.Printf("✓ Registered handler: %s %s", method, path)
}

// GetHandlerForPath finds the handler for a given method and path
func (sr *ServiceRegistry) GetHandlerForPath(method, path string) (HandlerFunc, bool) {
	methodHandlers, exists := sr.handlers[method]
	if !exists {
		return nil, false
	}

	// Try exact match first
	if handler, exists := methodHandlers[path]; exists {
		return handler, true
	}

	// Try pattern matching for paths with parameters
	for pattern, handler := range methodHandlers {
		if matchPath(pattern, path) {
			return handler, true
		}
	}

	return nil, false
}

// matchPath checks if a path matches a pattern with parameters.
// It supports patterns like "/package/:id" matching "/package/PKG-123".
func matchPath(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return false
	}

	for i := 0; i < len(patternParts); i++ {
		if strings.HasPrefix(patternParts[i], ":") {
			// This is a parameter, it matches anything
			continue
		}
		if patternParts[i] != pathParts[i] {
			return false
		}
	}

	return true
}

// RegisterDefaultServices sets up all engine endpoints
func (sr *ServiceRegistry) RegisterDefaultServices() {
	log.Println("Registering package engine services...")

	// Package lifecycle endpoints
	sr.RegisterHandler("POST", "/package", sr.CreatePackageHandler)
	sr.RegisterHandler("GET", "/package/:id", sr.GetPackageHandler)
	sr.RegisterHandler("POST", "/package/:id/items", sr.AddItemHandler)
	sr.RegisterHandler("POST", "/package/:id/items/remove", sr.RemoveItemHandler)
	sr.RegisterHandler("POST", "/package/:id/items/adjust", sr.AdjustItemHandler)
	sr.RegisterHandler("POST", "/package/:id/move", sr.MovePackageHandler)
	sr.RegisterHandler("POST", "/package/:id/close", sr.ClosePackageHandler)
	sr.RegisterHandler("POST", "/package/:id/cancel", sr.CancelPackageHandler)
	sr.RegisterHandler("POST", "/package/:id/lock", sr.LockPackageHandler)
	sr.RegisterHandler("POST", "/package/:id/unlock", sr.UnlockPackageHandler)
	sr.RegisterHandler("GET", "/package/:id/transactions", sr.TransactionHistoryHandler)
	sr.RegisterHandler("GET", "/package/:id/movements", sr.LocationHistoryHandler)
	sr.RegisterHandler("GET", "/package/:id/validate", sr.ValidatePackageHandler)

	// Consistency endpoints
	sr.RegisterHandler("POST", "/consistency/run", sr.RunDetectionHandler)
	sr.RegisterHandler("GET", "/consistency/unresolved", sr.ListUnresolvedHandler)
	sr.RegisterHandler("POST", "/consistency/:id/resolve", sr.ResolveInconsistencyHandler)

	// Pick verification endpoints
	sr.RegisterHandler("POST", "/pickcheck/start", sr.StartCheckSessionHandler)
	sr.RegisterHandler("GET", "/pickcheck/:id", sr.GetCheckSessionHandler)
	sr.RegisterHandler("POST", "/pickcheck/:id/items", sr.CheckItemHandler)
	sr.RegisterHandler("POST", "/pickcheck/:id/packages", sr.CheckPackageHandler)
	sr.RegisterHandler("POST", "/pickcheck/:id/complete", sr.CompleteCheckSessionHandler)
	sr.RegisterHandler("POST", "/pickcheck/:id/cancel", sr.CancelCheckSessionHandler)

	// Pick-list package assignment
	sr.RegisterHandler("POST", "/picklist/:id/packages", sr.AssignPickPackageHandler)

	// Info endpoints
	sr.RegisterHandler("GET", "/info", sr.InfoHandler)

	log.Println("✓ All services registered")
}

// GenerateResponse executes the request and generates a response
func (req *Request) GenerateResponse(services *ServiceRegistry) (*Response, error) {
	handler, found := services.GetHandlerForPath(req.Method, req.Path)

	if !found {
		return &Response{
			StatusCode: 404,
			Headers:    defaultHeaders,
			Body:       fmt.Sprintf(`{"error":"Service not found for %s %s"}`, req.Method, req.Path),
		}, nil
	}

	response, err := handler(req)
	return response, err
}
