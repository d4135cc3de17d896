package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"wms-package-engine/srvreg"
)

// WebServer handles HTTP requests for the package engine
type WebServer struct {
	httpAddr        string
	server          *http.Server
	serviceRegistry *srvreg.ServiceRegistry
	startTime       time.Time
	warehouseID     string
}

// NewWebServer creates a new web server
func NewWebServer(httpPort string, serviceRegistry *srvreg.ServiceRegistry, warehouseID string) *WebServer {
	mux := http.NewServeMux()

	ws := &WebServer{
		httpAddr: ":" + httpPort,
		server: &http.Server{
			Addr:    ":" + httpPort,
			Handler: mux,
		},
		serviceRegistry: serviceRegistry,
		startTime:       time.Now(),
		warehouseID:     warehouseID,
	}

	// Register routes
	mux.HandleFunc("/", ws.handleRoot)
	mux.HandleFunc("/info", ws.handleInfo)
	mux.HandleFunc("/package", ws.handleService)
	mux.HandleFunc("/package/", ws.handleService)
	mux.HandleFunc("/consistency/", ws.handleService)
	mux.HandleFunc("/pickcheck/", ws.handleService)
	mux.HandleFunc("/picklist/", ws.handleService)

	return ws
}

// Start starts the web server
func (ws *WebServer) Start() error {
	log.Printf("🚀 Starting Package Engine Web Server")
	log.Printf("   Warehouse: %s", ws.warehouseID)
	log.Printf("   Address: %s", ws.httpAddr)

	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Web server error: %v", err)
		}
	}()

	log.Println("✓ Web server started successfully")
	return nil
}

// Shutdown gracefully shuts down the web server
func (ws *WebServer) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	return ws.server.Shutdown(ctx)
}

// handleRoot shows engine information
func (ws *WebServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(ws.startTime).Round(time.Second)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)

	html := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <title>Package Engine - %s</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; background: #f5f5f5; }
        .container { background: white; padding: 30px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #2c5aa0; margin-top: 0; }
        .info { margin: 20px 0; }
        .label { font-weight: bold; color: #555; }
        .value { color: #333; margin-left: 10px; }
        .badge { display: inline-block; padding: 4px 12px; border-radius: 12px; font-size: 12px; font-weight: bold; }
        .badge-success { background: #d4edda; color: #155724; }
        .endpoints { margin-top: 30px; }
        .endpoint { background: #f8f9fa; padding: 10px; margin: 8px 0; border-radius: 4px; font-family: monospace; }
        .method { font-weight: bold; color: #007bff; margin-right: 10px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>📦 Package Lifecycle Engine</h1>

        <div class="info">
            <div><span class="label">Warehouse:</span><span class="value">%s</span></div>
            <div><span class="label">Status:</span><span class="badge badge-success">Active</span></div>
            <div><span class="label">Uptime:</span><span class="value">%s</span></div>
        </div>

        <div class="endpoints">
            <h3>Available Endpoints:</h3>
            <div class="endpoint"><span class="method">GET</span>/info - Engine information</div>
            <div class="endpoint"><span class="method">POST</span>/package - Create package</div>
            <div class="endpoint"><span class="method">GET</span>/package/:id - Package with contents</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/items - Add item</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/items/remove - Remove item</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/items/adjust - Adjust item quantity</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/move - Move package</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/close - Close package</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/cancel - Cancel package</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/lock - Lock package</div>
            <div class="endpoint"><span class="method">POST</span>/package/:id/unlock - Unlock package</div>
            <div class="endpoint"><span class="method">GET</span>/package/:id/transactions - Transaction ledger</div>
            <div class="endpoint"><span class="method">GET</span>/package/:id/movements - Location history</div>
            <div class="endpoint"><span class="method">GET</span>/package/:id/validate - Replay ledger check</div>
            <div class="endpoint"><span class="method">POST</span>/consistency/run - Run detection</div>
            <div class="endpoint"><span class="method">GET</span>/consistency/unresolved - Open findings</div>
            <div class="endpoint"><span class="method">POST</span>/consistency/:id/resolve - Resolve finding</div>
            <div class="endpoint"><span class="method">POST</span>/pickcheck/start - Start check session</div>
            <div class="endpoint"><span class="method">GET</span>/pickcheck/:id - Session detail</div>
            <div class="endpoint"><span class="method">POST</span>/pickcheck/:id/items - Check item</div>
            <div class="endpoint"><span class="method">POST</span>/pickcheck/:id/packages - Check package</div>
            <div class="endpoint"><span class="method">POST</span>/pickcheck/:id/complete - Complete session</div>
            <div class="endpoint"><span class="method">POST</span>/pickcheck/:id/cancel - Cancel session</div>
            <div class="endpoint"><span class="method">POST</span>/picklist/:id/packages - Assign package to pick list</div>
        </div>
    </div>
</body>
</html>
	`, ws.warehouseID, ws.warehouseID, uptime)

	w.Write([]byte(html))
}

// handleInfo returns engine information as JSON
func (ws *WebServer) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req := &srvreg.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   "",
	}

	response, err := req.GenerateResponse(ws.serviceRegistry)
	if err != nil {
		log.Printf("Error generating response: %v", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeResponse(w, response)
}

// handleService routes all registry-backed endpoints
func (ws *WebServer) handleService(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	req := &srvreg.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   string(bodyBytes),
		Query:  query,
	}

	response, err := req.GenerateResponse(ws.serviceRegistry)
	if err != nil {
		log.Printf("Error generating response: %v", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeResponse(w, response)
}

// writeResponse writes a Response to http.ResponseWriter
func writeResponse(w http.ResponseWriter, resp *srvreg.Response) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)

	w.Write([]byte(resp.Body))
}

// jsonError writes a JSON error response
func jsonError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := map[string]string{
		"error": message,
	}
	json.NewEncoder(w).Encode(errorResp)
}
