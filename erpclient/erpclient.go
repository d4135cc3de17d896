package erpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"wms-package-engine/repository"
)

// ERPClient queries the external ERP for authoritative on-hand inventory.
// It implements repository.InventoryAdapter.
type ERPClient struct {
	endpoint   string
	httpClient *http.Client
	whsFilter  string
}

// OnHandRequest is the bulk on-hand query sent to the ERP connector
type OnHandRequest struct {
	WhsCode   string    `json:"whs_code,omitempty"`
	ItemCode  string    `json:"item_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OnHandResponse is the ERP connector's reply
type OnHandResponse struct {
	Data []repository.OnHandQuantity `json:"data"`
	Meta struct {
		RecordCount int       `json:"record_count"`
		QueriedAt   time.Time `json:"queried_at"`
	} `json:"meta"`
}

// NewERPClient creates a new ERP inventory client. whsFilter optionally
// restricts every query to one warehouse.
func NewERPClient(endpoint, whsFilter string) *ERPClient {
	return &ERPClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		whsFilter: whsFilter,
	}
}

// IsAvailable reports whether the ERP connector answers its health endpoint
func (c *ERPClient) IsAvailable() bool {
	return c.HealthCheck() == nil
}

// HealthCheck checks if the ERP connector is reachable
func (c *ERPClient) HealthCheck() error {
	url := fmt.Sprintf("%s/health", c.endpoint)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("ERP connector is unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ERP health check failed with status: %d", resp.StatusCode)
	}

	return nil
}

// GetOnHandQuantities fetches ERP on-hand quantities for a detection pass
func (c *ERPClient) GetOnHandQuantities(scope *repository.DetectionScope) ([]repository.OnHandQuantity, error) {
	request := OnHandRequest{
		WhsCode:   c.whsFilter,
		Timestamp: time.Now(),
	}
	if scope != nil {
		if scope.WhsCode != "" {
			request.WhsCode = scope.WhsCode
		}
		request.ItemCode = scope.ItemCode
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal on-hand request: %w", err)
	}

	url := fmt.Sprintf("%s/inventory/on-hand", c.endpoint)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ERP: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ERP response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ERP returned error status %d: %s", resp.StatusCode, string(body))
	}

	var onHand OnHandResponse
	if err := json.Unmarshal(body, &onHand); err != nil {
		return nil, fmt.Errorf("failed to parse ERP response: %w", err)
	}

	return onHand.Data, nil
}

// GetOnHandQuantity fetches the ERP on-hand quantity for a single key
func (c *ERPClient) GetOnHandQuantity(itemCode, whsCode string, binEntry *int) (float64, error) {
	records, err := c.GetOnHandQuantities(&repository.DetectionScope{
		WhsCode:  whsCode,
		ItemCode: itemCode,
	})
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, record := range records {
		if binEntry != nil {
			if record.BinEntry == nil || *record.BinEntry != *binEntry {
				continue
			}
		}
		total += record.Quantity
	}
	return total, nil
}
