package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/chainsync/gateway/internal/model"
	"github.com/chainsync/gateway/internal/pkg/metrics"
)

// maxResponseSize is the maximum allowed response size from the ERP API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// maxErrorBody caps how much of a failed response is quoted in SyncResult.Error
const maxErrorBody = 256

var (
	ErrUnavailable     = errors.New("erp: service unavailable")
	ErrRequestFailed   = errors.New("erp: request failed")
	ErrInvalidResponse = errors.New("erp: invalid response body")
)

const (
	endpointShipments = "shipments"
	endpointInventory = "inventory"
)

// Client posts shipment and inventory updates to the ERP REST API.
// It holds only immutable configuration and is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// no client timeout: calls run to completion or transport failure
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type shipmentBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type inventoryBody struct {
	LocationID  string  `json:"location_id"`
	Quantity    int     `json:"quantity"`
	BatchNumber *string `json:"batch_number"`
	ExpiryDate  *string `json:"expiry_date"`
}

// UpdateShipment issues POST {base}/shipments/{id}/update.
func (c *Client) UpdateShipment(ctx context.Context, u model.ShipmentUpdate) model.SyncResult {
	path := "/shipments/" + url.PathEscape(u.ShipmentID) + "/update"
	return c.post(ctx, endpointShipments, path, shipmentBody{
		Status:    u.Status,
		Timestamp: u.Timestamp,
	})
}

// UpdateInventory issues POST {base}/inventory/{sku}/update. Absent optional
// fields are sent as null.
func (c *Client) UpdateInventory(ctx context.Context, u model.InventoryUpdate) model.SyncResult {
	path := "/inventory/" + url.PathEscape(u.SKU) + "/update"
	return c.post(ctx, endpointInventory, path, inventoryBody{
		LocationID:  u.LocationID,
		Quantity:    u.Quantity,
		BatchNumber: u.BatchNumber,
		ExpiryDate:  u.ExpiryDate,
	})
}

func (c *Client) post(ctx context.Context, endpoint, path string, payload any) (result model.SyncResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = model.NewFailureResult(fmt.Errorf("erp: unexpected failure: %v", rec))
		}
		metrics.ERPRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	raw, err := c.doRequest(ctx, path, payload)
	if err != nil {
		return model.NewFailureResult(err)
	}
	return model.NewSuccessResult(raw)
}

func (c *Client) doRequest(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("erp: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("erp: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("erp: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), req.URL.Redacted())
		if quoted := quoteBody(respBody); quoted != "" {
			msg += ": " + quoted
		}
		return nil, fmt.Errorf("%w: HTTP %s", ErrRequestFailed, msg)
	}

	trimmed := bytes.TrimSpace(respBody)
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("%w from %s", ErrInvalidResponse, req.URL.Redacted())
	}
	return json.RawMessage(trimmed), nil
}

func quoteBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}
