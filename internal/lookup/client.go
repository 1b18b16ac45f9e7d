// Package lookup is the HTTP client for the garment lookup and
// submission service. Requests and responses are typed records; the
// wire format uses snake_case JSON keys.
package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stitchfit/tagscan/internal/extract"
)

// Garment is the service's resolved garment record.
type Garment struct {
	ID           string            `json:"id"`
	ProductCode  string            `json:"product_code"`
	Name         string            `json:"name,omitempty"`
	Size         string            `json:"size,omitempty"`
	Color        string            `json:"color,omitempty"`
	Price        *float64          `json:"price,omitempty"`
	Materials    map[string]int    `json:"materials,omitempty"`
	Measurements map[string]string `json:"measurements,omitempty"`
}

// NetworkError reports a transport or server-side failure. The caller
// decides whether to retry; the client never retries on its own, and
// callers keep the extracted record so retrying does not require a
// re-scan.
type NetworkError struct {
	StatusCode int // zero for transport failures
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("lookup service error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("lookup service transport error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client talks to the lookup service.
type Client struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a client for the given base URL. A non-empty token
// is sent as a bearer Authorization header on every request.
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIToken:   apiToken,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// LookupCode resolves a decoded code payload to a garment record. A nil
// Garment with nil error means the service knows no garment for that
// code; that is a normal negative result, not an error.
func (c *Client) LookupCode(ctx context.Context, payload string) (*Garment, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/garments/"+url.PathEscape(payload), nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return decodeGarment(resp)
}

// Submit sends an extracted record for matching or creation and returns
// the resolved garment.
func (c *Client) Submit(ctx context.Context, info extract.GarmentInfo) (*Garment, error) {
	body, err := json.Marshal(info)
	if err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("encode record: %w", err)}
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/garments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return decodeGarment(resp)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &NetworkError{
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(msg))),
	}
}

func decodeGarment(resp *http.Response) (*Garment, error) {
	var g Garment
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return &g, nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
