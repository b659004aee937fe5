// Package photogen is the HTTP client for the PhotoGen backend, which performs
// the actual product lookup, image search and description generation.
package photogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/metrics"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
)

// Client calls the three backend endpoints over HTTP/JSON.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// NewClient creates a backend client. The timeout bounds every call,
// including the long-running generation one.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithMetrics attaches request counters and latency observation. A nil
// metrics value disables instrumentation.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// GenerationRequest carries one product's selected images to the backend.
type GenerationRequest struct {
	EAN            string   `json:"ean"`
	ProductName    string   `json:"productName"`
	ImageURLs      []string `json:"imageUrls"`
	UploadedImages []string `json:"uploadedImages"`
}

// VerifiedFields is the backend's verification output. The extracted values
// are nullable: the verifier may find nothing on the images.
type VerifiedFields struct {
	DescriptionVerified string  `json:"description_verified,omitempty"`
	EANFromImages       *string `json:"ean_from_images,omitempty"`
	Dimensions          *string `json:"dimensions_from_images,omitempty"`
	VolumeOrWeight      *string `json:"volume_or_weight_from_images,omitempty"`
}

// GenerationResult is the backend's response for one product.
type GenerationResult struct {
	EAN     string `json:"ean"`
	Product struct {
		Name string `json:"name"`
	} `json:"product"`
	BaseDescription string         `json:"base_description,omitempty"`
	Verified        VerifiedFields `json:"verified"`
}

// Description returns the verified description, falling back to the raw one.
func (r *GenerationResult) Description() string {
	if r.Verified.DescriptionVerified != "" {
		return r.Verified.DescriptionVerified
	}
	return r.BaseDescription
}

// BatchSearch looks up all identifiers in one call. The returned map holds
// one entry per identifier; per-identifier failures appear as the entry's
// Error field, while a failure of the call itself is returned as an error.
func (c *Client) BatchSearch(ctx context.Context, eans []string) (map[string]models.ProductData, error) {
	var response struct {
		Products map[string]models.ProductData `json:"products"`
	}
	if err := c.post(ctx, "batch_search", map[string]any{"eans": eans}, &response); err != nil {
		return nil, err
	}
	return response.Products, nil
}

// SearchMore requests another portion of candidate images for one product.
func (c *Client) SearchMore(ctx context.Context, ean, productName string) ([]models.ImageSource, error) {
	var response struct {
		Sources []models.ImageSource `json:"sources"`
	}
	body := map[string]any{"ean": ean, "productName": productName}
	if err := c.post(ctx, "search_more", body, &response); err != nil {
		return nil, err
	}
	return response.Sources, nil
}

// RunFromImages generates a description for one product from its selected
// images.
func (c *Client) RunFromImages(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	var result GenerationResult
	if err := c.post(ctx, "run_from_images", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", endpoint, err)
	}

	url := c.BaseURL + "/api/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.metrics.IncBackendRequest(endpoint)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveBackendDuration(time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, readErrorMessage(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return nil
}

// readErrorMessage extracts the backend's {"error": "..."} message, falling
// back to the raw body.
func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error details"
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(raw)
}
