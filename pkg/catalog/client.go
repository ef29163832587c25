// Package catalog provides the HTTP client for the catalog/asset service,
// which owns table and column metadata for registered data sources.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/jsonutil"
	"github.com/veridata-labs/veridata-engine/pkg/retry"
)

// Asset is one table asset as listed by the catalog service.
type Asset struct {
	ID           string `json:"id"`
	DataSourceID string `json:"data_source_id"`
	Schema       string `json:"schema"`
	Name         string `json:"name"`
	Type         string `json:"type"`
}

// Column is one column of a table asset. The catalog may omit fields;
// callers get "unknown"/zero defaults rather than errors.
type Column struct {
	Name         string   `json:"name"`
	DataType     string   `json:"data_type"`
	IsNullable   bool     `json:"is_nullable"`
	Description  string   `json:"description"`
	SampleValues []string `json:"sample_values"`
}

// UnmarshalJSON tolerates non-string sample values; the catalog emits
// numeric and boolean samples as their native JSON types.
func (c *Column) UnmarshalJSON(data []byte) error {
	type alias struct {
		Name         string            `json:"name"`
		DataType     string            `json:"data_type"`
		IsNullable   bool              `json:"is_nullable"`
		Description  string            `json:"description"`
		SampleValues []json.RawMessage `json:"sample_values"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	c.Name = a.Name
	c.DataType = a.DataType
	c.IsNullable = a.IsNullable
	c.Description = a.Description
	c.SampleValues = nil
	for _, raw := range a.SampleValues {
		c.SampleValues = append(c.SampleValues, jsonutil.FlexibleStringValue(raw))
	}
	return nil
}

// AssetDetail is the full table asset including its columns.
type AssetDetail struct {
	Asset
	Columns []Column `json:"columns"`
}

// Client is the interface the discovery pipeline consumes.
// Use this interface for dependency injection to enable mocking in tests.
type Client interface {
	// ListAssets fetches all table assets for a data source.
	ListAssets(ctx context.Context, dataSourceID string, limit int) ([]Asset, error)

	// GetAsset fetches one asset with its column detail.
	GetAsset(ctx context.Context, assetID string) (*AssetDetail, error)
}

// HTTPClient implements Client against the catalog service's REST API.
type HTTPClient struct {
	baseURL       string
	listTimeout   time.Duration
	detailTimeout time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

// Config holds catalog client settings.
type Config struct {
	BaseURL       string
	ListTimeout   time.Duration
	DetailTimeout time.Duration
}

// NewHTTPClient creates a catalog client.
func NewHTTPClient(cfg *Config, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("catalog base URL is required")
	}

	listTimeout := cfg.ListTimeout
	if listTimeout == 0 {
		listTimeout = 10 * time.Second
	}
	detailTimeout := cfg.DetailTimeout
	if detailTimeout == 0 {
		detailTimeout = 5 * time.Second
	}

	return &HTTPClient{
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		listTimeout:   listTimeout,
		detailTimeout: detailTimeout,
		httpClient:    &http.Client{},
		logger:        logger.Named("catalog"),
	}, nil
}

// listResponse is the envelope the catalog service wraps asset lists in.
type listResponse struct {
	Assets []Asset `json:"assets"`
}

// ListAssets fetches all table assets for a data source.
func (c *HTTPClient) ListAssets(ctx context.Context, dataSourceID string, limit int) ([]Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("dataSourceId", dataSourceID)
	q.Set("type", "table")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	reqURL := fmt.Sprintf("%s/assets?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset list request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch assets: catalog returned HTTP %d", resp.StatusCode)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode asset list: %w", err)
	}

	c.logger.Debug("Fetched assets",
		zap.String("data_source_id", dataSourceID),
		zap.Int("count", len(body.Assets)),
		zap.Duration("elapsed", time.Since(start)))

	return normalizeAssets(body.Assets), nil
}

// GetAsset fetches one asset with its column detail. Transient failures are
// retried with backoff; each attempt gets a fresh timeout.
func (c *HTTPClient) GetAsset(ctx context.Context, assetID string) (*AssetDetail, error) {
	var detail *AssetDetail
	err := retry.DoIfRetryable(ctx, nil, func() error {
		var err error
		detail, err = c.getAsset(ctx, assetID)
		return err
	})
	return detail, err
}

func (c *HTTPClient) getAsset(ctx context.Context, assetID string) (*AssetDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, c.detailTimeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/assets/%s", c.baseURL, url.PathEscape(assetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset detail request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", assetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("asset %s not found", assetID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset %s: catalog returned HTTP %d", assetID, resp.StatusCode)
	}

	var detail AssetDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decode asset detail: %w", err)
	}

	normalizeDetail(&detail)
	return &detail, nil
}

// normalizeAssets substitutes defaults for missing fields so downstream
// grouping never sees empty keys.
func normalizeAssets(assets []Asset) []Asset {
	for i := range assets {
		if assets[i].Schema == "" {
			assets[i].Schema = "public"
		}
	}
	return assets
}

// normalizeDetail fills column defaults for partial catalog payloads.
func normalizeDetail(detail *AssetDetail) {
	if detail.Schema == "" {
		detail.Schema = "public"
	}
	for i := range detail.Columns {
		if detail.Columns[i].DataType == "" {
			detail.Columns[i].DataType = "unknown"
		}
	}
}

// Ensure HTTPClient implements Client at compile time.
var _ Client = (*HTTPClient)(nil)
