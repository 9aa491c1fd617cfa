package marketsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Client is the boundary to the marketplace report generation API. Report
// generation is asynchronous and eventually consistent: CreateReport returns a
// code, status is polled until terminal, and the payload is downloaded last.
type Client interface {
	CreateReport(ctx context.Context, params ReportParams) (string, error)
	GetReportStatus(ctx context.Context, code string) (*ReportStatusResponse, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

type ReportParams struct {
	ReportType string   `json:"report_type"`
	Warehouses []string `json:"warehouses,omitempty"`
	Skus       []string `json:"skus,omitempty"`
}

type ReportStatusResponse struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
	Error       string `json:"error"`
}

// Marketplace-side report states.
const (
	RemoteStatusPending    = "PENDING"
	RemoteStatusProcessing = "PROCESSING"
	RemoteStatusSuccess    = "SUCCESS"
	RemoteStatusError      = "ERROR"
)

type marketClient struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

// NewClient builds the HTTP client from env. The client-side tick limiter
// keeps us under the marketplace per-minute quota regardless of caller count.
func NewClient() (Client, error) {
	baseURL := strings.TrimSpace(os.Getenv("MARKET_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.marketplace.example.com"
	}
	apiKey := strings.TrimSpace(os.Getenv("MARKET_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("MARKET_API_KEY is required")
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("MARKET_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}

	rateLimitPerMin := int64(30)
	if v := strings.TrimSpace(os.Getenv("MARKET_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &marketClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type createReportResponse struct {
	Code string `json:"code"`
}

func (c *marketClient) CreateReport(ctx context.Context, params ReportParams) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	raw, err := c.do(ctx, http.MethodPost, "/v1/reports", body)
	if err != nil {
		return "", err
	}
	var parsed createReportResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if parsed.Code == "" {
		return "", errors.New("marketplace returned empty report code")
	}
	return parsed.Code, nil
}

func (c *marketClient) GetReportStatus(ctx context.Context, code string) (*ReportStatusResponse, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/reports/"+code, nil)
	if err != nil {
		return nil, err
	}
	var parsed ReportStatusResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *marketClient) Download(ctx context.Context, url string) ([]byte, error) {
	<-c.limiter
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("marketplace download error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *marketClient) do(ctx context.Context, method string, path string, body []byte) ([]byte, error) {
	<-c.limiter
	endpoint := c.baseURL + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("marketplace api error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
