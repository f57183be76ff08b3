package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aure/fpdash/internal/models"
)

const DefaultBaseURL = "http://localhost:8080/api"

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "fpdash/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchFingerprints returns the first page of the fingerprint listing.
func (c *Client) FetchFingerprints(ctx context.Context) (models.FingerprintPage, error) {
	const path = "/fingerprints"

	var page models.FingerprintPage
	if err := c.getJSON(ctx, path, &page); err != nil {
		return models.FingerprintPage{}, err
	}
	if err := normalizePage(&page); err != nil {
		return models.FingerprintPage{}, decodeError(path, err)
	}
	return page, nil
}

// FetchFingerprintCount returns the per-window record counts, oldest first.
func (c *Client) FetchFingerprintCount(ctx context.Context) ([]models.CountBucket, error) {
	const path = "/fingerprints/count"

	var buckets []models.CountBucket
	if err := c.getJSON(ctx, path, &buckets); err != nil {
		return nil, err
	}
	if err := checkBuckets(buckets); err != nil {
		return nil, decodeError(path, err)
	}
	if buckets == nil {
		buckets = []models.CountBucket{}
	}
	return buckets, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return transportError(path, fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(path, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return transportError(path, &StatusError{Code: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(path, fmt.Errorf("reading response body: %w", err))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return decodeError(path, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func normalizePage(page *models.FingerprintPage) error {
	if page.Fingerprints == nil {
		page.Fingerprints = []models.FingerprintRecord{}
	}
	if page.CurrentPage < 1 {
		return fmt.Errorf("current_page %d is below 1", page.CurrentPage)
	}
	if page.TotalPages < page.CurrentPage {
		if len(page.Fingerprints) > 0 {
			return fmt.Errorf("current_page %d exceeds total_pages %d", page.CurrentPage, page.TotalPages)
		}
		// an empty listing reports zero pages
		page.TotalPages = page.CurrentPage
	}
	return nil
}

func checkBuckets(buckets []models.CountBucket) error {
	seen := make(map[string]struct{}, len(buckets))
	for i, b := range buckets {
		if b.Count < 0 {
			return fmt.Errorf("bucket %d has negative count %d", i, b.Count)
		}
		if _, dup := seen[b.Timestamp]; dup {
			return fmt.Errorf("duplicate bucket timestamp %q", b.Timestamp)
		}
		seen[b.Timestamp] = struct{}{}
	}
	return nil
}
