// Package client is an HTTP client for the replicafs gateway.
package client

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

	"github.com/hashicorp/go-retryablehttp"

	"replicafs/pkg/models"
	"replicafs/pkg/provider/remote"
	"replicafs/pkg/server/gateway"
)

const (
	defaultRetryMax     = 2
	defaultRetryWaitMin = 100 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
)

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
	// Report is set when a write reached the providers but fell short.
	Report *models.WriteReport
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Client talks to one gateway.
type Client struct {
	baseURL    string
	credential string
	http       *retryablehttp.Client
}

// New creates a client for the gateway at baseURL. credential is sent with
// every file request and may be empty.
func New(baseURL, credential string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		http:       remote.CreateRetryableClient(defaultRetryMax, defaultRetryWaitMin, defaultRetryWaitMax),
	}
}

func (c *Client) fileURL(name string) string {
	return c.baseURL + "/files/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.credential != "" {
		req.Header.Set(gateway.CredentialHeader, c.credential)
	}
	return c.http.Do(req)
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body gateway.WriteErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Error
		apiErr.Report = body.Report
	}
	return apiErr
}

func (c *Client) doJSON(ctx context.Context, method, target string, body []byte, want int, out any) error {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, target, body, contentType)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Put stores data under name.
func (c *Client) Put(ctx context.Context, name string, data []byte) (*models.WriteReport, error) {
	resp, err := c.do(ctx, http.MethodPut, c.fileURL(name), data, "application/octet-stream")
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp)
	}
	var report models.WriteReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Get returns the object stored under name.
func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.fileURL(name), nil, "")
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Exists reports whether any healthy provider holds name.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, c.fileURL(name), nil, "")
	if err != nil {
		return false, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &APIError{StatusCode: resp.StatusCode}
	}
}

// Delete removes name from every provider.
func (c *Client) Delete(ctx context.Context, name string) (*models.DeleteReport, error) {
	var report models.DeleteReport
	if err := c.doJSON(ctx, http.MethodDelete, c.fileURL(name), nil, http.StatusOK, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns every object name known to the healthy providers.
func (c *Client) List(ctx context.Context) ([]string, error) {
	var listing models.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/files", nil, http.StatusOK, &listing); err != nil {
		return nil, err
	}
	return listing.Files, nil
}

// Providers returns the health of every provider.
func (c *Client) Providers(ctx context.Context) ([]models.ProviderStatus, error) {
	var statuses []models.ProviderStatus
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/providers", nil, http.StatusOK, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// Redundancy returns the active redundancy settings.
func (c *Client) Redundancy(ctx context.Context) (*models.RedundancyResponse, error) {
	var resp models.RedundancyResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/redundancy", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetRedundancy changes the level. An empty level leaves it unchanged.
func (c *Client) SetRedundancy(ctx context.Context, level string) (*models.RedundancyResponse, error) {
	var req gateway.RedundancyRequest
	if level != "" {
		req.Level = &level
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var resp models.RedundancyResponse
	if err := c.doJSON(ctx, http.MethodPut, c.baseURL+"/redundancy", body, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
