// Package remote implements a provider that talks to a replicafs storage node over HTTP.
//
// A remote provider may carry a local fallback provider. When the node cannot
// be reached a write lands in the fallback instead and the receipt says so;
// reads, deletes and listings consult the fallback as well.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"replicafs/pkg/log"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
)

const (
	defaultRetryWaitMin = 100 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
)

// Config configures a remote provider.
type Config struct {
	// URL is the base URL of the storage node.
	URL string
	// RetryMax is the number of transport retries per request. Zero, the
	// default, sends every request once.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Fallback receives writes while the node is unreachable. Optional.
	Fallback provider.Provider
}

// Provider is an HTTP client for one storage node.
type Provider struct {
	name        string
	baseURL     string
	client      *retryablehttp.Client
	fallback    provider.Provider
	initialized atomic.Bool
	nodeInfo    atomic.Pointer[models.NodeInfo]
}

// New creates a remote provider. The URL is validated here; the node is first
// contacted by Initialize.
func New(name string, cfg Config) (*Provider, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid node url %q", provider.ErrConfiguration, cfg.URL)
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = defaultRetryWaitMin
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = defaultRetryWaitMax
	}

	return &Provider{
		name:     name,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		client:   CreateRetryableClient(cfg.RetryMax, cfg.RetryWaitMin, cfg.RetryWaitMax),
		fallback: cfg.Fallback,
	}, nil
}

func (p *Provider) Name() string {
	return "remote"
}

// Initialize contacts the node. With a fallback configured an unreachable
// node is tolerated: the provider comes up and keeps writes locally.
func (p *Provider) Initialize(ctx context.Context) error {
	if p.fallback != nil {
		if err := p.fallback.Initialize(ctx); err != nil {
			return fmt.Errorf("%w: fallback: %w", provider.ErrConfiguration, err)
		}
	}

	if _, err := p.fetchNodeInfo(ctx); err != nil {
		if p.fallback == nil || !isTimeoutOrConnectionError(err) {
			return fmt.Errorf("%w: %w", provider.ErrConfiguration, err)
		}
		log.Warn().Err(err).Str("provider", p.name).Str("url", p.baseURL).
			Msg("Storage node unreachable, starting with local fallback")
	}

	p.initialized.Store(true)
	return nil
}

// IsConfigured reports whether Initialize succeeded.
func (p *Provider) IsConfigured() bool {
	return p.initialized.Load()
}

// Ping fetches the node info, the cheapest request a node answers.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.fetchNodeInfo(ctx)
	return err
}

// NodeInfo returns the node info seen by the last successful Ping or Initialize.
func (p *Provider) NodeInfo() *models.NodeInfo {
	return p.nodeInfo.Load()
}

// Close releases idle connections and closes the fallback.
func (p *Provider) Close() error {
	p.client.HTTPClient.CloseIdleConnections()
	if closer, ok := p.fallback.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (p *Provider) ready() error {
	if !p.initialized.Load() {
		return provider.ErrNotInitialized
	}
	return nil
}

func (p *Provider) fileURL(filename string) string {
	return p.baseURL + "/file/" + url.PathEscape(filename)
}

// fetchNodeInfo fetches node information from the node.
func (p *Provider) fetchNodeInfo(ctx context.Context) (*models.NodeInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/node/info", nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	var nodeInfo models.NodeInfo
	if err := json.NewDecoder(resp.Body).Decode(&nodeInfo); err != nil {
		return nil, err
	}
	p.nodeInfo.Store(&nodeInfo)
	return &nodeInfo, nil
}

// useFallback reports whether err should divert an operation to the fallback.
func (p *Provider) useFallback(err error) bool {
	return p.fallback != nil && isTimeoutOrConnectionError(err) && !errors.Is(err, context.Canceled)
}
