package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/hashicorp/go-retryablehttp"

	"replicafs/pkg/log"
	"replicafs/pkg/models"
	"replicafs/pkg/provider"
)

// Store uploads data to the node. If the node is unreachable and a fallback
// is configured, the data is kept there and the receipt is marked
// PlacementLocalFallback.
func (p *Provider) Store(ctx context.Context, data []byte, filename, _ string) (provider.Receipt, error) {
	if err := p.ready(); err != nil {
		return provider.Receipt{}, err
	}

	err := p.upload(ctx, data, filename)
	if err == nil {
		return provider.Receipt{
			Provider:  p.name,
			Ref:       p.fileURL(filename),
			Size:      int64(len(data)),
			Placement: provider.PlacementRemote,
		}, nil
	}

	if !p.useFallback(err) {
		return provider.Receipt{}, fmt.Errorf("%w: %w", provider.ErrUploadFailed, err)
	}

	log.Warn().Err(err).Str("provider", p.name).Str("filename", filename).Msg("Node unreachable, keeping object in local fallback")
	receipt, fallbackErr := p.fallback.Store(ctx, data, filename, "")
	if fallbackErr != nil {
		return provider.Receipt{}, fmt.Errorf("%w: %w (fallback: %w)", provider.ErrUploadFailed, err, fallbackErr)
	}
	receipt.Provider = p.name
	receipt.Placement = provider.PlacementLocalFallback
	return receipt, nil
}

func (p *Provider) upload(ctx context.Context, data []byte, filename string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, p.fileURL(filename), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return readError(resp)
	}
	return nil
}

// Retrieve downloads filename from the node, falling back to the local copy
// when the node is unreachable or does not have it.
func (p *Provider) Retrieve(ctx context.Context, filename, _ string) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	data, err := p.download(ctx, filename)
	if err == nil {
		return data, nil
	}

	if p.fallback != nil && (provider.IsNotFound(err) || p.useFallback(err)) {
		if local, localErr := p.fallback.Retrieve(ctx, filename, ""); localErr == nil {
			log.Debug().Str("provider", p.name).Str("filename", filename).Msg("Served object from local fallback")
			return local, nil
		}
	}

	if provider.IsNotFound(err) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", provider.ErrDownloadFailed, err)
}

func (p *Provider) download(ctx context.Context, filename string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.fileURL(filename), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, provider.FileNotFoundError{Filename: filename}
	default:
		return nil, readError(resp)
	}
}

// Delete removes filename from the node and from the fallback. It reports
// FileNotFoundError only when neither held the file.
func (p *Provider) Delete(ctx context.Context, filename string) error {
	if err := p.ready(); err != nil {
		return err
	}

	remoteErr := p.remove(ctx, filename)

	localDeleted := false
	if p.fallback != nil {
		localErr := p.fallback.Delete(ctx, filename)
		if localErr != nil && !provider.IsNotFound(localErr) {
			log.Warn().Err(localErr).Str("provider", p.name).Str("filename", filename).Msg("Failed to delete fallback copy")
		}
		localDeleted = localErr == nil
	}

	switch {
	case remoteErr == nil:
		return nil
	case provider.IsNotFound(remoteErr):
		if localDeleted {
			return nil
		}
		return remoteErr
	default:
		return fmt.Errorf("%w: %w", provider.ErrDeleteFailed, remoteErr)
	}
}

func (p *Provider) remove(ctx context.Context, filename string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete, p.fileURL(filename), nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return provider.FileNotFoundError{Filename: filename}
	default:
		return readError(resp)
	}
}

// List merges the node listing with the fallback listing.
func (p *Provider) List(ctx context.Context) ([]string, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	names, err := p.listRemote(ctx)
	if err != nil && !p.useFallback(err) {
		return nil, fmt.Errorf("%w: %w", provider.ErrListFailed, err)
	}

	if p.fallback != nil {
		local, localErr := p.fallback.List(ctx)
		if localErr != nil {
			if err != nil {
				return nil, fmt.Errorf("%w: %w (fallback: %w)", provider.ErrListFailed, err, localErr)
			}
			log.Warn().Err(localErr).Str("provider", p.name).Msg("Failed to list fallback")
		}
		names = mergeNames(names, local)
	}
	return names, nil
}

func (p *Provider) listRemote(ctx context.Context) ([]string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/files", nil)
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

	var listing models.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, err
	}
	return listing.Files, nil
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if _, dup := seen[name]; !dup {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Exists asks the node with a HEAD request, then the fallback.
func (p *Provider) Exists(ctx context.Context, filename string) bool {
	if p.ready() != nil {
		return false
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, p.fileURL(filename), nil)
	if err == nil {
		resp, doErr := p.client.Do(req)
		if doErr == nil {
			ok := resp.StatusCode == http.StatusOK
			closeBody(resp)
			if ok {
				return true
			}
		}
	}

	return p.fallback != nil && p.fallback.Exists(ctx, filename)
}
