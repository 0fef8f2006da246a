// Package adapters contains the concrete data source adapters behind the
// research services facade. Each adapter wraps one external system and
// translates its failures into the shared error taxonomy.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tiangong-ai/greenlit/internal/adapter"
)

const defaultTimeout = 30 * time.Second

// httpDoer is the subset of http.Client the adapters need. Tests swap in
// httptest servers through the real client, so this mostly exists to keep
// the timeout configuration in one place.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// classifyStatus maps an HTTP status code onto the adapter error taxonomy.
func classifyStatus(status int) adapter.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return adapter.KindAuth
	case status == http.StatusNotFound:
		return adapter.KindNotFound
	case status == http.StatusTooManyRequests:
		return adapter.KindRateLimited
	case status >= 500:
		return adapter.KindNetwork
	default:
		return adapter.KindInvalidResponse
	}
}

// getJSON issues a GET request and decodes the JSON response into out. All
// failure modes come back as typed adapter errors attributed to sourceID.
func getJSON(ctx context.Context, client httpDoer, sourceID, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return adapter.NewError(adapter.KindInvalidResponse, sourceID, fmt.Errorf("build request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return adapter.NewError(adapter.KindNetwork, sourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := classifyStatus(resp.StatusCode)
		return adapter.NewError(kind, sourceID,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return adapter.NewError(adapter.KindInvalidResponse, sourceID, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// postJSON issues a POST with a JSON body and decodes the JSON response.
func postJSON(ctx context.Context, client httpDoer, sourceID, rawURL string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return adapter.NewError(adapter.KindInvalidResponse, sourceID, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return adapter.NewError(adapter.KindInvalidResponse, sourceID, fmt.Errorf("build request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return adapter.NewError(adapter.KindNetwork, sourceID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := classifyStatus(resp.StatusCode)
		return adapter.NewError(kind, sourceID,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return adapter.NewError(adapter.KindInvalidResponse, sourceID, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// buildURL joins a base URL with a path and query values.
func buildURL(base, path string, query url.Values) string {
	u := base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}
