package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"contentforge/internal/model"
)

// PostJSON sends a JSON POST to a provider API and decodes the response into
// out. Transport errors and non-2xx statuses come back as typed *Error values.
func PostJSON(ctx context.Context, client *http.Client, p model.ProviderType, url string, headers map[string]string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return NewRejected(p, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewRejected(p, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Classify(p, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Classify(p, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClassifyStatus(p, resp.StatusCode, string(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return NewUnavailable(p, fmt.Sprintf("malformed response: %s", truncate(string(data), 120)), err)
	}
	return nil
}

// Probe issues a GET against a health/catalog URL and reports reachability.
// Never returns an error; any failure means not available.
func Probe(ctx context.Context, client *http.Client, url string, headers map[string]string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
