package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPClient is shared by the HTTP based providers.
var DefaultHTTPClient = &http.Client{Timeout: 60 * time.Second}

// PostJSON sends body as JSON and decodes a 2xx response into out. Non-2xx
// responses and transport failures come back as *UpstreamError.
func PostJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = DefaultHTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return &UpstreamError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Provider: provider, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}
