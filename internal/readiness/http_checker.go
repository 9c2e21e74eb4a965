package readiness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const startPath = "/start-jitsi"

// HTTPChecker вызывает POST {BaseURL}/start-jitsi; вызов идемпотентен.
type HTTPChecker struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPChecker(baseURL string, client *http.Client) *HTTPChecker {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPChecker{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

type startResponse struct {
	Status Status `json:"status"`
}

func (c *HTTPChecker) Check(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+startPath, nil)
	if err != nil {
		return "", fmt.Errorf("readiness: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("readiness: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("readiness: unexpected status %d", resp.StatusCode)
	}

	var body startResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", fmt.Errorf("readiness: decode response: %w", err)
	}
	return body.Status, nil
}
