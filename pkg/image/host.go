package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HostClient uploads finished illustrations to the image host and
// returns their public URLs
type HostClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHostClient creates an image host client
func NewHostClient(endpoint, apiKey string, timeout time.Duration) *HostClient {
	return &HostClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upload sends PNG bytes as a multipart upload and returns the public URL
func (c *HostClient) Upload(ctx context.Context, name string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name+".png")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("image host error (status %d): %s", resp.StatusCode, string(body))
	}

	var hostResp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &hostResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if hostResp.URL == "" {
		return "", fmt.Errorf("no url in image host response")
	}
	return hostResp.URL, nil
}
