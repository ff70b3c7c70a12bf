package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FallbackClient talks to a secondary OpenAI-compatible image endpoint
type FallbackClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewFallbackClient creates a client for the fallback image endpoint
func NewFallbackClient(endpoint, apiKey string, timeout time.Duration) *FallbackClient {
	return &FallbackClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type fallbackRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type fallbackResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url,omitempty"`
	} `json:"data"`
}

// Generate requests one image from the fallback endpoint and returns its bytes
func (c *FallbackClient) Generate(ctx context.Context, prompt, size string) ([]byte, error) {
	reqBody, err := json.Marshal(fallbackRequest{
		Prompt:         prompt,
		N:              1,
		Size:           size,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/images/generations", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fallback image request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fallback image api error (status %d): %s", resp.StatusCode, string(body))
	}

	var imgResp fallbackResponse
	if err := json.Unmarshal(body, &imgResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(imgResp.Data) == 0 || imgResp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data in fallback response")
	}

	data, err := base64.StdEncoding.DecodeString(imgResp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	return data, nil
}
