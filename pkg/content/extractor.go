package content

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
)

// HTTPExtractor fetches a story URL and pulls the readable article text
// out of the page with trafilatura. Results below minTextLength are
// rejected so navigation-only pages don't end up as article content.
type HTTPExtractor struct {
	client        *http.Client
	userAgent     string
	minTextLength int
}

// NewHTTPExtractor creates an extractor with the given fetch timeout.
// minTextLength of 0 disables the length check.
func NewHTTPExtractor(timeout time.Duration, userAgent string, minTextLength int) *HTTPExtractor {
	return &HTTPExtractor{
		client:        &http.Client{Timeout: timeout},
		userAgent:     userAgent,
		minTextLength: minTextLength,
	}
}

// Extract downloads the page and returns its main text content.
func (e *HTTPExtractor) Extract(ctx context.Context, urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", urlStr)
	}

	body, err := e.fetch(ctx, urlStr)
	if err != nil {
		return "", err
	}
	defer body.Close()

	result, err := trafilatura.Extract(body, trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsed,
	})
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", urlStr)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return "", fmt.Errorf("no text content extracted from %s", urlStr)
	}
	if e.minTextLength > 0 && len(text) < e.minTextLength {
		return "", fmt.Errorf("extracted content too short (%d chars) from %s", len(text), urlStr)
	}
	return text, nil
}

func (e *HTTPExtractor) fetch(ctx context.Context, urlStr string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	addBrowserHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}
	return resp.Body, nil
}

// languages rotated into Accept-Language so article fetches don't all look
// like the same client
var languages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.9,de;q=0.8",
	"en-US,en;q=0.9,fr;q=0.8",
}

// addBrowserHeaders makes the request look like a regular browser; some
// publishers serve stripped pages to obvious bots
func addBrowserHeaders(req *http.Request) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", languages[rand.Intn(len(languages))]) //nolint:gosec // non-cryptographic randomness is fine here
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Connection", "keep-alive")
}
