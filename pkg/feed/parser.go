package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"pressbrief/pkg/domain"
)

// Parser parses RSS/Atom feeds into raw stories
type Parser struct {
	client    *http.Client
	userAgent string
}

// NewParser creates a new feed parser
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Parse fetches a feed and converts its items into raw stories
func (p *Parser) Parse(ctx context.Context, src Source) ([]domain.ParsedStory, error) {
	body, err := p.fetch(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	parser := gofeed.NewParser()
	parsed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := src.Title
	if source == "" {
		source = parsed.Title
	}

	stories := make([]domain.ParsedStory, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		story := domain.ParsedStory{
			Title:   item.Title,
			URL:     item.Link,
			Summary: item.Description,
			Source:  source,
		}

		// set published time
		if item.PublishedParsed != nil {
			story.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			story.Published = *item.UpdatedParsed
		}

		stories = append(stories, story)
	}

	return stories, nil
}

// fetch retrieves content from a URL
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)

	// add browser-like headers
	addBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// addBrowserHeaders makes feed fetches look like a regular client; some
// publishers rate-limit or block obvious scripted readers
func addBrowserHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,text/html;q=0.7,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")
}
