package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pressbrief/pkg/domain"
)

// Scraper extracts story links from newsletter web archives that expose no
// machine-readable feed.
type Scraper struct {
	client    *http.Client
	userAgent string
}

// NewScraper creates a new newsletter archive scraper
func NewScraper(timeout time.Duration, userAgent string) *Scraper {
	return &Scraper{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Scrape fetches a newsletter archive page and extracts outbound story
// links with their anchor text as titles. Publication time is unknown for
// scraped stories, so the fetch time is used.
func (s *Scraper) Scrape(ctx context.Context, src Source) ([]domain.ParsedStory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse archive html: %w", err)
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse archive url: %w", err)
	}

	now := time.Now()
	seen := make(map[string]bool)
	var stories []domain.ParsedStory

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" || len(title) < 20 {
			// navigation links and icons, not story headlines
			return
		}

		link, err := base.Parse(href)
		if err != nil || (link.Scheme != "http" && link.Scheme != "https") {
			return
		}
		// skip same-site navigation, keep outbound story links
		if link.Host == base.Host {
			return
		}

		abs := link.String()
		if seen[abs] {
			return
		}
		seen[abs] = true

		stories = append(stories, domain.ParsedStory{
			Title:     title,
			URL:       abs,
			Source:    src.Title,
			Published: now,
		})
	})

	return stories, nil
}
