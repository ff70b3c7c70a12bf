package feed

import "time"

// SourceKind distinguishes RSS/Atom feeds from newsletter web archives
type SourceKind string

// source kinds
const (
	KindRSS        SourceKind = "rss"
	KindNewsletter SourceKind = "newsletter"
)

// Source is a configured story source
type Source struct {
	ID          int64
	URL         string
	Title       string
	Kind        SourceKind
	LastFetched *time.Time
	ErrorCount  int
	LastError   string
	Enabled     bool
	CreatedAt   time.Time
}
