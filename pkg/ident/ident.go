// Package ident derives deterministic story identifiers shared as join keys
// across independently-run pipeline stages. The hash must stay bit-for-bit
// stable: any deviation silently creates duplicate articles and candidates.
package ident

import (
	"net/url"
	"strconv"
	"strings"
)

// prefixes distinguishing article-level and candidate-level identifiers.
// StoryID is a one-way prefix substitution over PivotID, not a new hash.
const (
	pivotPrefix = "pv-"
	storyPrefix = "st-"
)

// tracking query parameters stripped during URL normalization
var trackingParams = []string{"ref", "source"}

// NormalizeURL canonicalizes a URL for hashing: lowercases scheme and host,
// drops utm_*/ref/source query parameters, the fragment and trailing slashes.
// Malformed input is returned trimmed so hashing still has a stable input.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(strings.ToLower(param), "utm_") {
			q.Del(param)
			continue
		}
		for _, tracked := range trackingParams {
			if strings.EqualFold(param, tracked) {
				q.Del(param)
			}
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")
	return strings.TrimRight(u.String(), "/")
}

// PivotID derives the article identifier from URL, falling back to the raw
// title when the URL normalizes to empty. Returns "" only when both inputs
// are empty.
func PivotID(rawURL, title string) string {
	input := NormalizeURL(rawURL)
	if input == "" {
		input = strings.TrimSpace(title)
	}
	if input == "" {
		return ""
	}
	return pivotPrefix + hashBase36(input)
}

// StoryID converts a pivot id into the candidate-level identifier.
func StoryID(pivotID string) string {
	if pivotID == "" {
		return ""
	}
	return storyPrefix + strings.TrimPrefix(pivotID, pivotPrefix)
}

// hashBase36 is DJB2 (seed 5381, h = h*33 + c mod 2^32) rendered in base-36
func hashBase36(s string) string {
	var h uint32 = 5381
	for _, c := range s {
		h = h*33 + uint32(c)
	}
	return strconv.FormatUint(uint64(h), 36)
}
