package newsletter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressbrief/pkg/config"
	"pressbrief/pkg/domain"
)

type stubDecorationReader struct {
	decorations []*domain.Decoration
}

func (s *stubDecorationReader) GetDecorations(_ context.Context, _ int64) ([]*domain.Decoration, error) {
	return s.decorations, nil
}

type stubCompileStore struct {
	subject   string
	html      string
	plainText string
	called    bool
}

func (s *stubCompileStore) UpdateIssueCompiled(_ context.Context, _ int64, subject, html, plainText string) error {
	s.called = true
	s.subject, s.html, s.plainText = subject, html, plainText
	return nil
}

func compiledIssue() *domain.Issue {
	return &domain.Issue{
		ID:        42,
		IssueDate: "2026-08-25",
		Subject:   "Today in AI",
		Slots: []domain.SlotAssignment{
			{Slot: 1, StoryID: "st-1", Headline: "H1", Source: "verge"},
			{Slot: 2, StoryID: "st-2", Headline: "H2", Source: "wired"},
		},
	}
}

func TestCompiler_Run(t *testing.T) {
	reader := &stubDecorationReader{decorations: []*domain.Decoration{
		{Slot: 2, StoryID: "st-2", Headline: "Second headline", Dek: "Second dek", Bullets: []string{"x", "y", "z"}},
		{Slot: 1, StoryID: "st-1", Headline: "Lead headline", Dek: "Lead dek",
			Bullets: []string{"a", "b", "c"}, ImageURL: "https://img.example.com/1.png", ImageStatus: domain.ImageDone},
	}}
	store := &stubCompileStore{}

	comp, err := NewCompiler(reader, store, config.NewsletterConfig{Name: "Pressbrief Daily"})
	require.NoError(t, err)

	summary, err := comp.Run(context.Background(), compiledIssue())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	require.True(t, store.called)

	assert.Equal(t, "Today in AI", store.subject)
	assert.Contains(t, store.html, "<!DOCTYPE html>")
	assert.Contains(t, store.html, "Pressbrief Daily")
	assert.Contains(t, store.html, "Lead headline")
	assert.Contains(t, store.html, "https://img.example.com/1.png")
	assert.Contains(t, store.html, "via verge")

	// slots render in slot order regardless of storage order
	assert.Less(t, strings.Index(store.html, "Lead headline"), strings.Index(store.html, "Second headline"))

	assert.Contains(t, store.plainText, "Lead headline")
	assert.Contains(t, store.plainText, "Second dek")
	assert.NotContains(t, store.plainText, "<h2>", "plain text variant carries no markup")
	assert.NotContains(t, store.plainText, "font-family", "css stripped from plain text")
}

func TestCompiler_DekMarkup(t *testing.T) {
	reader := &stubDecorationReader{decorations: []*domain.Decoration{
		{Slot: 1, StoryID: "st-1", Headline: "H",
			Dek: `Cuts <strong>latency</strong> by a <script>alert(1)</script> third`},
	}}
	store := &stubCompileStore{}

	comp, err := NewCompiler(reader, store, config.NewsletterConfig{Name: "Pressbrief Daily"})
	require.NoError(t, err)

	_, err = comp.Run(context.Background(), compiledIssue())
	require.NoError(t, err)
	assert.Contains(t, store.html, "<strong>latency</strong>", "emphasis markup survives")
	assert.NotContains(t, store.html, "<script>", "anything beyond emphasis is stripped")
}

func TestCompiler_PendingImageOmitted(t *testing.T) {
	reader := &stubDecorationReader{decorations: []*domain.Decoration{
		{Slot: 1, StoryID: "st-1", Headline: "H", ImageURL: "https://img.example.com/x.png", ImageStatus: domain.ImagePending},
	}}
	store := &stubCompileStore{}

	comp, err := NewCompiler(reader, store, config.NewsletterConfig{Name: "Pressbrief Daily"})
	require.NoError(t, err)

	_, err = comp.Run(context.Background(), compiledIssue())
	require.NoError(t, err)
	assert.NotContains(t, store.html, "img.example.com", "only finished images are embedded")
}

func TestCompiler_NoDecorations(t *testing.T) {
	comp, err := NewCompiler(&stubDecorationReader{}, &stubCompileStore{}, config.NewsletterConfig{Name: "Pressbrief Daily"})
	require.NoError(t, err)

	_, err = comp.Run(context.Background(), compiledIssue())
	require.Error(t, err, "at least one decorated slot required to ship")
}

func TestHTMLToPlainText(t *testing.T) {
	text, err := htmlToPlainText(`<html><head><style>.x{color:red}</style></head>
<body><h1>Title</h1><p>First para</p><ul><li>one</li><li>two</li></ul></body></html>`)
	require.NoError(t, err)

	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "First para")
	assert.Contains(t, text, "one")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "\n\n\n", "blank line runs collapsed")
}
