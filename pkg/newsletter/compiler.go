package newsletter

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"pressbrief/pkg/config"
	"pressbrief/pkg/domain"
)

// DecorationReader loads the decorations written for an issue
type DecorationReader interface {
	GetDecorations(ctx context.Context, issueID int64) ([]*domain.Decoration, error)
}

// CompileStore persists the compiled artifact
type CompileStore interface {
	UpdateIssueCompiled(ctx context.Context, issueID int64, subject, html, plainText string) error
}

// Compiler assembles decorated slots into the final email artifact:
// HTML body plus a plain-text variant for deliverability
type Compiler struct {
	decorations DecorationReader
	issues      CompileStore
	cfg         config.NewsletterConfig
	tmpl        *template.Template
}

// NewCompiler creates the compilation stage
func NewCompiler(decorations DecorationReader, issues CompileStore, cfg config.NewsletterConfig) (*Compiler, error) {
	tmpl, err := template.New("issue").Parse(issueTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse issue template: %w", err)
	}
	return &Compiler{decorations: decorations, issues: issues, cfg: cfg, tmpl: tmpl}, nil
}

// issueData is the template context for one compiled issue
type issueData struct {
	Name    string
	Date    string
	Subject string
	Slots   []slotData
}

type slotData struct {
	Slot     int
	Headline string
	Dek      template.HTML
	Bullets  []string
	ImageURL string
	URL      string
	Source   string
}

// dekPolicy admits only the emphasis markup the decoration pass adds;
// everything else in the dek is treated as text
var dekPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("strong")
	return p
}()

// Run compiles the issue from its persisted decorations. At least one
// decorated slot is required; fewer than five is a logged warning, the
// newsletter ships partial.
func (c *Compiler) Run(ctx context.Context, issue *domain.Issue) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary("compile")
	if issue == nil {
		return nil, fmt.Errorf("no issue to compile")
	}

	decorations, err := c.decorations.GetDecorations(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("get decorations: %w", err)
	}
	if len(decorations) == 0 {
		return nil, fmt.Errorf("no decorated slots for issue %s", issue.IssueDate)
	}
	if len(decorations) < domain.SlotCount {
		lgr.Printf("[WARN] compiling issue %s with %d of %d decorated slots", issue.IssueDate, len(decorations), domain.SlotCount)
	}

	sort.Slice(decorations, func(i, j int) bool { return decorations[i].Slot < decorations[j].Slot })

	data := issueData{
		Name:    c.cfg.Name,
		Date:    issue.IssueDate,
		Subject: issue.Subject,
	}
	for _, d := range decorations {
		sd := slotData{
			Slot:     d.Slot,
			Headline: d.Headline,
			Dek:      template.HTML(dekPolicy.Sanitize(d.Dek)), //nolint:gosec // sanitized right here
			Bullets:  d.Bullets,
		}
		if d.ImageStatus == domain.ImageDone {
			sd.ImageURL = d.ImageURL
		}
		if slot := issue.Slot(d.Slot); slot != nil {
			sd.Source = slot.Source
		}
		data.Slots = append(data.Slots, sd)
		summary.Processed++
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render issue %s: %w", issue.IssueDate, err)
	}
	htmlBody := buf.String()

	plainText, err := htmlToPlainText(htmlBody)
	if err != nil {
		// plain text is a deliverability aid, not a blocker
		summary.AddError("plaintext", err)
		lgr.Printf("[WARN] plain text rendering failed for issue %s: %v", issue.IssueDate, err)
	}

	if err := c.issues.UpdateIssueCompiled(ctx, issue.ID, issue.Subject, htmlBody, plainText); err != nil {
		return nil, fmt.Errorf("save compiled issue: %w", err)
	}

	lgr.Printf("[INFO] compiled issue %s with %d slots", issue.IssueDate, len(data.Slots))
	return summary, nil
}

// htmlToPlainText walks the parsed document collecting text nodes,
// with blank lines between block elements
func htmlToPlainText(htmlBody string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "style" || n.Data == "script" || n.Data == "head" {
				return
			}
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li", "h1", "h2", "h3", "tr":
				sb.WriteString("\n")
			}
		}
	}
	walk(doc)

	// collapse runs of blank lines
	lines := strings.Split(sb.String(), "\n")
	var out []string
	blank := true
	for _, line := range lines {
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n")), nil
}

const issueTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
<style type="text/css">
  body { margin: 0; padding: 0; background-color: #f8fafc; }
  .container { max-width: 600px; margin: 0 auto; font-family: system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif; color: #1e293b; }
  .header { background-color: #0f172a; color: #ffffff; padding: 24px; text-align: center; }
  .header h1 { margin: 0; font-size: 22px; }
  .date { color: #94a3b8; font-size: 13px; margin-top: 4px; }
  .story { background-color: #ffffff; border: 1px solid #e2e8f0; border-radius: 8px; margin: 16px; padding: 20px; }
  .story h2 { margin: 0 0 8px 0; font-size: 18px; }
  .dek { color: #475569; font-size: 15px; margin: 0 0 12px 0; }
  .story img { width: 100%; height: auto; border-radius: 6px; margin-bottom: 12px; }
  .story ul { margin: 0; padding-left: 20px; }
  .story li { font-size: 14px; margin-bottom: 6px; }
  .source { color: #94a3b8; font-size: 12px; margin-top: 12px; }
  .footer { text-align: center; color: #94a3b8; font-size: 12px; padding: 24px; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>{{.Name}}</h1>
    <div class="date">{{.Date}}</div>
  </div>
{{- range .Slots}}
  <div class="story">
{{- if .ImageURL}}
    <img src="{{.ImageURL}}" alt="">
{{- end}}
    <h2>{{.Headline}}</h2>
{{- if .Dek}}
    <p class="dek">{{.Dek}}</p>
{{- end}}
{{- if .Bullets}}
    <ul>
{{- range .Bullets}}
      <li>{{.}}</li>
{{- end}}
    </ul>
{{- end}}
{{- if .Source}}
    <div class="source">via {{.Source}}</div>
{{- end}}
  </div>
{{- end}}
  <div class="footer">{{.Name}} &middot; {{.Date}}</div>
</div>
</body>
</html>`
