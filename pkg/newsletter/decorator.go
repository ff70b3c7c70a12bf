package newsletter

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/config"
	"pressbrief/pkg/content"
	"pressbrief/pkg/domain"
	"pressbrief/pkg/llm"
)

// CopyJudge produces editorial copy for a selected story
type CopyJudge interface {
	Clean(ctx context.Context, title, text string) (string, error)
	Decorate(ctx context.Context, story domain.Candidate, cleanedText string) (llm.Copy, error)
	Emphasize(ctx context.Context, text string) (string, error)
}

// ArticleDetailStore resolves a single article by pivot id
type ArticleDetailStore interface {
	GetArticleByPivotID(ctx context.Context, pivotID string) (*domain.Article, error)
}

// DecorationStore persists decorations independently per slot
type DecorationStore interface {
	UpsertDecoration(ctx context.Context, d *domain.Decoration) error
}

// StatusStore advances issue status
type StatusStore interface {
	UpdateIssueStatus(ctx context.Context, issueID int64, status domain.IssueStatus) error
}

// Decorator generates reader-facing copy for each filled slot. A failure
// on one slot never aborts the others; each decoration is persisted as
// soon as it is ready.
type Decorator struct {
	judge       CopyJudge
	articles    ArticleDetailStore
	decorations DecorationStore
	issues      StatusStore
	cfg         config.NewsletterConfig
}

// NewDecorator creates the decoration stage
func NewDecorator(judge CopyJudge, articles ArticleDetailStore, decorations DecorationStore, issues StatusStore, cfg config.NewsletterConfig) *Decorator {
	return &Decorator{judge: judge, articles: articles, decorations: decorations, issues: issues, cfg: cfg}
}

// Run decorates every filled slot of the issue and advances it to
// decorated when at least one slot succeeded
func (d *Decorator) Run(ctx context.Context, issue *domain.Issue) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary("decorate")
	if issue == nil || len(issue.Slots) == 0 {
		return nil, fmt.Errorf("no slots to decorate")
	}
	if len(issue.Slots) < domain.SlotCount {
		lgr.Printf("[WARN] decorating partial issue %s with %d of %d slots", issue.IssueDate, len(issue.Slots), domain.SlotCount)
	}

	for _, slot := range issue.Slots {
		if err := d.decorateSlot(ctx, issue, slot, summary); err != nil {
			summary.AddError(fmt.Sprintf("slot %d", slot.Slot), err)
			lgr.Printf("[WARN] failed to decorate slot %d (%s): %v", slot.Slot, slot.StoryID, err)
			continue
		}
		summary.Processed++
	}

	if summary.Processed > 0 {
		if err := d.issues.UpdateIssueStatus(ctx, issue.ID, domain.IssueDecorated); err != nil {
			return nil, fmt.Errorf("update issue status: %w", err)
		}
	}
	return summary, nil
}

func (d *Decorator) decorateSlot(ctx context.Context, issue *domain.Issue, slot domain.SlotAssignment, summary *domain.RunSummary) error {
	story := domain.Candidate{
		StoryID:  slot.StoryID,
		PivotID:  slot.PivotID,
		Headline: slot.Headline,
		Source:   slot.Source,
		Company:  slot.Company,
	}

	var rawContent string
	if slot.PivotID != "" {
		article, err := d.articles.GetArticleByPivotID(ctx, slot.PivotID)
		if err != nil {
			lgr.Printf("[WARN] no article detail for %s: %v", slot.PivotID, err)
		} else {
			rawContent = article.Content
			story.URL = article.URL
			story.Summary = article.Summary
		}
	}

	cleaned := d.cleanContent(ctx, slot, rawContent, summary)

	cp, err := d.judge.Decorate(ctx, story, cleaned)
	if err != nil {
		// deterministic fallback, never block the issue on copy generation
		summary.AddError(fmt.Sprintf("slot %d copy", slot.Slot), err)
		lgr.Printf("[WARN] copy judge failed for slot %d, using fallback: %v", slot.Slot, err)
		cp = llm.Copy{
			Headline: slot.Headline,
			Dek:      content.Truncate(firstNonEmpty(story.Summary, cleaned), 280),
		}
	}

	// emphasis is cosmetic, the plain dek stands when the pass fails
	if marked, err := d.judge.Emphasize(ctx, cp.Dek); err != nil {
		lgr.Printf("[WARN] emphasis pass failed for slot %d, keeping plain dek: %v", slot.Slot, err)
	} else {
		cp.Dek = marked
	}

	dec := &domain.Decoration{
		IssueID:      issue.ID,
		StoryID:      slot.StoryID,
		Slot:         slot.Slot,
		Headline:     cp.Headline,
		Dek:          cp.Dek,
		Bullets:      cp.Bullets,
		ImagePrompt:  cp.ImagePrompt,
		ImageStatus:  domain.ImagePending,
		SocialStatus: domain.SocialNone,
		Topic:        cp.Topic,
	}
	if cp.ImagePrompt == "" {
		dec.ImageStatus = domain.ImageFailed
	}

	if err := d.decorations.UpsertDecoration(ctx, dec); err != nil {
		return fmt.Errorf("persist decoration: %w", err)
	}
	return nil
}

// cleanContent condenses raw article text, falling back to truncation
// when the cleaning pass fails
func (d *Decorator) cleanContent(ctx context.Context, slot domain.SlotAssignment, rawContent string, summary *domain.RunSummary) string {
	if rawContent == "" {
		return ""
	}

	cleaned, err := d.judge.Clean(ctx, slot.Headline, content.Truncate(rawContent, d.cfg.CleanMaxChars*2))
	if err != nil {
		summary.AddError(fmt.Sprintf("slot %d clean", slot.Slot), err)
		lgr.Printf("[WARN] clean pass failed for slot %d, truncating raw content: %v", slot.Slot, err)
		return content.Truncate(rawContent, d.cfg.CleanMaxChars)
	}
	return cleaned
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
