package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pressbrief/pkg/domain"
)

// Scorer rates ingested articles for newsletter interest
type Scorer struct {
	client *Client
}

// NewScorer creates an article scorer on top of the shared client
func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

// Score is a single article rating returned by the model
type Score struct {
	PivotID       string  `json:"pivot_id"`
	InterestScore float64 `json:"interest_score"`
	TopicScore    float64 `json:"topic_score"`
	Company       string  `json:"company"`
	Summary       string  `json:"summary"`
}

const scorerSystemPrompt = `You are an editor for a daily AI industry newsletter.
Rate each article from 0-10 on two axes:
- interest_score: how compelling this story is for a professional audience tracking the AI industry. 0-3 not newsworthy, 4-6 worth a mention, 7-8 strong story, 9-10 must-cover.
- topic_score: how squarely the story sits in the newsletter's beat (AI models, research, tooling, infrastructure, industry moves). 0 means off-beat.

Each rating must contain:
- pivot_id: the article's pivot_id, exactly as given
- interest_score: 0-10
- topic_score: 0-10
- company: the single company or lab the story is primarily about, lowercase, or "" if none dominates
- summary: 2-3 sentences capturing the concrete development. Start with the subject matter itself, never with "The article" or "This piece".`

// Score rates a batch of articles. Ratings for unknown pivot IDs are
// dropped, scores are clamped to 0-10, and malformed output is retried.
func (s *Scorer) Score(ctx context.Context, articles []domain.Article) ([]Score, error) {
	if len(articles) == 0 {
		return []Score{}, nil
	}

	prompt := s.buildPrompt(articles)

	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		content, err := s.client.complete(ctx, scorerSystemPrompt, prompt, false)
		if err != nil {
			return nil, err
		}

		scores, err := s.parseResponse(content, articles)
		if err == nil {
			return scores, nil
		}
		lastErr = err
		if isParseError(err) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxParseAttempts, lastErr)
}

func (s *Scorer) buildPrompt(articles []domain.Article) string {
	var sb strings.Builder
	sb.WriteString("Rate these articles:\n\n")
	for i, a := range articles {
		sb.WriteString(fmt.Sprintf("%d. pivot_id: %s\n", i+1, a.PivotID))
		sb.WriteString(fmt.Sprintf("   Title: %s\n", a.Title))
		sb.WriteString(fmt.Sprintf("   Source: %s\n", a.Source))
		if a.Summary != "" {
			sb.WriteString(fmt.Sprintf("   Summary: %s\n", a.Summary))
		}
		if a.Content != "" {
			content := a.Content
			if len(content) > 500 {
				content = content[:500] + "..."
			}
			sb.WriteString(fmt.Sprintf("   Content: %s\n", content))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Respond with a JSON array of rating objects.")
	return sb.String()
}

func (s *Scorer) parseResponse(content string, articles []domain.Article) ([]Score, error) {
	jsonStr, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var scores []Score
	if err := json.Unmarshal([]byte(jsonStr), &scores); err != nil {
		return nil, fmt.Errorf("failed to parse json array response: %w", err)
	}

	known := make(map[string]bool, len(articles))
	for _, a := range articles {
		known[a.PivotID] = true
	}

	var valid []Score
	for _, sc := range scores {
		if !known[sc.PivotID] {
			continue
		}
		sc.InterestScore = clampScore(sc.InterestScore)
		sc.TopicScore = clampScore(sc.TopicScore)
		sc.Company = strings.ToLower(strings.TrimSpace(sc.Company))
		valid = append(valid, sc)
	}
	return valid, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
