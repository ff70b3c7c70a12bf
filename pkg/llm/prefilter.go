package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/slots"
)

// PreFilterJudge narrows the candidate pool to stories worth considering
// for a specific slot
type PreFilterJudge struct {
	client *Client
}

// NewPreFilterJudge creates a pre-filter judge on top of the shared client
func NewPreFilterJudge(client *Client) *PreFilterJudge {
	return &PreFilterJudge{client: client}
}

const preFilterSystemPrompt = `You are an editor for a daily AI industry newsletter.
Each issue has five fixed slots, and you pre-screen candidate stories for one slot at a time.
Select every story that genuinely fits the slot's focus. Be inclusive at this stage; a later pass makes the final pick.
Drop stories that duplicate recently covered material.
Respond with a JSON array of the selected story_id strings, nothing else.`

// Filter returns the story IDs from candidates suitable for the slot.
// IDs the model invents are silently dropped; an empty selection is a
// valid outcome.
func (j *PreFilterJudge) Filter(ctx context.Context, slot slots.Definition, candidates []domain.Candidate, recentHeadlines []string) ([]string, error) {
	if len(candidates) == 0 {
		return []string{}, nil
	}

	prompt := j.buildPrompt(slot, candidates, recentHeadlines)

	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		content, err := j.client.complete(ctx, preFilterSystemPrompt, prompt, false)
		if err != nil {
			return nil, err
		}

		ids, err := j.parseResponse(content, candidates)
		if err == nil {
			return ids, nil
		}
		lastErr = err
		if isParseError(err) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxParseAttempts, lastErr)
}

func (j *PreFilterJudge) buildPrompt(slot slots.Definition, candidates []domain.Candidate, recentHeadlines []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Slot %d (%s): %s\n\n", slot.Slot, slot.Name, slot.Focus))

	if len(recentHeadlines) > 0 {
		sb.WriteString("Recently covered (skip duplicates of these):\n")
		for _, h := range recentHeadlines {
			sb.WriteString("- " + h + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Candidate stories:\n\n")
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("%d. story_id: %s\n", i+1, c.StoryID))
		sb.WriteString(fmt.Sprintf("   Headline: %s\n", c.Headline))
		sb.WriteString(fmt.Sprintf("   Source: %s\n", c.Source))
		if age := formatAge(c.Published); age != "" {
			sb.WriteString(fmt.Sprintf("   Age: %s\n", age))
		}
		if c.Company != "" {
			sb.WriteString(fmt.Sprintf("   Company: %s\n", c.Company))
		}
		if c.Summary != "" {
			sb.WriteString(fmt.Sprintf("   Summary: %s\n", c.Summary))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Respond with a JSON array of story_id strings for this slot.")
	return sb.String()
}

// formatAge renders hours since publication for the judge prompts, "" for
// stories without a publication time
func formatAge(published time.Time) string {
	if published.IsZero() {
		return ""
	}
	hours := int(time.Since(published).Hours())
	if hours < 0 {
		hours = 0
	}
	return fmt.Sprintf("%dh", hours)
}

func (j *PreFilterJudge) parseResponse(content string, candidates []domain.Candidate) ([]string, error) {
	jsonStr, err := extractJSONArray(content)
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal([]byte(jsonStr), &ids); err != nil {
		return nil, fmt.Errorf("failed to parse json array response: %w", err)
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.StoryID] = true
	}

	valid := make([]string, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range ids {
		if known[id] && !seen[id] {
			valid = append(valid, id)
			seen[id] = true
		}
	}
	return valid, nil
}
