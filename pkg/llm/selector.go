package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/slots"
)

// ErrOutOfPool reports a judge that picked a story not present in the
// offered pool. Callers fall back to deterministic selection.
var ErrOutOfPool = errors.New("selected story not in pool")

// ErrNonePicked reports a judge that explicitly declined every candidate
var ErrNonePicked = errors.New("no story picked for slot")

// SelectJudge makes the final pick for a single slot
type SelectJudge struct {
	client *Client
}

// NewSelectJudge creates a slot selection judge on top of the shared client
func NewSelectJudge(client *Client) *SelectJudge {
	return &SelectJudge{client: client}
}

const selectSystemPrompt = `You are the lead editor of a daily AI industry newsletter making the final pick for one slot.
Pick the single strongest story for the slot's focus from the offered pool.
Hard constraints, never break them:
- never pick a story about a company already featured in today's issue
- never pick a story from a source listed as exhausted
If nothing in the pool satisfies the slot and the constraints, answer "none".
Respond with a JSON object: {"story_id": "<id or none>", "reason": "<one sentence>"}.`

// Selection is the judge's answer for one slot
type Selection struct {
	StoryID string `json:"story_id"`
	Reason  string `json:"reason"`
}

// Select asks the judge to pick one story from pool for the slot. Returns
// ErrNonePicked when the judge declines, and ErrOutOfPool when the judge
// answers with an ID outside the pool.
func (j *SelectJudge) Select(ctx context.Context, slot slots.Definition, pool []domain.Candidate, state *domain.SelectionState) (Selection, error) {
	if len(pool) == 0 {
		return Selection{}, ErrNonePicked
	}

	prompt := j.buildPrompt(slot, pool, state)

	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		content, err := j.client.complete(ctx, selectSystemPrompt, prompt, true)
		if err != nil {
			return Selection{}, err
		}

		sel, err := j.parseResponse(content)
		if err == nil {
			return j.validate(sel, pool)
		}
		lastErr = err
		if isParseError(err) {
			continue
		}
		return Selection{}, err
	}

	return Selection{}, fmt.Errorf("failed after %d attempts: %w", maxParseAttempts, lastErr)
}

func (j *SelectJudge) buildPrompt(slot slots.Definition, pool []domain.Candidate, state *domain.SelectionState) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Slot %d (%s): %s\n\n", slot.Slot, slot.Name, slot.Focus))

	if companies := state.UsedCompanies(); len(companies) > 0 {
		sb.WriteString("Companies already featured today: " + strings.Join(companies, ", ") + "\n")
	}
	if exhausted := state.ExhaustedSources(); len(exhausted) > 0 {
		sb.WriteString("Exhausted sources: " + strings.Join(exhausted, ", ") + "\n")
	}
	sb.WriteString("\nPool:\n\n")

	for i, c := range pool {
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
		sb.WriteString(fmt.Sprintf("   Score: %.1f\n\n", c.Score))
	}

	sb.WriteString(`Respond with a JSON object: {"story_id": "...", "reason": "..."}.`)
	return sb.String()
}

func (j *SelectJudge) parseResponse(content string) (Selection, error) {
	jsonStr, err := extractJSONObject(content)
	if err != nil {
		return Selection{}, err
	}

	var sel Selection
	if err := json.Unmarshal([]byte(jsonStr), &sel); err != nil {
		return Selection{}, fmt.Errorf("failed to parse json object response: %w", err)
	}
	return sel, nil
}

func (j *SelectJudge) validate(sel Selection, pool []domain.Candidate) (Selection, error) {
	id := strings.TrimSpace(sel.StoryID)
	if id == "" || strings.EqualFold(id, "none") {
		return Selection{Reason: sel.Reason}, ErrNonePicked
	}
	for _, c := range pool {
		if c.StoryID == id {
			sel.StoryID = id
			return sel, nil
		}
	}
	return Selection{}, fmt.Errorf("%w: %s", ErrOutOfPool, id)
}
