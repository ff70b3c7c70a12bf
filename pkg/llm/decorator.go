package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pressbrief/pkg/domain"
)

// Decorator produces the editorial copy for a selected story
type Decorator struct {
	client *Client
}

// NewDecorator creates a story decorator on top of the shared client
func NewDecorator(client *Client) *Decorator {
	return &Decorator{client: client}
}

const cleanSystemPrompt = `You condense raw article text for a newsletter editor.
Rewrite the text as tight, factual prose. Keep every concrete fact, number and name.
Drop boilerplate, navigation fragments, author bios and promotional material.
Respond with the condensed text only, no preamble.`

const decorateSystemPrompt = `You write the editorial copy for one story in a daily AI industry newsletter.
Respond with a JSON object containing exactly these fields:
- headline: punchy rewrite of the story headline, under 80 chars, no clickbait
- dek: one-sentence standfirst expanding on the headline
- bullets: array of exactly 3 strings, each one concrete takeaway from the story
- image_prompt: a short prompt for an editorial illustration of the story, no text in the image, no real people
- topic: one or two lowercase words naming the story's topic`

const emphasizeSystemPrompt = `You mark up newsletter copy for emphasis.
Wrap the two or three most important phrases in <strong> tags.
Change nothing else: no rewording, no added or removed text, no other tags.
Respond with the marked-up text only.`

// Copy is the decorated editorial content for one story
type Copy struct {
	Headline    string   `json:"headline"`
	Dek         string   `json:"dek"`
	Bullets     []string `json:"bullets"`
	ImagePrompt string   `json:"image_prompt"`
	Topic       string   `json:"topic"`
}

// Clean condenses raw extracted article text before decoration
func (d *Decorator) Clean(ctx context.Context, title, text string) (string, error) {
	prompt := fmt.Sprintf("Title: %s\n\nText:\n%s", title, text)
	content, err := d.client.complete(ctx, cleanSystemPrompt, prompt, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// Decorate writes headline, dek, bullets, image prompt and topic for
// the story. Malformed output is retried, a wrong bullet count counts
// as malformed.
func (d *Decorator) Decorate(ctx context.Context, story domain.Candidate, cleanedText string) (Copy, error) {
	prompt := d.buildPrompt(story, cleanedText)

	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		content, err := d.client.complete(ctx, decorateSystemPrompt, prompt, true)
		if err != nil {
			return Copy{}, err
		}

		cp, err := d.parseResponse(content)
		if err == nil {
			return cp, nil
		}
		lastErr = err
		if isParseError(err) {
			continue
		}
		return Copy{}, err
	}

	return Copy{}, fmt.Errorf("failed after %d attempts: %w", maxParseAttempts, lastErr)
}

// Emphasize adds <strong> markup to the most important phrases of the
// text. The original text is the fallback: a response that reads as a
// rewrite rather than markup is rejected.
func (d *Decorator) Emphasize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	content, err := d.client.complete(ctx, emphasizeSystemPrompt, text, false)
	if err != nil {
		return "", err
	}
	marked := strings.TrimSpace(content)
	plain := strings.ReplaceAll(strings.ReplaceAll(marked, "<strong>", ""), "</strong>", "")
	if plain != strings.TrimSpace(text) {
		return "", fmt.Errorf("emphasis response altered the text")
	}
	return marked, nil
}

func (d *Decorator) buildPrompt(story domain.Candidate, cleanedText string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Headline: %s\n", story.Headline))
	sb.WriteString(fmt.Sprintf("Source: %s\n", story.Source))
	if story.Company != "" {
		sb.WriteString(fmt.Sprintf("Company: %s\n", story.Company))
	}
	sb.WriteString(fmt.Sprintf("URL: %s\n\n", story.URL))
	if cleanedText != "" {
		sb.WriteString("Story text:\n")
		sb.WriteString(cleanedText)
		sb.WriteString("\n\n")
	} else if story.Summary != "" {
		sb.WriteString("Summary:\n")
		sb.WriteString(story.Summary)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Write the editorial copy as a JSON object.")
	return sb.String()
}

func (d *Decorator) parseResponse(content string) (Copy, error) {
	jsonStr, err := extractJSONObject(content)
	if err != nil {
		return Copy{}, err
	}

	var cp Copy
	if err := json.Unmarshal([]byte(jsonStr), &cp); err != nil {
		return Copy{}, fmt.Errorf("failed to parse json object response: %w", err)
	}

	cp.Headline = strings.TrimSpace(cp.Headline)
	cp.Dek = strings.TrimSpace(cp.Dek)
	if cp.Headline == "" {
		return Copy{}, fmt.Errorf("failed to parse json object response: empty headline")
	}
	if len(cp.Bullets) < 3 {
		return Copy{}, fmt.Errorf("failed to parse json object response: got %d bullets, want 3", len(cp.Bullets))
	}
	cp.Bullets = cp.Bullets[:3]
	for i := range cp.Bullets {
		cp.Bullets[i] = strings.TrimSpace(cp.Bullets[i])
	}
	cp.Topic = strings.ToLower(strings.TrimSpace(cp.Topic))
	return cp, nil
}
