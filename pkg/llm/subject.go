package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pressbrief/pkg/domain"
)

// SubjectWriter writes the issue's email subject line
type SubjectWriter struct {
	client *Client
}

// NewSubjectWriter creates a subject writer on top of the shared client
func NewSubjectWriter(client *Client) *SubjectWriter {
	return &SubjectWriter{client: client}
}

const subjectSystemPrompt = `You write the email subject line for a daily AI industry newsletter.
The subject leads with the day's top story and must read differently from recent subjects.
Keep it under 70 characters, no emoji, no "Newsletter:" prefix.
Respond with a JSON object: {"subject": "..."}.`

// Subject writes a subject line from the issue's slot assignments,
// steering away from the recently used subjects
func (w *SubjectWriter) Subject(ctx context.Context, assignments []domain.SlotAssignment, recentSubjects []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Today's stories, lead first:\n")
	for _, a := range assignments {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", a.Slot, a.Headline, a.Source))
	}
	if len(recentSubjects) > 0 {
		sb.WriteString("\nRecent subjects, do not repeat their phrasing:\n")
		for _, s := range recentSubjects {
			sb.WriteString("- " + s + "\n")
		}
	}
	sb.WriteString("\nWrite the subject line as a JSON object.")

	var lastErr error
	for attempt := 0; attempt < maxParseAttempts; attempt++ {
		content, err := w.client.complete(ctx, subjectSystemPrompt, sb.String(), true)
		if err != nil {
			return "", err
		}

		subject, err := parseSubject(content)
		if err == nil {
			return subject, nil
		}
		lastErr = err
		if isParseError(err) {
			continue
		}
		return "", err
	}

	return "", fmt.Errorf("failed after %d attempts: %w", maxParseAttempts, lastErr)
}

func parseSubject(content string) (string, error) {
	jsonStr, err := extractJSONObject(content)
	if err != nil {
		return "", err
	}

	var resp struct {
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return "", fmt.Errorf("failed to parse json object response: %w", err)
	}
	subject := strings.TrimSpace(resp.Subject)
	if subject == "" {
		return "", fmt.Errorf("failed to parse json object response: empty subject")
	}
	return subject, nil
}
