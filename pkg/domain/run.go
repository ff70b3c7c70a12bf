package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ItemError records a non-fatal failure for a single item during a stage run.
type ItemError struct {
	Item string
	Err  error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

// RunSummary is returned by every pipeline stage instead of failing on
// partial errors. Only structural preconditions abort a run.
type RunSummary struct {
	RunID     string
	Stage     string
	Processed int
	Skipped   int
	Failed    int
	Errors    []ItemError
}

// NewRunSummary creates a summary for one stage run with a unique run id,
// used to correlate log lines from the same run.
func NewRunSummary(stage string) *RunSummary {
	return &RunSummary{RunID: uuid.NewString(), Stage: stage}
}

// AddError records a per-item failure and bumps the failed counter.
func (r *RunSummary) AddError(item string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, ItemError{Item: item, Err: err})
}

// String renders a one-line operator-friendly summary.
func (r *RunSummary) String() string {
	s := fmt.Sprintf("%s: processed=%d skipped=%d failed=%d", r.Stage, r.Processed, r.Skipped, r.Failed)
	if len(r.Errors) > 0 {
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Error()
		}
		s += " [" + strings.Join(msgs, "; ") + "]"
	}
	return s
}

// SelectionResult is the outcome kind of one slot selection.
type SelectionResult int

// selection outcomes, forcing callers to handle the no-pick cases
const (
	Selected SelectionResult = iota
	NoneEligible
	JudgeRejected
	JudgeFailed
)

// SelectionOutcome reports what happened for a single slot during selection.
type SelectionOutcome struct {
	Result SelectionResult
	Slot   int
	Story  *Candidate
	Reason string
}

// SelectionState is the ephemeral cumulative state of one selector run.
// It is never persisted; it exists only to enforce diversity constraints
// across slots within a single run.
type SelectionState struct {
	SelectedIDs  map[string]bool
	Companies    map[string]bool
	SourceCounts map[string]int
}

// NewSelectionState creates empty cumulative state for a selector run.
func NewSelectionState() *SelectionState {
	return &SelectionState{
		SelectedIDs:  make(map[string]bool),
		Companies:    make(map[string]bool),
		SourceCounts: make(map[string]int),
	}
}

// MaxPerSource caps how many slots a single source may fill in one issue.
const MaxPerSource = 2

// Record updates cumulative state with a confirmed pick. Company matching is
// exact-string on judge-extracted names, no canonicalization; the diversity
// rule is best-effort, not a hard guarantee.
func (s *SelectionState) Record(c *Candidate) {
	s.SelectedIDs[c.StoryID] = true
	if company := strings.TrimSpace(c.Company); company != "" {
		s.Companies[company] = true
	}
	if c.Source != "" {
		s.SourceCounts[c.Source]++
	}
}

// ExhaustedSources returns sources already used MaxPerSource times.
func (s *SelectionState) ExhaustedSources() []string {
	var out []string
	for src, n := range s.SourceCounts {
		if n >= MaxPerSource {
			out = append(out, src)
		}
	}
	return out
}

// UsedCompanies returns companies featured so far in this run.
func (s *SelectionState) UsedCompanies() []string {
	out := make([]string, 0, len(s.Companies))
	for c := range s.Companies {
		out = append(out, c)
	}
	return out
}
