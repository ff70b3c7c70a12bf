package domain

import "time"

// Candidate is an article that cleared the interest threshold and competes
// for a newsletter slot. Read-only for pre-filter and selection stages.
type Candidate struct {
	ID        int64
	StoryID   string
	PivotID   string
	Headline  string
	URL       string
	Summary   string
	Source    string
	Company   string
	Score     float64
	Published time.Time
	CreatedAt time.Time

	// Queued marks a manually queued story, which takes priority over
	// freshly scored candidates during aggregation.
	Queued bool

	// Credibility is resolved during aggregation from source ranks.
	Credibility float64
}

// QueuedStory is a manually queued candidate awaiting aggregation.
type QueuedStory struct {
	ID        int64
	StoryID   string
	PivotID   string
	Headline  string
	URL       string
	Source    string
	Note      string
	CreatedAt time.Time
	Consumed  bool
}

// PreFilterEntry records that a candidate was judged eligible for a slot.
// Multiple entries per story (one per eligible slot) are expected; the
// (story_id, slot) pair is the upsert key.
type PreFilterEntry struct {
	ID        int64
	StoryID   string
	Slot      int
	Headline  string
	Source    string
	Company   string
	URL       string
	Published time.Time
	RunDate   string // YYYY-MM-DD of the pre-filter run
	CreatedAt time.Time
}
