package domain

import "time"

// IssueStatus tracks an issue through the pipeline.
type IssueStatus string

// issue statuses, advanced strictly forward by the pipeline stages
const (
	IssuePending   IssueStatus = "pending"
	IssueDecorated IssueStatus = "decorated"
	IssueCompiled  IssueStatus = "compiled"
	IssueNextSend  IssueStatus = "next-send"
	IssueSent      IssueStatus = "sent"
)

// SlotCount is the fixed number of editorial positions in a daily issue.
const SlotCount = 5

// SlotAssignment binds one story to one slot within an issue.
type SlotAssignment struct {
	Slot     int
	StoryID  string
	PivotID  string
	Headline string
	Source   string
	Company  string
}

// Issue is the selection for one newsletter delivery: up to five slot
// assignments, a subject line and an issue date. At most one issue exists
// per date; a partially filled issue is a valid terminal state.
type Issue struct {
	ID        int64
	IssueDate string // YYYY-MM-DD
	Subject   string
	Status    IssueStatus
	Slots     []SlotAssignment
	HTML      string
	PlainText string
	Receipt   string
	SentCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot returns the assignment for the given slot number, nil if unfilled.
func (i *Issue) Slot(n int) *SlotAssignment {
	for idx := range i.Slots {
		if i.Slots[idx].Slot == n {
			return &i.Slots[idx]
		}
	}
	return nil
}

// StoryIDs returns the story ids across all filled slots, in slot order.
func (i *Issue) StoryIDs() []string {
	ids := make([]string, 0, len(i.Slots))
	for _, s := range i.Slots {
		ids = append(ids, s.StoryID)
	}
	return ids
}

// Decoration holds generated reader-facing content for one selected story.
// Only the status fields may change after creation.
type Decoration struct {
	ID           int64
	IssueID      int64
	StoryID      string
	Slot         int
	Headline     string
	Dek          string
	Bullets      []string
	ImagePrompt  string
	ImageURL     string
	ImageStatus  ImageStatus
	SocialStatus SocialStatus
	Topic        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ImageStatus tracks the image generation side effect for a decoration.
type ImageStatus string

// image generation statuses
const (
	ImagePending ImageStatus = "pending"
	ImageDone    ImageStatus = "done"
	ImageFailed  ImageStatus = "failed"
)

// SocialStatus tracks the social syndication side effect for a decoration.
type SocialStatus string

// social syndication statuses
const (
	SocialNone   SocialStatus = "none"
	SocialQueued SocialStatus = "queued"
	SocialPosted SocialStatus = "posted"
)
