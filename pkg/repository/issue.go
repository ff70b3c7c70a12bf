package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"pressbrief/pkg/domain"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// IssueRepository handles issue-related database operations
type IssueRepository struct {
	db *sqlx.DB
}

// issueSQL represents an issue for SQL operations
type issueSQL struct {
	ID        int64     `db:"id"`
	IssueDate string    `db:"issue_date"`
	Subject   string    `db:"subject"`
	Status    string    `db:"status"`
	Slots     slotsSQL  `db:"slots"`
	HTML      string    `db:"html"`
	PlainText string    `db:"plain_text"`
	Receipt   string    `db:"receipt"`
	SentCount int       `db:"sent_count"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// slotsSQL is a JSON array of slot assignments for SQL operations
type slotsSQL []domain.SlotAssignment

// Value implements driver.Valuer for database storage
func (s slotsSQL) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval
func (s *slotsSQL) Scan(value interface{}) error {
	if value == nil {
		*s = slotsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return json.Unmarshal([]byte("[]"), s)
	}

	return json.Unmarshal(data, s)
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(database *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: database}
}

// SaveIssue creates or replaces the issue for its date. The issue_date
// unique constraint enforces at most one issue per delivery day.
func (r *IssueRepository) SaveIssue(ctx context.Context, issue *domain.Issue) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO issues (issue_date, subject, status, slots)
			VALUES (:issue_date, :subject, :status, :slots)
			ON CONFLICT(issue_date) DO UPDATE SET
				subject = excluded.subject,
				status = excluded.status,
				slots = excluded.slots,
				updated_at = datetime('now')
		`
		sqlIssue := &issueSQL{
			IssueDate: issue.IssueDate,
			Subject:   issue.Subject,
			Status:    string(issue.Status),
			Slots:     slotsSQL(issue.Slots),
		}
		if _, err := r.db.NamedExecContext(ctx, query, sqlIssue); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("save issue: %w", err)}
		}

		// fetch the id so callers can reference the stored row
		var id int64
		if err := r.db.GetContext(ctx, &id, "SELECT id FROM issues WHERE issue_date = ?", issue.IssueDate); err != nil {
			return &criticalError{err: fmt.Errorf("get issue id: %w", err)}
		}
		issue.ID = id
		return nil
	})
}

// GetIssueByDate retrieves the issue for a given date
func (r *IssueRepository) GetIssueByDate(ctx context.Context, issueDate string) (*domain.Issue, error) {
	var sqlIssue issueSQL
	err := r.db.GetContext(ctx, &sqlIssue, "SELECT * FROM issues WHERE issue_date = ?", issueDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get issue by date: %w", err)
	}
	return r.toDomainIssue(&sqlIssue), nil
}

// GetLatestIssue retrieves the most recent issue
func (r *IssueRepository) GetLatestIssue(ctx context.Context) (*domain.Issue, error) {
	var sqlIssue issueSQL
	err := r.db.GetContext(ctx, &sqlIssue, "SELECT * FROM issues ORDER BY issue_date DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest issue: %w", err)
	}
	return r.toDomainIssue(&sqlIssue), nil
}

// GetIssuesSince retrieves issues with issue_date on or after the given date
func (r *IssueRepository) GetIssuesSince(ctx context.Context, since string) ([]*domain.Issue, error) {
	var sqlIssues []issueSQL
	err := r.db.SelectContext(ctx, &sqlIssues,
		"SELECT * FROM issues WHERE issue_date >= ? ORDER BY issue_date DESC", since)
	if err != nil {
		return nil, fmt.Errorf("get issues since: %w", err)
	}

	issues := make([]*domain.Issue, len(sqlIssues))
	for i := range sqlIssues {
		issues[i] = r.toDomainIssue(&sqlIssues[i])
	}
	return issues, nil
}

// GetRecentStoryIDs returns story ids that appeared in any issue within the
// trailing window, used for the duplicate-exclusion check.
func (r *IssueRepository) GetRecentStoryIDs(ctx context.Context, days int, today time.Time) (map[string]bool, error) {
	since := today.AddDate(0, 0, -days).Format("2006-01-02")
	issues, err := r.GetIssuesSince(ctx, since)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, issue := range issues {
		for _, slot := range issue.Slots {
			seen[slot.StoryID] = true
		}
	}
	return seen, nil
}

// GetRecentHeadlines returns headlines from recent issues, newest first,
// shown to the pre-filter judge to steer away from repeats.
func (r *IssueRepository) GetRecentHeadlines(ctx context.Context, limit int) ([]string, error) {
	issues, err := r.GetIssuesSince(ctx, time.Now().AddDate(0, 0, -domain.SlotCount*2).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	var headlines []string
	for _, issue := range issues {
		for _, slot := range issue.Slots {
			if slot.Headline == "" {
				continue
			}
			headlines = append(headlines, slot.Headline)
			if len(headlines) >= limit {
				return headlines, nil
			}
		}
	}
	return headlines, nil
}

// GetRecentSubjects returns subject lines from recent issues, newest first,
// shown to the subject writer to avoid repeated phrasing.
func (r *IssueRepository) GetRecentSubjects(ctx context.Context, limit int) ([]string, error) {
	var subjects []string
	query := "SELECT subject FROM issues WHERE subject != '' ORDER BY issue_date DESC LIMIT ?"
	if err := r.db.SelectContext(ctx, &subjects, query, limit); err != nil {
		return nil, fmt.Errorf("get recent subjects: %w", err)
	}
	return subjects, nil
}

// GetSlot1Company returns the company featured in slot 1 on the given date,
// empty when no issue or slot-1 pick exists for that date.
func (r *IssueRepository) GetSlot1Company(ctx context.Context, issueDate string) (string, error) {
	issue, err := r.GetIssueByDate(ctx, issueDate)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if slot := issue.Slot(1); slot != nil {
		return slot.Company, nil
	}
	return "", nil
}

// UpdateIssueStatus advances the issue status
func (r *IssueRepository) UpdateIssueStatus(ctx context.Context, issueID int64, status domain.IssueStatus) error {
	query := "UPDATE issues SET status = ?, updated_at = datetime('now') WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, string(status), issueID); err != nil {
		return fmt.Errorf("update issue status: %w", err)
	}
	return nil
}

// UpdateIssueCompiled stores the compiled artifact and advances the status
func (r *IssueRepository) UpdateIssueCompiled(ctx context.Context, issueID int64, subject, html, plainText string) error {
	query := `
		UPDATE issues
		SET subject = ?, html = ?, plain_text = ?, status = ?, updated_at = datetime('now')
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, subject, html, plainText, string(domain.IssueCompiled), issueID); err != nil {
		return fmt.Errorf("update issue compiled: %w", err)
	}
	return nil
}

// UpdateIssueSent records the delivery receipt and marks the issue sent
func (r *IssueRepository) UpdateIssueSent(ctx context.Context, issueID int64, receipt string, sentCount int) error {
	query := `
		UPDATE issues
		SET receipt = ?, sent_count = ?, status = ?, updated_at = datetime('now')
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, receipt, sentCount, string(domain.IssueSent), issueID); err != nil {
		return fmt.Errorf("update issue sent: %w", err)
	}
	return nil
}

// toDomainIssue converts SQL issue to domain issue
func (r *IssueRepository) toDomainIssue(i *issueSQL) *domain.Issue {
	return &domain.Issue{
		ID:        i.ID,
		IssueDate: i.IssueDate,
		Subject:   i.Subject,
		Status:    domain.IssueStatus(i.Status),
		Slots:     []domain.SlotAssignment(i.Slots),
		HTML:      i.HTML,
		PlainText: i.PlainText,
		Receipt:   i.Receipt,
		SentCount: i.SentCount,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}
