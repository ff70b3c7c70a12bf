package newsletter

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/email"
)

// Transport is the campaign API surface the distributor needs
type Transport interface {
	CreateCampaign(ctx context.Context, subject, html, plainText string) (string, error)
	Send(ctx context.Context, campaignID string) (email.Receipt, error)
}

// SendStore records the delivery outcome
type SendStore interface {
	UpdateIssueSent(ctx context.Context, issueID int64, receipt string, sentCount int) error
}

// Distributor hands the compiled issue to the email transport. A transport
// failure leaves the issue in its prior status so the next scheduled run
// retries the send.
type Distributor struct {
	transport Transport
	issues    SendStore
}

// NewDistributor creates the distribution stage
func NewDistributor(transport Transport, issues SendStore) *Distributor {
	return &Distributor{transport: transport, issues: issues}
}

// Run sends the compiled issue and records the receipt
func (d *Distributor) Run(ctx context.Context, issue *domain.Issue) (*domain.RunSummary, error) {
	summary := domain.NewRunSummary("distribute")
	if issue == nil || issue.HTML == "" {
		return nil, fmt.Errorf("no compiled issue to send")
	}

	campaignID, err := d.transport.CreateCampaign(ctx, issue.Subject, issue.HTML, issue.PlainText)
	if err != nil {
		return nil, fmt.Errorf("create campaign for issue %s: %w", issue.IssueDate, err)
	}

	receipt, err := d.transport.Send(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("send issue %s: %w", issue.IssueDate, err)
	}

	if err := d.issues.UpdateIssueSent(ctx, issue.ID, receipt.CampaignID, receipt.SentCount); err != nil {
		return nil, fmt.Errorf("record delivery of issue %s: %w", issue.IssueDate, err)
	}

	summary.Processed = 1
	lgr.Printf("[INFO] sent issue %s as campaign %s to %d recipients", issue.IssueDate, receipt.CampaignID, receipt.SentCount)
	return summary, nil
}
