package newsletter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/email"
)

type stubTransport struct {
	createErr error
	sendErr   error
	created   bool
	sent      bool
}

func (s *stubTransport) CreateCampaign(_ context.Context, _, _, _ string) (string, error) {
	if s.createErr != nil {
		return "", s.createErr
	}
	s.created = true
	return "cmp-1", nil
}

func (s *stubTransport) Send(_ context.Context, campaignID string) (email.Receipt, error) {
	if s.sendErr != nil {
		return email.Receipt{}, s.sendErr
	}
	s.sent = true
	return email.Receipt{CampaignID: campaignID, SentCount: 1200}, nil
}

type stubSendStore struct {
	receipt   string
	sentCount int
	called    bool
}

func (s *stubSendStore) UpdateIssueSent(_ context.Context, _ int64, receipt string, sentCount int) error {
	s.called = true
	s.receipt = receipt
	s.sentCount = sentCount
	return nil
}

func sendableIssue() *domain.Issue {
	return &domain.Issue{
		ID:        42,
		IssueDate: "2026-08-25",
		Subject:   "Today in AI",
		Status:    domain.IssueCompiled,
		HTML:      "<html><body>issue</body></html>",
		PlainText: "issue",
	}
}

func TestDistributor_Run(t *testing.T) {
	transport := &stubTransport{}
	store := &stubSendStore{}

	dist := NewDistributor(transport, store)
	summary, err := dist.Run(context.Background(), sendableIssue())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.True(t, transport.created)
	assert.True(t, transport.sent)
	assert.Equal(t, "cmp-1", store.receipt)
	assert.Equal(t, 1200, store.sentCount)
}

func TestDistributor_TransportDown(t *testing.T) {
	transport := &stubTransport{sendErr: errors.New("smtp gateway down")}
	store := &stubSendStore{}

	dist := NewDistributor(transport, store)
	_, err := dist.Run(context.Background(), sendableIssue())
	require.Error(t, err, "send failure is structural, issue stays in its prior status for retry")
	assert.False(t, store.called, "delivery never recorded on failure")
}

func TestDistributor_NotCompiled(t *testing.T) {
	dist := NewDistributor(&stubTransport{}, &stubSendStore{})
	_, err := dist.Run(context.Background(), &domain.Issue{ID: 1, IssueDate: "2026-08-25"})
	require.Error(t, err)
}
