// Package service holds thin cross-repository steps that sit between the
// pipeline stages and persistence.
package service

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/domain"
)

// DecorationStore is the persistence surface for social syndication
type DecorationStore interface {
	GetDecorations(ctx context.Context, issueID int64) ([]*domain.Decoration, error)
	UpdateSocialStatus(ctx context.Context, decorationID int64, status domain.SocialStatus) error
}

// SocialService queues sent-issue decorations for social syndication.
// It only flips statuses; the actual posting is done by an external worker
// reading the queued decorations.
type SocialService struct {
	store DecorationStore
}

// NewSocialService creates a social syndication service
func NewSocialService(store DecorationStore) *SocialService {
	return &SocialService{store: store}
}

// QueueForIssue marks every untouched decoration of a sent issue as queued.
// Decorations already queued or posted are left alone.
func (s *SocialService) QueueForIssue(ctx context.Context, issueID int64) error {
	decorations, err := s.store.GetDecorations(ctx, issueID)
	if err != nil {
		return fmt.Errorf("get decorations for issue %d: %w", issueID, err)
	}

	queued := 0
	for _, dec := range decorations {
		if dec.SocialStatus != domain.SocialNone {
			continue
		}
		if err := s.store.UpdateSocialStatus(ctx, dec.ID, domain.SocialQueued); err != nil {
			lgr.Printf("[WARN] failed to queue decoration %d for social: %v", dec.ID, err)
			continue
		}
		queued++
	}

	if queued > 0 {
		lgr.Printf("[INFO] queued %d decorations for social syndication, issue %d", queued, issueID)
	}
	return nil
}
