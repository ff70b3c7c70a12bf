package scheduler

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/image"
)

// pendingImageLimit caps how many decorations one worker pass handles
const pendingImageLimit = 10

// processPendingImages generates, resizes and uploads illustrations for
// decorations still waiting on one. Each decoration is handled on its own;
// a failure marks that decoration failed and moves on.
func (s *Scheduler) processPendingImages(ctx context.Context) {
	pending, err := s.deps.Images.GetPendingImages(ctx, pendingImageLimit)
	if err != nil {
		lgr.Printf("[WARN] failed to get pending images: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	lgr.Printf("[INFO] processing %d pending images", len(pending))

	done, failed := 0, 0
	for _, dec := range pending {
		if ctx.Err() != nil {
			return
		}
		url, err := s.generateImage(ctx, dec)
		if err != nil {
			lgr.Printf("[WARN] image for issue %d slot %d failed: %v", dec.IssueID, dec.Slot, err)
			if uerr := s.deps.Images.UpdateImage(ctx, dec.ID, "", domain.ImageFailed); uerr != nil {
				lgr.Printf("[WARN] failed to mark image failed for decoration %d: %v", dec.ID, uerr)
			}
			failed++
			continue
		}
		if err := s.deps.Images.UpdateImage(ctx, dec.ID, url, domain.ImageDone); err != nil {
			lgr.Printf("[WARN] failed to record image for decoration %d: %v", dec.ID, err)
			failed++
			continue
		}
		done++
	}
	lgr.Printf("[INFO] image processing completed: %d done, %d failed", done, failed)
}

// generateImage runs the generate, resize, upload chain for one decoration
func (s *Scheduler) generateImage(ctx context.Context, dec *domain.Decoration) (string, error) {
	if dec.ImagePrompt == "" {
		return "", fmt.Errorf("empty image prompt")
	}

	data, err := s.deps.Generator.Generate(ctx, dec.ImagePrompt)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	if s.cfg.TargetWidth > 0 {
		resized, err := image.Resize(data, s.cfg.TargetWidth)
		if err != nil {
			return "", fmt.Errorf("resize: %w", err)
		}
		data = resized
	}

	name := fmt.Sprintf("issue-%d-slot%d", dec.IssueID, dec.Slot)
	url, err := s.deps.Host.Upload(ctx, name, data)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return url, nil
}
