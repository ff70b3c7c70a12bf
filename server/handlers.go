package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"pressbrief/pkg/domain"
	"pressbrief/pkg/ident"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// issueResponse is the JSON shape for issue read endpoints, without the
// compiled HTML payload
type issueResponse struct {
	IssueDate string         `json:"issue_date"`
	Subject   string         `json:"subject"`
	Status    string         `json:"status"`
	Slots     []slotResponse `json:"slots"`
	SentCount int            `json:"sent_count,omitempty"`
}

type slotResponse struct {
	Slot     int    `json:"slot"`
	StoryID  string `json:"story_id"`
	Headline string `json:"headline"`
	Source   string `json:"source,omitempty"`
	Company  string `json:"company,omitempty"`
}

func toIssueResponse(issue *domain.Issue) issueResponse {
	resp := issueResponse{
		IssueDate: issue.IssueDate,
		Subject:   issue.Subject,
		Status:    string(issue.Status),
		Slots:     []slotResponse{},
		SentCount: issue.SentCount,
	}
	for _, s := range issue.Slots {
		resp.Slots = append(resp.Slots, slotResponse{
			Slot:     s.Slot,
			StoryID:  s.StoryID,
			Headline: s.Headline,
			Source:   s.Source,
			Company:  s.Company,
		})
	}
	return resp
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.cfg.Version,
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

func (s *Server) latestIssueHandler(w http.ResponseWriter, r *http.Request) {
	issue, err := s.issues.GetLatestIssue(r.Context())
	if err != nil {
		RenderError(w, r, fmt.Errorf("no issues found"), http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, toIssueResponse(issue))
}

func (s *Server) issueByDateHandler(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !dateRe.MatchString(date) {
		RenderError(w, r, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date), http.StatusBadRequest)
		return
	}

	issue, err := s.issues.GetIssueByDate(r.Context(), date)
	if err != nil {
		RenderError(w, r, fmt.Errorf("no issue for %s", date), http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, toIssueResponse(issue))
}

// issuePreviewHandler serves the compiled HTML as the reader would see it
func (s *Server) issuePreviewHandler(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !dateRe.MatchString(date) {
		RenderError(w, r, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date), http.StatusBadRequest)
		return
	}

	issue, err := s.issues.GetIssueByDate(r.Context(), date)
	if err != nil {
		RenderError(w, r, fmt.Errorf("no issue for %s", date), http.StatusNotFound)
		return
	}
	if issue.HTML == "" {
		RenderError(w, r, fmt.Errorf("issue %s not compiled yet", date), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(issue.HTML)); err != nil {
		lgr.Printf("[WARN] failed to write preview response: %v", err)
	}
}

// queueRequest is the payload for manual story queueing
type queueRequest struct {
	Headline string `json:"headline"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Note     string `json:"note"`
}

func (s *Server) queueStoryHandler(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	req.Headline = strings.TrimSpace(req.Headline)
	req.URL = strings.TrimSpace(req.URL)
	if req.Headline == "" || req.URL == "" {
		RenderError(w, r, fmt.Errorf("headline and url are required"), http.StatusBadRequest)
		return
	}

	pivotID := ident.PivotID(req.URL, req.Headline)
	story := &domain.QueuedStory{
		StoryID:  ident.StoryID(pivotID),
		PivotID:  pivotID,
		Headline: req.Headline,
		URL:      req.URL,
		Source:   req.Source,
		Note:     req.Note,
	}

	if err := s.queue.QueueStory(r.Context(), story); err != nil {
		RenderError(w, r, fmt.Errorf("failed to queue story: %w", err), http.StatusInternalServerError)
		return
	}

	lgr.Printf("[INFO] queued story %s: %s", story.StoryID, story.Headline)
	RenderJSON(w, r, http.StatusCreated, map[string]string{"story_id": story.StoryID})
}

// triggerHandler starts the named worker in the background and returns
// immediately, a trigger never waits on a full pipeline run
func (s *Server) triggerHandler(name string, fn func(ctx context.Context)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go fn(context.Background())
		RenderJSON(w, r, http.StatusAccepted, map[string]string{"triggered": name})
	}
}
