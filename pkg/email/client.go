// Package email sends compiled issues through the campaign API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"pressbrief/pkg/config"
)

// Client talks to the email campaign API
type Client struct {
	cfg        config.EmailConfig
	httpClient *http.Client
}

// NewClient creates an email campaign client from config
func NewClient(cfg config.EmailConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Receipt is the provider's confirmation of a sent campaign
type Receipt struct {
	CampaignID string `json:"campaign_id"`
	SentCount  int    `json:"sent_count"`
}

type createCampaignRequest struct {
	Subject   string   `json:"subject"`
	From      string   `json:"from"`
	HTML      string   `json:"html"`
	PlainText string   `json:"plain_text"`
	Lists     []string `json:"lists"`
}

type createCampaignResponse struct {
	ID string `json:"id"`
}

type sendResponse struct {
	SentCount int `json:"sent_count"`
}

// CreateCampaign registers a new campaign with the provider and returns its ID
func (c *Client) CreateCampaign(ctx context.Context, subject, html, plainText string) (string, error) {
	body := createCampaignRequest{
		Subject:   subject,
		From:      c.cfg.From,
		HTML:      html,
		PlainText: plainText,
		Lists:     c.cfg.Lists,
	}

	var resp createCampaignResponse
	if err := c.post(ctx, "/campaigns", body, &resp); err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create campaign: no id in response")
	}
	return resp.ID, nil
}

// Send triggers delivery of a created campaign and returns the receipt
func (c *Client) Send(ctx context.Context, campaignID string) (Receipt, error) {
	var resp sendResponse
	if err := c.post(ctx, "/campaigns/"+campaignID+"/send", struct{}{}, &resp); err != nil {
		return Receipt{}, fmt.Errorf("send campaign %s: %w", campaignID, err)
	}
	return Receipt{CampaignID: campaignID, SentCount: resp.SentCount}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
