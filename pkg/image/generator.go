// Package image generates, resizes and hosts the issue illustrations.
package image

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"pressbrief/pkg/config"
)

// Generator produces illustration PNGs from a prompt, trying the primary
// model first and falling back to the secondary endpoint on failure
type Generator struct {
	api      *openai.Client
	cfg      config.ImageConfig
	fallback *FallbackClient
}

// NewGenerator creates an image generator. A fallback client is wired
// only when a fallback endpoint is configured.
func NewGenerator(cfg config.ImageConfig, llmCfg config.LLMConfig) *Generator {
	clientConfig := openai.DefaultConfig(llmCfg.APIKey)
	if llmCfg.Endpoint != "" {
		clientConfig.BaseURL = llmCfg.Endpoint
	}

	g := &Generator{
		api: openai.NewClientWithConfig(clientConfig),
		cfg: cfg,
	}
	if cfg.FallbackEndpoint != "" {
		g.fallback = NewFallbackClient(cfg.FallbackEndpoint, cfg.FallbackAPIKey, cfg.Timeout)
	}
	return g
}

// Generate returns raw PNG bytes for the prompt
func (g *Generator) Generate(ctx context.Context, prompt string) ([]byte, error) {
	data, err := g.generatePrimary(ctx, prompt)
	if err == nil {
		return data, nil
	}
	if g.fallback == nil {
		return nil, err
	}

	lgr.Printf("[WARN] primary image generation failed, trying fallback: %v", err)
	data, fbErr := g.fallback.Generate(ctx, prompt, g.cfg.Size)
	if fbErr != nil {
		return nil, fmt.Errorf("primary failed (%v), fallback failed: %w", err, fbErr)
	}
	return data, nil
}

func (g *Generator) generatePrimary(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.api.CreateImage(ctx, openai.ImageRequest{
		Model:          g.cfg.Model,
		Prompt:         prompt,
		N:              1,
		Size:           g.cfg.Size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data in response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	return data, nil
}
