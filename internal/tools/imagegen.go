package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"

	"voice_assistant_client/internal/config"
)

// ImageGenerator turns a text prompt into an image URL through a one-shot
// HTTP endpoint. Transient failures are retried with exponential backoff;
// the caller decides how the wait interacts with the rest of the session.
type ImageGenerator struct {
	endpoint   string
	client     *http.Client
	maxRetries uint64
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

type imageResponse struct {
	URL string `json:"url"`
}

// NewImageGenerator builds a generator from the tools configuration.
func NewImageGenerator(cfg *config.ToolsConfig) *ImageGenerator {
	return &ImageGenerator{
		endpoint:   cfg.ImageEndpoint,
		client:     &http.Client{Timeout: cfg.ImageTimeout},
		maxRetries: cfg.ImageMaxRetries,
	}
}

// Generate requests an image for prompt and returns its URL.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(imageRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode image request: %w", err)
	}

	var url string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("image endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			// Client errors will not improve on retry.
			return backoff.Permanent(fmt.Errorf("image endpoint returned %d", resp.StatusCode))
		}

		var out imageResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode image response: %w", err))
		}
		if out.URL == "" {
			return backoff.Permanent(fmt.Errorf("image endpoint returned no url"))
		}
		url = out.URL
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	return url, nil
}
