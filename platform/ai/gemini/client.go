// Package gemini implements a textgen backend on the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"leadchat_backend/platform/ai/textgen"
)

// Config for the Gemini backend.
type Config struct {
	APIKey string
	Model  string
}

// Client adapts the Gemini SDK to the textgen.Backend interface.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a new Gemini client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{client: client, model: cfg.Model}, nil
}

// Generate performs one generation call with an optional JSON output
// constraint via the response MIME type.
func (c *Client) Generate(ctx context.Context, req textgen.Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.User), config)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}
