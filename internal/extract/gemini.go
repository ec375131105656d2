// Package extract produces schema-conforming JSON from prompts via the
// Gemini API.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jbialy/prospector/internal/enrich"
)

// Config controls the Gemini extractor.
type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the API base URL. Useful for testing.
	BaseURL string
}

// Gemini implements enrich.Extractor with structured output.
type Gemini struct {
	client    *genai.Client
	model     string
	logger    *zap.Logger
	retryWait time.Duration
}

// NewGemini builds a Gemini extractor.
func NewGemini(ctx context.Context, cfg Config, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("gemini model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Gemini{
		client:    client,
		model:     strings.TrimSpace(cfg.Model),
		logger:    logger,
		retryWait: 2 * time.Second,
	}, nil
}

// Extract sends the prompt with a response schema derived from the
// extraction schema and parses the JSON object it returns. Transient API
// failures (429/5xx, network timeouts) are retried once.
func (g *Gemini) Extract(
	ctx context.Context,
	prompt string,
	schema enrich.ExtractionSchema,
) (map[string]any, string, error) {
	cfg := &genai.GenerateContentConfig{
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(schema),
	}

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			g.logger.Warn("retrying extraction", zap.String("schema", schema.Name), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, "", fmt.Errorf("extraction canceled: %w", ctx.Err())
			case <-time.After(g.retryWait):
			}
		}
		resp, err = g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
		if err == nil {
			break
		}
		if !isTransient(err) {
			return nil, "", fmt.Errorf("generate content: %w", err)
		}
	}
	if err != nil {
		return nil, "", fmt.Errorf("generate content: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(resp.Text()), &fields); err != nil {
		return nil, "", fmt.Errorf("parse structured json: %w", err)
	}
	return fields, g.model, nil
}

// ResponseSchema maps an extraction schema onto the Gemini structured-output
// schema. Required fields are marked so the model must emit them.
func ResponseSchema(schema enrich.ExtractionSchema) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(schema.Fields))
	var required []string
	for _, field := range schema.Fields {
		properties[field.Name] = &genai.Schema{
			Type:        fieldType(field.Type),
			Description: field.Description,
		}
		if field.Required {
			required = append(required, field.Name)
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

func fieldType(tag string) genai.Type {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "number", "float", "integer", "int":
		return genai.TypeNumber
	case "boolean", "bool":
		return genai.TypeBoolean
	case "array", "list":
		return genai.TypeArray
	case "object", "map":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func isTransient(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code/100 == 5
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
