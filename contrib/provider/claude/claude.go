// Package claude implements provider.Generator against the Anthropic Messages
// API. Claude has no native response-schema parameter, so the structural
// contract is embedded into the system prompt and the shared extractor strips
// any fencing from the reply.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sweetpotato0/genflow/request"
	"github.com/sweetpotato0/genflow/response"
)

const defaultMaxTokens = 4096

// Config holds Claude provider configuration
type Config struct {
	APIKey     string
	BaseURL    string
	FlashModel string
	ProModel   string
}

// DefaultConfig returns default Claude configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:     apiKey,
		FlashModel: "claude-3-5-haiku-20241022",
		ProModel:   "claude-sonnet-4-5-20250929",
	}
}

// Provider implements provider.Generator for Claude.
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using the official SDK.
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.FlashModel == "" {
		config.FlashModel = "claude-3-5-haiku-20241022"
	}
	if config.ProModel == "" {
		config.ProModel = "claude-sonnet-4-5-20250929"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(options...)

	return &Provider{
		config: config,
		client: client,
	}
}

func (p *Provider) modelFor(tier request.Tier) string {
	if tier == request.TierPro {
		return p.config.ProModel
	}
	return p.config.FlashModel
}

// GenerateContent implements provider.Generator.
func (p *Provider) GenerateContent(ctx context.Context, req *request.Request) (*response.Generation, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	maxTokens := int64(defaultMaxTokens)
	if max := req.MaxOutputTokens(); max > 0 {
		maxTokens = int64(max)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.modelFor(req.Tier())),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.userText(req))),
		},
	}
	if s := req.Schema(); s != nil {
		schemaJSON, err := s.JSON()
		if err != nil {
			return nil, fmt.Errorf("failed to render schema: %w", err)
		}
		params.System = []anthropic.TextBlockParam{{
			Text: "Respond with a single JSON document only, no prose, matching this JSON Schema:\n" + schemaJSON,
		}}
	}

	apiMessage, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var b strings.Builder
	for _, content := range apiMessage.Content {
		if content.Type == "text" {
			b.WriteString(content.Text)
		}
	}

	gen := &response.Generation{
		Candidates:   1,
		FinishReason: fromStopReason(apiMessage.StopReason),
	}
	if b.Len() > 0 {
		gen.Text = b.String()
		gen.HasText = true
	}
	return gen, nil
}

// userText folds text attachments and instructions into one user message.
func (p *Provider) userText(req *request.Request) string {
	var b strings.Builder
	for _, att := range req.Attachments() {
		if !att.IsText() {
			// Binary attachments are not forwarded on this backend.
			continue
		}
		b.WriteString(att.Text)
		b.WriteString("\n\n")
	}
	b.WriteString(req.Instructions())
	return b.String()
}

func fromStopReason(reason anthropic.StopReason) response.FinishReason {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence:
		return response.FinishComplete
	case anthropic.StopReasonMaxTokens:
		return response.FinishMaxTokens
	case anthropic.StopReasonRefusal:
		return response.FinishSafety
	case "":
		return response.FinishUnspecified
	default:
		return response.FinishOther
	}
}
