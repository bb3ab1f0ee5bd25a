// Package gemini implements the provider contracts against the Google Gemini
// API: the official SDK for synchronous structured generation, and the REST
// surface for image editing and asynchronous video jobs, which the SDK does
// not cover.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sweetpotato0/genflow/pkg/logging"
	"github.com/sweetpotato0/genflow/request"
	"github.com/sweetpotato0/genflow/response"
)

// Config holds Gemini provider configuration.
type Config struct {
	APIKey     string
	FlashModel string
	ProModel   string
	ImageModel string
	VideoModel string
	HTTPClient *http.Client
}

// DefaultConfig returns the default Gemini configuration.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:     apiKey,
		FlashModel: "gemini-2.5-flash",
		ProModel:   "gemini-2.5-pro",
		ImageModel: "gemini-2.0-flash-preview-image-generation",
		VideoModel: "veo-2.0-generate-001",
	}
}

// Provider talks to the Gemini API.
type Provider struct {
	config *Config
	client *genai.Client
	http   *http.Client
	logger *slog.Logger
}

// New creates a Gemini provider.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil || config.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	defaults := DefaultConfig(config.APIKey)
	if config.FlashModel == "" {
		config.FlashModel = defaults.FlashModel
	}
	if config.ProModel == "" {
		config.ProModel = defaults.ProModel
	}
	if config.ImageModel == "" {
		config.ImageModel = defaults.ImageModel
	}
	if config.VideoModel == "" {
		config.VideoModel = defaults.VideoModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Provider{
		config: config,
		client: client,
		http:   httpClient,
		logger: logging.WithComponent("gemini_provider"),
	}, nil
}

// Close releases the underlying SDK client.
func (p *Provider) Close() error {
	return p.client.Close()
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

	model := p.client.GenerativeModel(p.modelFor(req.Tier()))
	if max := req.MaxOutputTokens(); max > 0 {
		model.SetMaxOutputTokens(max)
	}
	if s := req.Schema(); s != nil {
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = toGenAISchema(s)
	}
	if req.ThinkingBudget() > 0 {
		// The generative-ai-go SDK has no thinking configuration; the budget
		// only applies on the REST media paths.
		p.logger.Debug("thinking budget ignored by SDK path", "budget", req.ThinkingBudget())
	}

	parts := make([]genai.Part, 0, len(req.Attachments())+1)
	for _, att := range req.Attachments() {
		if att.IsText() {
			parts = append(parts, genai.Text(att.Text))
			continue
		}
		parts = append(parts, genai.Blob{MIMEType: att.MIMEType, Data: att.Data})
	}
	parts = append(parts, genai.Text(req.Instructions()))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	return fromGenAIResponse(resp), nil
}

// fromGenAIResponse converts the SDK response into the provider-neutral shape.
func fromGenAIResponse(resp *genai.GenerateContentResponse) *response.Generation {
	gen := &response.Generation{
		Candidates: len(resp.Candidates),
	}

	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != genai.BlockReasonUnspecified {
		gen.Safety = &response.SafetyFeedback{
			BlockReason: pf.BlockReason.String(),
			Ratings:     fromSafetyRatings(pf.SafetyRatings),
		}
	}

	if len(resp.Candidates) == 0 {
		return gen
	}

	candidate := resp.Candidates[0]
	gen.FinishReason = fromFinishReason(candidate.FinishReason)

	if candidate.Content != nil {
		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			gen.Text = b.String()
			gen.HasText = true
		}
	}
	return gen
}

func fromFinishReason(fr genai.FinishReason) response.FinishReason {
	switch fr {
	case genai.FinishReasonStop:
		return response.FinishComplete
	case genai.FinishReasonMaxTokens:
		return response.FinishMaxTokens
	case genai.FinishReasonSafety:
		return response.FinishSafety
	case genai.FinishReasonUnspecified:
		return response.FinishUnspecified
	default:
		return response.FinishOther
	}
}

func fromSafetyRatings(ratings []*genai.SafetyRating) []response.SafetyRating {
	out := make([]response.SafetyRating, 0, len(ratings))
	for _, r := range ratings {
		if r == nil {
			continue
		}
		out = append(out, response.SafetyRating{
			Category: r.Category.String(),
			Severity: fromProbability(r.Probability),
		})
	}
	return out
}

func fromProbability(p genai.HarmProbability) response.Severity {
	switch p {
	case genai.HarmProbabilityHigh:
		return response.SeverityHigh
	case genai.HarmProbabilityMedium:
		return response.SeverityMedium
	case genai.HarmProbabilityLow:
		return response.SeverityLow
	default:
		return response.SeverityNegligible
	}
}
