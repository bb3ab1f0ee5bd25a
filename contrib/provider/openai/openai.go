// Package openai implements provider.Generator against the OpenAI chat
// completions API, using the json_schema response format for structured
// output.
package openai

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/sweetpotato0/genflow/request"
	"github.com/sweetpotato0/genflow/response"
	"github.com/sweetpotato0/genflow/schema"
)

// Config holds OpenAI provider configuration
type Config struct {
	APIKey     string
	BaseURL    string
	FlashModel string
	ProModel   string
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:     apiKey,
		FlashModel: "gpt-4o-mini",
		ProModel:   "gpt-4o",
	}
}

// Provider implements provider.Generator for OpenAI.
type Provider struct {
	config *Config
	client openai.Client
}

// New creates a new OpenAI provider using the official SDK.
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.FlashModel == "" {
		config.FlashModel = "gpt-4o-mini"
	}
	if config.ProModel == "" {
		config.ProModel = "gpt-4o"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := openai.NewClient(options...)

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

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Attachments())+1)
	for _, att := range req.Attachments() {
		if !att.IsText() {
			// Binary attachments are not forwarded on this backend.
			continue
		}
		messages = append(messages, openai.UserMessage(att.Text))
	}
	messages = append(messages, openai.UserMessage(req.Instructions()))

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(p.modelFor(req.Tier())),
	}
	if max := req.MaxOutputTokens(); max > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(max))
	}
	if s := req.Schema(); s != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "generation",
					Schema: jsonSchemaMap(s),
					Strict: param.NewOpt(true),
				},
			},
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	gen := &response.Generation{Candidates: len(completion.Choices)}
	if len(completion.Choices) == 0 {
		return gen, nil
	}

	choice := completion.Choices[0]
	gen.FinishReason = fromFinishReason(choice.FinishReason)
	if choice.Message.Content != "" {
		gen.Text = choice.Message.Content
		gen.HasText = true
	}
	return gen, nil
}

func fromFinishReason(reason string) response.FinishReason {
	switch reason {
	case "stop":
		return response.FinishComplete
	case "length":
		return response.FinishMaxTokens
	case "content_filter":
		return response.FinishSafety
	case "":
		return response.FinishUnspecified
	default:
		return response.FinishOther
	}
}

// jsonSchemaMap renders the descriptor in the strict json_schema dialect:
// objects list every property as required and forbid additional properties.
func jsonSchemaMap(s *schema.Schema) map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	switch s.Type {
	case schema.TypeObject:
		props := make(map[string]any, len(s.Properties))
		required := make([]string, 0, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = jsonSchemaMap(prop)
			required = append(required, name)
		}
		out["properties"] = props
		out["required"] = required
		out["additionalProperties"] = false
	case schema.TypeArray:
		if s.Items != nil {
			out["items"] = jsonSchemaMap(s.Items)
		}
	case schema.TypeString:
		if len(s.Enum) > 0 {
			out["enum"] = s.Enum
		}
	}
	return out
}
