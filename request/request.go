// Package request models a single generation request: instructions, ordered
// attachments, the target schema, and per-call budgets. A Request is immutable
// once built; steps construct a fresh one per invocation and discard it after
// the response is parsed.
package request

import (
	"github.com/sweetpotato0/genflow/config"
	"github.com/sweetpotato0/genflow/schema"
)

// Tier selects the model class a request runs on. Providers map tiers onto
// concrete model names.
type Tier string

const (
	// TierFlash is the fast, cheaper tier used for most plan steps.
	TierFlash Tier = "flash"
	// TierPro is the higher-quality tier for steps that need deeper reasoning.
	TierPro Tier = "pro"
)

// Modality restricts what the model is allowed to emit.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
)

// Attachment is one ordered input part: either inline text or raw bytes with
// a media type.
type Attachment struct {
	MIMEType string
	Data     []byte
	Text     string
}

// TextAttachment wraps plain text as an input part.
func TextAttachment(text string) Attachment {
	return Attachment{Text: text}
}

// DataAttachment wraps raw bytes (image, audio, PDF) as an input part.
func DataAttachment(mimeType string, data []byte) Attachment {
	return Attachment{MIMEType: mimeType, Data: data}
}

// IsText reports whether the attachment carries inline text rather than bytes.
func (a Attachment) IsText() bool {
	return a.MIMEType == ""
}

// Request bundles everything a provider needs for one generation call.
type Request struct {
	instructions    string
	attachments     []Attachment
	schema          *schema.Schema
	tier            Tier
	maxOutputTokens int32
	thinkingBudget  int32
	modalities      []Modality
}

// Option customises a Request during construction.
type Option func(*Request)

// WithAttachments appends ordered input attachments.
func WithAttachments(attachments ...Attachment) Option {
	return func(r *Request) {
		r.attachments = append(r.attachments, attachments...)
	}
}

// WithSchema declares the structural contract for the JSON output.
func WithSchema(s *schema.Schema) Option {
	return func(r *Request) {
		r.schema = s
	}
}

// WithTier selects the model tier.
func WithTier(tier Tier) Option {
	return func(r *Request) {
		if tier != "" {
			r.tier = tier
		}
	}
}

// WithMaxOutputTokens caps the response length.
func WithMaxOutputTokens(max int32) Option {
	return func(r *Request) {
		if max > 0 {
			r.maxOutputTokens = max
		}
	}
}

// WithThinkingBudget sets the internal reasoning allowance, where the backend
// supports one.
func WithThinkingBudget(budget int32) Option {
	return func(r *Request) {
		if budget > 0 {
			r.thinkingBudget = budget
		}
	}
}

// WithModalities restricts the output modalities.
func WithModalities(modalities ...Modality) Option {
	return func(r *Request) {
		r.modalities = modalities
	}
}

// New builds an immutable Request. Instructions must be non-empty.
func New(instructions string, opts ...Option) (*Request, error) {
	if err := config.NewValidator().RequireNonEmpty("instructions", instructions).Error(); err != nil {
		return nil, err
	}
	r := &Request{
		instructions: instructions,
		tier:         TierFlash,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Instructions returns the prompt text.
func (r *Request) Instructions() string { return r.instructions }

// Attachments returns a copy of the ordered input parts.
func (r *Request) Attachments() []Attachment {
	if len(r.attachments) == 0 {
		return nil
	}
	out := make([]Attachment, len(r.attachments))
	copy(out, r.attachments)
	return out
}

// Schema returns the declared output schema, or nil for free-form text.
func (r *Request) Schema() *schema.Schema { return r.schema }

// Tier returns the requested model tier.
func (r *Request) Tier() Tier { return r.tier }

// MaxOutputTokens returns the response length cap, 0 meaning provider default.
func (r *Request) MaxOutputTokens() int32 { return r.maxOutputTokens }

// ThinkingBudget returns the reasoning allowance, 0 meaning provider default.
func (r *Request) ThinkingBudget() int32 { return r.thinkingBudget }

// Modalities returns the requested output modalities, nil meaning text only.
func (r *Request) Modalities() []Modality {
	if len(r.modalities) == 0 {
		return nil
	}
	out := make([]Modality, len(r.modalities))
	copy(out, r.modalities)
	return out
}
