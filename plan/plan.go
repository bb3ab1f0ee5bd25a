// Package plan decomposes a large generation task into an ordered sequence of
// schema-scoped steps and assembles their parsed output into one composite
// document.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sweetpotato0/genflow/request"
	"github.com/sweetpotato0/genflow/schema"
)

// PromptFunc builds a step's instructions. It receives the composite assembled
// so far, so later steps can embed earlier results as grounding context, and
// the repeat index (0 for single-shot steps).
type PromptFunc func(prior *Composite, index int) (string, error)

// Step declares one schema-scoped generation call.
type Step struct {
	// Key is the composite key this step owns. Keys across steps are
	// disjoint; merging a duplicate key fails the run.
	Key string

	// Keys declares a fan-out: the step's schema produces several top-level
	// keys, each merged separately. Mutually exclusive with Repeat.
	Keys []string

	// Title is the progress message emitted before the step executes.
	Title string

	// Prompt builds the instructions for each invocation.
	Prompt PromptFunc

	// Schema is the structural contract for the step's JSON output.
	Schema *schema.Schema

	// Tier selects the model class; the zero value means TierFlash.
	Tier request.Tier

	// MaxOutputTokens caps the response so each step stays under the model's
	// output limit.
	MaxOutputTokens int32

	// ThinkingBudget hints the internal reasoning allowance.
	ThinkingBudget int32

	// Attachments are forwarded on every invocation of the step.
	Attachments []request.Attachment

	// Repeat > 1 executes the step template that many times with the index
	// injected into the prompt, collecting the documents into one
	// array-valued key.
	Repeat int
}

func (s *Step) label() string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("Step %q", s.Key)
}

// Progress is a transient, fire-and-forget notification emitted between steps.
type Progress struct {
	Message string
}

// ProgressFunc receives progress notifications. It must not block.
type ProgressFunc func(Progress)

// Composite is the accumulated result of a multi-step run: an ordered mapping
// from step key to parsed document. Keys are never overwritten.
type Composite struct {
	keys []string
	docs map[string]any
}

// NewComposite returns an empty composite.
func NewComposite() *Composite {
	return &Composite{docs: make(map[string]any)}
}

// Merge adds a document under key. Duplicate keys are a caller-configuration
// error and are rejected rather than silently overwritten.
func (c *Composite) Merge(key string, doc any) error {
	if key == "" {
		return fmt.Errorf("composite key cannot be empty")
	}
	if _, exists := c.docs[key]; exists {
		return fmt.Errorf("composite key %q already present; step keys must be disjoint", key)
	}
	c.keys = append(c.keys, key)
	c.docs[key] = doc
	return nil
}

// Get returns the document merged under key.
func (c *Composite) Get(key string) (any, bool) {
	doc, ok := c.docs[key]
	return doc, ok
}

// Keys returns the merged keys in execution order.
func (c *Composite) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Len returns how many keys have been merged.
func (c *Composite) Len() int {
	return len(c.keys)
}

// MarshalJSON serializes the composite with keys in execution order.
func (c *Composite) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(c.docs[key])
		if err != nil {
			return nil, fmt.Errorf("marshal composite key %q: %w", key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSON renders the whole composite as a JSON string.
func (c *Composite) JSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SectionJSON renders a single merged document as JSON, the shape prompts
// embed when a later step references an earlier result.
func (c *Composite) SectionJSON(key string) (string, error) {
	doc, ok := c.docs[key]
	if !ok {
		return "", fmt.Errorf("composite has no key %q", key)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal composite key %q: %w", key, err)
	}
	return string(data), nil
}
