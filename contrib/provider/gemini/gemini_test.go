package gemini

import (
	"encoding/json"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/sweetpotato0/genflow/response"
	"github.com/sweetpotato0/genflow/schema"
)

func TestToGenAISchema(t *testing.T) {
	s := schema.Object("analysis", map[string]*schema.Schema{
		"audience": schema.String("who this is for"),
		"scores":   schema.Array(schema.Number(""), "per-channel scores"),
		"tone":     {Type: schema.TypeString, Enum: []string{"warm", "direct"}},
	})

	out := toGenAISchema(s)
	if out.Type != genai.TypeObject {
		t.Fatalf("Type = %v", out.Type)
	}
	if len(out.Properties) != 3 {
		t.Fatalf("Properties = %v", out.Properties)
	}
	if out.Properties["audience"].Type != genai.TypeString {
		t.Fatalf("audience type = %v", out.Properties["audience"].Type)
	}
	scores := out.Properties["scores"]
	if scores.Type != genai.TypeArray || scores.Items == nil || scores.Items.Type != genai.TypeNumber {
		t.Fatalf("scores = %+v", scores)
	}
	if got := out.Properties["tone"].Enum; len(got) != 2 || got[0] != "warm" {
		t.Fatalf("tone enum = %v", got)
	}
	if len(out.Required) != 3 {
		t.Fatalf("Required = %v", out.Required)
	}
	if toGenAISchema(nil) != nil {
		t.Fatal("nil schema must convert to nil")
	}
}

func TestFromGenAIResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{
				Parts: []genai.Part{genai.Text(`{"audience"`), genai.Text(`: "founders"}`)},
			},
		}},
	}
	gen := fromGenAIResponse(resp)
	if !gen.HasText || gen.Text != `{"audience": "founders"}` {
		t.Fatalf("Text = %q, HasText = %v", gen.Text, gen.HasText)
	}
	if gen.FinishReason != response.FinishComplete {
		t.Fatalf("FinishReason = %v", gen.FinishReason)
	}
	if gen.Candidates != 1 {
		t.Fatalf("Candidates = %d", gen.Candidates)
	}
}

func TestFromGenAIResponseMaxTokens(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonMaxTokens,
			Content:      &genai.Content{Parts: []genai.Part{genai.Text(`{"cut`)}},
		}},
	}
	gen := fromGenAIResponse(resp)
	if gen.FinishReason != response.FinishMaxTokens {
		t.Fatalf("FinishReason = %v, want FinishMaxTokens", gen.FinishReason)
	}
}

func TestFromGenAIResponsePromptBlock(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.PromptFeedback{
			BlockReason: genai.BlockReasonSafety,
			SafetyRatings: []*genai.SafetyRating{
				{Category: genai.HarmCategoryHarassment, Probability: genai.HarmProbabilityHigh},
				{Category: genai.HarmCategoryHateSpeech, Probability: genai.HarmProbabilityLow},
			},
		},
	}
	gen := fromGenAIResponse(resp)
	if gen.Safety == nil || gen.Safety.BlockReason == "" {
		t.Fatalf("Safety = %+v", gen.Safety)
	}
	if len(gen.Safety.Ratings) != 2 {
		t.Fatalf("Ratings = %v", gen.Safety.Ratings)
	}
	if gen.Safety.Ratings[0].Severity != response.SeverityHigh {
		t.Fatalf("Severity = %v", gen.Safety.Ratings[0].Severity)
	}
	if gen.Candidates != 0 {
		t.Fatalf("Candidates = %d", gen.Candidates)
	}
}

func TestHandleFromOperation(t *testing.T) {
	payload := `{
		"name": "operations/op-1",
		"done": true,
		"response": {
			"generateVideoResponse": {
				"generatedSamples": [{"video": {"uri": "https://example.com/video.mp4"}}]
			}
		}
	}`
	var op operationResponse
	if err := json.Unmarshal([]byte(payload), &op); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	h := handleFromOperation(&op)
	if h.Name != "operations/op-1" || !h.Done || h.URI != "https://example.com/video.mp4" {
		t.Fatalf("handle = %+v", h)
	}
}

func TestHandleFromOperationPending(t *testing.T) {
	h := handleFromOperation(&operationResponse{Name: "operations/op-1"})
	if h.Done || h.URI != "" {
		t.Fatalf("handle = %+v", h)
	}
}
