package openai

import (
	"testing"

	"github.com/sweetpotato0/genflow/response"
	"github.com/sweetpotato0/genflow/schema"
)

func TestFromFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want response.FinishReason
	}{
		{"stop", response.FinishComplete},
		{"length", response.FinishMaxTokens},
		{"content_filter", response.FinishSafety},
		{"", response.FinishUnspecified},
		{"tool_calls", response.FinishOther},
	}
	for _, tt := range tests {
		if got := fromFinishReason(tt.in); got != tt.want {
			t.Fatalf("fromFinishReason(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONSchemaMapStrictObject(t *testing.T) {
	s := schema.ObjectWithOptional("analysis", map[string]*schema.Schema{
		"audience": schema.String(""),
		"angle":    schema.String(""),
	}, "audience")

	out := jsonSchemaMap(s)
	if out["type"] != "object" {
		t.Fatalf("type = %v", out["type"])
	}
	if out["additionalProperties"] != false {
		t.Fatal("strict mode requires additionalProperties: false")
	}
	// Strict json_schema mode requires every property listed as required,
	// regardless of the descriptor's own required set.
	required, _ := out["required"].([]string)
	if len(required) != 2 {
		t.Fatalf("required = %v, want both properties", required)
	}
}

func TestJSONSchemaMapNested(t *testing.T) {
	s := schema.Object("", map[string]*schema.Schema{
		"emails": schema.Array(schema.Object("", map[string]*schema.Schema{
			"subject": schema.String(""),
		}), ""),
	})
	out := jsonSchemaMap(s)
	props, _ := out["properties"].(map[string]any)
	emails, _ := props["emails"].(map[string]any)
	items, _ := emails["items"].(map[string]any)
	if items["type"] != "object" {
		t.Fatalf("items = %#v", items)
	}
	if jsonSchemaMap(nil) != nil {
		t.Fatal("nil schema must render as nil")
	}
}
