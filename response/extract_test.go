package response

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sweetpotato0/genflow/fault"
)

func textGen(text string) *Generation {
	return &Generation{
		Text:         text,
		HasText:      true,
		FinishReason: FinishComplete,
		Candidates:   1,
	}
}

func TestExtractFencedJSON(t *testing.T) {
	doc, err := Extract(textGen("Here is the result:\n```json\n{\"title\": \"Launch\"}\n```\nLet me know if you need changes."))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := map[string]any{"title": "Launch"}
	if !reflect.DeepEqual(doc, want) {
		t.Fatalf("doc = %#v, want %#v", doc, want)
	}
}

func TestExtractFenceCaseInsensitive(t *testing.T) {
	doc, err := Extract(textGen("```JSON\n[1, 2, 3]\n```"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if _, ok := doc.([]any); !ok {
		t.Fatalf("doc = %#v, want array", doc)
	}
}

func TestExtractProseWrappedObject(t *testing.T) {
	doc, err := Extract(textGen("Sure! {\"ready\": true} Hope that helps."))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := map[string]any{"ready": true}
	if !reflect.DeepEqual(doc, want) {
		t.Fatalf("doc = %#v, want %#v", doc, want)
	}
}

func TestExtractArrayBeforeObject(t *testing.T) {
	doc, err := Extract(textGen("[{\"n\": 1}, {\"n\": 2}]"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	items, ok := doc.([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("doc = %#v, want 2-element array", doc)
	}
}

func TestExtractNoBracketsIsMalformed(t *testing.T) {
	_, err := Extract(textGen("I am unable to produce that document."))
	if fault.KindOf(err) != fault.KindMalformedOutput {
		t.Fatalf("err = %v, want KindMalformedOutput", err)
	}
}

func TestExtractInvalidJSONMalformedWithExcerpt(t *testing.T) {
	raw := "{\"title\": \"Launch\", oops}"
	_, err := Extract(textGen(raw))
	if fault.KindOf(err) != fault.KindMalformedOutput {
		t.Fatalf("err = %v, want KindMalformedOutput", err)
	}
	if !strings.Contains(err.Error(), "oops") {
		t.Fatalf("error message should quote the raw output, got: %v", err)
	}
}

func TestExtractExcerptCapped(t *testing.T) {
	raw := "{" + strings.Repeat("x", 2000)
	_, err := Extract(textGen(raw))
	if fault.KindOf(err) != fault.KindMalformedOutput {
		t.Fatalf("err = %v, want KindMalformedOutput", err)
	}
	if len(err.Error()) > excerptLimit+200 {
		t.Fatalf("error message not capped: %d bytes", len(err.Error()))
	}
}

func TestExtractTruncatedOnMaxTokens(t *testing.T) {
	gen := textGen("{\"title\": \"Launch\", \"body\": \"a very long sect")
	gen.FinishReason = FinishMaxTokens
	_, err := Extract(gen)
	if fault.KindOf(err) != fault.KindTruncated {
		t.Fatalf("err = %v, want KindTruncated", err)
	}
}

func TestExtractMalformedWhenCompleteDespiteUnparseable(t *testing.T) {
	// Identical broken payload, but the model claims it finished normally:
	// that is malformed output, not truncation.
	gen := textGen("{\"title\": \"Launch\", \"body\": \"a very long sect")
	_, err := Extract(gen)
	if fault.KindOf(err) != fault.KindMalformedOutput {
		t.Fatalf("err = %v, want KindMalformedOutput", err)
	}
}

func TestTextSafetyBlockBeforeExtraction(t *testing.T) {
	gen := &Generation{
		Text:    "{\"title\": \"should never be seen\"}",
		HasText: true,
		Safety: &SafetyFeedback{
			BlockReason: "SAFETY",
			Ratings: []SafetyRating{
				{Category: "HarmCategoryHarassment", Severity: SeverityHigh},
				{Category: "HarmCategoryHateSpeech", Severity: SeverityMedium},
				{Category: "HarmCategoryDangerousContent", Severity: SeverityLow},
				{Category: "HarmCategorySexuallyExplicit", Severity: SeverityNegligible},
			},
		},
		Candidates: 1,
	}
	_, err := Extract(gen)
	if fault.KindOf(err) != fault.KindSafetyBlocked {
		t.Fatalf("err = %v, want KindSafetyBlocked", err)
	}
	var fe *fault.Error
	if !errors.As(err, &fe) {
		t.Fatalf("err %T is not a *fault.Error", err)
	}
	want := []string{"HarmCategoryHarassment", "HarmCategoryHateSpeech"}
	if !reflect.DeepEqual(fe.Categories, want) {
		t.Fatalf("Categories = %v, want %v (only severities above low)", fe.Categories, want)
	}
}

func TestTextEmptyResponses(t *testing.T) {
	if _, err := Text(nil); fault.KindOf(err) != fault.KindEmptyResponse {
		t.Fatalf("Text(nil) err = %v, want KindEmptyResponse", err)
	}
	if _, err := Text(&Generation{Candidates: 0}); fault.KindOf(err) != fault.KindEmptyResponse {
		t.Fatalf("no candidates err = %v, want KindEmptyResponse", err)
	}
	gen := &Generation{Candidates: 1, FinishReason: FinishOther}
	if _, err := Text(gen); fault.KindOf(err) != fault.KindEmptyResponse {
		t.Fatalf("no text err = %v, want KindEmptyResponse", err)
	}
}

func TestJSONCandidateSpans(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "plain object", text: "{\"a\":1}", want: "{\"a\":1}", ok: true},
		{name: "prose both sides", text: "note {\"a\":1} done", want: "{\"a\":1}", ok: true},
		{name: "object before array", text: "{\"a\":[1,2]} trailing", want: "{\"a\":[1,2]}", ok: true},
		{name: "unclosed", text: "{\"a\":1", want: "", ok: false},
		{name: "no brackets", text: "nothing here", want: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := jsonCandidate(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("jsonCandidate(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}
