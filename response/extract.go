package response

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sweetpotato0/genflow/fault"
)

// excerptLimit caps how much raw text a malformed-output error quotes back.
const excerptLimit = 300

var fencedJSON = regexp.MustCompile("(?is)```json\\s*(.*?)```")

// Extract pulls the structured document out of a generation result. The
// parsed tree is returned unmodified; schema conformance is the model's
// responsibility, declared on the request.
func Extract(gen *Generation) (any, error) {
	text, err := Text(gen)
	if err != nil {
		return nil, err
	}

	candidate, ok := jsonCandidate(text)
	if !ok {
		return nil, fault.New(fault.KindMalformedOutput,
			"The model did not return a JSON document. Output began with: %q", excerpt(text))
	}

	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		if gen.FinishReason == FinishMaxTokens {
			return nil, fault.Wrap(fault.KindTruncated, err,
				"The model output was cut off before completion because the maximum token limit was reached. Try reducing the input size.")
		}
		return nil, fault.Wrap(fault.KindMalformedOutput, err,
			"Failed to parse the model output as JSON (%v). Output began with: %q", err, excerpt(text))
	}
	return doc, nil
}

// Text validates that a generation produced usable text, surfacing safety
// blocks and empty responses as classified errors. A blocked response is
// never handed to the JSON extractor.
func Text(gen *Generation) (string, error) {
	if gen == nil {
		return "", fault.New(fault.KindEmptyResponse, "The model returned no response.")
	}

	if gen.Safety != nil && gen.Safety.BlockReason != "" {
		flagged := flaggedCategories(gen.Safety.Ratings)
		msg := fmt.Sprintf("The request was blocked for safety reasons (%s).", gen.Safety.BlockReason)
		if len(flagged) > 0 {
			msg += " Flagged categories: " + strings.Join(flagged, ", ") + "."
		}
		return "", fault.SafetyBlocked(flagged, "%s", msg)
	}

	if !gen.HasText {
		if gen.Candidates == 0 {
			return "", fault.New(fault.KindEmptyResponse, "The model returned no candidates.")
		}
		return "", fault.New(fault.KindEmptyResponse,
			"The model returned no text (finish reason: %s).", gen.FinishReason)
	}
	return gen.Text, nil
}

// flaggedCategories lists every category rated above low severity.
func flaggedCategories(ratings []SafetyRating) []string {
	var flagged []string
	for _, r := range ratings {
		if r.Severity > SeverityLow {
			flagged = append(flagged, r.Category)
		}
	}
	return flagged
}

// jsonCandidate locates the JSON payload inside free-form model text: a
// ```json fenced block wins; otherwise the outermost bracket span, from the
// first opening bracket to the last closing bracket of the same family, so
// trailing prose after a valid document does not break extraction.
func jsonCandidate(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")

	start, open := objStart, byte('{')
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start, open = arrStart, '['
	}
	if start < 0 {
		return "", false
	}

	closer := "}"
	if open == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func excerpt(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= excerptLimit {
		return trimmed
	}
	return trimmed[:excerptLimit]
}
