// Package response models the outcome of a single generation call and
// extracts structured documents from raw model text.
package response

// FinishReason reports why the model stopped producing output.
type FinishReason int

const (
	FinishUnspecified FinishReason = iota
	FinishComplete
	FinishMaxTokens
	FinishSafety
	FinishOther
)

// String returns the finish reason name.
func (fr FinishReason) String() string {
	switch fr {
	case FinishComplete:
		return "COMPLETE"
	case FinishMaxTokens:
		return "MAX_TOKENS"
	case FinishSafety:
		return "SAFETY"
	case FinishOther:
		return "OTHER"
	default:
		return "UNSPECIFIED"
	}
}

// Severity grades a safety rating.
type Severity int

const (
	SeverityNegligible Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "negligible"
	}
}

// SafetyRating grades one harm category of the request or response.
type SafetyRating struct {
	Category string
	Severity Severity
}

// SafetyFeedback carries a service-side refusal: the block reason plus the
// per-category ratings that triggered it.
type SafetyFeedback struct {
	BlockReason string
	Ratings     []SafetyRating
}

// Generation is the provider-neutral result of one model call. It is produced
// once and never mutated.
type Generation struct {
	Text         string
	HasText      bool
	FinishReason FinishReason
	Safety       *SafetyFeedback
	Candidates   int
}
