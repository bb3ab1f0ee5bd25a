// Package checkpoint persists per-step results of a multi-step run so an
// aborted run can be resumed without regenerating completed steps. It is an
// opt-in enhancement: a runner without a store keeps the all-or-nothing
// behavior.
package checkpoint

import "context"

// Store persists step documents keyed by run ID and step key.
type Store interface {
	// SaveStep records the parsed document a step produced.
	SaveStep(ctx context.Context, runID, stepKey string, doc any) error

	// LoadRun returns every saved step document for the run.
	LoadRun(ctx context.Context, runID string) (map[string]any, error)

	// ClearRun removes all saved documents for the run.
	ClearRun(ctx context.Context, runID string) error

	// Close releases backend resources.
	Close() error
}
