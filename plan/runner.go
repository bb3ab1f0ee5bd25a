package plan

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/genflow/checkpoint"
	"github.com/sweetpotato0/genflow/fault"
	"github.com/sweetpotato0/genflow/invoke"
	"github.com/sweetpotato0/genflow/pkg/logging"
	"github.com/sweetpotato0/genflow/pkg/telemetry"
	"github.com/sweetpotato0/genflow/provider"
	"github.com/sweetpotato0/genflow/request"
	"github.com/sweetpotato0/genflow/response"
)

// Tokenizer estimates prompt sizes so oversized step prompts can be flagged
// before they reach the model.
type Tokenizer interface {
	CountTokens(text string) int
}

// Runner executes an ordered sequence of generation steps against a provider,
// merging each step's parsed document into one composite result. Steps run
// strictly sequentially because later prompts may embed earlier output.
type Runner struct {
	gen              provider.Generator
	invoker          *invoke.Invoker
	onProgress       ProgressFunc
	tokenizer        Tokenizer
	promptTokenLimit int
	store            checkpoint.Store
	runID            string
	logger           *slog.Logger
	tracer           trace.Tracer
}

// RunnerOption customises a Runner.
type RunnerOption func(*Runner)

// WithInvoker replaces the default retry policy.
func WithInvoker(iv *invoke.Invoker) RunnerOption {
	return func(r *Runner) {
		if iv != nil {
			r.invoker = iv
		}
	}
}

// WithProgress registers the progress callback invoked between steps.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(r *Runner) {
		r.onProgress = fn
	}
}

// WithTokenizer enables prompt-size estimation. When limit is positive,
// prompts estimated above it are logged as warnings before the call is made.
func WithTokenizer(tok Tokenizer, limit int) RunnerOption {
	return func(r *Runner) {
		r.tokenizer = tok
		r.promptTokenLimit = limit
	}
}

// WithCheckpoint persists each completed step under runID so a failed run can
// resume without regenerating finished steps. Checkpoints are cleared after a
// fully successful run.
func WithCheckpoint(store checkpoint.Store, runID string) RunnerOption {
	return func(r *Runner) {
		if store != nil && runID != "" {
			r.store = store
			r.runID = runID
		}
	}
}

// WithRunnerLogger overrides the component logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a step runner for the given provider.
func NewRunner(gen provider.Generator, opts ...RunnerOption) (*Runner, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	r := &Runner{
		gen:     gen,
		invoker: invoke.NewInvoker(),
		logger:  logging.WithComponent("plan_runner"),
		tracer:  telemetry.Tracer("genflow/plan"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes every step in order and returns the assembled composite. Any
// step failure aborts the remaining steps; no partial composite is returned.
func (r *Runner) Run(ctx context.Context, steps []Step) (*Composite, error) {
	if err := validateSteps(steps); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, "plan.run",
		trace.WithAttributes(attribute.Int("plan.steps", len(steps))))
	composite := NewComposite()
	err := r.runSteps(ctx, steps, composite)
	telemetry.End(span, err)
	if err != nil {
		return nil, err
	}

	if r.store != nil {
		if cerr := r.store.ClearRun(ctx, r.runID); cerr != nil {
			r.logger.Warn("failed to clear run checkpoints", "run_id", r.runID, "error", cerr)
		}
	}
	r.logger.Info("plan completed", "steps", len(steps), "keys", composite.Len())
	return composite, nil
}

func (r *Runner) runSteps(ctx context.Context, steps []Step, composite *Composite) error {
	restored := r.loadCheckpoints(ctx)

	for i := range steps {
		step := &steps[i]
		r.emit(step.progressMessage())

		stepCtx, span := r.tracer.Start(ctx, "plan.step",
			trace.WithAttributes(attribute.String("step.key", step.primaryKey())))
		err := r.runStep(stepCtx, step, composite, restored)
		telemetry.End(span, err)
		if err != nil {
			r.logger.Error("step failed, aborting plan",
				"step", step.primaryKey(), "kind", fault.KindOf(err).String(), "error", err)
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, step *Step, composite *Composite, restored map[string]any) error {
	if r.restoreStep(step, composite, restored) {
		r.logger.Info("step restored from checkpoint", "step", step.primaryKey())
		return nil
	}

	if step.Repeat > 1 {
		items := make([]any, 0, step.Repeat)
		for n := 0; n < step.Repeat; n++ {
			doc, err := r.executeOnce(ctx, step, composite, n)
			if err != nil {
				return err
			}
			items = append(items, doc)
		}
		if err := composite.Merge(step.Key, items); err != nil {
			return err
		}
		return r.saveCheckpoint(ctx, step.Key, items)
	}

	doc, err := r.executeOnce(ctx, step, composite, 0)
	if err != nil {
		return err
	}

	if len(step.Keys) > 0 {
		tree, ok := doc.(map[string]any)
		if !ok {
			return fault.New(fault.KindMalformedOutput,
				"%s returned %T where a JSON object with keys %v was expected.", step.label(), doc, step.Keys)
		}
		for _, key := range step.Keys {
			value, ok := tree[key]
			if !ok {
				return fault.New(fault.KindMalformedOutput,
					"%s output is missing the declared key %q.", step.label(), key)
			}
			if err := composite.Merge(key, value); err != nil {
				return err
			}
			if err := r.saveCheckpoint(ctx, key, value); err != nil {
				return err
			}
		}
		return nil
	}

	if err := composite.Merge(step.Key, doc); err != nil {
		return err
	}
	return r.saveCheckpoint(ctx, step.Key, doc)
}

// executeOnce performs one model invocation of the step template and returns
// the parsed document.
func (r *Runner) executeOnce(ctx context.Context, step *Step, composite *Composite, index int) (any, error) {
	prompt, err := step.Prompt(composite, index)
	if err != nil {
		return nil, fmt.Errorf("%s: build prompt: %w", step.label(), err)
	}
	r.checkPromptSize(step, prompt)

	opts := []request.Option{
		request.WithSchema(step.Schema),
		request.WithTier(step.Tier),
		request.WithMaxOutputTokens(step.MaxOutputTokens),
		request.WithThinkingBudget(step.ThinkingBudget),
	}
	if len(step.Attachments) > 0 {
		opts = append(opts, request.WithAttachments(step.Attachments...))
	}
	req, err := request.New(prompt, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", step.label(), err)
	}

	gen, err := invoke.Do(ctx, r.invoker, step.label(), func(ctx context.Context) (*response.Generation, error) {
		return r.gen.GenerateContent(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	doc, err := response.Extract(gen)
	if err != nil {
		return nil, fault.Classify(err, step.label())
	}
	return doc, nil
}

func (r *Runner) checkPromptSize(step *Step, prompt string) {
	if r.tokenizer == nil {
		return
	}
	count := r.tokenizer.CountTokens(prompt)
	if r.promptTokenLimit > 0 && count > r.promptTokenLimit {
		r.logger.Warn("step prompt exceeds token limit",
			"step", step.primaryKey(), "tokens", count, "limit", r.promptTokenLimit)
		return
	}
	r.logger.Debug("step prompt sized", "step", step.primaryKey(), "tokens", count)
}

func (r *Runner) loadCheckpoints(ctx context.Context) map[string]any {
	if r.store == nil {
		return nil
	}
	restored, err := r.store.LoadRun(ctx, r.runID)
	if err != nil {
		r.logger.Warn("failed to load run checkpoints, regenerating all steps",
			"run_id", r.runID, "error", err)
		return nil
	}
	if len(restored) > 0 {
		r.logger.Info("resuming run from checkpoints", "run_id", r.runID, "saved_steps", len(restored))
	}
	return restored
}

// restoreStep merges previously checkpointed documents for the step. It only
// applies when every key the step declares was saved.
func (r *Runner) restoreStep(step *Step, composite *Composite, restored map[string]any) bool {
	if len(restored) == 0 {
		return false
	}
	keys := step.declaredKeys()
	for _, key := range keys {
		if _, ok := restored[key]; !ok {
			return false
		}
	}
	for _, key := range keys {
		if err := composite.Merge(key, restored[key]); err != nil {
			return false
		}
	}
	return true
}

func (r *Runner) saveCheckpoint(ctx context.Context, key string, doc any) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveStep(ctx, r.runID, key, doc); err != nil {
		// A checkpoint write failure must not fail the run; resume just
		// regenerates the step.
		r.logger.Warn("failed to save step checkpoint", "run_id", r.runID, "step", key, "error", err)
	}
	return nil
}

func (r *Runner) emit(message string) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(Progress{Message: message})
}

func (s *Step) primaryKey() string {
	if s.Key != "" {
		return s.Key
	}
	if len(s.Keys) > 0 {
		return s.Keys[0]
	}
	return ""
}

func (s *Step) declaredKeys() []string {
	if len(s.Keys) > 0 {
		return s.Keys
	}
	return []string{s.Key}
}

func (s *Step) progressMessage() string {
	if s.Title != "" {
		return s.Title
	}
	return fmt.Sprintf("Generating %s...", s.primaryKey())
}

func validateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("plan requires at least one step")
	}
	seen := make(map[string]int)
	for i := range steps {
		step := &steps[i]
		if step.Prompt == nil {
			return fmt.Errorf("step %d: prompt builder is required", i)
		}
		if step.Schema == nil {
			return fmt.Errorf("step %d: schema is required", i)
		}
		if step.Key == "" && len(step.Keys) == 0 {
			return fmt.Errorf("step %d: a composite key is required", i)
		}
		if step.Key != "" && len(step.Keys) > 0 {
			return fmt.Errorf("step %d: Key and Keys are mutually exclusive", i)
		}
		if step.Repeat > 1 && step.Key == "" {
			return fmt.Errorf("step %d: repeated steps require a single Key", i)
		}
		for _, key := range step.declaredKeys() {
			if prev, dup := seen[key]; dup {
				return fmt.Errorf("steps %d and %d both declare key %q; step keys must be disjoint", prev, i, key)
			}
			seen[key] = i
		}
	}
	return nil
}
