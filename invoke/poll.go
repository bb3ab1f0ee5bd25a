package invoke

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweetpotato0/genflow/fault"
	"github.com/sweetpotato0/genflow/pkg/logging"
	"github.com/sweetpotato0/genflow/provider"
)

// defaultPollInterval is the fixed delay between operation refreshes.
const defaultPollInterval = 10 * time.Second

// Poller drives an asynchronous media job to completion: a fixed inter-poll
// delay, each refresh routed through the invoker's retry policy, and the
// finished result fetched by URI.
type Poller struct {
	interval time.Duration
	maxWait  time.Duration // 0 means poll until the service reports completion
	invoker  *Invoker
	sleep    SleepFunc
	logger   *slog.Logger
}

// PollerOption customises a Poller.
type PollerOption func(*Poller)

// WithInterval overrides the fixed inter-poll delay.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMaxWait bounds the total polling time. The zero value keeps the loop
// unbounded; exceeding the bound fails with a TimedOut error.
func WithMaxWait(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.maxWait = d
		}
	}
}

// WithPollSleep replaces the inter-poll sleeper, mainly for tests.
func WithPollSleep(sleep SleepFunc) PollerOption {
	return func(p *Poller) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithPollLogger overrides the component logger.
func WithPollLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPoller returns a poller with a 10-second interval and no wait bound.
func NewPoller(iv *Invoker, opts ...PollerOption) *Poller {
	if iv == nil {
		iv = NewInvoker()
	}
	p := &Poller{
		interval: defaultPollInterval,
		invoker:  iv,
		sleep:    sleepContext,
		logger:   logging.WithComponent("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls the handle until the service reports completion, then fetches
// and returns the referenced resource as opaque bytes.
func (p *Poller) Wait(ctx context.Context, label string, h *provider.Handle, gen provider.MediaGenerator) ([]byte, error) {
	if h == nil {
		return nil, fault.New(fault.KindEmptyResponse, "The generation job returned no operation handle.")
	}

	started := time.Now()
	for !h.Done {
		if p.maxWait > 0 && time.Since(started) >= p.maxWait {
			return nil, fault.New(fault.KindTimedOut,
				"The generation job did not finish within %s.", p.maxWait)
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, fault.Classify(err, label)
		}
		refreshed, err := Do(ctx, p.invoker, label, func(ctx context.Context) (*provider.Handle, error) {
			return gen.PollMediaJob(ctx, h)
		})
		if err != nil {
			return nil, err
		}
		h = refreshed
		p.logger.Debug("operation polled", "context", label, "operation", h.Name, "done", h.Done)
	}

	if h.URI == "" {
		return nil, fault.New(fault.KindEmptyResponse, "The generation job finished but produced no output.")
	}

	return Do(ctx, p.invoker, label, func(ctx context.Context) ([]byte, error) {
		return gen.FetchMedia(ctx, h.URI)
	})
}

// GenerateMedia starts an asynchronous media job and waits for its result.
func (p *Poller) GenerateMedia(ctx context.Context, gen provider.MediaGenerator, req *provider.MediaRequest) ([]byte, error) {
	h, err := Do(ctx, p.invoker, "Video Generation", func(ctx context.Context) (*provider.Handle, error) {
		return gen.StartMediaJob(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	p.logger.Info("media job started", "operation", h.Name)
	return p.Wait(ctx, "Video Generation (Polling)", h, gen)
}
