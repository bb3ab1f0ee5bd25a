// Package session provides an explicit conversational session with the model.
// A session is created once per logical conversation, carries its own history,
// and is disposed with Close; there is no process-wide assistant state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sweetpotato0/genflow/invoke"
	"github.com/sweetpotato0/genflow/pkg/logging"
	"github.com/sweetpotato0/genflow/provider"
	"github.com/sweetpotato0/genflow/request"
	"github.com/sweetpotato0/genflow/response"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one exchange entry in the session transcript.
type Turn struct {
	Role Role
	Text string
}

// Session is a stateful conversation. Safe for use from one goroutine at a
// time per call; internal state is guarded for convenience.
type Session struct {
	id        string
	gen       provider.Generator
	invoker   *invoke.Invoker
	system    string
	tier      request.Tier
	maxTokens int32
	logger    *slog.Logger

	mu      sync.Mutex
	history []Turn
	closed  bool
}

// Option customises a Session.
type Option func(*Session)

// WithSystemPrompt sets the standing instructions prepended to every turn.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		s.system = prompt
	}
}

// WithTier selects the model tier used for replies.
func WithTier(tier request.Tier) Option {
	return func(s *Session) {
		if tier != "" {
			s.tier = tier
		}
	}
}

// WithMaxOutputTokens caps reply length.
func WithMaxOutputTokens(max int32) Option {
	return func(s *Session) {
		if max > 0 {
			s.maxTokens = max
		}
	}
}

// WithInvoker replaces the default retry policy.
func WithInvoker(iv *invoke.Invoker) Option {
	return func(s *Session) {
		if iv != nil {
			s.invoker = iv
		}
	}
}

// New creates a session bound to the given generator.
func New(gen provider.Generator, opts ...Option) (*Session, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	s := &Session{
		id:      fmt.Sprintf("session-%d", time.Now().UnixNano()),
		gen:     gen,
		invoker: invoke.NewInvoker(),
		tier:    request.TierFlash,
		logger:  logging.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Send appends the user text to the transcript, generates a reply, records it,
// and returns the reply text.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("session %s is closed", s.id)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("message cannot be empty")
	}

	req, err := request.New(s.transcript(text),
		request.WithTier(s.tier),
		request.WithMaxOutputTokens(s.maxTokens),
	)
	if err != nil {
		return "", err
	}

	gen, err := invoke.Do(ctx, s.invoker, "Assistant Chat", func(ctx context.Context) (*response.Generation, error) {
		return s.gen.GenerateContent(ctx, req)
	})
	if err != nil {
		return "", err
	}

	reply, err := response.Text(gen)
	if err != nil {
		return "", err
	}

	s.history = append(s.history, Turn{Role: RoleUser, Text: text}, Turn{Role: RoleModel, Text: reply})
	s.logger.Debug("turn recorded", "session", s.id, "turns", len(s.history))
	return reply, nil
}

// History returns a copy of the transcript so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Close disposes the session. Further Send calls fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// transcript renders the conversation so far plus the pending user message as
// a single prompt.
func (s *Session) transcript(pending string) string {
	var b strings.Builder
	if s.system != "" {
		b.WriteString(s.system)
		b.WriteString("\n\n")
	}
	for _, turn := range s.history {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}
	b.WriteString(string(RoleUser))
	b.WriteString(": ")
	b.WriteString(pending)
	b.WriteString("\n")
	b.WriteString(string(RoleModel))
	b.WriteString(":")
	return b.String()
}
