package agent

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nin-ia/leadcard/pkg/openai"
)

// ErrPollTimeout is returned when a run stays pending past the poll bound.
// Distinct from a failed run, but both abandon the stage.
var ErrPollTimeout = eris.New("agent: run poll timed out")

const (
	defaultPollInterval = 1 * time.Second
	defaultPollTimeout  = 30 * time.Second
)

// PollOption configures run polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	interval time.Duration
	timeout  time.Duration
}

func defaultPollConfig() pollConfig {
	return pollConfig{
		interval: defaultPollInterval,
		timeout:  defaultPollTimeout,
	}
}

// WithPollInterval overrides the poll cadence.
func WithPollInterval(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.interval = d
	}
}

// WithPollTimeout overrides the maximum time to wait for a run to settle.
func WithPollTimeout(d time.Duration) PollOption {
	return func(c *pollConfig) {
		c.timeout = d
	}
}

// Session is one conversation with the assistants backend. Created at the
// start of a pipeline stage, discarded once the stage's final text is
// harvested; never persisted.
type Session struct {
	client   openai.Client
	threadID string
	run      *openai.Run
}

// NewSession creates a backend thread and wraps it in a Session.
func NewSession(ctx context.Context, client openai.Client) (*Session, error) {
	thread, err := client.CreateThread(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "agent: create session")
	}
	return &Session{client: client, threadID: thread.ID}, nil
}

// ThreadID returns the backend-assigned session identifier.
func (s *Session) ThreadID() string {
	return s.threadID
}

// AppendUser appends a user message to the session history.
func (s *Session) AppendUser(ctx context.Context, text string) error {
	return s.client.CreateMessage(ctx, s.threadID, openai.MessageRequest{
		Role:    "user",
		Content: text,
	})
}

// StartRun begins generation against the session's full history. A session has
// at most one active run: starting while another is pending or awaiting tool
// outputs is an error.
func (s *Session) StartRun(ctx context.Context, assistantID string) (*openai.Run, error) {
	if s.run != nil && (s.run.Status.Pending() || s.run.Status == openai.RunStatusRequiresAction) {
		return nil, eris.Errorf("agent: run %s still active in thread %s", s.run.ID, s.threadID)
	}

	run, err := s.client.CreateRun(ctx, s.threadID, assistantID)
	if err != nil {
		return nil, eris.Wrap(err, "agent: start run")
	}
	s.run = run
	return run, nil
}

// AwaitTerminal polls the active run until it leaves the pending states or the
// poll bound elapses. On timeout it returns ErrPollTimeout rather than
// blocking indefinitely.
func (s *Session) AwaitTerminal(ctx context.Context, opts ...PollOption) (*openai.Run, error) {
	if s.run == nil {
		return nil, eris.New("agent: no run to await")
	}

	cfg := defaultPollConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	deadline := time.NewTimer(cfg.timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "agent: await run %s", s.run.ID)
		case <-deadline.C:
			return nil, eris.Wrapf(ErrPollTimeout, "run %s in thread %s", s.run.ID, s.threadID)
		case <-time.After(cfg.interval):
		}

		run, err := s.client.GetRun(ctx, s.threadID, s.run.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "agent: poll run %s", s.run.ID)
		}
		s.run = run

		if !run.Status.Pending() {
			return run, nil
		}
	}
}

// SubmitToolOutputs answers the run's pending tool calls and transitions it
// back to pending. Only valid while the run requires action.
func (s *Session) SubmitToolOutputs(ctx context.Context, outputs []openai.ToolOutput) error {
	if s.run == nil || s.run.Status != openai.RunStatusRequiresAction {
		return eris.New("agent: no run awaiting tool outputs")
	}

	run, err := s.client.SubmitToolOutputs(ctx, s.threadID, s.run.ID, outputs)
	if err != nil {
		return eris.Wrapf(err, "agent: resume run %s", s.run.ID)
	}
	s.run = run
	return nil
}

// FinalText concatenates every assistant-authored message in the session, in
// chronological order, trimmed of surrounding whitespace.
func (s *Session) FinalText(ctx context.Context) (string, error) {
	msgs, err := s.client.ListMessages(ctx, s.threadID)
	if err != nil {
		return "", eris.Wrapf(err, "agent: read thread %s", s.threadID)
	}

	var parts []string
	for _, m := range msgs {
		if m.Role == "assistant" && m.Text != "" {
			parts = append(parts, m.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}
