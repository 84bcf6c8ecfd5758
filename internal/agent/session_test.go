package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nin-ia/leadcard/pkg/openai"
)

func fastPoll() []PollOption {
	return []PollOption{
		WithPollInterval(time.Millisecond),
		WithPollTimeout(100 * time.Millisecond),
	}
}

func TestSessionAwaitTerminal_Completes(t *testing.T) {
	backend := &fakeBackend{
		pollScript: []*openai.Run{
			pendingRun("run_1"),
			pendingRun("run_1"),
			completedRun("run_1"),
		},
	}

	s, err := NewSession(context.Background(), backend)
	require.NoError(t, err)
	require.NoError(t, s.AppendUser(context.Background(), "hello"))

	_, err = s.StartRun(context.Background(), "asst_1")
	require.NoError(t, err)

	run, err := s.AwaitTerminal(context.Background(), fastPoll()...)
	require.NoError(t, err)
	assert.Equal(t, openai.RunStatusCompleted, run.Status)
}

func TestSessionAwaitTerminal_Timeout(t *testing.T) {
	// Empty poll script: GetRun reports in_progress forever.
	backend := &fakeBackend{}

	s, err := NewSession(context.Background(), backend)
	require.NoError(t, err)

	_, err = s.StartRun(context.Background(), "asst_1")
	require.NoError(t, err)

	_, err = s.AwaitTerminal(context.Background(),
		WithPollInterval(time.Millisecond),
		WithPollTimeout(20*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
}

func TestSessionAwaitTerminal_ContextCancelled(t *testing.T) {
	backend := &fakeBackend{}

	s, err := NewSession(context.Background(), backend)
	require.NoError(t, err)
	_, err = s.StartRun(context.Background(), "asst_1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.AwaitTerminal(ctx, fastPoll()...)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionStartRun_SingleActiveRun(t *testing.T) {
	backend := &fakeBackend{}

	s, err := NewSession(context.Background(), backend)
	require.NoError(t, err)

	_, err = s.StartRun(context.Background(), "asst_1")
	require.NoError(t, err)

	_, err = s.StartRun(context.Background(), "asst_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still active")
}

func TestSessionSubmitToolOutputs_RequiresActionOnly(t *testing.T) {
	backend := &fakeBackend{
		pollScript: []*openai.Run{actionRun("run_1", "call_1", "Acme Corp")},
	}

	s, err := NewSession(context.Background(), backend)
	require.NoError(t, err)

	// No run yet.
	err = s.SubmitToolOutputs(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run awaiting tool outputs")

	_, err = s.StartRun(context.Background(), "asst_1")
	require.NoError(t, err)

	run, err := s.AwaitTerminal(context.Background(), fastPoll()...)
	require.NoError(t, err)
	require.Equal(t, openai.RunStatusRequiresAction, run.Status)

	err = s.SubmitToolOutputs(context.Background(), []openai.ToolOutput{
		{ToolCallID: "call_1", Output: "context"},
	})
	require.NoError(t, err)

	// Resubmission is invalid: the run is pending again.
	err = s.SubmitToolOutputs(context.Background(), nil)
	require.Error(t, err)
}

func TestSessionFinalText(t *testing.T) {
	backend := &fakeBackend{
		messages: []openai.ThreadMessage{
			{ID: "msg_1", Role: "user", Text: "the question"},
			{ID: "msg_2", Role: "assistant", Text: "  Nom: Doe"},
			{ID: "msg_3", Role: "assistant", Text: "Mail: j@d.fr  "},
		},
	}

	s, err := NewSession(context.Background(), backend)
	require.NoError(t, err)

	text, err := s.FinalText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Nom: Doe\nMail: j@d.fr", text)
}
