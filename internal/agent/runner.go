package agent

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nin-ia/leadcard/pkg/openai"
)

// maxToolRounds bounds requires_action cycles per run. The declared toolset
// only ever produces one round, but the loop tolerates a few more.
const maxToolRounds = 5

// Runner executes one pipeline stage as a full conversation: fresh session,
// one run, tool delegation while the run is suspended, final-text harvest.
type Runner struct {
	client   openai.Client
	invoker  Invoker
	pollOpts []PollOption

	mu         sync.Mutex
	assistants map[string]string // definition name -> backend assistant id
}

// NewRunner creates a stage runner. Poll options apply to every awaited run.
func NewRunner(client openai.Client, invoker Invoker, pollOpts ...PollOption) *Runner {
	return &Runner{
		client:     client,
		invoker:    invoker,
		pollOpts:   pollOpts,
		assistants: make(map[string]string),
	}
}

// ensureAssistant registers the definition with the backend once and reuses
// the returned id for subsequent stages and runs.
func (r *Runner) ensureAssistant(ctx context.Context, def Definition) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.assistants[def.Name]; ok {
		return id, nil
	}

	assistant, err := r.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        def.Model,
		Instructions: def.Instructions,
		Tools:        def.OpenAITools(),
	})
	if err != nil {
		return "", eris.Wrapf(err, "agent: register assistant %s", def.Name)
	}

	r.assistants[def.Name] = assistant.ID
	return assistant.ID, nil
}

// RunStage posts the user message to a fresh session, runs the definition's
// assistant to a terminal state and returns the session's final text.
// Tool calls are honored only when the definition declares tools; an
// unexpected requires_action is a stage failure.
func (r *Runner) RunStage(ctx context.Context, def Definition, userMessage string) (string, error) {
	log := zap.L().With(zap.String("agent", def.Name))

	assistantID, err := r.ensureAssistant(ctx, def)
	if err != nil {
		return "", err
	}

	session, err := NewSession(ctx, r.client)
	if err != nil {
		return "", err
	}

	if err := session.AppendUser(ctx, userMessage); err != nil {
		return "", eris.Wrapf(err, "agent: post message for %s", def.Name)
	}

	if _, err := session.StartRun(ctx, assistantID); err != nil {
		return "", err
	}

	run, err := session.AwaitTerminal(ctx, r.pollOpts...)
	if err != nil {
		return "", err
	}

	for rounds := 0; run.Status == openai.RunStatusRequiresAction; rounds++ {
		if len(def.Tools) == 0 {
			return "", eris.Errorf("agent: %s requested tool calls but declares no tools", def.Name)
		}
		if rounds >= maxToolRounds {
			return "", eris.Errorf("agent: %s exceeded %d tool rounds", def.Name, maxToolRounds)
		}

		outputs, err := r.resolveToolCalls(ctx, run)
		if err != nil {
			return "", err
		}

		if err := session.SubmitToolOutputs(ctx, outputs); err != nil {
			return "", err
		}

		run, err = session.AwaitTerminal(ctx, r.pollOpts...)
		if err != nil {
			return "", err
		}
	}

	switch run.Status {
	case openai.RunStatusCompleted:
	case openai.RunStatusFailed:
		return "", eris.Errorf("agent: %s run failed: %s", def.Name, run.LastError)
	default:
		return "", eris.Errorf("agent: %s run ended with status %s", def.Name, run.Status)
	}

	text, err := session.FinalText(ctx)
	if err != nil {
		return "", err
	}

	log.Debug("agent: stage complete", zap.Int("reply_chars", len(text)))
	return text, nil
}

// resolveToolCalls invokes the Invoker for every pending tool call and tags
// each output with its correlation identifier.
func (r *Runner) resolveToolCalls(ctx context.Context, run *openai.Run) ([]openai.ToolOutput, error) {
	if run.RequiredAction == nil || len(run.RequiredAction.ToolCalls) == 0 {
		return nil, eris.Errorf("agent: run %s requires action but carries no tool calls", run.ID)
	}

	outputs := make([]openai.ToolOutput, 0, len(run.RequiredAction.ToolCalls))
	for _, call := range run.RequiredAction.ToolCalls {
		result, err := r.invoker.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			return nil, eris.Wrapf(err, "agent: tool call %s", call.ID)
		}
		outputs = append(outputs, openai.ToolOutput{
			ToolCallID: call.ID,
			Output:     result,
		})
	}
	return outputs, nil
}
