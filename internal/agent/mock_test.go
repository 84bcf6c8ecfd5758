package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/nin-ia/leadcard/pkg/openai"
)

// fakeBackend is a scripted openai.Client double. GetRun pops statuses from
// pollScript (repeating the last entry once exhausted) so tests can walk a run
// through its lifecycle; every call is appended to calls for ordering checks.
type fakeBackend struct {
	mu sync.Mutex

	calls      []string
	posted     []string // user message contents, in post order
	submitted  [][]openai.ToolOutput
	pollScript []*openai.Run
	pollIdx    int
	messages   []openai.ThreadMessage

	createAssistantErr error
	createThreadErr    error
	threadSeq          int
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) CreateAssistant(_ context.Context, req openai.AssistantRequest) (*openai.Assistant, error) {
	f.record("CreateAssistant")
	if f.createAssistantErr != nil {
		return nil, f.createAssistantErr
	}
	return &openai.Assistant{ID: "asst_" + req.Model, Model: req.Model}, nil
}

func (f *fakeBackend) CreateThread(_ context.Context) (*openai.Thread, error) {
	f.record("CreateThread")
	if f.createThreadErr != nil {
		return nil, f.createThreadErr
	}
	f.mu.Lock()
	f.threadSeq++
	id := fmt.Sprintf("thread_%d", f.threadSeq)
	f.mu.Unlock()
	return &openai.Thread{ID: id}, nil
}

func (f *fakeBackend) CreateMessage(_ context.Context, _ string, req openai.MessageRequest) error {
	f.record("CreateMessage")
	f.mu.Lock()
	f.posted = append(f.posted, req.Content)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) CreateRun(_ context.Context, threadID, _ string) (*openai.Run, error) {
	f.record("CreateRun")
	return &openai.Run{ID: "run_1", ThreadID: threadID, Status: openai.RunStatusQueued}, nil
}

func (f *fakeBackend) GetRun(_ context.Context, threadID, runID string) (*openai.Run, error) {
	f.record("GetRun")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pollScript) == 0 {
		return &openai.Run{ID: runID, ThreadID: threadID, Status: openai.RunStatusInProgress}, nil
	}
	run := f.pollScript[f.pollIdx]
	if f.pollIdx < len(f.pollScript)-1 {
		f.pollIdx++
	}
	return run, nil
}

func (f *fakeBackend) SubmitToolOutputs(_ context.Context, threadID, runID string, outputs []openai.ToolOutput) (*openai.Run, error) {
	f.record("SubmitToolOutputs")
	f.mu.Lock()
	f.submitted = append(f.submitted, outputs)
	f.mu.Unlock()
	return &openai.Run{ID: runID, ThreadID: threadID, Status: openai.RunStatusQueued}, nil
}

func (f *fakeBackend) ListMessages(_ context.Context, _ string) ([]openai.ThreadMessage, error) {
	f.record("ListMessages")
	return f.messages, nil
}

func pendingRun(id string) *openai.Run {
	return &openai.Run{ID: id, Status: openai.RunStatusInProgress}
}

func completedRun(id string) *openai.Run {
	return &openai.Run{ID: id, Status: openai.RunStatusCompleted}
}

func actionRun(id, callID, query string) *openai.Run {
	return &openai.Run{
		ID:     id,
		Status: openai.RunStatusRequiresAction,
		RequiredAction: &openai.RequiredAction{
			ToolCalls: []openai.ToolCall{{
				ID:        callID,
				Name:      ToolTavilySearch,
				Arguments: fmt.Sprintf(`{"query": %q}`, query),
			}},
		},
	}
}
