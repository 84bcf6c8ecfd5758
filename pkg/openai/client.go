// Package openai provides a client for the OpenAI Assistants API surface the
// lead pipeline depends on: threads, messages, runs and tool-output submission.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"

	// assistantsBeta is required on every assistants-surface request.
	assistantsBeta = "assistants=v2"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// Pending reports whether the run is still being worked on by the backend.
func (s RunStatus) Pending() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusCancelling:
		return true
	}
	return false
}

// Client defines the assistants-backend operations used by the pipeline.
type Client interface {
	CreateAssistant(ctx context.Context, req AssistantRequest) (*Assistant, error)
	CreateThread(ctx context.Context) (*Thread, error)
	CreateMessage(ctx context.Context, threadID string, req MessageRequest) error
	CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error)
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// AssistantRequest defines an assistant: instructions, model and optional tools.
type AssistantRequest struct {
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	Tools        []Tool `json:"tools,omitempty"`
}

// Tool declares a function tool the assistant may call.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef is a function tool's schema.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Assistant is a created assistant handle.
type Assistant struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

// Thread is a conversation handle assigned by the backend.
type Thread struct {
	ID string `json:"id"`
}

// MessageRequest appends a message to a thread.
type MessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadMessage is a message read back from a thread, with its content blocks
// flattened into a single text value.
type ThreadMessage struct {
	ID        string
	Role      string
	Text      string
	CreatedAt int64
}

// Run is one generation attempt within a thread.
type Run struct {
	ID             string
	ThreadID       string
	Status         RunStatus
	RequiredAction *RequiredAction
	LastError      string
}

// RequiredAction carries the tool calls the backend needs answered before the
// run can continue.
type RequiredAction struct {
	ToolCalls []ToolCall
}

// ToolCall is a single tool invocation request emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON-encoded argument object
}

// ToolOutput answers one tool call, keyed by its correlation identifier.
type ToolOutput struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. The run poll loop alone
// issues one request per second, so the default leaves headroom for the rest.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an assistants-backend client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(5), 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// --- wire types ---

type wireRun struct {
	ID             string `json:"id"`
	ThreadID       string `json:"thread_id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		Type              string `json:"type"`
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (w *wireRun) toRun() *Run {
	run := &Run{
		ID:       w.ID,
		ThreadID: w.ThreadID,
		Status:   RunStatus(w.Status),
	}
	if w.LastError != nil {
		run.LastError = w.LastError.Message
	}
	if w.RequiredAction != nil {
		action := &RequiredAction{}
		for _, tc := range w.RequiredAction.SubmitToolOutputs.ToolCalls {
			action.ToolCalls = append(action.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		run.RequiredAction = action
	}
	return run
}

type wireMessageList struct {
	Data []struct {
		ID        string `json:"id"`
		Role      string `json:"role"`
		CreatedAt int64  `json:"created_at"`
		Content   []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// --- API calls ---

func (c *httpClient) CreateAssistant(ctx context.Context, req AssistantRequest) (*Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants", req, &out); err != nil {
		return nil, eris.Wrap(err, "openai: create assistant")
	}
	return &out, nil
}

func (c *httpClient) CreateThread(ctx context.Context) (*Thread, error) {
	var out Thread
	if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &out); err != nil {
		return nil, eris.Wrap(err, "openai: create thread")
	}
	return &out, nil
}

func (c *httpClient) CreateMessage(ctx context.Context, threadID string, req MessageRequest) error {
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", req, nil); err != nil {
		return eris.Wrapf(err, "openai: create message in thread %s", threadID)
	}
	return nil
}

func (c *httpClient) CreateRun(ctx context.Context, threadID, assistantID string) (*Run, error) {
	body := map[string]string{"assistant_id": assistantID}
	var out wireRun
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &out); err != nil {
		return nil, eris.Wrapf(err, "openai: create run in thread %s", threadID)
	}
	return out.toRun(), nil
}

func (c *httpClient) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var out wireRun
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "openai: get run %s", runID)
	}
	return out.toRun(), nil
}

func (c *httpClient) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*Run, error) {
	body := map[string]any{"tool_outputs": outputs}
	var out wireRun
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs/"+runID+"/submit_tool_outputs", body, &out); err != nil {
		return nil, eris.Wrapf(err, "openai: submit tool outputs for run %s", runID)
	}
	return out.toRun(), nil
}

// ListMessages returns the thread's messages in chronological order.
func (c *httpClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var out wireMessageList
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages?order=asc", nil, &out); err != nil {
		return nil, eris.Wrapf(err, "openai: list messages in thread %s", threadID)
	}

	msgs := make([]ThreadMessage, 0, len(out.Data))
	for _, m := range out.Data {
		var sb strings.Builder
		for _, block := range m.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text.Value)
			}
		}
		msgs = append(msgs, ThreadMessage{
			ID:        m.ID,
			Role:      m.Role,
			Text:      sb.String(),
			CreatedAt: m.CreatedAt,
		})
	}
	return msgs, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "rate limit wait")
		}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", assistantsBeta)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
	}
	return nil
}
