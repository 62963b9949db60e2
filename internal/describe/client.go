package describe

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sellerstudio/imageprep/internal/jobutil"
)

// RunState is the closed set of analysis job states the generator reacts to.
// Anything the wire protocol reports outside the terminal states maps to
// RunPending and is resolved by the polling ceiling.
type RunState int

const (
	RunPending RunState = iota
	RunSucceeded
	RunFailed
	RunCancelled
)

func (s RunState) String() string {
	switch s {
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	case RunCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Client is the analysis capability boundary: a conversational context, one
// message per sub-batch, an asynchronous run polled to a terminal state, and
// the assistant's reply.
type Client interface {
	StartConversation(ctx context.Context) (threadID string, err error)
	PostMessage(ctx context.Context, threadID, text string) error
	StartAnalysis(ctx context.Context, threadID, assistantID string) (runID string, err error)
	AnalysisState(ctx context.Context, threadID, runID string) (RunState, error)
	AssistantReply(ctx context.Context, threadID, runID string) (string, error)
}

// OpenAIClient implements Client against the OpenAI Assistants API.
type OpenAIClient struct {
	api *openai.Client
}

// NewOpenAIClient builds the assistants-backed client. baseURL is optional.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg)}
}

func (c *OpenAIClient) StartConversation(ctx context.Context) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", classify("analysis: create thread", err)
	}
	return thread.ID, nil
}

func (c *OpenAIClient) PostMessage(ctx context.Context, threadID, text string) error {
	_, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return classify("analysis: post message", err)
	}
	return nil
}

func (c *OpenAIClient) StartAnalysis(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return "", classify("analysis: create run", err)
	}
	return run.ID, nil
}

func (c *OpenAIClient) AnalysisState(ctx context.Context, threadID, runID string) (RunState, error) {
	run, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return RunPending, classify("analysis: retrieve run", err)
	}
	switch run.Status {
	case openai.RunStatusCompleted:
		return RunSucceeded, nil
	case openai.RunStatusFailed, openai.RunStatusExpired, openai.RunStatusIncomplete:
		return RunFailed, nil
	case openai.RunStatusCancelling, openai.RunStatusCancelled:
		return RunCancelled, nil
	default:
		return RunPending, nil
	}
}

func (c *OpenAIClient) AssistantReply(ctx context.Context, threadID, runID string) (string, error) {
	limit := 1
	order := "desc"
	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", classify("analysis: list messages", err)
	}
	for _, msg := range list.Messages {
		if msg.Role != openai.ChatMessageRoleAssistant {
			continue
		}
		for _, part := range msg.Content {
			if part.Text != nil && part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", fmt.Errorf("analysis: run %s produced no assistant text", runID)
}

// classify maps OpenAI client errors onto the shared taxonomy.
func classify(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if clsErr := jobutil.ClassifyStatus(op, apiErr.HTTPStatusCode); clsErr != nil {
			return clsErr
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if clsErr := jobutil.ClassifyStatus(op, reqErr.HTTPStatusCode); clsErr != nil {
			return clsErr
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
