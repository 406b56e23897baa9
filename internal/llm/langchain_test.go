package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel records the context it was called with and returns a canned reply.
type fakeModel struct {
	deadline    time.Time
	hadDeadline bool
}

func (m *fakeModel) GenerateContent(ctx context.Context, _ []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.deadline, m.hadDeadline = ctx.Deadline()
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: `{"ok": true}`}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, _ string, _ ...llms.CallOption) (string, error) {
	m.deadline, m.hadDeadline = ctx.Deadline()
	return "", nil
}

func TestGenerate_AppliesConfiguredTimeout(t *testing.T) {
	model := &fakeModel{}
	client := &LangchainClient{
		model:   model,
		options: Options{Timeout: 30 * time.Second},
	}

	_, err := client.Generate(context.Background(), Request{Input: "hello"})
	require.NoError(t, err)

	require.True(t, model.hadDeadline)
	remaining := time.Until(model.deadline)
	assert.Greater(t, remaining, 25*time.Second)
	assert.LessOrEqual(t, remaining, 30*time.Second)
}

func TestGenerate_ZeroTimeoutLeavesContextUnbounded(t *testing.T) {
	model := &fakeModel{}
	client := &LangchainClient{model: model}

	_, err := client.Generate(context.Background(), Request{Input: "hello"})
	require.NoError(t, err)
	assert.False(t, model.hadDeadline)
}

func TestGenerate_NoChoicesIsAnError(t *testing.T) {
	client := &LangchainClient{model: emptyModel{}}

	_, err := client.Generate(context.Background(), Request{Input: "hello"})
	assert.Error(t, err)
}

type emptyModel struct{}

func (emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}
