package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestMockClientCreateMessage(t *testing.T) {
	client := &MockClient{}
	resp := &MessageResponse{
		ID:    "msg_abc",
		Model: "claude-haiku-4-5-20251001",
		Content: []ContentBlock{
			{Type: "text", Text: `{"score": 0.72}`},
		},
		StopReason: "end_turn",
		Usage:      TokenUsage{InputTokens: 500, OutputTokens: 40},
	}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(resp, nil)

	got, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "score this company"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_abc", got.ID)
	assert.Equal(t, `{"score": 0.72}`, got.Text())
	client.AssertExpectations(t)
}

func TestMessageResponseTextConcatenates(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "alpha "},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "beta"},
		},
	}
	assert.Equal(t, "alpha beta", resp.Text())
}

func TestEstimateCostKnownModel(t *testing.T) {
	usage := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 500_000,
	}
	// 1M input at $0.80 + 0.5M output at $4.00 = 0.80 + 2.00
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 2.80, cost, 1e-9)
}

func TestEstimateCostCacheTokens(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}
	// cache write at 1.25x input rate, cache read at 0.1x input rate
	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	assert.InDelta(t, 3.00*1.25+3.00*0.1, cost, 1e-9)
}

func TestEstimateCostUnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.Equal(t, 0.0, usage.EstimateCost("claude-unknown"))
}
