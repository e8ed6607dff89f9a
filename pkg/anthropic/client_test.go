package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "hello "},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "world"},
		},
	}
	assert.Equal(t, "hello world", resp.Text())
}

func TestMessageResponse_Text_Empty(t *testing.T) {
	resp := &MessageResponse{}
	assert.Equal(t, "", resp.Text())
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 4.80, cost, 0.001)
}

func TestTokenUsage_EstimateCost_CacheTokens(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              100_000,
		OutputTokens:             50_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     400_000,
	}

	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	// 0.1*3 + 0.05*15 + 0.2*3*1.25 + 0.4*3*0.1
	assert.InDelta(t, 0.30+0.75+0.75+0.12, cost, 0.001)
}

func TestTokenUsage_EstimateCost_UnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000}
	assert.Zero(t, usage.EstimateCost("not-a-model"))
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	assert.Len(t, msgs, 2)
}
