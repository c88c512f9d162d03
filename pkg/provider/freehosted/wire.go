package freehosted

import (
	"contentforge/internal/model"
	"contentforge/pkg/provider"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

func newChatCompletionRequest(modelName string, req *model.GenerationRequest) *chatCompletionRequest {
	return &chatCompletionRequest{
		Model:       modelName,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (r *chatCompletionResponse) extract(p model.ProviderType) (string, int, error) {
	if len(r.Choices) == 0 {
		return "", 0, provider.NewUnavailable(p, "empty completion response", nil)
	}
	return r.Choices[0].Message.Content, r.Usage.TotalTokens, nil
}
