package mock

import (
	"context"

	"github.com/esbmc/esbmc-ai/internal/llm"
)

// Provider is a test double implementing llm.Provider.
type Provider struct {
	NameValue string
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)
	CountFn   func(model string, messages []llm.ChatMessage) int

	// Requests records every request passed to Chat, for assertions.
	Requests []llm.ChatRequest
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.Requests = append(p.Requests, req)
	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role:    llm.RoleAssistant,
			Content: "mock",
		},
	}, nil
}

// CountTokens defaults to one token per character so tests can reason about
// window limits with plain string lengths.
func (p *Provider) CountTokens(model string, messages []llm.ChatMessage) int {
	if p.CountFn != nil {
		return p.CountFn(model, messages)
	}
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total
}
