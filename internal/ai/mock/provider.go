package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/ohscentric/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	AnswerResponse *ai.Answer
	AnswerError    error
	Delay          time.Duration

	// Call tracking for testing
	AnswerCalls int
	StreamCalls int
	LastParams  ai.AnswerParams
}

var _ ai.Provider = (*Provider)(nil)

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Answer returns a canned reply that echoes the question
func (p *Provider) Answer(ctx context.Context, params ai.AnswerParams) (*ai.Answer, error) {
	p.mu.Lock()
	p.AnswerCalls++
	p.LastParams = params
	p.mu.Unlock()

	return p.respond(ctx, params)
}

// Stream delivers the canned reply one word at a time
func (p *Provider) Stream(ctx context.Context, params ai.AnswerParams, onDelta func(string) error) (*ai.Answer, error) {
	p.mu.Lock()
	p.StreamCalls++
	p.LastParams = params
	p.mu.Unlock()

	answer, err := p.respond(ctx, params)
	if err != nil {
		return nil, err
	}

	words := strings.SplitAfter(answer.Text, " ")
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := onDelta(w); err != nil {
			return nil, err
		}
	}
	return answer, nil
}

func (p *Provider) respond(ctx context.Context, params ai.AnswerParams) (*ai.Answer, error) {
	p.mu.Lock()
	delay, custom, fail := p.Delay, p.AnswerResponse, p.AnswerError
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if fail != nil {
		return nil, fail
	}
	if custom != nil {
		return custom, nil
	}

	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ai.EAIInvalidRequest)
	}

	// Default canned response
	return &ai.Answer{
		Text: fmt.Sprintf("Under the model WHS laws a person conducting a business or undertaking must, so far as is reasonably practicable, "+
			"eliminate or minimise risks to health and safety. For your question (%q) start by identifying the hazards, "+
			"consulting your workers and recording the control measures you choose.", question),
		Sources: []string{
			"Work Health and Safety Act 2011 (Cth) s 19",
			"Code of Practice: How to manage work health and safety risks",
		},
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  120 + 40*len(params.History),
			OutputTokens: 80,
			CostCents:    0,
			Duration:     delay,
		},
	}, nil
}

// Calls returns how many times Answer and Stream were invoked
func (p *Provider) Calls() (answer, stream int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AnswerCalls, p.StreamCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AnswerCalls = 0
	p.StreamCalls = 0
	p.LastParams = ai.AnswerParams{}
	p.AnswerResponse = nil
	p.AnswerError = nil
	p.Delay = 0
}
