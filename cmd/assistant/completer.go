package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/ohscentric/internal/ai"
	"github.com/DukeRupert/ohscentric/internal/ai/anthropic"
	aimock "github.com/DukeRupert/ohscentric/internal/ai/mock"
	"github.com/DukeRupert/ohscentric/internal/client"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/entitlement"
)

// completer answers one question, relaying text to onDelta as it arrives.
type completer interface {
	Complete(ctx context.Context, question string, history []domain.HistoryMessage, onDelta func(string)) (*client.Answer, error)
}

// apiCompleter sends questions to the API, which enforces the quota itself.
type apiCompleter struct {
	api *client.Client
}

func (c apiCompleter) Complete(ctx context.Context, question string, history []domain.HistoryMessage, onDelta func(string)) (*client.Answer, error) {
	return c.api.Stream(ctx, question, history, onDelta)
}

// localCompleter answers through a provider in-process. The simulated
// source is then the only authority on whether a turn may be sent.
type localCompleter struct {
	provider ai.Provider
}

func (c localCompleter) Complete(ctx context.Context, question string, history []domain.HistoryMessage, onDelta func(string)) (*client.Answer, error) {
	answer, err := c.provider.Stream(ctx, ai.AnswerParams{Question: question, History: history}, func(delta string) error {
		onDelta(delta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &client.Answer{Answer: answer.Text, Sources: answer.Sources}, nil
}

// newCompleter picks the answer path for the configured mode.
func newCompleter(cfg *client.Config, api *client.Client, logger *slog.Logger) (completer, error) {
	if entitlement.Mode(cfg.Mode) != entitlement.ModeSimulated {
		return apiCompleter{api: api}, nil
	}

	switch cfg.AIProvider {
	case "anthropic":
		p, err := anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		logger.Debug("answering locally", "provider", "anthropic")
		return localCompleter{provider: p}, nil
	default:
		logger.Debug("answering locally", "provider", "mock")
		return localCompleter{provider: aimock.New(logger)}, nil
	}
}
