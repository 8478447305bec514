// Package service contains the business logic layer.
//
// This file implements the conversation turn: the entitlement gate, the
// reservation of a daily chat, the call to the answering service and the
// transcript record of the exchange.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/ai"
	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/metrics"
)

// MaxQuestionLength is the longest question accepted from a subscriber.
const MaxQuestionLength = 4000

// Chat modes, used as metric labels.
const (
	chatModeAnswer = "answer"
	chatModeStream = "stream"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ChatService answers compliance questions for entitled subscribers.
type ChatService interface {
	// Ask answers a question in full.
	// Returns domain.EPAYMENT when the subscriber's entitlement does not
	// allow another turn, domain.EINVALID for an unusable question and
	// domain.EUNAVAILABLE when the answering service cannot be reached.
	Ask(ctx context.Context, user *domain.User, q Question) (*ChatReply, error)

	// Stream answers a question, relaying text to onDelta as it arrives.
	// A turn aborted by onDelta is not counted against the subscriber.
	Stream(ctx context.Context, user *domain.User, q Question, onDelta func(string) error) (*ChatReply, error)
}

// Question is a subscriber's question with the prior turns it follows.
type Question struct {
	Text string
	// History is the client's view of prior turns. When nil the stored
	// transcript supplies it.
	History []domain.HistoryMessage
}

// ChatReply is the answer to one question.
type ChatReply struct {
	Answer  string
	Sources []string
	Usage   domain.UsageRecord // entitlement after this turn
}

// =============================================================================
// Implementation
// =============================================================================

type chatService struct {
	provider      ai.Provider
	usage         UsageService
	transcripts   TranscriptService
	historyWindow int
	now           func() time.Time
	logger        *slog.Logger
}

// NewChatService creates a ChatService.
func NewChatService(provider ai.Provider, usage UsageService, transcripts TranscriptService, historyWindow int, logger *slog.Logger) ChatService {
	if historyWindow <= 0 {
		historyWindow = domain.DefaultHistoryWindow
	}
	return &chatService{
		provider:      provider,
		usage:         usage,
		transcripts:   transcripts,
		historyWindow: historyWindow,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *chatService) Ask(ctx context.Context, user *domain.User, q Question) (*ChatReply, error) {
	const op = "ChatService.Ask"
	return s.turn(ctx, op, chatModeAnswer, user, q, func(params ai.AnswerParams) (*ai.Answer, error) {
		return s.provider.Answer(ctx, params)
	})
}

func (s *chatService) Stream(ctx context.Context, user *domain.User, q Question, onDelta func(string) error) (*ChatReply, error) {
	const op = "ChatService.Stream"
	return s.turn(ctx, op, chatModeStream, user, q, func(params ai.AnswerParams) (*ai.Answer, error) {
		return s.provider.Stream(ctx, params, onDelta)
	})
}

// turn runs one gated conversation turn around call.
func (s *chatService) turn(ctx context.Context, op, mode string, user *domain.User, q Question, call func(ai.AnswerParams) (*ai.Answer, error)) (*ChatReply, error) {
	question := strings.TrimSpace(q.Text)
	if question == "" {
		return nil, domain.Invalid(op, "Please enter a question.")
	}
	if len(question) > MaxQuestionLength {
		return nil, domain.Errorf(domain.EINVALID, op, "Questions are limited to %d characters.", MaxQuestionLength)
	}

	reservation, err := s.usage.Reserve(ctx, user)
	if err != nil {
		if domain.ErrorCode(err) == domain.EPAYMENT {
			metrics.ChatTurn(mode, metrics.OutcomeRejected)
			metrics.QuotaRejected(string(s.rejectionReason(ctx, user)))
		}
		return nil, err
	}

	history := s.history(ctx, user, q.History)
	answer, err := call(ai.AnswerParams{
		Question: question,
		History:  history,
		UserID:   user.ID,
	})
	if err != nil {
		// The turn did not complete, so the chat is given back. The request
		// context may already be cancelled.
		if relErr := s.usage.Release(context.WithoutCancel(ctx), reservation); relErr != nil {
			s.logger.Error("failed to release chat reservation", "user_id", user.ID, "error", relErr)
		}
		outcome := metrics.OutcomeFailed
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			outcome = metrics.OutcomeAborted
		} else {
			metrics.AICallFailed()
		}
		metrics.ChatTurn(mode, outcome)
		return nil, mapProviderError(op, err)
	}

	metrics.ChatTurn(mode, metrics.OutcomeAnswered)
	metrics.AICallCompleted(answer.Usage.Duration, answer.Usage.InputTokens, answer.Usage.OutputTokens, answer.Usage.CostCents)

	now := s.now().UTC()
	s.record(ctx, user, now,
		domain.ConversationTurn{Sender: domain.SenderUser, Text: question, Timestamp: now},
		domain.ConversationTurn{Sender: domain.SenderAssistant, Text: answer.Text, Sources: answer.Sources, Timestamp: now},
	)

	s.logger.Info("chat turn answered",
		"user_id", user.ID,
		"mode", mode,
		"used_today", reservation.Count,
		"model", answer.Usage.Model,
	)

	reply := &ChatReply{Answer: answer.Text, Sources: answer.Sources}
	if record, err := s.usage.Snapshot(ctx, user); err == nil {
		reply.Usage = record
	}
	return reply, nil
}

// history bounds the client-supplied history, or reads it from the stored
// transcript when the client sent none.
func (s *chatService) history(ctx context.Context, user *domain.User, supplied []domain.HistoryMessage) []domain.HistoryMessage {
	if supplied != nil {
		if len(supplied) > s.historyWindow {
			supplied = supplied[len(supplied)-s.historyWindow:]
		}
		return supplied
	}
	if s.transcripts == nil {
		return nil
	}
	t, err := s.transcripts.Load(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to load transcript for history", "user_id", user.ID, "error", err)
		return nil
	}
	return domain.HistoryWindow(t.Turns, s.historyWindow)
}

// record appends the exchange to the transcript. Failures are logged; the
// subscriber already has the answer.
func (s *chatService) record(ctx context.Context, user *domain.User, now time.Time, turns ...domain.ConversationTurn) {
	if s.transcripts == nil {
		return
	}
	if err := s.transcripts.Append(context.WithoutCancel(ctx), user.ID, turns...); err != nil {
		s.logger.Error("failed to record transcript", "user_id", user.ID, "at", now, "error", err)
	}
}

func (s *chatService) rejectionReason(ctx context.Context, user *domain.User) domain.UpgradeReason {
	record, err := s.usage.Snapshot(ctx, user)
	if err != nil {
		return domain.UpgradeReasonNone
	}
	return domain.UpgradeReasonFor(&record)
}

// mapProviderError converts answering service failures into domain errors.
func mapProviderError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Unavailable(err, op, "The request was cancelled before an answer arrived.")
	case errors.Is(err, ai.EAIContentPolicy):
		return domain.Wrap(err, domain.EINVALID, op, "That question can't be answered. Please rephrase it.")
	case errors.Is(err, ai.EAIInvalidRequest):
		return domain.Wrap(err, domain.EINVALID, op, "That question couldn't be processed. Please rephrase it.")
	case ai.IsRetryable(err):
		return domain.Unavailable(err, op, "The assistant is busy right now. Please try again in a moment.")
	default:
		return domain.Internal(err, op, "failed to answer question")
	}
}

var _ ChatService = (*chatService)(nil)
