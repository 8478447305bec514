package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/google/uuid"
)

// Provider answers workplace health and safety compliance questions.
type Provider interface {
	// Answer returns the complete reply to a question.
	Answer(ctx context.Context, params AnswerParams) (*Answer, error)

	// Stream delivers the reply incrementally through onDelta and returns the
	// assembled answer once the provider finishes. An error from onDelta
	// aborts the stream.
	Stream(ctx context.Context, params AnswerParams, onDelta func(string) error) (*Answer, error)
}

// AnswerParams contains parameters for a single question
type AnswerParams struct {
	Question string                  // The subscriber's question
	History  []domain.HistoryMessage // Prior turns, oldest first
	UserID   uuid.UUID               // User ID for tracking
}

// Answer is the provider's reply to a question
type Answer struct {
	Text    string    // Reply body without the trailing sources block
	Sources []string  // Legislation and guidance the reply cites
	Usage   UsageInfo // Token usage and cost information
}

// UsageInfo tracks API usage for billing and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
	MaxTokens      int           // Upper bound on reply length
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidRequest indicates the provider rejected the question
	EAIInvalidRequest = errors.New("invalid ai request")

	// EAIContentPolicy indicates the question violates content policy
	EAIContentPolicy = errors.New("question violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}

// sourcesMarker introduces the citation block at the end of a reply.
const sourcesMarker = "Sources:"

// SplitSources separates a trailing "Sources:" block of "- item" lines from
// the reply body. Replies without the block are returned unchanged.
func SplitSources(reply string) (string, []string) {
	idx := strings.LastIndex(reply, sourcesMarker)
	if idx < 0 {
		return strings.TrimSpace(reply), nil
	}

	var sources []string
	for _, line := range strings.Split(reply[idx+len(sourcesMarker):], "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		if line != "" {
			sources = append(sources, line)
		}
	}
	if len(sources) == 0 {
		return strings.TrimSpace(reply), nil
	}
	return strings.TrimSpace(reply[:idx]), sources
}
