package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/ohscentric/internal/ai"
	"github.com/DukeRupert/ohscentric/internal/domain"
)

const (
	// APIBaseURL is the base URL for the Anthropic API
	APIBaseURL = "https://api.anthropic.com/v1/messages"

	// APIVersion is the Anthropic API version
	APIVersion = "2023-06-01"

	// DefaultModel is the default Claude model to use
	DefaultModel = "claude-3-5-sonnet-20241022"

	// DefaultMaxTokens bounds the reply length when none is configured
	DefaultMaxTokens = 1024

	// MaxQuestionLength is the longest question forwarded to the API
	MaxQuestionLength = 4000

	// Pricing in cents per 1M tokens for claude-3-5-sonnet
	PricingInputCents  = 300  // $3 per 1M input tokens
	PricingOutputCents = 1500 // $15 per 1M output tokens
)

// Config contains configuration for the Anthropic provider
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string // overrides APIBaseURL, used by tests
	ProviderConfig ai.ProviderConfig
}

// Provider implements ai.Provider using Anthropic's Claude API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// New creates a new Anthropic AI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}
	if config.ProviderConfig.MaxTokens == 0 {
		config.ProviderConfig.MaxTokens = DefaultMaxTokens
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Answer sends the question with its history and returns the full reply
func (p *Provider) Answer(ctx context.Context, params ai.AnswerParams) (*ai.Answer, error) {
	start := time.Now()

	body, err := p.buildRequestBody(params, false)
	if err != nil {
		return nil, ai.WrapError("answer", err)
	}

	resp, err := p.executeWithRetry(ctx, body)
	if err != nil {
		return nil, ai.WrapError("answer", err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, ai.WrapError("answer", fmt.Errorf("unmarshal response: %w", err))
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, ai.WrapError("answer", fmt.Errorf("empty response content"))
	}

	answer := p.buildAnswer(text.String(), apiResp.Model, apiResp.Usage, start)
	p.logger.Info("AI answer complete",
		"user_id", params.UserID,
		"input_tokens", answer.Usage.InputTokens,
		"output_tokens", answer.Usage.OutputTokens,
		"duration_ms", answer.Usage.Duration.Milliseconds(),
	)
	return answer, nil
}

// Stream sends the question and relays text deltas as they arrive
func (p *Provider) Stream(ctx context.Context, params ai.AnswerParams, onDelta func(string) error) (*ai.Answer, error) {
	start := time.Now()

	body, err := p.buildRequestBody(params, true)
	if err != nil {
		return nil, ai.WrapError("stream", err)
	}

	// Retries only cover the request itself; once deltas flow the stream is final.
	resp, err := p.executeWithRetry(ctx, body)
	if err != nil {
		return nil, ai.WrapError("stream", err)
	}
	defer resp.Body.Close()

	result, err := readStream(resp.Body, onDelta)
	if err != nil {
		return nil, ai.WrapError("stream", err)
	}

	model := result.model
	if model == "" {
		model = p.config.Model
	}
	answer := p.buildAnswer(result.text, model, result.usage, start)
	p.logger.Info("AI stream complete",
		"user_id", params.UserID,
		"input_tokens", answer.Usage.InputTokens,
		"output_tokens", answer.Usage.OutputTokens,
		"duration_ms", answer.Usage.Duration.Milliseconds(),
	)
	return answer, nil
}

func (p *Provider) buildAnswer(text, model string, usage apiUsage, start time.Time) *ai.Answer {
	body, sources := ai.SplitSources(text)
	return &ai.Answer{
		Text:    body,
		Sources: sources,
		Usage: ai.UsageInfo{
			Model:        model,
			InputTokens:  usage.InputTokens,
			OutputTokens: usage.OutputTokens,
			CostCents:    p.calculateCost(usage.InputTokens, usage.OutputTokens),
			Duration:     time.Since(start),
		},
	}
}

// buildRequestBody marshals the messages request for a question
func (p *Provider) buildRequestBody(params ai.AnswerParams, stream bool) ([]byte, error) {
	question := buildQuestion(params.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ai.EAIInvalidRequest)
	}
	if len(question) > MaxQuestionLength {
		return nil, fmt.Errorf("%w: question exceeds %d characters", ai.EAIInvalidRequest, MaxQuestionLength)
	}

	reqBody := apiRequest{
		Model:     p.config.Model,
		MaxTokens: p.config.ProviderConfig.MaxTokens,
		System:    systemPrompt,
		Messages:  buildMessages(params.History, question),
		Stream:    stream,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bodyBytes, nil
}

// buildMessages converts history into the alternating user/assistant
// sequence the API requires, starting with a user turn and ending with the
// new question.
func buildMessages(history []domain.HistoryMessage, question string) []apiMessage {
	msgs := make([]apiMessage, 0, len(history)+1)
	appendTurn := func(role, text string) {
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content[0].Text += "\n\n" + text
			return
		}
		msgs = append(msgs, apiMessage{
			Role:    role,
			Content: []apiContent{{Type: "text", Text: text}},
		})
	}

	for _, h := range history {
		content := strings.TrimSpace(h.Content)
		if content == "" {
			continue
		}
		if len(msgs) == 0 && h.Role != string(domain.SenderUser) {
			continue
		}
		appendTurn(h.Role, content)
	}
	appendTurn(string(domain.SenderUser), question)
	return msgs
}

// newRequest builds a fresh HTTP request so retries never reuse a drained body
func (p *Provider) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", APIVersion)
	return req, nil
}

// executeWithRetry executes the request with exponential backoff retry and
// returns the successful response with its body unread
func (p *Provider) executeWithRetry(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			return nil, err
		}

		// Don't retry if we've exhausted attempts
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		// Calculate backoff delay (exponential: base * 2^(attempt-1))
		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying AI request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}
	return resp, nil
}

// mapHTTPError maps HTTP status codes to domain errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		if strings.Contains(strings.ToLower(errResp.Error.Message), "policy") {
			return ai.EAIContentPolicy
		}
		return fmt.Errorf("%w: %s", ai.EAIInvalidRequest, errResp.Error.Message)
	case http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, 529:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// calculateCost calculates the cost in cents for the given token usage
func (p *Provider) calculateCost(inputTokens, outputTokens int) int {
	inputCost := (inputTokens * PricingInputCents) / 1_000_000
	outputCost := (outputTokens * PricingOutputCents) / 1_000_000
	return inputCost + outputCost
}

// API request/response types

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
	Stream    bool         `json:"stream,omitempty"`
}

type apiMessage struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
	Model   string       `json:"model"`
	Usage   apiUsage     `json:"usage"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
