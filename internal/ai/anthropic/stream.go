package anthropic

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/DukeRupert/ohscentric/internal/ai"
)

// streamEvent covers the fields used from every server-sent event type.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Model string   `json:"model"`
		Usage apiUsage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Usage *apiUsage `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type streamResult struct {
	text  string
	model string
	usage apiUsage
}

// readStream consumes a messages stream until message_stop, relaying each
// text delta to onDelta.
func readStream(r io.Reader, onDelta func(string) error) (*streamResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		result  streamResult
		text    strings.Builder
		stopped bool
	)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode stream event: %w", err)
		}

		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				result.model = ev.Message.Model
				result.usage.InputTokens = ev.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if ev.Delta == nil || ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				continue
			}
			text.WriteString(ev.Delta.Text)
			if err := onDelta(ev.Delta.Text); err != nil {
				return nil, err
			}
		case "message_delta":
			if ev.Usage != nil {
				result.usage.OutputTokens = ev.Usage.OutputTokens
			}
		case "message_stop":
			stopped = true
		case "error":
			if ev.Error != nil && ev.Error.Type == "overloaded_error" {
				return nil, ai.EAIUnavailable
			}
			msg := "unknown"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			return nil, fmt.Errorf("stream error: %s", msg)
		}
		if stopped {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if !stopped {
		return nil, fmt.Errorf("%w: stream ended early", ai.EAIUnavailable)
	}

	result.text = text.String()
	return &result, nil
}
