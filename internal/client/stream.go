package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DukeRupert/ohscentric/internal/domain"
)

// ErrStreamIncomplete is returned when a stream ends before its [DONE]
// marker.
var ErrStreamIncomplete = errors.New("answer stream ended early")

type streamEvent struct {
	Delta   string              `json:"delta,omitempty"`
	Sources []string            `json:"sources,omitempty"`
	Usage   *domain.UsageRecord `json:"usage,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Stream sends a question and relays answer text to onDelta as it arrives.
// The assembled answer is returned once the stream completes.
func (c *Client) Stream(ctx context.Context, query string, history []domain.HistoryMessage, onDelta func(string)) (*Answer, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/query/stream", queryRequest{Query: query, ChatHistory: history}, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST /api/query/stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return readStream(resp.Body, onDelta)
}

// readStream consumes Server-Sent Events until the [DONE] marker.
func readStream(r io.Reader, onDelta func(string)) (*Answer, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		answer Answer
		text   strings.Builder
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
		if payload == "[DONE]" {
			answer.Answer = text.String()
			if answer.Sources == nil {
				answer.Sources = []string{}
			}
			return &answer, nil
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode stream event: %w", err)
		}
		switch {
		case ev.Error != nil:
			return nil, &APIError{Status: http.StatusOK, Code: ev.Error.Code, Message: ev.Error.Message}
		case ev.Delta != "":
			text.WriteString(ev.Delta)
			if onDelta != nil {
				onDelta(ev.Delta)
			}
		default:
			answer.Sources = ev.Sources
			answer.Usage = ev.Usage
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, ErrStreamIncomplete
}
