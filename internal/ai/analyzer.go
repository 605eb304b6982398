// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai generates personalized email copy from an event summary via a
// single chat-completion call. Every failure mode — request errors, rate
// limits, malformed model output — surfaces as an error string on the
// result, never as a Go error: the sync batch must keep moving.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds the chat-completion settings for the analyzer.
type Config struct {
	APIKey       string
	BaseURL      string // optional override (proxies, tests)
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Result is the parsed output of one generation attempt. When Err is
// non-empty, Subject and Body are blank and the caller stores Err on the
// contact instead.
type Result struct {
	Subject string
	Body    string
	Err     string
}

// Analyzer talks to the chat-completion API.
type Analyzer struct {
	client *openai.Client
	cfg    Config
}

// essentialProfileFields are the only profile properties forwarded to the
// model; everything else is noise at email-writing time.
var essentialProfileFields = []string{
	"firstname", "lastname", "email",
	"membership", "subscription_status", "subscription_name", "subscription_cost",
	"total_entries", "job_count", "total_hours", "user_subscribed",
}

// importantEvents are the behavioral signals worth showing the model.
// At most maxEvents of these are kept, in encounter order.
var importantEvents = []string{
	"Job Selected",
	"Create Job Save Button Clicked",
	"Job Dashboard Start Work At Clicked",
	"Subscription Selected",
	"Subscription Plan PURCHASED",
}

const (
	maxEvents = 10

	// rawFallbackBytes caps the payload when it cannot be parsed for
	// structured truncation.
	rawFallbackBytes = 3000
)

// NewAnalyzer creates an analyzer from config.
func NewAnalyzer(cfg Config) *Analyzer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Analyzer{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// SummarizeEvents asks the model for a personalized email based on the
// event-summary JSON blob and parses the strict SUBJECT/BODY output format.
func (a *Analyzer) SummarizeEvents(ctx context.Context, eventData string) Result {
	truncated := a.truncateEventData(eventData)

	userContent := "Based on this Mixpanel data, write a personalized email following these EXACT formatting rules:\n" +
		"1. Start with 'SUBJECT: ' followed by the subject line\n" +
		"2. Then two newlines\n" +
		"3. Then 'BODY:' followed by one newline\n" +
		"4. Then the complete email body\n\n" +
		"Data to use:\n" + truncated

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.cfg.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		Temperature: float32(a.cfg.Temperature),
		MaxTokens:   a.cfg.MaxTokens,
	})
	if err != nil {
		slog.Error("chat completion failed", "error", err)
		return Result{Err: fmt.Sprintf("OpenAI error: %v", err)}
	}
	if len(resp.Choices) == 0 {
		return Result{Err: "OpenAI error: empty response"}
	}

	result := parseResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if result.Err == "" {
		slog.Info("email copy generated",
			"subject_len", len(result.Subject),
			"body_len", len(result.Body),
		)
	}
	return result
}

// parseResponse extracts the subject and body from the model's output.
// Primary path locates the SUBJECT:/BODY: markers; when those are mangled
// it falls back to scanning blank-line-separated paragraphs.
func parseResponse(text string) Result {
	var subject, body string

	if i := strings.Index(text, "SUBJECT:"); i != -1 {
		rest := text[i+len("SUBJECT:"):]
		if end := strings.Index(rest, "\n\n"); end != -1 {
			subject = strings.TrimSpace(rest[:end])
		}
	}
	if i := strings.Index(text, "BODY:"); i != -1 {
		body = strings.TrimSpace(text[i+len("BODY:"):])
	}

	if subject == "" || body == "" {
		for _, part := range strings.Split(text, "\n\n") {
			if s, ok := strings.CutPrefix(part, "SUBJECT:"); ok {
				subject = strings.TrimSpace(s)
			} else if b, ok := strings.CutPrefix(part, "BODY:"); ok {
				body = strings.TrimSpace(b)
			}
		}
	}

	if subject == "" || body == "" {
		slog.Warn("could not parse AI response", "head", head(text, 200))
		return Result{Err: "Error parsing AI response: missing subject or body"}
	}
	return Result{Subject: subject, Body: body}
}

// truncPayload mirrors the event-summary JSON for truncation.
type truncPayload struct {
	Profile map[string]any   `json:"profile_properties"`
	Events  []map[string]any `json:"user_events"`
}

// truncateEventData reduces the summary payload to the essential profile
// fields and at most maxEvents whitelisted events, keeping the request
// inside the model's token budget. Unparseable payloads are hard-capped
// instead.
func (a *Analyzer) truncateEventData(eventData string) string {
	var payload truncPayload
	if err := json.Unmarshal([]byte(eventData), &payload); err != nil {
		slog.Warn("could not parse event data for truncation, hard-capping", "error", err)
		return head(eventData, rawFallbackBytes)
	}

	essential := make(map[string]any, len(essentialProfileFields))
	for _, field := range essentialProfileFields {
		if v, ok := payload.Profile[field]; ok && v != nil {
			essential[field] = v
			continue
		}
		switch field {
		case "total_entries", "job_count", "total_hours":
			essential[field] = 0
		default:
			essential[field] = ""
		}
	}

	important := make(map[string]bool, len(importantEvents))
	for _, name := range importantEvents {
		important[name] = true
	}
	filtered := make([]map[string]any, 0, maxEvents)
	for _, ev := range payload.Events {
		if len(filtered) >= maxEvents {
			break
		}
		if name, _ := ev["event_name"].(string); important[name] {
			filtered = append(filtered, ev)
		}
	}

	out, err := json.MarshalIndent(truncPayload{Profile: essential, Events: filtered}, "", "  ")
	if err != nil {
		return head(eventData, rawFallbackBytes)
	}
	slog.Debug("event data truncated", "bytes", len(out), "events", len(filtered))
	return string(out)
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
