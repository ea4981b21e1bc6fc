// Copyright (C) 2026 Ryan Rahmadifa
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ryanrahmadifa/e2RTLedger/pkg/retry"
	"github.com/ryanrahmadifa/e2RTLedger/services/ledger"
)

const (
	// DefaultBaseURL is the OpenRouter OpenAI-compatible endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultModel is the extraction/categorization model.
	DefaultModel = "anthropic/claude-3.5-haiku"
	// DefaultCompany anchors the Debit/Credit perspective in prompts.
	DefaultCompany = "ACME PTE LTD"
	// DefaultTimeout bounds a single completion attempt.
	DefaultTimeout = 30 * time.Second

	defaultRequestsPerMinute = 60
	requestTemperature       = 0.1
	requestMaxTokens         = 10000
	maxAttempts              = 3

	// appTitle identifies this app to OpenRouter rankings.
	appTitle = "e2RT Ledger Agent"
)

// memguardInit arms interrupt handling once so locked key material is
// wiped on SIGINT.
var memguardInit sync.Once

// Config holds OpenRouter connection settings. Zero values fall back
// to the package defaults above.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Company           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// OpenRouter is a Classifier backed by an OpenAI-compatible chat
// endpoint. The API key lives in a memguard enclave and is only
// decrypted for the duration of a single request.
type OpenRouter struct {
	key        *memguard.Enclave
	baseURL    string
	model      string
	company    string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

var _ Classifier = (*OpenRouter)(nil)

// headerTransport injects the OpenRouter attribution header on every
// outbound request.
type headerTransport struct {
	base http.RoundTripper
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("X-Title", appTitle)
	return t.base.RoundTrip(clone)
}

// NewOpenRouter seals the API key and builds the classifier.
func NewOpenRouter(cfg Config) (*OpenRouter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter api key not set")
	}
	memguardInit.Do(memguard.CatchInterrupt)

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
		slog.Warn("classifier model not set, using default", "model", cfg.Model)
	}
	if cfg.Company == "" {
		cfg.Company = DefaultCompany
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}

	slog.Info("Initializing OpenRouter classifier",
		"base_url", cfg.BaseURL, "model", cfg.Model, "rpm", rpm)

	return &OpenRouter{
		key:     memguard.NewEnclave([]byte(cfg.APIKey)),
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		company: cfg.Company,
		timeout: cfg.Timeout,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		httpClient: &http.Client{
			Transport: headerTransport{base: http.DefaultTransport},
		},
	}, nil
}

// Classify runs both stages. Stage 1 (entity extraction) failures are
// hard errors; stage 2 (categorization) failures degrade to the Other
// label rather than discarding the extraction.
func (c *OpenRouter) Classify(ctx context.Context, text string) (Result, error) {
	content, err := c.complete(ctx, extractSystemPrompt, buildExtractPrompt(c.company, text))
	if err != nil {
		return Result{}, stageFailure(ReasonExtract, err)
	}
	raw, err := extractJSON(content)
	if err != nil {
		return Result{}, failed(ReasonExtract, err)
	}
	res, err := parseEntity(raw)
	if err != nil {
		return Result{}, failed(ReasonExtract, err)
	}

	res.Label = c.categorize(ctx, text)
	return res, nil
}

// categorize returns the label for the document, or Other when the
// model cannot be reached or answers with junk.
func (c *OpenRouter) categorize(ctx context.Context, text string) string {
	content, err := c.complete(ctx, categorizeSystemPrompt, buildCategorizePrompt(text))
	if err != nil {
		slog.Warn("Categorization failed, falling back", "label", ledger.LabelOther, "error", err)
		return ledger.LabelOther
	}
	raw, err := extractJSON(content)
	if err != nil {
		slog.Warn("Categorization returned no JSON, falling back", "label", ledger.LabelOther)
		return ledger.LabelOther
	}
	label, err := parseLabel(raw)
	if err != nil || !ledger.KnownLabel(label) {
		return ledger.LabelOther
	}
	return label
}

// complete sends one system+user exchange, retrying transient
// transport and 5xx failures. The returned string is the raw model
// content, trimmed.
func (c *OpenRouter) complete(ctx context.Context, system, user string) (string, error) {
	var out string
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		buf, err := c.key.Open()
		if err != nil {
			return retry.Permanent(fmt.Errorf("open api key enclave: %w", err))
		}
		defer buf.Destroy()

		conf := openai.DefaultConfig(buf.String())
		conf.BaseURL = c.baseURL
		conf.HTTPClient = c.httpClient
		client := openai.NewClientWithConfig(conf)

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: requestTemperature,
			MaxTokens:   requestMaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return transportFailure(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in response")
		}
		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return errors.New("empty response content")
		}
		out = content
		return nil
	}

	err := retry.Do(ctx, op, retry.Options{
		MaxAttempts:  maxAttempts,
		InitialDelay: 500 * time.Millisecond,
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// transportFailure decides whether an API error is worth another
// attempt. Timeouts and client errors are not; rate limiting and
// server errors are.
func transportFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return retry.Permanent(err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}

// stageFailure wraps a transport-level error in a classify.Error with
// the reason callers branch on.
func stageFailure(reason string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return failed(ReasonTimeout, err)
	case errors.Is(err, context.Canceled):
		return failed(ReasonCanceled, err)
	}
	return failed(reason, err)
}
