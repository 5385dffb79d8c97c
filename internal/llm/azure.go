package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ragchat/internal/apperr"
)

const (
	azureTimeout = 60 * time.Second
	azureBackoff = 2 * time.Second
)

// Azure generates text against an Azure OpenAI chat-completions
// deployment. Throttling and transient network failures are retried
// exactly once after a backoff.
type Azure struct {
	endpoint   string
	deployment string
	apiVersion string
	apiKey     string
	client     *http.Client
	backoff    time.Duration
}

func NewAzure(endpoint, deployment, apiVersion, apiKey string) *Azure {
	return &Azure{
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiVersion: apiVersion,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: azureTimeout},
		backoff:    azureBackoff,
	}
}

func (a *Azure) Name() string {
	return "azure/" + a.deployment
}

func (a *Azure) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	text, retryAfter, err := a.attempt(ctx, prompt, temperature)
	if err == nil {
		return text, nil
	}
	if !retryable(err) {
		return "", err
	}

	if retryAfter <= 0 {
		retryAfter = a.backoff
	}
	log.Warn().Err(err).Dur("backoff", retryAfter).Msg("Retrying Azure request")
	select {
	case <-time.After(retryAfter):
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", apperr.ErrProviderUnreachable, ctx.Err())
	}

	text, _, err = a.attempt(ctx, prompt, temperature)
	return text, err
}

func retryable(err error) bool {
	return errors.Is(err, apperr.ErrRateLimited) || errors.Is(err, apperr.ErrProviderUnreachable)
}

func (a *Azure) attempt(ctx context.Context, prompt string, temperature float64) (string, time.Duration, error) {
	payload := struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}{
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", 0, err
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s", a.endpoint, a.deployment, a.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", apperr.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return "", 0, fmt.Errorf("%w: status %d", apperr.ErrAuthentication, resp.StatusCode)
	case http.StatusTooManyRequests:
		return "", parseRetryAfter(resp), fmt.Errorf("%w: status 429", apperr.ErrRateLimited)
	default:
		body, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("azure request failed: %d, %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", 0, fmt.Errorf("failed to decode azure response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", 0, fmt.Errorf("azure response contained no choices")
	}

	log.Debug().
		Str("deployment", a.deployment).
		Int("prompt_tokens", response.Usage.PromptTokens).
		Int("completion_tokens", response.Usage.CompletionTokens).
		Msg("Generated response")
	return response.Choices[0].Message.Content, 0, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
