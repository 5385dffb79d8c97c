package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ragchat/internal/apperr"
)

const ollamaTimeout = 120 * time.Second

// Ollama generates text against a locally reachable inference server.
// A local server failing is not transient, so calls are never retried.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: ollamaTimeout},
	}
}

func (o *Ollama) Name() string {
	return "ollama/" + o.model
}

// Generate issues the request in streaming mode and reassembles the
// response fragments into one string.
func (o *Ollama) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	payload := struct {
		Model   string `json:"model"`
		Prompt  string `json:"prompt"`
		Stream  bool   `json:"stream"`
		Options struct {
			Temperature float64 `json:"temperature"`
		} `json:"options"`
	}{
		Model:  o.model,
		Prompt: prompt,
		Stream: true,
	}
	payload.Options.Temperature = temperature

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: %s: %s", apperr.ErrModelNotFound, o.model, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama request failed: %d, %s", resp.StatusCode, string(body))
	}

	var response strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("%w: reading stream: %v", apperr.ErrProviderUnreachable, err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var fragment struct {
			Response string `json:"response"`
			Done     bool   `json:"done"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &fragment); err != nil {
			continue
		}
		if fragment.Error != "" {
			return "", fmt.Errorf("ollama error: %s", fragment.Error)
		}
		response.WriteString(fragment.Response)
		if fragment.Done {
			break
		}
	}

	log.Debug().Str("model", o.model).Int("chars", response.Len()).Msg("Generated response")
	return response.String(), nil
}
