package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/newsforge/newsforge-backend/internal/observability"
	"github.com/newsforge/newsforge-backend/internal/platform/httpx"
	"github.com/newsforge/newsforge-backend/internal/platform/logger"
)

// Stop reasons normalized across providers. Truncated is true iff the stop
// reason is StopLength.
const (
	StopStop          = "stop"
	StopLength        = "length"
	StopContentFilter = "content_filter"
	StopError         = "error"
)

// TextResult is the normalized output of one text generation call.
type TextResult struct {
	Text       string
	Model      string
	StopReason string
	Truncated  bool
	TokensIn   int
	TokensOut  int
	Latency    time.Duration
}

// ImageResult is the normalized output of one image generation call. Exactly
// one of URL / B64 is set depending on the provider's response format.
type ImageResult struct {
	URL           string
	B64           string
	RevisedPrompt string
	Model         string
	Latency       time.Duration
}

// Client adapts the text and image provider families behind one interface.
// A content-filter refusal is returned as a TextResult with
// StopReason=content_filter and a nil error; the caller decides disposition.
type Client interface {
	GenerateText(ctx context.Context, system, prompt string, maxTokens int) (TextResult, error)
	GenerateImage(ctx context.Context, prompt string) (ImageResult, error)
	Provider() string
	Model() string
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	imageModel string
	imageSize  string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	imageModel := strings.TrimSpace(os.Getenv("OPENAI_IMAGE_MODEL"))
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	imageSize := strings.TrimSpace(os.Getenv("OPENAI_IMAGE_SIZE"))
	if imageSize == "" {
		imageSize = "1024x1024"
	}

	timeout := 180 * time.Second
	if v := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			timeout = d
		}
	}

	maxRetries := 2
	if v := strings.TrimSpace(os.Getenv("OPENAI_MAX_RETRIES")); v != "" {
		if _, err := fmt.Sscanf(v, "%d", &maxRetries); err != nil || maxRetries < 0 {
			maxRetries = 2
		}
	}

	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		imageModel: imageModel,
		imageSize:  imageSize,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
	}, nil
}

func (c *client) Provider() string { return "openai" }
func (c *client) Model() string    { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *client) GenerateText(ctx context.Context, system, prompt string, maxTokens int) (TextResult, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	req := chatRequest{Model: c.model, Messages: messages, MaxTokens: maxTokens}
	start := time.Now()

	var out chatResponse
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req, &out); err != nil {
		return TextResult{Model: c.model, StopReason: StopError, Latency: time.Since(start)}, err
	}
	if len(out.Choices) == 0 {
		return TextResult{Model: c.model, StopReason: StopError, Latency: time.Since(start)},
			fmt.Errorf("openai: empty choices")
	}

	choice := out.Choices[0]
	stop := normalizeStopReason(choice.FinishReason)
	model := out.Model
	if model == "" {
		model = c.model
	}
	return TextResult{
		Text:       choice.Message.Content,
		Model:      model,
		StopReason: stop,
		Truncated:  stop == StopLength,
		TokensIn:   out.Usage.PromptTokens,
		TokensOut:  out.Usage.CompletionTokens,
		Latency:    time.Since(start),
	}, nil
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (c *client) GenerateImage(ctx context.Context, prompt string) (ImageResult, error) {
	req := imageRequest{Model: c.imageModel, Prompt: prompt, N: 1, Size: c.imageSize}
	start := time.Now()

	var out imageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/images/generations", req, &out); err != nil {
		return ImageResult{Model: c.imageModel, Latency: time.Since(start)}, err
	}
	if len(out.Data) == 0 {
		return ImageResult{Model: c.imageModel, Latency: time.Since(start)},
			fmt.Errorf("openai: empty image data")
	}
	return ImageResult{
		URL:           out.Data[0].URL,
		B64:           out.Data[0].B64JSON,
		RevisedPrompt: out.Data[0].RevisedPrompt,
		Model:         c.imageModel,
		Latency:       time.Since(start),
	}, nil
}

func normalizeStopReason(finish string) string {
	switch strings.ToLower(strings.TrimSpace(finish)) {
	case "stop", "end_turn", "":
		return StopStop
	case "length", "max_tokens":
		return StopLength
	case "content_filter":
		return StopContentFilter
	default:
		return StopStop
	}
}

type providerHTTPError struct {
	StatusCode int
	Body       string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *providerHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &providerHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// do runs one provider call with bounded retries: network errors, 408/429 and
// 5xx retry with exponential backoff honouring Retry-After; other 4xx and
// context cancellation return immediately.
func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second
	start := time.Now()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if m := observability.Current(); m != nil {
				tokensIn, tokensOut := extractUsage(raw)
				m.ObserveLLMRequest(c.model, path, statusOf(resp), time.Since(start), tokensIn, tokensOut)
			}
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			if m := observability.Current(); m != nil {
				m.ObserveLLMRequest(c.model, path, statusOf(resp), time.Since(start), 0, 0)
			}
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("provider request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func extractUsage(raw []byte) (int, int) {
	var probe struct {
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, 0
	}
	return probe.Usage.PromptTokens, probe.Usage.CompletionTokens
}
