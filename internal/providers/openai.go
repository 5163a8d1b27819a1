package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName                = "openai"
	openAIDefaultLayoutModel  = "gpt-4o"
	openAIDefaultCaptionModel = "gpt-4o-mini"
)

const layoutSystemPrompt = `You are a document layout analyzer. Given a page image, extract every
distinct element in reading order. Respond with JSON only, matching:
{"elements": [{"category": "NarrativeText|ListItem|Title|Table|Image",
"text": "...", "bbox": [x0, y0, x1, y1]}],
"tables": [{"bbox": [x0, y0, x1, y1], "html": "<table>...</table>"}]}
Bounding boxes use a 0-1000 grid over the page, origin top-left.
For tables, put a plain-text rendering in the element text and the full
HTML in the tables array. Do not include any prose outside the JSON.`

// OpenAIConfig holds configuration shared by the OpenAI vision clients.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	RateLimit  float64 // requests per second
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
	BaseURL    string       // optional (tests)
	HTTPClient *http.Client // optional (tests)
}

func (cfg *OpenAIConfig) applyDefaults(defaultModel string) {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2.0
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
}

func (cfg *OpenAIConfig) newClient() openai.Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Transport retries are disabled; retry policy lives in the
		// caller so rate limiting sees every attempt.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

// OpenAILayoutClient implements OCRLayout using OpenAI vision chat
// completions with prompt-side JSON and local schema validation.
type OpenAILayoutClient struct {
	model      string
	rateLimit  float64
	maxRetries int
	retryDelay time.Duration
	client     openai.Client
}

// NewOpenAILayoutClient creates a new OpenAI layout client.
func NewOpenAILayoutClient(cfg OpenAIConfig) *OpenAILayoutClient {
	cfg.applyDefaults(openAIDefaultLayoutModel)
	return &OpenAILayoutClient{
		model:      cfg.Model,
		rateLimit:  cfg.RateLimit,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     cfg.newClient(),
	}
}

// Name returns the provider identifier.
func (c *OpenAILayoutClient) Name() string { return OpenAIName }

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAILayoutClient) RequestsPerSecond() float64 { return c.rateLimit }

// MaxRetries returns the maximum retry attempts.
func (c *OpenAILayoutClient) MaxRetries() int { return c.maxRetries }

// RetryDelayBase returns the base delay for backoff.
func (c *OpenAILayoutClient) RetryDelayBase() time.Duration { return c.retryDelay }

// ExtractLayout runs layout-aware OCR on a page image.
func (c *OpenAILayoutClient) ExtractLayout(ctx context.Context, image []byte, pageNum int) (*LayoutResult, error) {
	start := time.Now()

	prompt := fmt.Sprintf("Extract the layout of page %d.", pageNum)
	var result *LayoutResult

	err := retry.Do(
		func() error {
			content, err := c.visionCall(ctx, layoutSystemPrompt, prompt, image)
			if err != nil {
				return err
			}
			parsed, err := parseLayoutResponse(content)
			if err != nil {
				return err
			}
			result = parsed
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("openai layout extraction failed for page %d: %w", pageNum, err)
	}

	result.Space = CoordNormalizedThousand
	result.Provider = OpenAIName
	result.ModelUsed = c.model
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// visionCall sends one image + prompt chat completion.
func (c *OpenAILayoutClient) visionCall(ctx context.Context, system, prompt string, image []byte) (string, error) {
	return openAIVisionCall(ctx, c.client, c.model, system, prompt, image)
}

// OpenAICaptioner implements Captioner using OpenAI vision completions.
type OpenAICaptioner struct {
	model      string
	rateLimit  float64
	maxRetries int
	retryDelay time.Duration
	client     openai.Client
}

// NewOpenAICaptioner creates a new OpenAI captioning client.
func NewOpenAICaptioner(cfg OpenAIConfig) *OpenAICaptioner {
	cfg.applyDefaults(openAIDefaultCaptionModel)
	return &OpenAICaptioner{
		model:      cfg.Model,
		rateLimit:  cfg.RateLimit,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     cfg.newClient(),
	}
}

// Name returns the provider identifier.
func (c *OpenAICaptioner) Name() string { return OpenAIName }

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAICaptioner) RequestsPerSecond() float64 { return c.rateLimit }

// MaxRetries returns the maximum retry attempts.
func (c *OpenAICaptioner) MaxRetries() int { return c.maxRetries }

// RetryDelayBase returns the base delay for backoff.
func (c *OpenAICaptioner) RetryDelayBase() time.Duration { return c.retryDelay }

// Caption produces a short description of a table or image region.
func (c *OpenAICaptioner) Caption(ctx context.Context, image []byte, kind CaptionKind) (string, error) {
	var prompt string
	switch kind {
	case CaptionTable:
		prompt = "Describe this table in two or three dense sentences: what it shows, its columns, and any notable values."
	default:
		prompt = "Describe this figure in two or three dense sentences, focusing on what it depicts and any labels or legends."
	}

	var caption string
	err := retry.Do(
		func() error {
			content, err := openAIVisionCall(ctx, c.client, c.model, "", prompt, image)
			if err != nil {
				return err
			}
			content = strings.TrimSpace(content)
			if content == "" {
				return fmt.Errorf("empty caption response")
			}
			caption = content
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("openai caption failed: %w", err)
	}
	return caption, nil
}

// openAIVisionCall sends a single-image chat completion and returns the
// text content of the first choice.
func openAIVisionCall(ctx context.Context, client openai.Client, model, system, prompt string, image []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL,
		}),
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(parts))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Verify interface compliance
var (
	_ OCRLayout = (*OpenAILayoutClient)(nil)
	_ Captioner = (*OpenAICaptioner)(nil)
)
