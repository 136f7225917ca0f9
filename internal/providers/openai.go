package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/papercast-ai/papercast/internal/contract"
)

const (
	OpenAIReasonerName         = "openai"
	openAIReasonerDefaultModel = "gpt-4o"
)

// OpenAIReasonerConfig holds configuration for the OpenAI reasoner client.
type OpenAIReasonerConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	RateLimit   float64       // Requests per second
	MaxRetries  int           // Transport retry attempts made by the gateway
	RetryDelay  time.Duration // Base retry delay for gateway backoff
	Timeout     time.Duration // HTTP timeout
	BaseURL     string        // Optional (tests)
	HTTPClient  *http.Client  // Optional (tests)
}

// OpenAIReasoner implements Reasoner using the official OpenAI SDK with
// structured outputs where the contract declares a schema.
type OpenAIReasoner struct {
	model       string
	temperature float64
	maxTokens   int
	rateLimit   float64
	maxRetries  int
	retryDelay  time.Duration
	client      openai.Client
}

// NewOpenAIReasoner creates a new OpenAI reasoner client.
func NewOpenAIReasoner(cfg OpenAIReasonerConfig) *OpenAIReasoner {
	if cfg.Model == "" {
		cfg.Model = openAIReasonerDefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
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

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // the gateway owns retries
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIReasoner{
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		rateLimit:   cfg.RateLimit,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		client:      openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIReasoner) Name() string { return OpenAIReasonerName }

// RequestsPerSecond returns the configured rate limit.
func (c *OpenAIReasoner) RequestsPerSecond() float64 { return c.rateLimit }

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIReasoner) MaxRetries() int { return c.maxRetries }

// RetryDelayBase returns the base delay for exponential backoff.
func (c *OpenAIReasoner) RetryDelayBase() time.Duration { return c.retryDelay }

// Invoke sends a chat completion request and returns the raw content.
func (c *OpenAIReasoner) Invoke(ctx context.Context, req *ReasonRequest) (*ReasonResult, error) {
	start := time.Now()

	if req == nil || len(req.Messages) == 0 {
		return nil, fmt.Errorf("reason request requires messages")
	}

	if req.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Deadline)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	}

	if schemaDoc := contract.SchemaFor(req.ResponseType); schemaDoc != "" {
		var schema map[string]any
		if err := json.Unmarshal([]byte(schemaDoc), &schema); err == nil {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
					JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:   string(req.ResponseType),
						Schema: schema,
					},
				},
			}
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &ReasonResult{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
		Provider:      OpenAIReasonerName,
		ModelUsed:     c.model,
		ExecutionTime: time.Since(start),
		Attempts:      1,
	}, nil
}
