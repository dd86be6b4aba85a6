package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	// DeepSeekBaseURL is the OpenAI-compatible DeepSeek endpoint.
	DeepSeekBaseURL = "https://api.deepseek.com/v1"

	// ModelDeepSeekChat is DeepSeek's general chat model.
	ModelDeepSeekChat = "deepseek-chat"
)

type openAIConfig struct {
	baseURL    string
	model      string
	httpClient *http.Client
	maxRetries int
}

// OpenAIOption configures an [OpenAI] completer.
type OpenAIOption func(*openAIConfig)

// WithBaseURL overrides the API base URL. The default is DeepSeek.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithModel sets the default model. The default is deepseek-chat.
func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) { c.model = model }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openAIConfig) { c.httpClient = client }
}

// WithTimeout bounds each request, including reading the answer.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) {
		base := c.httpClient
		if base == nil {
			base = http.DefaultClient
		}
		cp := *base
		cp.Timeout = d
		c.httpClient = &cp
	}
}

// WithMaxRetries sets how many times the client retries a failed request.
// The default is 0; retry policy belongs to the caller.
func WithMaxRetries(n int) OpenAIOption {
	return func(c *openAIConfig) { c.maxRetries = n }
}

// OpenAI implements [Completer] with the chat completions API of OpenAI or
// any compatible provider (DeepSeek by default).
type OpenAI struct {
	client *openai.Client
	model  string
}

var _ Completer = (*OpenAI)(nil)

// NewOpenAI creates a chat completer.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	cfg := openAIConfig{
		baseURL:    DeepSeekBaseURL,
		model:      ModelDeepSeekChat,
		httpClient: http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.baseURL),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(cfg.maxRetries),
	)
	return &OpenAI{client: &client, model: cfg.model}
}

// Model returns the default model.
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(req.System),
				},
			},
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: param.NewOpt(req.User),
			},
		},
	})

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    msgs,
		Model:       model,
		Temperature: param.NewOpt(req.Temperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("%w: %s", ErrBlocked, choice.Message.Refusal)
	}
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("%w: content filter", ErrBlocked)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", ErrEmptyContent
	}
	return choice.Message.Content, nil
}
