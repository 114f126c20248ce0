// Package llm wraps the chat completion model used for free-form answers.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Request is a single system+user completion.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer produces a completion for a Request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAI is a Completer backed by the OpenAI chat completions API (or any
// compatible endpoint via BaseURL).
type OpenAI struct {
	client  openai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// OpenAIOpts holds parameters for creating an OpenAI completer.
type OpenAIOpts struct {
	APIKey     string
	BaseURL    string        // optional; defaults to api.openai.com
	Model      string        // required
	Timeout    time.Duration // per call; 0 means no deadline
	MaxRetries int           // -1 disables retries; 0 keeps the SDK default
	HTTPClient *http.Client  // optional
	Logger     *zap.Logger   // defaults to zap.NewNop()
}

// NewOpenAI creates an OpenAI completer.
func NewOpenAI(opts OpenAIOpts) (*OpenAI, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	options := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		options = append(options, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.MaxRetries < 0 {
		options = append(options, option.WithMaxRetries(0))
	} else if opts.MaxRetries > 0 {
		options = append(options, option.WithMaxRetries(opts.MaxRetries))
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAI{
		client:  openai.NewClient(options...),
		model:   opts.Model,
		timeout: opts.Timeout,
		log:     log,
	}, nil
}

// Complete sends the request and returns the first choice's content.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned")
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("llm: empty completion")
	}
	o.log.Debug("completion received",
		zap.String("model", o.model),
		zap.Int("chars", len(content)),
		zap.Duration("took", time.Since(start)))
	return content, nil
}
