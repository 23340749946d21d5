// Package claude implements ports.ClassificationService on the Anthropic
// Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/patent-pod-intake/internal/core/domain"
	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/resilience"
)

const (
	DefaultModel     = string(anthropic.ModelClaudeSonnet4_5)
	defaultMaxTokens = 4096
	messageOperation = "claude.messages"

	systemPrompt = "You are a patent classification analyst. You read invention disclosures and return strict JSON only. Do not invent facts that are not supported by the text."
)

// Messager is the slice of the SDK client the adapter depends on.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type Client struct {
	messages  Messager
	model     string
	maxTokens int64
	executor  *resilience.Executor
}

type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxTokens      int64
}

// New builds a client on the SDK. SDK-level retries are disabled; retries and
// the breaker belong to the executor.
func New(apiKey, model string, executor *resilience.Executor, opts Options) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is not configured")
	}
	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.RequestTimeout > 0 {
		requestOpts = append(requestOpts, option.WithRequestTimeout(opts.RequestTimeout))
	}
	c := anthropic.NewClient(requestOpts...)
	return NewWithMessager(&c.Messages, model, executor, opts.MaxTokens), nil
}

func NewWithMessager(messages Messager, model string, executor *resilience.Executor, maxTokens int64) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig().SingleShot())
	}
	return &Client{messages: messages, model: model, maxTokens: maxTokens, executor: executor}
}

func (c *Client) ModelName() string { return c.model }

func (c *Client) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	}

	out, err := resilience.Call(ctx, c.executor, messageOperation, func(callCtx context.Context) (string, error) {
		resp, err := c.messages.New(callCtx, params)
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		text := strings.TrimSpace(sb.String())
		if text == "" {
			return "", fmt.Errorf("claude returned no text content")
		}
		return text, nil
	}, classifyAnthropicError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(err)
	}
	return out, nil
}

func classifyAnthropicError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return resilience.ErrorClassification{RecordFailure: true}
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusRequestTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case apiErr.StatusCode >= 500:
			// 529 overloaded lands here too.
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func wrapTemporaryIfNeeded(err error) error {
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyAnthropicError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, messageOperation, err)
	}
	return err
}
