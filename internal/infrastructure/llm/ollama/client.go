package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/patent-pod-intake/internal/infrastructure/resilience"
)

const generateOperation = "ollama.generate"

// Client talks to the Ollama HTTP API and implements ports.ClassificationService.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig().SingleShot())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

// GenerateJSONFromPrompt asks the model for a JSON answer and returns the raw
// response text. The caller owns parsing.
func (c *Client) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	reqBody := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Format:  "json",
		Options: generateOptions{Temperature: 0},
	}

	out, err := resilience.Call(ctx, c.executor, generateOperation, func(callCtx context.Context) (string, error) {
		var response struct {
			Response string `json:"response"`
		}
		if err := c.roundTrip(callCtx, http.MethodPost, "/api/generate", reqBody, &response); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Response), nil
	}, classifyOllamaError)
	if err != nil {
		return "", wrapTemporaryIfNeeded(generateOperation, err)
	}
	return out, nil
}

// Ping checks that the server answers and the model is installed.
func (c *Client) Ping(ctx context.Context) error {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.roundTrip(ctx, http.MethodGet, "/api/tags", nil, &response); err != nil {
		return wrapTemporaryIfNeeded("ollama.tags", err)
	}
	for _, m := range response.Models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return nil
		}
	}
	return &ModelMissingError{Model: c.model}
}
