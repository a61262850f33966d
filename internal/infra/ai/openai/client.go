package openai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/drishti/internal/domain/audit"
)

const defaultMaxTokens = 4096

type Options struct {
	Endpoint            string
	APIKey              string
	APIVersion          string
	Azure               bool
	ChatDeployment      string
	EmbeddingDeployment string
	JSONMode            bool
	MaxTokens           int
	Temperature         float32
}

// Client wraps go-openai for chat completions and embeddings. With Azure set,
// model names are deployment names and are passed through unchanged.
type Client struct {
	*openai.Client
	ChatModel      string
	EmbeddingModel string
	jsonMode       bool
	maxTokens      int
	temperature    float32
}

func NewClient(opts Options) *Client {
	var cfg openai.ClientConfig
	if opts.Azure {
		cfg = openai.DefaultAzureConfig(opts.APIKey, opts.Endpoint)
		if opts.APIVersion != "" {
			cfg.APIVersion = opts.APIVersion
		}
		cfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		cfg = openai.DefaultConfig(opts.APIKey)
		if opts.Endpoint != "" {
			cfg.BaseURL = strings.TrimRight(opts.Endpoint, "/")
		}
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		Client:         openai.NewClientWithConfig(cfg),
		ChatModel:      opts.ChatDeployment,
		EmbeddingModel: opts.EmbeddingDeployment,
		jsonMode:       opts.JSONMode,
		maxTokens:      maxTokens,
		temperature:    opts.Temperature,
	}
}

// Complete runs one chat completion and returns the raw message content.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "complete"
	req := openai.ChatCompletionRequest{
		Model: c.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(c.ChatModel) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
		req.Temperature = c.temperature
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", audit.NewError(audit.ErrModelInvocation, op, err)
	}
	if len(resp.Choices) == 0 {
		return "", audit.Errorf(audit.ErrModelInvocation, op, "model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.EmbeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, errors.New("create embeddings: empty vector")
		}
		out[i] = d.Embedding
	}
	return out, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
