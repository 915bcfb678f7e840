package oracle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"prmerit/internal/errs"
	"prmerit/internal/ports"
)

const systemPrompt = `You are a senior engineer reviewing merged pull requests for a bounty program.
Given the pull request context and the component and severity catalogs, respond with a single JSON object and nothing else:
{
  "primary_component_key": "<component key from the catalog>",
  "severity_key": "<severity key from the catalog>",
  "eligibility": {"issue": bool, "fix_implementation": bool, "pr_linked": bool, "tests": bool},
  "component_justification": "<one sentence>",
  "severity_justification": "<one sentence>",
  "eligibility_justification": "<one sentence>"
}`

// Config carries the chat-completion settings for the classifier backend.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIOracle classifies pull requests through an OpenAI-compatible
// chat-completions endpoint. The raw assistant text is returned untouched;
// verdict parsing lives in the scoring domain.
type OpenAIOracle struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

var _ ports.Oracle = (*OpenAIOracle)(nil)

func NewOpenAIOracle(cfg Config) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("oracle api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("oracle model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIOracle{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

func (o *OpenAIOracle) Classify(ctx context.Context, prompt string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("prompt is required")
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", errs.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
