package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/polyflow-ai/polyflow/pkg/models"
)

// AnthropicClient is an alternate Invoker backed by the Anthropic API.
// Request.Endpoint is ignored since the SDK owns transport addressing, and
// Request.Model carries a served-model name from the vLLM world; each call
// is resolved to the configured Claude model for its variant instead.
type AnthropicClient struct {
	inner      anthropic.Client
	smallModel string
	largeModel string
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key; falls back to ANTHROPIC_API_KEY.
	APIKey string
	// SmallModel is the Claude model serving small-variant calls.
	SmallModel string
	// LargeModel is the Claude model serving large-variant calls.
	LargeModel string
	// UseAWSBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the Bedrock region (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is an optional shared-config profile name.
	AWSProfile string
}

// NewAnthropicClient creates the Anthropic-backed Invoker. Extra request
// options are appended after the credential options, so tests can redirect
// the SDK at a local server.
func NewAnthropicClient(cfg AnthropicConfig, extra ...option.RequestOption) (*AnthropicClient, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	opts = append(opts, extra...)

	return &AnthropicClient{
		inner:      anthropic.NewClient(opts...),
		smallModel: cfg.SmallModel,
		largeModel: cfg.LargeModel,
	}, nil
}

// resolveModel maps the call's variant to the configured Claude model,
// keeping Request.Model only as a fallback when no mapping is configured.
func (c *AnthropicClient) resolveModel(req Request) string {
	if req.Variant == models.VariantLarge {
		if c.largeModel != "" {
			return c.largeModel
		}
	} else if c.smallModel != "" {
		return c.smallModel
	}
	return req.Model
}

// Invoke sends the prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (c *AnthropicClient) Invoke(ctx context.Context, req Request) (string, error) {
	maxTokens := req.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	model := c.resolveModel(req)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Params.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Params.Temperature)
	}
	if len(req.Params.Stop) > 0 {
		params.StopSequences = req.Params.Stop
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", &InferenceError{Endpoint: "anthropic", Model: model, Err: err}
	}

	var out string
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			out += text.Text
		}
	}
	if out == "" {
		return "", &InferenceError{Endpoint: "anthropic", Model: model,
			Err: fmt.Errorf("empty response content")}
	}
	return out, nil
}
