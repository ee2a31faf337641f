package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	oaishared "github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// Generator produces model output for a prompt.
type Generator interface {
	Text(ctx context.Context, prompt string) (string, error)
	JSON(ctx context.Context, prompt string, format Format) (string, error)
}

// Format describes a strict structured-output schema.
type Format struct {
	Name        string
	Description string
	Schema      map[string]any
}

// OpenAIGenerator calls the OpenAI Responses API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator builds a generator for apiKey. model falls back to
// gpt-4o-mini when blank.
func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	if strings.TrimSpace(model) == "" {
		model = oaishared.ChatModelGPT4oMini
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIGenerator{client: &client, model: model}
}

// Text returns the plain output text for prompt.
func (g *OpenAIGenerator) Text(ctx context.Context, prompt string) (string, error) {
	return g.respond(ctx, responses.ResponseNewParams{
		Model: oaishared.ResponsesModel(g.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(prompt)},
	})
}

// JSON returns output text constrained to format's schema.
func (g *OpenAIGenerator) JSON(ctx context.Context, prompt string, format Format) (string, error) {
	return g.respond(ctx, responses.ResponseNewParams{
		Model: oaishared.ResponsesModel(g.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: param.NewOpt(prompt)},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        format.Name,
					Strict:      param.NewOpt(true),
					Schema:      format.Schema,
					Description: param.NewOpt(format.Description),
				},
			},
		},
	})
}

func (g *OpenAIGenerator) respond(ctx context.Context, params responses.ResponseNewParams) (string, error) {
	resp, err := g.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("assist: openai responses: %w", err)
	}
	content := strings.TrimSpace(resp.OutputText())
	if content == "" {
		return "", errors.New("assist: empty response content")
	}
	return content, nil
}
