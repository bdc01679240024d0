package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	"frontdesk/agent/contract"
)

// OpenAIProvider calls the chat completions API directly, without the graph
// runtime. It backs the second slot of the fallback chain so a graph or
// primary-model outage does not take classification down with it.
type OpenAIProvider struct {
	name         string
	client       *openaisdk.Client
	model        string
	systemPrompt string
}

func NewOpenAIProvider(name string, client *openaisdk.Client, model string, systemPrompt string) (*OpenAIProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil openai client", contract.ErrValidation)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%w: model is required", contract.ErrValidation)
	}
	return &OpenAIProvider{
		name:         name,
		client:       client,
		model:        model,
		systemPrompt: systemPrompt,
	}, nil
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Classify(ctx context.Context, req contract.ClassifyRequest) (llmIntentOutput, error) {
	payload, err := marshalClassifyPayload(req)
	if err != nil {
		return llmIntentOutput{}, err
	}

	resp, err := p.client.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(p.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(p.systemPrompt),
			openaisdk.UserMessage(payload),
		},
	})
	if err != nil {
		return llmIntentOutput{}, fmt.Errorf("%w: %s invoke: %v", contract.ErrClassifierInvoke, p.name, err)
	}
	if len(resp.Choices) == 0 {
		return llmIntentOutput{}, fmt.Errorf("%w: %s returned no choices", contract.ErrClassifierInvoke, p.name)
	}

	content := stripCodeFence(resp.Choices[0].Message.Content)
	var out llmIntentOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return llmIntentOutput{}, fmt.Errorf("%w: decode %s response: %v", contract.ErrClassifierSchema, p.name, err)
	}
	return out, nil
}

// stripCodeFence unwraps a ```json fenced block when the model ignores the
// plain-JSON instruction.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
