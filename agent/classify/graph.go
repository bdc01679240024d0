package classify

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"frontdesk/agent/contract"
)

// EinoProvider classifies through a compiled eino graph:
// prompt -> model -> json parser. The graph is compiled once at
// construction and the runner is reused across calls.
type EinoProvider struct {
	name   string
	runner compose.Runnable[map[string]any, llmIntentOutput]
}

func NewEinoProvider(ctx context.Context, name string, chatModel einomodel.BaseChatModel, systemPrompt string) (*EinoProvider, error) {
	runner, err := compileClassifierGraph(ctx, chatModel, systemPrompt, "classifier."+name)
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contract.ErrClassifierInvoke, err)
	}
	return &EinoProvider{name: name, runner: runner}, nil
}

func (p *EinoProvider) Name() string { return p.name }

func (p *EinoProvider) Classify(ctx context.Context, req contract.ClassifyRequest) (llmIntentOutput, error) {
	payload, err := marshalClassifyPayload(req)
	if err != nil {
		return llmIntentOutput{}, err
	}

	out, err := p.runner.Invoke(ctx, map[string]any{"input": payload})
	if err != nil {
		return llmIntentOutput{}, fmt.Errorf("%w: %s invoke: %v", contract.ErrClassifierInvoke, p.name, err)
	}
	return out, nil
}

func compileClassifierGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, llmIntentOutput], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[llmIntentOutput](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, llmIntentOutput]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add classifier prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add classifier model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add classifier parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add classifier edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add classifier edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add classifier edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add classifier edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile classifier graph: %w", err)
	}
	return runner, nil
}

// marshalClassifyPayload renders the utterance plus bounded history as the
// single JSON document the prompt expects.
func marshalClassifyPayload(req contract.ClassifyRequest) (string, error) {
	history := make([]map[string]string, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, map[string]string{
			"caller": turn.Utterance,
			"agent":  turn.Response,
		})
	}
	payload := map[string]any{
		"utterance": req.Utterance,
		"history":   history,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal classify payload: %v", contract.ErrValidation, err)
	}
	return string(raw), nil
}
