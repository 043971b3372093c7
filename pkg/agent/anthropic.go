package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const maxTurnTokens = 4096

// AnthropicModel drives the Messages API as the loop's ModelClient.
type AnthropicModel struct {
	client   anthropic.Client
	model    string
	system   string
	tools    []anthropic.ToolUnionParam
	messages []anthropic.MessageParam
}

func NewAnthropicModel(apiKey, model string, catalogue []Tool) (*AnthropicModel, error) {
	tools := make([]anthropic.ToolUnionParam, 0, len(catalogue))
	for _, t := range catalogue {
		param, err := toolParam(t)
		if err != nil {
			return nil, fmt.Errorf("fail to build schema for tool %v: %w", t.Name, err)
		}
		tools = append(tools, param)
	}
	return &AnthropicModel{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		system: SystemPrompt,
		tools:  tools,
	}, nil
}

// toolParam converts a catalogue entry's reflected JSON schema into the
// SDK's input-schema shape.
func toolParam(t Tool) (anthropic.ToolUnionParam, error) {
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return anthropic.ToolUnionParam{}, err
	}
	var schema struct {
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return anthropic.ToolUnionParam{}, err
	}
	tool := anthropic.ToolParam{
		Name:        t.Name,
		Description: anthropic.String(t.Description),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: schema.Properties,
		},
	}
	return anthropic.ToolUnionParam{OfTool: &tool}, nil
}

func (m *AnthropicModel) AddUser(text string) {
	m.messages = append(m.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
}

func (m *AnthropicModel) AddToolResults(results []ToolResult) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, r := range results {
		block := anthropic.NewToolResultBlock(r.ID)
		block.OfToolResult.Content = []anthropic.ToolResultBlockParamContentUnion{
			{OfText: &anthropic.TextBlockParam{Text: r.Content}},
		}
		block.OfToolResult.IsError = anthropic.Bool(r.IsError)
		blocks = append(blocks, block)
	}
	m.messages = append(m.messages, anthropic.NewUserMessage(blocks...))
}

// StreamTurn streams one model turn, forwarding text deltas, then
// appends the accumulated assistant message to the conversation.
func (m *AnthropicModel) StreamTurn(ctx context.Context, onDelta func(string)) (*Turn, error) {
	stream := m.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: maxTurnTokens,
		System:    []anthropic.TextBlockParam{{Text: m.system}},
		Messages:  m.messages,
		Tools:     m.tools,
	})

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, err
		}
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok {
				onDelta(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("fail to stream model turn: %w", err)
	}

	m.messages = append(m.messages, message.ToParam())

	turn := &Turn{StopReason: string(message.StopReason)}
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Text += variant.Text
		case anthropic.ToolUseBlock:
			turn.ToolUses = append(turn.ToolUses, ToolUse{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: json.RawMessage(variant.JSON.Input.Raw()),
			})
		}
	}
	return turn, nil
}
