package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// MaxRounds bounds the tool loop; the loop force-terminates after this
// many model turns.
const MaxRounds = 10

// ErrMaxRounds is returned when the round cap is hit before the model
// settles on a text response.
var ErrMaxRounds = errors.New("agent: max tool rounds exceeded")

// ToolUse is one tool invocation requested by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// Turn is one completed model turn.
type Turn struct {
	Text       string
	StopReason string
	ToolUses   []ToolUse
}

// ToolResult is fed back to the model as tool output.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// ModelClient owns the conversation with the model. StreamTurn streams
// one turn, forwarding text deltas, and appends the assistant message
// to the conversation.
type ModelClient interface {
	AddUser(text string)
	AddToolResults(results []ToolResult)
	StreamTurn(ctx context.Context, onDelta func(string)) (*Turn, error)
}

type Loop struct {
	model  ModelClient
	tools  map[string]Tool
	logger *log.Entry
}

func NewLoop(model ModelClient, tools []Tool) *Loop {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &Loop{
		model:  model,
		tools:  byName,
		logger: log.WithFields(log.Fields{"mod": "agent"}),
	}
}

// Run executes the tool loop for one user message, emitting SSE events
// to sink until the model produces a terminal text response.
func (l *Loop) Run(ctx context.Context, userMessage string, sink EventSink) error {
	l.model.AddUser(userMessage)

	// running text history; tool outcomes are appended so the final
	// assistant_message reflects what actually happened
	accumulated := ""

	for round := 0; round < MaxRounds; round++ {
		turn, err := l.model.StreamTurn(ctx, func(delta string) {
			_ = sink(EventText, delta)
		})
		if err != nil {
			_ = sink(EventError, errorPayload{Message: err.Error()})
			return err
		}
		accumulated += turn.Text

		if turn.StopReason != "tool_use" {
			_ = sink(EventAssistantMessage, assistantMessagePayload{Text: accumulated})
			_ = sink(EventDone, nil)
			return nil
		}

		results := make([]ToolResult, 0, len(turn.ToolUses))
		for _, use := range turn.ToolUses {
			_ = sink(EventToolCall, toolCallPayload{Name: use.Name, Input: use.Input})
			content, report, isErr := l.execute(ctx, use, sink)
			_ = sink(EventToolResult, toolResultPayload{
				Name:   use.Name,
				Result: json.RawMessage(content),
				Report: report,
			})
			accumulated += fmt.Sprintf("\n[Called %v: %v]", use.Name, content)
			results = append(results, ToolResult{ID: use.ID, Content: content, IsError: isErr})
		}
		l.model.AddToolResults(results)
	}

	_ = sink(EventError, errorPayload{Message: ErrMaxRounds.Error()})
	_ = sink(EventDone, nil)
	return ErrMaxRounds
}

// execute runs one tool. A tool failure becomes an error event plus an
// error result the model sees as tool output; the loop continues.
func (l *Loop) execute(ctx context.Context, use ToolUse, sink EventSink) (content, report string, isErr bool) {
	tool, ok := l.tools[use.Name]
	if !ok {
		msg := fmt.Sprintf("unknown tool %q", use.Name)
		_ = sink(EventError, errorPayload{Message: msg})
		return serializeError(msg), "", true
	}

	out, err := tool.Run(ctx, use.Input)
	if err != nil {
		l.logger.Warnf("fail to execute tool %v: %v", use.Name, err)
		_ = sink(EventError, errorPayload{Message: fmt.Sprintf("tool %v: %v", use.Name, err)})
		return serializeError(err.Error()), "", true
	}

	report, out = extractReport(out)
	raw, err := json.Marshal(out)
	if err != nil {
		return serializeError(err.Error()), "", true
	}
	return string(raw), report, false
}

func serializeError(msg string) string {
	raw, _ := json.Marshal(map[string]string{"error": msg})
	return string(raw)
}

// extractReport pulls a _report field out of a tool result so the
// transport can render it separately from the raw payload.
func extractReport(out any) (string, any) {
	m, ok := out.(map[string]any)
	if !ok {
		return "", out
	}
	report, ok := m["_report"].(string)
	if !ok {
		return "", out
	}
	rest := make(map[string]any, len(m)-1)
	for k, v := range m {
		if k == "_report" {
			continue
		}
		rest[k] = v
	}
	return report, rest
}
