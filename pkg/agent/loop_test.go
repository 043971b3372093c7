package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeModel replays scripted turns and records the conversation calls.
type fakeModel struct {
	turns       []*Turn
	idx         int
	userMsgs    []string
	toolResults [][]ToolResult
	deltas      []string
}

func (f *fakeModel) AddUser(text string) { f.userMsgs = append(f.userMsgs, text) }

func (f *fakeModel) AddToolResults(results []ToolResult) {
	f.toolResults = append(f.toolResults, results)
}

func (f *fakeModel) StreamTurn(ctx context.Context, onDelta func(string)) (*Turn, error) {
	if f.idx >= len(f.turns) {
		return nil, errors.New("no scripted turn")
	}
	turn := f.turns[f.idx]
	f.idx++
	for _, d := range f.deltas {
		onDelta(d)
	}
	return turn, nil
}

type recordedEvent struct {
	event   string
	payload any
}

func recordSink(events *[]recordedEvent) EventSink {
	return func(event string, payload any) error {
		*events = append(*events, recordedEvent{event, payload})
		return nil
	}
}

type fakeSvc struct {
	Service
	summaryErr error
}

func (f *fakeSvc) AccountSummary(ctx context.Context) (any, error) {
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return map[string]any{
		"balance": 25000.0,
		"_report": "Balance $25000.00",
	}, nil
}

func (f *fakeSvc) Positions(ctx context.Context) (any, error) {
	return []map[string]any{{"market": "BTC-PERP"}}, nil
}

func eventsOf(events []recordedEvent, name string) []recordedEvent {
	var out []recordedEvent
	for _, e := range events {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

func TestLoopTerminalResponse(t *testing.T) {
	model := &fakeModel{
		turns:  []*Turn{{Text: "All quiet.", StopReason: "end_turn"}},
		deltas: []string{"All ", "quiet."},
	}
	loop := NewLoop(model, Catalogue(&fakeSvc{}))

	var events []recordedEvent
	require.NoError(t, loop.Run(context.Background(), "how are my positions?", recordSink(&events)))

	require.Equal(t, []string{"how are my positions?"}, model.userMsgs)
	require.Len(t, eventsOf(events, EventText), 2)

	assistant := eventsOf(events, EventAssistantMessage)
	require.Len(t, assistant, 1)
	require.Equal(t, "All quiet.", assistant[0].payload.(assistantMessagePayload).Text)
	require.Len(t, eventsOf(events, EventDone), 1)
	require.Empty(t, eventsOf(events, EventError))
}

func TestLoopToolRound(t *testing.T) {
	model := &fakeModel{
		turns: []*Turn{
			{
				Text:       "Checking.",
				StopReason: "tool_use",
				ToolUses:   []ToolUse{{ID: "tu_1", Name: "account_summary", Input: json.RawMessage(`{}`)}},
			},
			{Text: "You have $25000.", StopReason: "end_turn"},
		},
	}
	loop := NewLoop(model, Catalogue(&fakeSvc{}))

	var events []recordedEvent
	require.NoError(t, loop.Run(context.Background(), "balance?", recordSink(&events)))

	calls := eventsOf(events, EventToolCall)
	require.Len(t, calls, 1)
	require.Equal(t, "account_summary", calls[0].payload.(toolCallPayload).Name)

	results := eventsOf(events, EventToolResult)
	require.Len(t, results, 1)
	payload := results[0].payload.(toolResultPayload)
	require.Equal(t, "Balance $25000.00", payload.Report, "_report extracted separately")
	require.NotContains(t, string(payload.Result.(json.RawMessage)), "_report")

	// tool results fed back to the model
	require.Len(t, model.toolResults, 1)
	require.Equal(t, "tu_1", model.toolResults[0][0].ID)
	require.False(t, model.toolResults[0][0].IsError)

	// history carries the tool outcome
	assistant := eventsOf(events, EventAssistantMessage)
	require.Len(t, assistant, 1)
	text := assistant[0].payload.(assistantMessagePayload).Text
	require.Contains(t, text, "[Called account_summary:")
	require.Contains(t, text, "You have $25000.")
}

func TestLoopToolFailureContinues(t *testing.T) {
	model := &fakeModel{
		turns: []*Turn{
			{
				StopReason: "tool_use",
				ToolUses:   []ToolUse{{ID: "tu_1", Name: "account_summary", Input: json.RawMessage(`{}`)}},
			},
			{Text: "Could not read the account.", StopReason: "end_turn"},
		},
	}
	loop := NewLoop(model, Catalogue(&fakeSvc{summaryErr: errors.New("rpc down")}))

	var events []recordedEvent
	require.NoError(t, loop.Run(context.Background(), "balance?", recordSink(&events)))

	errs := eventsOf(events, EventError)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].payload.(errorPayload).Message, "rpc down")

	// the model sees the failure as tool output and the loop continues
	require.Len(t, model.toolResults, 1)
	require.True(t, model.toolResults[0][0].IsError)
	require.Contains(t, model.toolResults[0][0].Content, "rpc down")
	require.Len(t, eventsOf(events, EventDone), 1)
}

func TestLoopUnknownTool(t *testing.T) {
	model := &fakeModel{
		turns: []*Turn{
			{
				StopReason: "tool_use",
				ToolUses:   []ToolUse{{ID: "tu_1", Name: "teleport", Input: json.RawMessage(`{}`)}},
			},
			{Text: "ok", StopReason: "end_turn"},
		},
	}
	loop := NewLoop(model, Catalogue(&fakeSvc{}))

	var events []recordedEvent
	require.NoError(t, loop.Run(context.Background(), "go", recordSink(&events)))
	require.True(t, model.toolResults[0][0].IsError)
}

func TestLoopRoundCap(t *testing.T) {
	turns := make([]*Turn, 0, MaxRounds+1)
	for i := 0; i <= MaxRounds; i++ {
		turns = append(turns, &Turn{
			StopReason: "tool_use",
			ToolUses:   []ToolUse{{ID: fmt.Sprintf("tu_%v", i), Name: "positions", Input: json.RawMessage(`{}`)}},
		})
	}
	model := &fakeModel{turns: turns}
	loop := NewLoop(model, Catalogue(&fakeSvc{}))

	var events []recordedEvent
	err := loop.Run(context.Background(), "loop forever", recordSink(&events))
	require.ErrorIs(t, err, ErrMaxRounds)
	require.Equal(t, MaxRounds, model.idx, "exactly MaxRounds model turns")
	require.Len(t, eventsOf(events, EventDone), 1)
}

func TestCatalogueShape(t *testing.T) {
	tools := Catalogue(&fakeSvc{})
	names := map[string]Tool{}
	for _, tool := range tools {
		names[tool.Name] = tool
	}
	for _, expected := range []string{
		"account_summary", "positions", "markets", "open_orders", "funding_info",
		"liquidation_analysis", "trading_fees", "order_book", "recent_trades",
		"debug_transaction", "simulate_strategy", "dry_run_trade",
		"open_position", "close_position", "cancel_order",
	} {
		require.Contains(t, names, expected)
	}
	require.True(t, names["open_position"].Write)
	require.True(t, names["close_position"].Write)
	require.True(t, names["cancel_order"].Write)
	require.False(t, names["dry_run_trade"].Write)
}
