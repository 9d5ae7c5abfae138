package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JamesPrial/tabtime/internal/app"
	"github.com/JamesPrial/tabtime/internal/hook"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handler answers tool calls by running the matching host command.
type Handler struct {
	app *app.App
}

// NewHandler returns a Handler over a.
func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

// HandleTimerStart starts the stopwatch with an optional label.
func (h *Handler) HandleTimerStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionTimerStart, Label: request.GetString("label", "")}), nil
}

func (h *Handler) HandleTimerPause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionTimerPause}), nil
}

func (h *Handler) HandleTimerReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionTimerReset}), nil
}

func (h *Handler) HandleTimerGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionTimerGet}), nil
}

// HandleUpdateTabTracker enables or disables tracking. The enabled
// parameter is required.
func (h *Handler) HandleUpdateTabTracker(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled, err := request.RequireBool("enabled")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: enabled"), nil
	}
	return h.command(ctx, &hook.Message{Action: hook.ActionUpdateTabTracker, Enabled: &enabled}), nil
}

// HandleUsageReport computes a report over the optional from/to window.
func (h *Handler) HandleUsageReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{
		Action: hook.ActionGetStats,
		From:   request.GetString("from", ""),
		To:     request.GetString("to", ""),
		Group:  request.GetString("group", ""),
		Split:  request.GetString("split", ""),
	}), nil
}

// HandlePruneLogs removes old day buckets. Zero days means the configured
// retention.
func (h *Handler) HandlePruneLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionPrune, Days: request.GetInt("days", 0)}), nil
}

func (h *Handler) HandleDebugTabLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionDebugGetTabLogs}), nil
}

func (h *Handler) HandleForceLogCurrentTab(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionDebugForceLogCurrentTab}), nil
}

func (h *Handler) HandleCompleteOpenLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.command(ctx, &hook.Message{Action: hook.ActionDebugCompleteAllLogs}), nil
}

// HandleRefreshDailyStats rebuilds and persists the daily statistics cache.
func (h *Handler) HandleRefreshDailyStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	daily, err := h.app.Aggregator().RefreshDailyStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to refresh daily stats: %v", err)), nil
	}
	return jsonResult(daily), nil
}

// command runs msg as a host command. The host response becomes the tool
// result; a response carrying an error text is flagged as a tool error.
func (h *Handler) command(ctx context.Context, msg *hook.Message) *mcp.CallToolResult {
	msg.Type = hook.TypeCommand
	if err := msg.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	resp := h.app.Handle(ctx, msg)
	if resp.Error != "" {
		return mcp.NewToolResultError(resp.Error)
	}
	return jsonResult(resp)
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}
