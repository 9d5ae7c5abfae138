// Package mcpserver exposes tabtime's command interface as MCP tools.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// timerStartTool returns a tool definition for starting the stopwatch.
func timerStartTool() mcp.Tool {
	return mcp.NewTool("timer_start",
		mcp.WithDescription("Start the stopwatch. Does nothing if it is already running."),
		mcp.WithString("label",
			mcp.Description("Free-form label stored with the timer")),
	)
}

func timerPauseTool() mcp.Tool {
	return mcp.NewTool("timer_pause",
		mcp.WithDescription("Pause the stopwatch, folding the running span into the accumulated time."),
	)
}

func timerResetTool() mcp.Tool {
	return mcp.NewTool("timer_reset",
		mcp.WithDescription("Reset the stopwatch to paused with zero accumulated time."),
	)
}

func timerGetTool() mcp.Tool {
	return mcp.NewTool("timer_get",
		mcp.WithDescription("Get the stopwatch state including the current elapsed milliseconds."),
	)
}

// updateTabTrackerTool returns a tool definition for toggling tab tracking.
func updateTabTrackerTool() mcp.Tool {
	return mcp.NewTool("update_tab_tracker",
		mcp.WithDescription("Enable or disable tab time tracking. Enabling starts a session for the focused tab."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("Whether tracking should be enabled")),
	)
}

// usageReportTool returns a tool definition for computing time-per-site reports.
func usageReportTool() mcp.Tool {
	return mcp.NewTool("usage_report",
		mcp.WithDescription("Report focused time per site over a window. Overlapping sessions are never double counted."),
		mcp.WithString("from",
			mcp.Description("Window start: epoch milliseconds, RFC3339 or YYYY-MM-DD (defaults to the start of today)")),
		mcp.WithString("to",
			mcp.Description("Window end: epoch milliseconds, RFC3339 or YYYY-MM-DD (defaults to now)")),
		mcp.WithString("group",
			mcp.Description("Optional bucketing of the report"),
			mcp.Enum("day", "hour", "week")),
		mcp.WithString("split",
			mcp.Description("How overlapping time is attributed to sites"),
			mcp.Enum("proportional", "latest")),
	)
}

func pruneLogsTool() mcp.Tool {
	return mcp.NewTool("prune_logs",
		mcp.WithDescription("Delete day buckets older than the given number of days."),
		mcp.WithNumber("days",
			mcp.Description("Days to keep (defaults to the configured retention)")),
	)
}

func debugTabLogsTool() mcp.Tool {
	return mcp.NewTool("debug_tab_logs",
		mcp.WithDescription("Summarise the session log: day count, entry count, open entries and the tracked tab."),
	)
}

func forceLogCurrentTabTool() mcp.Tool {
	return mcp.NewTool("force_log_current_tab",
		mcp.WithDescription("Open a session for the active tab of the focused window. Reports success false when no tab is active."),
	)
}

func completeOpenLogsTool() mcp.Tool {
	return mcp.NewTool("complete_open_logs",
		mcp.WithDescription("Close every open session with a fixed 30 second estimate."),
	)
}

func refreshDailyStatsTool() mcp.Tool {
	return mcp.NewTool("refresh_daily_stats",
		mcp.WithDescription("Rebuild the per-day, per-site statistics cache from the session log and return it."),
	)
}
