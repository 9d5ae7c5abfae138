package mcpserver

import (
	"errors"

	"github.com/JamesPrial/tabtime/internal/app"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates and configures a new MCP server with all tabtime tools
// registered against a.
func NewServer(a *app.App) (*server.MCPServer, error) {
	if a == nil {
		return nil, errors.New("mcpserver: nil app")
	}
	h := NewHandler(a)

	s := server.NewMCPServer(
		"tabtime",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Stopwatch
	s.AddTool(timerStartTool(), h.HandleTimerStart)
	s.AddTool(timerPauseTool(), h.HandleTimerPause)
	s.AddTool(timerResetTool(), h.HandleTimerReset)
	s.AddTool(timerGetTool(), h.HandleTimerGet)

	// Tracking and reports
	s.AddTool(updateTabTrackerTool(), h.HandleUpdateTabTracker)
	s.AddTool(usageReportTool(), h.HandleUsageReport)
	s.AddTool(pruneLogsTool(), h.HandlePruneLogs)
	s.AddTool(refreshDailyStatsTool(), h.HandleRefreshDailyStats)

	// Debug
	s.AddTool(debugTabLogsTool(), h.HandleDebugTabLogs)
	s.AddTool(forceLogCurrentTabTool(), h.HandleForceLogCurrentTab)
	s.AddTool(completeOpenLogsTool(), h.HandleCompleteOpenLogs)

	return s, nil
}
