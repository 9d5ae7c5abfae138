package app

import (
	"context"
	"fmt"

	"github.com/JamesPrial/tabtime/internal/hook"
	"github.com/JamesPrial/tabtime/internal/stats"
	"github.com/JamesPrial/tabtime/internal/timer"
)

// Handle applies one host message and builds its response. Event messages
// always succeed from the caller's point of view; failures inside them are
// logged by the components that hit them.
func (a *App) Handle(ctx context.Context, msg *hook.Message) hook.Response {
	if len(msg.Windows) > 0 {
		a.browser.Update(msg.Windows)
	}

	switch msg.Type {
	case hook.TypeTabActivated:
		a.tracker.TabActivated(ctx, msg.EventTab())
	case hook.TypeTabUpdated:
		a.tracker.TabUpdated(ctx, msg.EventTab())
	case hook.TypeTabRemoved:
		a.tracker.TabRemoved(ctx, msg.EventTab().ID)
	case hook.TypeWindowFocusChanged:
		a.tracker.WindowFocusChanged(ctx, *msg.WindowID)
	case hook.TypeInstalled:
		if err := a.Install(ctx, msg.Reason); err != nil {
			a.logger.Error("install hook failed", "reason", msg.Reason, "err", err)
			return hook.Fail(msg, err)
		}
	case hook.TypeStartup, hook.TypeActivate:
		if err := a.Migrate(ctx); err != nil {
			a.logger.Error("migration failed", "err", err)
		}
		a.Startup(ctx)
	case hook.TypeCommand:
		return a.command(ctx, msg)
	default:
		return hook.Fail(msg, fmt.Errorf("%w: unknown type %q", hook.ErrInvalidMessage, msg.Type))
	}
	return hook.OK(msg)
}

func (a *App) command(ctx context.Context, msg *hook.Message) hook.Response {
	switch msg.Action {
	case hook.ActionTimerStart:
		snap, ok, err := a.timer.Start(ctx, msg.Label)
		return timerResponse(msg, snap, ok, err)
	case hook.ActionTimerPause:
		snap, ok, err := a.timer.Pause(ctx)
		return timerResponse(msg, snap, ok, err)
	case hook.ActionTimerReset:
		snap, err := a.timer.Reset(ctx)
		return timerResponse(msg, snap, true, err)
	case hook.ActionTimerGet:
		return timerResponse(msg, a.timer.State(ctx), true, nil)

	case hook.ActionUpdateTabTracker:
		enabled := *msg.Enabled
		if err := a.SetTracking(ctx, enabled); err != nil {
			return hook.Fail(msg, err)
		}
		r := hook.OK(msg)
		r.Enabled = &enabled
		return r

	case hook.ActionGetStats:
		q, err := a.queryFrom(msg)
		if err != nil {
			return hook.Fail(msg, err)
		}
		rep, err := a.Report(ctx, q)
		if err != nil {
			return hook.Fail(msg, err)
		}
		r := hook.OK(msg)
		r.Report = &rep
		return r

	case hook.ActionPrune:
		n, err := a.Prune(ctx, msg.Days)
		if err != nil {
			return hook.Fail(msg, err)
		}
		r := hook.OK(msg)
		r.Pruned = &n
		return r

	case hook.ActionDebugGetTabLogs:
		info, err := a.Debug(ctx)
		if err != nil {
			return hook.Fail(msg, err)
		}
		r := hook.OK(msg)
		r.Debug = &info
		return r

	case hook.ActionDebugCompleteAllLogs:
		n, err := a.CompleteAll(ctx)
		if err != nil {
			return hook.Fail(msg, err)
		}
		r := hook.OK(msg)
		r.Completed = &n
		return r

	case hook.ActionDebugForceLogCurrentTab:
		tab, ok, err := a.ForceLogCurrentTab(ctx)
		if err != nil {
			return hook.Fail(msg, err)
		}
		if !ok {
			return hook.Response{ID: msg.ID, Message: "no active tab found"}
		}
		r := hook.OK(msg)
		r.Logged = &tab
		r.Message = "current tab logged"
		return r
	}
	return hook.Fail(msg, fmt.Errorf("%w: unknown action %q", hook.ErrInvalidMessage, msg.Action))
}

func (a *App) queryFrom(msg *hook.Message) (stats.Query, error) {
	from, err := hook.ParseTime(msg.From, a.loc)
	if err != nil {
		return stats.Query{}, err
	}
	to, err := hook.ParseTime(msg.To, a.loc)
	if err != nil {
		return stats.Query{}, err
	}
	group, err := stats.ParseGranularity(msg.Group)
	if err != nil {
		return stats.Query{}, err
	}
	var split stats.Split
	if msg.Split != "" {
		if split, err = stats.ParseSplit(msg.Split); err != nil {
			return stats.Query{}, err
		}
	}
	return stats.Query{From: from, To: to, Group: group, Split: split}, nil
}

// timerResponse reports ok as success. A save failure is passed along as
// the error text without undoing the transition.
func timerResponse(msg *hook.Message, snap timer.Snapshot, ok bool, err error) hook.Response {
	r := hook.Response{ID: msg.ID, Success: ok, State: &snap}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
