package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/JamesPrial/tabtime/internal/hook"
	"github.com/JamesPrial/tabtime/internal/stats"
)

var (
	statsFrom  string
	statsTo    string
	statsGroup string
	statsSplit string
	statsJSON  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report focused time per site",
	Long: `Report focused time per site over a window.

--from and --to accept epoch milliseconds, RFC3339 or YYYY-MM-DD in the
configured timezone. The window defaults to today so far.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := theApp.Location()
		from, err := hook.ParseTime(statsFrom, loc)
		if err != nil {
			return err
		}
		to, err := hook.ParseTime(statsTo, loc)
		if err != nil {
			return err
		}
		group, err := stats.ParseGranularity(statsGroup)
		if err != nil {
			return err
		}
		var split stats.Split
		if statsSplit != "" {
			if split, err = stats.ParseSplit(statsSplit); err != nil {
				return err
			}
		}

		rep, err := theApp.Report(cmd.Context(), stats.Query{From: from, To: to, Group: group, Split: split})
		if err != nil {
			return err
		}

		if statsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		renderReport(cmd.OutOrStdout(), rep, loc)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "window start (default: start of today)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "window end (default: now)")
	statsCmd.Flags().StringVar(&statsGroup, "group", "", "bucket the report by day, hour or week")
	statsCmd.Flags().StringVar(&statsSplit, "split", "", "attribute overlapping time: proportional or latest")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(statsCmd)
}

// renderReport writes rep as styled tables. Styling is dropped
// automatically when w is not a terminal.
func renderReport(w io.Writer, rep stats.Report, loc *time.Location) {
	r := lipgloss.NewRenderer(w)
	titleStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle := r.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)
	borderStyle := r.NewStyle().Foreground(lipgloss.Color("#874BFD"))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s to %s",
		rep.From.In(loc).Format("2006-01-02 15:04"), rep.To.In(loc).Format("2006-01-02 15:04"))))
	fmt.Fprintf(w, "Total %s across %d session(s)\n", formatMs(rep.TotalMs), rep.Sessions)

	if len(rep.Domains) == 0 {
		fmt.Fprintln(w, "No tracked time in this window.")
		return
	}

	styleFunc := func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	}

	sites := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(styleFunc).
		Headers("SITE", "TIME", "SHARE")
	for _, d := range rep.Domains {
		sites.Row(d.Domain, formatMs(d.TimeMs), fmt.Sprintf("%.1f%%", d.Percent))
	}
	fmt.Fprintln(w, sites.Render())

	if len(rep.Groups) == 0 {
		return
	}
	groups := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(styleFunc).
		Headers("BUCKET", "TIME", "SESSIONS", "TOP SITE")
	for _, b := range rep.Groups {
		groups.Row(b.Key, formatMs(b.TotalMs), fmt.Sprintf("%d", b.Sessions), topSite(b.Sites))
	}
	fmt.Fprintln(w, groups.Render())
}

func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

// topSite returns the site with the most time, ties going to the
// alphabetically first.
func topSite(sites map[string]int64) string {
	best := ""
	var bestMs int64 = -1
	for site, ms := range sites {
		if ms > bestMs || (ms == bestMs && site < best) {
			best, bestMs = site, ms
		}
	}
	if best == "" {
		return "-"
	}
	return best
}
