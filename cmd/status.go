package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/health"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/persist"
)

var statusHistory int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the desk dashboard",
	Long: `Show a summary of the issue backlog with its health score, the event
calendar and the service request queue.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := getState(); err != nil {
			return err
		}
		return statusRun()
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusHistory, "history", 0, "Also list the last N saved snapshots")
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	ctx := context.Background()

	scorer := health.NewScorer()
	scorer.Now = now
	h := scorer.Score(s.issues.GetAllIssues())

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan("Issues"), output.HealthColor(h.Total))
	fmt.Fprintf(ui.Out, "  Pending:     %d\n", h.Pending)
	fmt.Fprintf(ui.Out, "  In progress: %d\n", h.InProgress)
	fmt.Fprintf(ui.Out, "  Resolved:    %d\n", h.Resolved)
	fmt.Fprintf(ui.Out, "  Urgent:      %d\n", h.Urgent)
	if !h.Oldest.IsZero() {
		fmt.Fprintf(ui.Out, "  Oldest:      %s\n", timeAgo(h.Oldest))
	}
	fmt.Fprintf(ui.Out, "  Score:       resolution %d/40, freshness %d/30, urgent load %d/30\n",
		h.Resolution, h.Freshness, h.UrgentLoad)
	if next, ok := s.issues.GetNextPriorityIssue(); ok {
		fmt.Fprintf(ui.Out, "  Next up:     %s %s (%s)\n", formatID(next.ID), next.Location, output.PriorityColor(next.Priority))
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan("Events"))
	fmt.Fprintf(ui.Out, "  Scheduled:   %d\n", s.events.Len())
	fmt.Fprintf(ui.Out, "  Upcoming:    %d\n", len(s.events.GetUpcomingEvents(now())))

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan("Requests"))
	fmt.Fprintf(ui.Out, "  Open:        %s\n", formatRequestCounts(s.requests.List("")))
	if oldest, ok := s.requests.Oldest(); ok {
		fmt.Fprintf(ui.Out, "  Waiting:     %s %s (%s)\n", formatID(oldest.ID), oldest.Title, timeAgo(oldest.CreatedAt))
	}

	info, err := s.db.LastSnapshot(ctx, persist.KindIssues)
	if err != nil {
		return err
	}
	if info != nil {
		fmt.Fprintf(ui.Out, "Last saved %s\n", timeAgo(info.TakenAt))
	}

	if statusHistory > 0 {
		history, err := s.db.History(ctx, statusHistory)
		if err != nil {
			return err
		}
		table := ui.Table([]string{"Snapshot", "Kind", "Items", "Taken"})
		for _, snap := range history {
			_ = table.Append([]string{snap.ID, string(snap.Kind), fmt.Sprintf("%d", snap.ItemCount), snap.TakenAt.Format(time.RFC3339)})
		}
		_ = table.Render()
	}
	return nil
}

// formatRequestCounts renders "pending/in progress" like the issue counts.
func formatRequestCounts(rs []*models.ServiceRequest) string {
	if len(rs) == 0 {
		return "-"
	}
	pending, inProg := 0, 0
	for _, r := range rs {
		switch r.Status {
		case models.RequestStatusPending:
			pending++
		case models.RequestStatusInProgress:
			inProg++
		}
	}
	return fmt.Sprintf("%d/%d", pending, inProg)
}

func timeAgo(t time.Time) string {
	d := now().Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
