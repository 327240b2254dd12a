package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
)

var (
	requestTitle     string
	requestDesc      string
	requestPriority  int
	requestSearch    string
	requestSort      string
	requestStatus    string
	requestProgress  int
	requestAscending bool
)

var requestCmd = &cobra.Command{
	Use:     "request",
	Aliases: []string{"req"},
	Short:   "Manage service requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestListRun()
	},
}

var requestAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Open a service request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestAddRun()
	},
}

var requestListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List service requests",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestListRun()
	},
}

var requestShowCmd = &cobra.Command{
	Use:   "show <request-id>",
	Short: "Show request details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestShowRun(args[0])
	},
}

var requestUpdateCmd = &cobra.Command{
	Use:   "update <request-id>",
	Short: "Update the status and progress of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestUpdateRun(args[0], cmd.Flags().Changed("progress"))
	},
}

var requestNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Start work on the longest-waiting pending request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestNextRun()
	},
}

var requestQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List pending requests, longest waiting first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestQueueRun()
	},
}

var requestSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add a set of sample requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return requestSeedRun()
	},
}

func init() {
	requestAddCmd.Flags().StringVar(&requestTitle, "title", "", "Request title (required)")
	requestAddCmd.Flags().StringVar(&requestDesc, "desc", "", "Request description")
	requestAddCmd.Flags().IntVar(&requestPriority, "priority", 1, "Priority, higher is more urgent")
	_ = requestAddCmd.MarkFlagRequired("title")

	requestListCmd.Flags().StringVar(&requestSearch, "search", "", "Only requests whose title or description contains this")
	requestListCmd.Flags().StringVar(&requestSort, "sort", "id", "Order: id, priority")
	requestListCmd.Flags().BoolVar(&requestAscending, "asc", false, "Lowest priority first with --sort priority")

	requestUpdateCmd.Flags().StringVar(&requestStatus, "status", "", "New status: pending, in_progress, completed (required)")
	requestUpdateCmd.Flags().IntVar(&requestProgress, "progress", 0, "Progress percent 0-100")
	_ = requestUpdateCmd.MarkFlagRequired("status")

	requestCmd.AddCommand(requestAddCmd)
	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestShowCmd)
	requestCmd.AddCommand(requestUpdateCmd)
	requestCmd.AddCommand(requestNextCmd)
	requestCmd.AddCommand(requestQueueCmd)
	requestCmd.AddCommand(requestSeedCmd)
	rootCmd.AddCommand(requestCmd)
}

func requestAddRun() error {
	s, err := getState()
	if err != nil {
		return err
	}

	in := models.NewServiceRequest{Title: requestTitle, Description: requestDesc, Priority: requestPriority}
	if dryRun {
		ui.DryRunMsg("Would open request: %s [p%d]", in.Title, in.Priority)
		return nil
	}

	r, err := s.requests.Create(in)
	if err != nil {
		return err
	}
	if err := s.saveRequests(); err != nil {
		return err
	}
	ui.Success("Opened request %s: %s", output.Cyan(formatID(r.ID)), r.Title)
	return nil
}

func renderRequests(rs []*models.ServiceRequest) {
	table := ui.Table([]string{"ID", "Opened", "Priority", "Status", "Progress", "Title"})
	for _, r := range rs {
		_ = table.Append([]string{
			formatID(r.ID),
			r.CreatedAt.Format(dateLayout),
			output.PriorityColor(r.Priority),
			output.StatusColor(string(r.Status)),
			output.ProgressBar(r.Progress),
			r.Title,
		})
	}
	_ = table.Render()
}

func requestListRun() error {
	s, err := getState()
	if err != nil {
		return err
	}

	var rs []*models.ServiceRequest
	switch requestSort {
	case "", "id":
		rs = s.requests.List(requestSearch)
	case "priority":
		if requestSearch != "" {
			return fmt.Errorf("--search cannot be combined with --sort priority")
		}
		rs = s.requests.ByPriority(requestAscending)
	default:
		return fmt.Errorf("unknown sort %q (use: id, priority)", requestSort)
	}

	if len(rs) == 0 {
		ui.Info("No requests found.")
		return nil
	}
	renderRequests(rs)
	return nil
}

func requestShowRun(ref string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	id, err := parseID(ref)
	if err != nil {
		return err
	}
	r, ok := s.requests.Find(id)
	if !ok {
		return requestNotFound(id)
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(formatID(r.ID)), r.Title)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(r.Status)))
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(r.Priority))
	fmt.Fprintf(ui.Out, "  Progress:   %s\n", output.ProgressBar(r.Progress))
	fmt.Fprintf(ui.Out, "  Opened:     %s (%s)\n", r.CreatedAt.Format(dateLayout), timeAgo(r.CreatedAt))
	if r.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", r.Description)
	}
	return nil
}

func requestUpdateRun(ref string, progressGiven bool) error {
	s, err := getState()
	if err != nil {
		return err
	}
	id, err := parseID(ref)
	if err != nil {
		return err
	}
	status, err := models.ParseRequestStatus(requestStatus)
	if err != nil {
		return err
	}

	current, ok := s.requests.Find(id)
	if !ok {
		return requestNotFound(id)
	}
	progress := current.Progress
	switch {
	case progressGiven:
		progress = requestProgress
	case status == models.RequestStatusCompleted:
		progress = 100
	case status == models.RequestStatusPending:
		progress = 0
	}

	if dryRun {
		ui.DryRunMsg("Would set request %s to %s (%d%%)", formatID(id), status, progress)
		return nil
	}

	if _, err := s.requests.UpdateStatus(id, status, progress); err != nil {
		return err
	}
	if err := s.saveRequests(); err != nil {
		return err
	}
	ui.Success("Request %s is now %s %s", output.Cyan(formatID(id)), output.StatusColor(string(status)), output.ProgressBar(progress))
	return nil
}

func requestNextRun() error {
	s, err := getState()
	if err != nil {
		return err
	}

	if dryRun {
		if r, ok := s.requests.Oldest(); ok {
			ui.DryRunMsg("Would start request %s: %s", formatID(r.ID), r.Title)
		} else {
			ui.Info("No pending requests.")
		}
		return nil
	}

	r, ok := s.requests.Dequeue()
	if !ok {
		ui.Info("No pending requests.")
		return nil
	}
	if err := s.saveRequests(); err != nil {
		return err
	}
	ui.Success("Started request %s: %s (waited %s)", output.Cyan(formatID(r.ID)), r.Title, timeAgo(r.CreatedAt))
	return nil
}

func requestQueueRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	rs := s.requests.Waiting()
	if len(rs) == 0 {
		ui.Info("No pending requests.")
		return nil
	}
	renderRequests(rs)
	return nil
}

func requestSeedRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would add sample requests")
		return nil
	}
	rs, err := s.requests.Seed(now())
	if err != nil {
		return err
	}
	if err := s.saveRequests(); err != nil {
		return err
	}
	ui.Success("Added %d sample requests", len(rs))
	return nil
}

func requestNotFound(id int64) error {
	return fmt.Errorf("request not found: %s", formatID(id))
}
