package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/output"
	"github.com/joescharf/civic/internal/store"
)

const dateLayout = "2006-01-02"

var (
	issueLocation   string
	issueDesc       string
	issueCategory   string
	issuePriority   int
	issueDate       string
	issueAttachment string
	issueStatus     string
	issueSort       string
	issueDFS        bool
	issueRepair     bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage resident issue reports",
	Long:  "File, triage, and resolve issues reported by residents.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueAddCmd = &cobra.Command{
	Use:   "add",
	Short: "File a new issue report",
	Long: `File a new issue report. When --category or --priority are omitted they
are inferred from the description.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueAddRun(cmd.Flags().Changed("priority"))
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues",
	Long:    "List issues in queue order, by report date (--sort date) or by urgency (--sort priority).",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <issue-id>",
	Short: "Show issue details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(args[0])
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <issue-id> <status>",
	Short: "Set the status of an issue (pending, in_progress, resolved)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueStatusRun(args[0], args[1])
	},
}

var issuePriorityCmd = &cobra.Command{
	Use:   "priority <issue-id> <priority>",
	Short: "Change the priority of an issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issuePriorityRun(args[0], args[1])
	},
}

var issueCategoryCmd = &cobra.Command{
	Use:   "category <issue-id> <category>",
	Short: "Move an issue to another category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCategoryRun(args[0], args[1])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:     "delete <issue-id>",
	Aliases: []string{"rm"},
	Short:   "Delete an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(args[0])
	},
}

var issueNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the most urgent issue without removing it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueNextRun()
	},
}

var issuePopCmd = &cobra.Command{
	Use:   "pop",
	Short: "Remove and show the most urgent issue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issuePopRun()
	},
}

var issueDequeueCmd = &cobra.Command{
	Use:   "dequeue",
	Short: "Remove and show the earliest filed issue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDequeueRun()
	},
}

var issueRelatedCmd = &cobra.Command{
	Use:   "related <category>",
	Short: "List issues in a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueRelatedRun(args[0])
	},
}

var issueLinkCmd = &cobra.Command{
	Use:   "link <issue-id> <issue-id>",
	Short: "Mark two issues as related",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueLinkRun(args[0], args[1])
	},
}

var issueWalkCmd = &cobra.Command{
	Use:   "walk <issue-id>",
	Short: "Walk the issues reachable through links",
	Long:  "Walk the issues reachable through links, breadth-first unless --dfs is given.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueWalkRun(args[0])
	},
}

var issueVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every index agrees with the stored issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueVerifyRun()
	},
}

func init() {
	issueAddCmd.Flags().StringVar(&issueLocation, "location", "", "Where the problem is (required)")
	issueAddCmd.Flags().StringVar(&issueDesc, "desc", "", "What the problem is (required)")
	issueAddCmd.Flags().StringVar(&issueCategory, "category", "", "Category (inferred from the report if omitted)")
	issueAddCmd.Flags().IntVar(&issuePriority, "priority", 0, "Priority, higher is more urgent (inferred if omitted)")
	issueAddCmd.Flags().StringVar(&issueDate, "date", "", "Report date YYYY-MM-DD (default now)")
	issueAddCmd.Flags().StringVar(&issueAttachment, "attachment", "", "Path to a photo or document")
	_ = issueAddCmd.MarkFlagRequired("location")
	_ = issueAddCmd.MarkFlagRequired("desc")

	issueListCmd.Flags().StringVar(&issueStatus, "status", "", "Filter by status: pending, in_progress, resolved")
	issueListCmd.Flags().StringVar(&issueSort, "sort", "queue", "Order: queue, date, priority")

	issueWalkCmd.Flags().BoolVar(&issueDFS, "dfs", false, "Walk depth-first")

	issueVerifyCmd.Flags().BoolVar(&issueRepair, "repair", false, "Rebuild the priority index if it disagrees")

	issueCmd.AddCommand(issueAddCmd)
	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueStatusCmd)
	issueCmd.AddCommand(issuePriorityCmd)
	issueCmd.AddCommand(issueCategoryCmd)
	issueCmd.AddCommand(issueDeleteCmd)
	issueCmd.AddCommand(issueNextCmd)
	issueCmd.AddCommand(issuePopCmd)
	issueCmd.AddCommand(issueDequeueCmd)
	issueCmd.AddCommand(issueRelatedCmd)
	issueCmd.AddCommand(issueLinkCmd)
	issueCmd.AddCommand(issueWalkCmd)
	issueCmd.AddCommand(issueVerifyCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueAddRun(priorityGiven bool) error {
	s, err := getState()
	if err != nil {
		return err
	}

	in := models.NewIssue{
		Location:       issueLocation,
		Description:    issueDesc,
		Category:       issueCategory,
		Priority:       issuePriority,
		AttachmentPath: issueAttachment,
	}
	inferIssueFields(s, &in, strings.TrimSpace(in.Category) == "", !priorityGiven)
	if issueDate != "" {
		d, err := time.ParseInLocation(dateLayout, issueDate, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --date %q (use YYYY-MM-DD)", issueDate)
		}
		in.DateReported = d
	}

	if dryRun {
		ui.DryRunMsg("Would file issue at %s [%s/p%d]", in.Location, in.Category, in.Priority)
		return nil
	}

	issue, err := s.issues.AddIssue(in)
	if err != nil {
		return err
	}
	if err := s.saveIssues(); err != nil {
		return err
	}

	ui.Success("Filed issue %s: %s [%s/p%d]", output.Cyan(formatID(issue.ID)), issue.Location, issue.Category, issue.Priority)
	return nil
}

func issueListRun() error {
	s, err := getState()
	if err != nil {
		return err
	}

	var issues []*models.Issue
	switch issueSort {
	case "", "queue":
		issues = s.issues.GetAllIssues()
	case "date":
		issues = s.issues.GetIssuesSortedByDate()
	case "priority":
		issues = s.issues.GetIssuesByPriority()
	default:
		return fmt.Errorf("unknown sort %q (use: queue, date, priority)", issueSort)
	}

	if issueStatus != "" {
		status, err := models.ParseIssueStatus(issueStatus)
		if err != nil {
			return err
		}
		filtered := issues[:0]
		for _, i := range issues {
			if i.Status == status {
				filtered = append(filtered, i)
			}
		}
		issues = filtered
	}

	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}
	renderIssues(issues)
	return nil
}

func renderIssues(issues []*models.Issue) {
	table := ui.Table([]string{"ID", "Reported", "Category", "Priority", "Status", "Location", "Description"})
	for _, i := range issues {
		_ = table.Append([]string{
			formatID(i.ID),
			i.DateReported.Format(dateLayout),
			i.Category,
			output.PriorityColor(i.Priority),
			output.StatusColor(string(i.Status)),
			output.Truncate(i.Location, 24),
			output.Truncate(i.Description, 48),
		})
	}
	_ = table.Render()
}

func printIssue(i *models.Issue) {
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(formatID(i.ID)), i.Location)
	fmt.Fprintf(ui.Out, "  Category:   %s\n", i.Category)
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(i.Priority))
	fmt.Fprintf(ui.Out, "  Status:     %s\n", output.StatusColor(string(i.Status)))
	fmt.Fprintf(ui.Out, "  Reported:   %s\n", i.DateReported.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Desc:       %s\n", i.Description)
	if i.AttachmentPath != "" {
		fmt.Fprintf(ui.Out, "  Attachment: %s\n", i.AttachmentPath)
	}
}

func issueShowRun(ref string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	issue, err := findIssue(s.issues, ref)
	if err != nil {
		return err
	}
	printIssue(issue)

	if linked := s.issues.GetLinked(issue.ID); len(linked) > 0 {
		ids := make([]string, 0, len(linked))
		for _, l := range linked {
			ids = append(ids, formatID(l.ID))
		}
		fmt.Fprintf(ui.Out, "  Linked:     %s\n", strings.Join(ids, ", "))
	}
	return nil
}

func issueStatusRun(ref, value string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	id, err := parseID(ref)
	if err != nil {
		return err
	}
	status, err := models.ParseIssueStatus(value)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would set issue %s to %s", formatID(id), status)
		return nil
	}

	ok, err := s.issues.UpdateStatus(id, status)
	if err != nil {
		return err
	}
	if !ok {
		return issueNotFound(id)
	}
	if err := s.saveIssues(); err != nil {
		return err
	}
	ui.Success("Issue %s is now %s", output.Cyan(formatID(id)), output.StatusColor(string(status)))
	return nil
}

func issuePriorityRun(ref, value string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	id, err := parseID(ref)
	if err != nil {
		return err
	}
	priority, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid priority %q", value)
	}

	if dryRun {
		ui.DryRunMsg("Would set issue %s to priority %d", formatID(id), priority)
		return nil
	}

	ok, err := s.issues.UpdatePriority(id, priority)
	if err != nil {
		return err
	}
	if !ok {
		return issueNotFound(id)
	}
	if err := s.saveIssues(); err != nil {
		return err
	}
	ui.Success("Issue %s is now priority %s", output.Cyan(formatID(id)), output.PriorityColor(priority))
	return nil
}

func issueCategoryRun(ref, category string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	id, err := parseID(ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would move issue %s to %s", formatID(id), category)
		return nil
	}

	ok, err := s.issues.UpdateCategory(id, category)
	if err != nil {
		return err
	}
	if !ok {
		return issueNotFound(id)
	}
	if err := s.saveIssues(); err != nil {
		return err
	}
	ui.Success("Moved issue %s to %s", output.Cyan(formatID(id)), category)
	return nil
}

func issueDeleteRun(ref string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	id, err := parseID(ref)
	if err != nil {
		return err
	}

	if dryRun {
		if _, ok := s.issues.GetIssue(id); !ok {
			return issueNotFound(id)
		}
		ui.DryRunMsg("Would delete issue %s", formatID(id))
		return nil
	}

	issue, ok := s.issues.DeleteIssue(id)
	if !ok {
		return issueNotFound(id)
	}
	if err := s.saveIssues(); err != nil {
		return err
	}
	ui.Success("Deleted issue %s: %s", output.Cyan(formatID(issue.ID)), issue.Location)
	return nil
}

func issueNextRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	issue, ok := s.issues.GetNextPriorityIssue()
	if !ok {
		ui.Info("No issues waiting.")
		return nil
	}
	printIssue(issue)
	return nil
}

func issuePopRun() error {
	return takeIssue("most urgent", (*store.MemoryStore).GetNextPriorityIssue, (*store.MemoryStore).RemoveHighestPriority)
}

func issueDequeueRun() error {
	return takeIssue("earliest filed", (*store.MemoryStore).PeekNext, (*store.MemoryStore).RemoveNext)
}

// takeIssue removes one issue with take, or only reports it with peek on a
// dry run.
func takeIssue(label string, peek, take func(*store.MemoryStore) (*models.Issue, bool)) error {
	s, err := getState()
	if err != nil {
		return err
	}

	if dryRun {
		if issue, ok := peek(s.issues); ok {
			ui.DryRunMsg("Would remove the %s issue %s", label, formatID(issue.ID))
		} else {
			ui.Info("No issues waiting.")
		}
		return nil
	}

	issue, ok := take(s.issues)
	if !ok {
		ui.Info("No issues waiting.")
		return nil
	}
	if err := s.saveIssues(); err != nil {
		return err
	}
	ui.Success("Removed the %s issue", label)
	printIssue(issue)
	return nil
}

func issueRelatedRun(category string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	issues := s.issues.GetRelated(category)
	if len(issues) == 0 {
		ui.Info("No issues in category %s. Known categories: %s", category, strings.Join(s.issues.Categories(), ", "))
		return nil
	}
	renderIssues(issues)
	return nil
}

func issueLinkRun(refA, refB string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	a, err := parseID(refA)
	if err != nil {
		return err
	}
	b, err := parseID(refB)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would link issues %s and %s", formatID(a), formatID(b))
		return nil
	}

	ok, err := s.issues.LinkIssues(a, b)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("issue not found: %s or %s", formatID(a), formatID(b))
	}
	if err := s.saveIssues(); err != nil {
		return err
	}
	ui.Success("Linked issues %s and %s", output.Cyan(formatID(a)), output.Cyan(formatID(b)))
	return nil
}

func issueWalkRun(ref string) error {
	s, err := getState()
	if err != nil {
		return err
	}
	id, err := parseID(ref)
	if err != nil {
		return err
	}

	order := store.BreadthFirst
	if issueDFS {
		order = store.DepthFirst
	}
	issues := s.issues.Traverse(id, order)
	if len(issues) == 0 {
		return issueNotFound(id)
	}
	renderIssues(issues)
	return nil
}

func issueVerifyRun() error {
	s, err := getState()
	if err != nil {
		return err
	}
	err = s.issues.Verify()
	if err != nil && issueRepair && errors.Is(err, store.ErrInconsistent) {
		logger.Warn("verify failed, rebuilding priority index", "err", err)
		s.issues.RebuildPriorityIndex()
		err = s.issues.Verify()
	}
	if err != nil {
		return err
	}
	ui.Success("All indexes agree on %d issues", s.issues.Len())
	return nil
}

// findIssue looks an issue up by its "#12" or "12" reference.
func findIssue(s store.Store, ref string) (*models.Issue, error) {
	id, err := parseID(ref)
	if err != nil {
		return nil, err
	}
	issue, ok := s.GetIssue(id)
	if !ok {
		return nil, issueNotFound(id)
	}
	return issue, nil
}

func parseID(ref string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(ref), "#"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", ref)
	}
	return id, nil
}

func formatID(id int64) string {
	return fmt.Sprintf("#%d", id)
}

func issueNotFound(id int64) error {
	return fmt.Errorf("issue not found: %s", formatID(id))
}
