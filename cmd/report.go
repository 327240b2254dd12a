package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/joescharf/civic/internal/models"
)

var (
	reportFormat string
	exportType   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export issues, events, or service requests in various formats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	exportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "issues", "Data type: issues, events, requests")
	rootCmd.AddCommand(exportCmd)
}

func exportRun() error {
	s, err := getState()
	if err != nil {
		return err
	}

	switch exportType {
	case "issues":
		return exportIssues(s.issues.GetAllIssues())
	case "events":
		return exportEvents(s.events.GetAllEvents())
	case "requests":
		return exportRequests(s.requests.List(""))
	default:
		return fmt.Errorf("unknown export type: %s (use: issues, events, requests)", exportType)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(ui.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(header []string, rows [][]string) error {
	w := csv.NewWriter(ui.Out)
	_ = w.Write(header)
	_ = w.WriteAll(rows)
	return w.Error()
}

var mdCellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

// mdCell makes free text safe inside a markdown table cell.
func mdCell(s string) string {
	return mdCellEscaper.Replace(s)
}

func exportIssues(issues []*models.Issue) error {
	switch reportFormat {
	case "json":
		return writeJSON(issues)
	case "csv":
		rows := lo.Map(issues, func(i *models.Issue, _ int) []string {
			return []string{
				strconv.FormatInt(i.ID, 10), i.DateReported.Format(dateLayout), i.Category,
				strconv.Itoa(i.Priority), string(i.Status), i.Location, i.Description, i.AttachmentPath,
			}
		})
		return writeCSV([]string{"ID", "Reported", "Category", "Priority", "Status", "Location", "Description", "Attachment"}, rows)
	case "markdown":
		fmt.Fprintln(ui.Out, "# Issues")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| ID | Category | Priority | Status | Location | Description |")
		fmt.Fprintln(ui.Out, "|----|----------|----------|--------|----------|-------------|")
		for _, i := range issues {
			fmt.Fprintf(ui.Out, "| %d | %s | %d | %s | %s | %s |\n",
				i.ID, mdCell(i.Category), i.Priority, i.Status, mdCell(i.Location), mdCell(i.Description))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportEvents(evs []*models.LocalEvent) error {
	switch reportFormat {
	case "json":
		return writeJSON(evs)
	case "csv":
		rows := lo.Map(evs, func(e *models.LocalEvent, _ int) []string {
			return []string{strconv.FormatInt(e.ID, 10), e.Date.Format(dateLayout), e.Category, e.Title, e.Description}
		})
		return writeCSV([]string{"ID", "Date", "Category", "Title", "Description"}, rows)
	case "markdown":
		fmt.Fprintln(ui.Out, "# Events")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| Date | Category | Title |")
		fmt.Fprintln(ui.Out, "|------|----------|-------|")
		for _, e := range evs {
			fmt.Fprintf(ui.Out, "| %s | %s | %s |\n", e.Date.Format(dateLayout), mdCell(e.Category), mdCell(e.Title))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportRequests(rs []*models.ServiceRequest) error {
	switch reportFormat {
	case "json":
		return writeJSON(rs)
	case "csv":
		rows := lo.Map(rs, func(r *models.ServiceRequest, _ int) []string {
			return []string{
				strconv.FormatInt(r.ID, 10), r.CreatedAt.Format(dateLayout), strconv.Itoa(r.Priority),
				string(r.Status), strconv.Itoa(r.Progress), r.Title,
			}
		})
		return writeCSV([]string{"ID", "Opened", "Priority", "Status", "Progress", "Title"}, rows)
	case "markdown":
		fmt.Fprintln(ui.Out, "# Service Requests")
		fmt.Fprintln(ui.Out)
		fmt.Fprintln(ui.Out, "| ID | Title | Status | Progress |")
		fmt.Fprintln(ui.Out, "|----|-------|--------|----------|")
		for _, r := range rs {
			fmt.Fprintf(ui.Out, "| %d | %s | %s | %d%% |\n", r.ID, mdCell(r.Title), r.Status, r.Progress)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate reports",
	Long:  "Generate summary reports of desk activity.",
}

var reportWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Generate a weekly summary by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportWeeklyRun()
	},
}

func init() {
	reportCmd.AddCommand(reportWeeklyCmd)
	rootCmd.AddCommand(reportCmd)
}

func reportWeeklyRun() error {
	s, err := getState()
	if err != nil {
		return err
	}

	fmt.Fprintln(ui.Out, "# Weekly Report")
	fmt.Fprintln(ui.Out)

	weekAgo := now().AddDate(0, 0, -7)
	for _, category := range s.issues.Categories() {
		issues := s.issues.GetRelated(category)
		counts := lo.CountValuesBy(issues, func(i *models.Issue) models.IssueStatus { return i.Status })
		filed := lo.CountBy(issues, func(i *models.Issue) bool { return i.DateReported.After(weekAgo) })

		fmt.Fprintf(ui.Out, "## %s\n", category)
		fmt.Fprintf(ui.Out, "- Issues: %d pending, %d in-progress, %d resolved\n",
			counts[models.IssueStatusPending], counts[models.IssueStatusInProgress], counts[models.IssueStatusResolved])
		fmt.Fprintf(ui.Out, "- Filed this week: %d\n", filed)
		if evs := s.events.GetEventsByCategory(category); len(evs) > 0 {
			titles := lo.Map(evs, func(e *models.LocalEvent, _ int) string { return e.Title })
			fmt.Fprintf(ui.Out, "- Events: %s\n", strings.Join(titles, ", "))
		}
		fmt.Fprintln(ui.Out)
	}

	waiting := s.requests.Waiting()
	fmt.Fprintf(ui.Out, "## Service Requests\n- Waiting: %d\n", len(waiting))
	return nil
}
