package cmd

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/civic/internal/llm"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

var (
	importDryRun bool
	importNoLLM  bool
)

var issueImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import issue reports from a markdown file",
	Long: `Import issue reports from a markdown file.

Reports are numbered or bulleted items of the form "<location>: <description>",
optionally grouped under "## <Category>" headings. Items outside a heading get
a category inferred from their text. A trailing "[p4]" sets the priority,
otherwise it is inferred from the description. Numbered sub-items such as
"1.1 <description>" without a location of their own inherit their parent's.

When an Anthropic API key is configured (ANTHROPIC_API_KEY or
anthropic.api_key), Claude extracts the reports instead, which also handles
free-form prose. Use --no-llm to force the markdown parser.

Reports already on file with the same location and description are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueImportRun(args[0])
	},
}

func init() {
	issueImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview extracted issues without filing them")
	issueImportCmd.Flags().BoolVar(&importNoLLM, "no-llm", false, "Use the markdown parser even when an API key is configured")
	issueCmd.AddCommand(issueImportCmd)
}

// importedIssue is one report extracted from a markdown file.
type importedIssue struct {
	Category    string
	Location    string
	Description string
	Priority    int
	Line        string
}

func (e importedIssue) newIssue() models.NewIssue {
	return models.NewIssue{
		Location:    e.Location,
		Category:    e.Category,
		Description: e.Description,
		Priority:    e.Priority,
	}
}

func issueImportRun(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("file is empty: %s", file)
	}

	s, err := getState()
	if err != nil {
		return err
	}

	issues := extractIssues(s, content)
	if len(issues) == 0 {
		ui.Info("No issues found in file.")
		return nil
	}

	// Preview table
	table := ui.Table([]string{"#", "Category", "Priority", "Location", "Description"})
	for i, e := range issues {
		_ = table.Append([]string{
			fmt.Sprintf("%d", i+1),
			e.Category,
			fmt.Sprintf("%d", e.Priority),
			e.Location,
			e.Description,
		})
	}
	_ = table.Render()

	if importDryRun || dryRun {
		ui.DryRunMsg("Would file %d issues", len(issues))
		return nil
	}

	created := createImportedIssues(s.issues, issues)
	if created == 0 {
		return nil
	}
	return s.saveIssues()
}

// extractIssues uses the LLM when one is configured and the markdown parser
// otherwise, or when the LLM call fails.
func extractIssues(s *appState, content string) []importedIssue {
	if client := newLLMClient(); client != nil && !importNoLLM {
		ui.Info("Extracting reports with LLM (%s)...", viper.GetString("anthropic.model"))
		ctx, cancel := context.WithTimeout(context.Background(), llmTimeout)
		defer cancel()
		extracted, err := client.ExtractIssues(ctx, content, s.issues.Categories())
		if err == nil {
			return lo.Map(extracted, func(e llm.ExtractedIssue, _ int) importedIssue {
				in := e.NewIssue()
				line, _, _ := strings.Cut(strings.TrimSpace(e.Body), "\n")
				if line == "" {
					line = in.Description
				}
				return importedIssue{
					Category:    in.Category,
					Location:    in.Location,
					Description: in.Description,
					Priority:    in.Priority,
					Line:        line,
				}
			})
		}
		ui.Warning("LLM extraction failed, using the markdown parser: %v", err)
	}
	return parseMarkdownIssues(content)
}

var priorityMarker = regexp.MustCompile(`(?i)\s*\[p(\d+)\]\s*$`)

// parseSubIssueNumber checks if a line starts with a sub-item number like "1.1" or "2.3."
// Returns the text and true if it's a sub-item, or empty and false otherwise.
func parseSubIssueNumber(line string) (text string, ok bool) {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) || line[i] != '.' {
		return "", false
	}
	i++
	start := i
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == start {
		return "", false // a regular "1. text" item
	}
	if i < len(line) && line[i] == '.' {
		i++
	}
	if i >= len(line) || line[i] != ' ' {
		return "", false
	}
	text = strings.TrimSpace(line[i:])
	if text == "" {
		return "", false
	}
	return text, true
}

// parseListItem returns the text of a "1. text", "- text" or "* text" line.
func parseListItem(line string) (text string, numbered bool) {
	if len(line) <= 2 {
		return "", false
	}
	for i, c := range line {
		if c == '.' && i > 0 && i < 4 {
			return strings.TrimSpace(line[i+1:]), true
		}
		if c < '0' || c > '9' {
			break
		}
	}
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:]), false
	}
	return "", false
}

// splitReport separates "<location>: <description>" and an optional
// trailing priority marker.
func splitReport(text string) (location, description string, priority int, hasPriority bool) {
	if m := priorityMarker.FindStringSubmatch(text); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil {
			priority, hasPriority = p, true
			text = text[:len(text)-len(m[0])]
		}
	}
	if loc, desc, ok := strings.Cut(text, ":"); ok && strings.TrimSpace(loc) != "" {
		return strings.TrimSpace(loc), strings.TrimSpace(desc), priority, hasPriority
	}
	return "", strings.TrimSpace(text), priority, hasPriority
}

// parseMarkdownIssues extracts numbered and bulleted reports from markdown.
func parseMarkdownIssues(content string) []importedIssue {
	var issues []importedIssue
	currentCategory := ""
	parentLocation := "" // location of the last top-level numbered item

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "## ") {
			currentCategory = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			parentLocation = ""
			continue
		}

		text, isSub := parseSubIssueNumber(line)
		numbered := false
		if !isSub {
			text, numbered = parseListItem(line)
		}
		if text == "" {
			continue
		}

		location, desc, priority, hasPriority := splitReport(text)
		if location == "" && isSub {
			location = parentLocation
		}
		if numbered {
			parentLocation = location
		}
		if desc == "" {
			continue
		}

		category := currentCategory
		if category == "" {
			category = classifyIssueCategory(location + " " + desc)
		}
		if !hasPriority {
			priority = classifyIssuePriority(desc)
		}

		issues = append(issues, importedIssue{
			Category:    category,
			Location:    location,
			Description: desc,
			Priority:    priority,
			Line:        line,
		})
	}

	return issues
}

func reportKey(location, description string) string {
	return strings.ToLower(strings.TrimSpace(location)) + "\x00" + strings.ToLower(strings.TrimSpace(description))
}

// createImportedIssues files every report not already on file and returns
// how many were created.
func createImportedIssues(s store.Store, extracted []importedIssue) int {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, i := range s.GetAllIssues() {
		seen.Add(reportKey(i.Location, i.Description))
	}

	created, skipped, dups := 0, 0, 0
	for _, e := range extracted {
		key := reportKey(e.Location, e.Description)
		if seen.Contains(key) {
			dups++
			continue
		}
		issue, err := s.AddIssue(e.newIssue())
		if err != nil {
			ui.Warning("Skipping %q: %v", e.Line, err)
			skipped++
			continue
		}
		seen.Add(key)
		created++
		logger.Debug("imported issue", "id", issue.ID, "category", issue.Category)
	}

	ui.Success("Filed %d issues", created)
	if dups > 0 {
		ui.Info("Skipped %d reports already on file", dups)
	}
	if skipped > 0 {
		ui.Warning("Skipped %d invalid reports", skipped)
	}
	return created
}
