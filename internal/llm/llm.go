package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/civic/internal/models"
)

// ExtractedIssue holds a single resident report extracted from free text.
type ExtractedIssue struct {
	Location    string `json:"location"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Body        string `json:"body"` // raw source text for this specific report
}

// NewIssue converts the extraction into a store payload.
func (e ExtractedIssue) NewIssue() models.NewIssue {
	return models.NewIssue{
		Location:    strings.TrimSpace(e.Location),
		Category:    strings.TrimSpace(e.Category),
		Description: strings.TrimSpace(e.Description),
		Priority:    max(e.Priority, 0),
	}
}

// Classification is the inferred category and priority of one report.
type Classification struct {
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

// Client wraps the Anthropic API for report extraction and classification.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	if apiKey != "" {
		opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

const priorityScale = `0 = cosmetic, 1 = minor inconvenience, 2 = normal (default), 3 = service outage or disruption, 4 = serious hazard, 5 = emergency or danger to life`

// buildExtractPrompt constructs the system and user prompts for report extraction.
func buildExtractPrompt(content string, categories []string) (system string, user string) {
	system = `You extract municipal issue reports filed by residents. Return ONLY a JSON array of objects with these fields:
- "location": the street, address or landmark where the problem is (empty string if none is given)
- "category": a short department-style category such as "Roads", "Water", "Utilities", "Sanitation", "Parks" or "Safety"
- "description": a concise description of the problem
- "priority": an integer from 0 to 5 (` + priorityScale + `)
- "body": the exact original source text from the input that relates to this specific report

Rules:
- Each numbered/bulleted item or distinct complaint is one report
- A "## <name>" heading names the category of the reports below it
- Reuse a known category when one fits, matching its spelling
- A trailing marker like "[p4]" sets the priority explicitly
- For sub-items (e.g., "1.1 Still leaking"), reuse the parent's location when the sub-item has none
- Never create placeholder reports like "none" or "N/A"
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if len(categories) > 0 {
		sb.WriteString("Known categories: ")
		sb.WriteString(strings.Join(categories, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Extract issue reports from this text:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// ExtractIssues sends free-form report text to the LLM and returns structured reports.
func (c *Client) ExtractIssues(ctx context.Context, content string, categories []string) ([]ExtractedIssue, error) {
	systemPrompt, userPrompt := buildExtractPrompt(content, categories)

	text, err := c.complete(ctx, systemPrompt, userPrompt, 4096)
	if err != nil {
		return nil, err
	}

	var issues []ExtractedIssue
	if err := json.Unmarshal([]byte(text), &issues); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return issues, nil
}

// buildClassifyPrompt constructs the system and user prompts for classifying one report.
func buildClassifyPrompt(location, description string, categories []string) (system string, user string) {
	system = `You triage municipal issue reports. Given a report's location and description, return a JSON object with exactly two fields:

- "category": a short department-style category such as "Roads", "Water", "Utilities", "Sanitation", "Parks" or "Safety"
- "priority": an integer from 0 to 5 (` + priorityScale + `)

Rules:
- Return valid JSON only, no markdown fencing or explanation
- Reuse a known category when one fits, matching its spelling
- If the location is empty, infer as much as possible from the description alone`

	var sb strings.Builder
	if len(categories) > 0 {
		sb.WriteString("Known categories: ")
		sb.WriteString(strings.Join(categories, ", "))
		sb.WriteString("\n\n")
	}
	if location != "" {
		sb.WriteString("Location: ")
		sb.WriteString(location)
		sb.WriteString("\n")
	}
	sb.WriteString("Description: ")
	sb.WriteString(description)
	sb.WriteString("\n")
	user = sb.String()
	return
}

// ClassifyIssue asks the LLM for the category and priority of a single report.
func (c *Client) ClassifyIssue(ctx context.Context, location, description string, categories []string) (*Classification, error) {
	systemPrompt, userPrompt := buildClassifyPrompt(location, description, categories)

	text, err := c.complete(ctx, systemPrompt, userPrompt, 512)
	if err != nil {
		return nil, err
	}

	var class Classification
	if err := json.Unmarshal([]byte(text), &class); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	class.Category = strings.TrimSpace(class.Category)
	if class.Category == "" {
		return nil, fmt.Errorf("LLM returned no category")
	}
	class.Priority = max(class.Priority, 0)
	return &class, nil
}

// complete sends one system+user exchange and returns the first text block,
// with any markdown fencing stripped.
func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in API response")
	}
	return stripFence(text), nil
}

func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
