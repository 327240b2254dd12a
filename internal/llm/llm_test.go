package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExtractPrompt(t *testing.T) {
	t.Run("with categories", func(t *testing.T) {
		system, user := buildExtractPrompt("## Roads\n1. Main St: Pothole", []string{"Roads", "Water"})

		assert.Contains(t, system, "JSON array")
		assert.Contains(t, system, `"location"`)
		assert.Contains(t, system, `"category"`)
		assert.Contains(t, system, `"description"`)
		assert.Contains(t, system, `"priority"`)
		assert.Contains(t, system, `"body"`)

		assert.Contains(t, user, "Known categories: Roads, Water")
		assert.Contains(t, user, "Main St: Pothole")
	})

	t.Run("without categories", func(t *testing.T) {
		system, user := buildExtractPrompt("some content", nil)

		assert.Contains(t, system, "JSON array")
		assert.NotContains(t, user, "Known categories")
		assert.Contains(t, user, "some content")
	})

	t.Run("system prompt describes the priority scale", func(t *testing.T) {
		system, _ := buildExtractPrompt("content", nil)

		assert.Contains(t, system, "0 to 5")
		assert.Contains(t, system, "[p4]")
		assert.Contains(t, system, "emergency")
	})
}

func TestBuildExtractPromptContent(t *testing.T) {
	content := strings.Repeat("x", 10000)
	_, user := buildExtractPrompt(content, []string{"a"})
	assert.Contains(t, user, content)
}

func TestBuildClassifyPrompt(t *testing.T) {
	t.Run("with all fields", func(t *testing.T) {
		system, user := buildClassifyPrompt("Oak Ave", "Water main burst, street flooding", []string{"Water"})

		assert.Contains(t, system, `"category"`)
		assert.Contains(t, system, `"priority"`)
		assert.Contains(t, system, "JSON")

		assert.Contains(t, user, "Known categories: Water")
		assert.Contains(t, user, "Location: Oak Ave")
		assert.Contains(t, user, "Description: Water main burst, street flooding")
	})

	t.Run("without location", func(t *testing.T) {
		_, user := buildClassifyPrompt("", "Graffiti on the library wall", nil)

		assert.NotContains(t, user, "Location:")
		assert.NotContains(t, user, "Known categories")
		assert.Contains(t, user, "Graffiti on the library wall")
	})
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, stripFence("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}\n"))
}

func TestExtractedIssue_NewIssue(t *testing.T) {
	in := ExtractedIssue{Location: " Main St ", Category: "Roads ", Description: " Pothole", Priority: -2}.NewIssue()
	assert.Equal(t, "Main St", in.Location)
	assert.Equal(t, "Roads", in.Category)
	assert.Equal(t, "Pothole", in.Description)
	assert.Equal(t, 0, in.Priority)
}

// fakeMessages serves the Messages API, answering every request with reply.
func fakeMessages(t *testing.T, reply string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "claude-test")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_test",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
		})
	}))
	t.Cleanup(srv.Close)
	return NewClient("test-key", "claude-test", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
}

func TestExtractIssues(t *testing.T) {
	c := fakeMessages(t, "```json\n"+`[
		{"location": "Main St", "category": "Roads", "description": "Pothole near the school", "priority": 3, "body": "1. Main St: Pothole near the school"},
		{"location": "", "category": "Parks", "description": "Broken swing", "priority": 1, "body": "- Broken swing"}
	]`+"\n```")

	got, err := c.ExtractIssues(context.Background(), "1. Main St: Pothole near the school\n- Broken swing", []string{"Roads"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Main St", got[0].Location)
	assert.Equal(t, 3, got[0].Priority)
	assert.Equal(t, "Parks", got[1].Category)
}

func TestExtractIssues_BadJSON(t *testing.T) {
	c := fakeMessages(t, "I found two issues.")
	_, err := c.ExtractIssues(context.Background(), "text", nil)
	assert.ErrorContains(t, err, "parse LLM response")
}

func TestClassifyIssue(t *testing.T) {
	c := fakeMessages(t, `{"category": " Water ", "priority": 4}`)

	got, err := c.ClassifyIssue(context.Background(), "Oak Ave", "Water main burst", nil)
	require.NoError(t, err)
	assert.Equal(t, "Water", got.Category)
	assert.Equal(t, 4, got.Priority)

	blank := fakeMessages(t, `{"category": "", "priority": 2}`)
	_, err = blank.ClassifyIssue(context.Background(), "", "Something", nil)
	assert.ErrorContains(t, err, "no category")
}
