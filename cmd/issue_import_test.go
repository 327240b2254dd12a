package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/civic/internal/store"
)

func TestParseMarkdownIssues(t *testing.T) {
	t.Run("numbered list with category headings", func(t *testing.T) {
		md := `# Ward 4 reports

## Roads

1. Main St & 5th: Pothole in the left lane
2. Elm Ave: Faded crossing paint

## Water

1. Oak Park gate: Burst pipe flooding the path
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 3)

		assert.Equal(t, "Roads", issues[0].Category)
		assert.Equal(t, "Main St & 5th", issues[0].Location)
		assert.Equal(t, "Pothole in the left lane", issues[0].Description)
		assert.Equal(t, priorityNormal, issues[0].Priority)

		assert.Equal(t, "Roads", issues[1].Category)
		assert.Equal(t, priorityLow, issues[1].Priority)

		assert.Equal(t, "Water", issues[2].Category)
		assert.Equal(t, "Oak Park gate", issues[2].Location)
		assert.Equal(t, priorityUrgent, issues[2].Priority)
	})

	t.Run("category inferred without heading", func(t *testing.T) {
		md := `1. Library: Overflowing garbage bins
2. Hill Rd: Streetlight out since Monday
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 2)
		assert.Equal(t, "Sanitation", issues[0].Category)
		assert.Equal(t, "Utilities", issues[1].Category)
	})

	t.Run("priority marker overrides inference", func(t *testing.T) {
		md := `## Parks

- Riverside: Minor bench damage [p3]
- Riverside: Emergency tree fall [P1]
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 2)
		assert.Equal(t, 3, issues[0].Priority)
		assert.Equal(t, "Minor bench damage", issues[0].Description)
		assert.Equal(t, 1, issues[1].Priority)
		assert.Equal(t, "Emergency tree fall", issues[1].Description)
	})

	t.Run("bulleted list", func(t *testing.T) {
		md := `## Safety

- Underpass: Graffiti on the north wall
* Bus stop: Broken glass shelter
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 2)
		assert.Equal(t, "Underpass", issues[0].Location)
		assert.Equal(t, "Bus stop", issues[1].Location)
		assert.Equal(t, "- Underpass: Graffiti on the north wall", issues[0].Line)
	})

	t.Run("sub-items inherit parent location", func(t *testing.T) {
		md := `## Roads

1. Market Square: Uneven paving
1.1 Loose kerb stone by the fountain
1.2. Cafe corner: Cracked slab

2. Station Rd: Blocked drain
2.1 Water pooling after rain
`
		issues := parseMarkdownIssues(md)
		require.Len(t, issues, 5)

		assert.Equal(t, "Market Square", issues[1].Location)
		assert.Equal(t, "Loose kerb stone by the fountain", issues[1].Description)
		assert.Equal(t, "Cafe corner", issues[2].Location)
		assert.Equal(t, "Station Rd", issues[4].Location)
	})

	t.Run("sub-item without parent has no location", func(t *testing.T) {
		issues := parseMarkdownIssues("1.1 Orphan report\n")
		require.Len(t, issues, 1)
		assert.Empty(t, issues[0].Location)
	})

	t.Run("empty file", func(t *testing.T) {
		assert.Empty(t, parseMarkdownIssues(""))
	})

	t.Run("no list items", func(t *testing.T) {
		md := `# Just a heading

Some paragraph text without any list items.
`
		assert.Empty(t, parseMarkdownIssues(md))
	})
}

func TestParseSubIssueNumber(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"1.1 Child", "Child", true},
		{"12.3. Child", "Child", true},
		{"1. Parent", "", false},
		{"1.1", "", false},
		{"- bullet", "", false},
	}
	for _, tt := range tests {
		got, ok := parseSubIssueNumber(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestCreateImportedIssues_Idempotent(t *testing.T) {
	testEnv(t)

	batch := parseMarkdownIssues(`## Roads
1. Main St: Pothole
2. Main St: Pothole
3. Elm Ave: Cracked sidewalk
4. No location here
`)
	s := store.NewMemoryStore()

	assert.Equal(t, 2, createImportedIssues(s, batch), "duplicates and invalid reports skipped")
	assert.Equal(t, 2, s.Len())

	assert.Equal(t, 0, createImportedIssues(s, batch), "second import files nothing")
	assert.Equal(t, 2, s.Len())
}

func TestIssueImportRun(t *testing.T) {
	dir := testEnv(t)
	file := filepath.Join(dir, "reports.md")
	require.NoError(t, os.WriteFile(file, []byte(`## Water
1. Pine St: Leaking hydrant
2. Cedar Ln: Low pressure
`), 0o644))

	require.NoError(t, issueImportRun(file))
	require.NoError(t, closeState())

	s, err := getState()
	require.NoError(t, err)
	related := s.issues.GetRelated("water")
	require.Len(t, related, 2)
	assert.Equal(t, priorityHigh, related[0].Priority)
}

func TestIssueImportRun_DryRun(t *testing.T) {
	dir := testEnv(t)
	file := filepath.Join(dir, "reports.md")
	require.NoError(t, os.WriteFile(file, []byte("- Pine St: Leaking hydrant\n"), 0o644))

	importDryRun = true
	t.Cleanup(func() { importDryRun = false })

	require.NoError(t, issueImportRun(file))
	s, err := getState()
	require.NoError(t, err)
	assert.Zero(t, s.issues.Len())
}

func TestIssueImportRun_EmptyFile(t *testing.T) {
	dir := testEnv(t)
	file := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(file, []byte("  \n"), 0o644))

	assert.Error(t, issueImportRun(file))
}
