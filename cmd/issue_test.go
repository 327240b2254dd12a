package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/store"
)

// stdout returns what the commands printed so far.
func stdout() string {
	return ui.Out.(*bytes.Buffer).String()
}

// errOut returns the warnings printed so far.
func errOut() string {
	return ui.ErrOut.(*bytes.Buffer).String()
}

// pinClock fixes the command clock for date-relative output.
func pinClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}

// fileIssue runs `issue add` with the given flags.
func fileIssue(t *testing.T, location, desc, category string, priority int) {
	t.Helper()
	issueLocation, issueDesc, issueCategory, issuePriority = location, desc, category, priority
	issueDate, issueAttachment = "", ""
	t.Cleanup(func() {
		issueLocation, issueDesc, issueCategory, issuePriority = "", "", "", 0
	})
	require.NoError(t, issueAddRun(priority > 0))
}

// reload drops the in-memory state so the next command reads the database.
func reload(t *testing.T) *appState {
	t.Helper()
	require.NoError(t, closeState())
	s, err := getState()
	require.NoError(t, err)
	return s
}

func TestIssueAdd_PersistsAcrossRuns(t *testing.T) {
	testEnv(t)

	fileIssue(t, "Main St", "Pothole near the bus stop", "Roads", 2)
	fileIssue(t, "Oak Ave", "Burst pipe flooding the road", "", 0)

	s := reload(t)
	require.Equal(t, 2, s.issues.Len())

	second, ok := s.issues.GetIssue(2)
	require.True(t, ok)
	assert.Equal(t, "Water", second.Category, "category inferred")
	assert.Equal(t, priorityUrgent, second.Priority, "priority inferred")
	assert.Equal(t, models.IssueStatusPending, second.Status)
	assert.Contains(t, stdout(), "#2")
}

func TestIssueAdd_ExplicitDate(t *testing.T) {
	testEnv(t)
	issueLocation, issueDesc, issueCategory, issueDate = "Main St", "Pothole", "Roads", "2025-03-14"
	t.Cleanup(func() { issueLocation, issueDesc, issueCategory, issueDate = "", "", "", "" })

	require.NoError(t, issueAddRun(false))
	issue, ok := reload(t).issues.GetIssue(1)
	require.True(t, ok)
	assert.Equal(t, "2025-03-14", issue.DateReported.Format(dateLayout))

	issueDate = "14/03/2025"
	assert.Error(t, issueAddRun(false))
}

func TestIssueAdd_DryRun(t *testing.T) {
	testEnv(t)
	dryRun = true
	t.Cleanup(func() { dryRun = false })

	fileIssue(t, "Main St", "Pothole", "Roads", 2)
	assert.Zero(t, reload(t).issues.Len())
}

func TestIssueAdd_Invalid(t *testing.T) {
	testEnv(t)
	issueLocation, issueDesc, issueCategory = "", "Pothole", "Roads"
	t.Cleanup(func() { issueDesc, issueCategory = "", "" })

	err := issueAddRun(false)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidIssue)
}

func TestIssueList_Sorts(t *testing.T) {
	testEnv(t)
	fileIssue(t, "A St", "Pothole", "Roads", 1)
	fileIssue(t, "B St", "Broken bench", "Parks", 5)

	for _, sort := range []string{"queue", "date", "priority"} {
		issueSort = sort
		require.NoError(t, issueListRun(), sort)
	}
	issueSort = "bogus"
	assert.Error(t, issueListRun())

	issueSort, issueStatus = "queue", "done"
	assert.Error(t, issueListRun(), "unknown status")
	t.Cleanup(func() { issueSort, issueStatus = "queue", "" })
}

func TestIssueMutations(t *testing.T) {
	testEnv(t)
	fileIssue(t, "Main St", "Pothole", "Roads", 2)
	fileIssue(t, "Elm St", "Streetlight out", "Utilities", 3)

	require.NoError(t, issueStatusRun("#1", "In Progress"))
	require.NoError(t, issuePriorityRun("1", "7"))
	require.NoError(t, issueCategoryRun("2", "Roads"))

	s := reload(t)
	first, _ := s.issues.GetIssue(1)
	assert.Equal(t, models.IssueStatusInProgress, first.Status)
	assert.Equal(t, 7, first.Priority)
	assert.Len(t, s.issues.GetRelated("roads"), 2)

	assert.Error(t, issueStatusRun("1", "closed"))
	assert.Error(t, issuePriorityRun("1", "high"))
	assert.ErrorIs(t, issuePriorityRun("1", "-1"), store.ErrInvalidPriority)
	assert.ErrorContains(t, issueStatusRun("99", "resolved"), "not found")
	assert.ErrorContains(t, issueCategoryRun("x", "Roads"), "invalid id")
}

func TestIssuePopAndDequeue(t *testing.T) {
	testEnv(t)
	fileIssue(t, "A St", "first filed", "Roads", 1)
	fileIssue(t, "B St", "most urgent", "Roads", 5)
	fileIssue(t, "C St", "last filed", "Roads", 3)

	require.NoError(t, issuePopRun())
	require.NoError(t, issueDequeueRun())

	s := reload(t)
	require.Equal(t, 1, s.issues.Len())
	_, ok := s.issues.GetIssue(3)
	assert.True(t, ok, "only the last filed, mid-priority issue remains")

	require.NoError(t, issueDeleteRun("3"))
	require.NoError(t, issuePopRun())
	assert.Contains(t, stdout(), "No issues waiting.")
	assert.Error(t, issueDeleteRun("3"))
}

func TestIssuePop_DryRunKeepsIssue(t *testing.T) {
	testEnv(t)
	fileIssue(t, "A St", "Pothole", "Roads", 1)

	dryRun = true
	t.Cleanup(func() { dryRun = false })
	require.NoError(t, issuePopRun())
	require.NoError(t, issueDeleteRun("1"))

	assert.Equal(t, 1, reload(t).issues.Len())
}

func TestIssueLinkAndWalk(t *testing.T) {
	testEnv(t)
	for range 3 {
		fileIssue(t, "Main St", "Flooding", "Water", 2)
	}

	require.NoError(t, issueLinkRun("1", "2"))
	require.NoError(t, issueLinkRun("#2", "#3"))
	assert.ErrorIs(t, issueLinkRun("1", "1"), store.ErrInvalidLink)
	assert.ErrorContains(t, issueLinkRun("1", "9"), "not found")

	s := reload(t)
	walked := s.issues.Traverse(1, store.DepthFirst)
	require.Len(t, walked, 3)

	issueDFS = true
	t.Cleanup(func() { issueDFS = false })
	require.NoError(t, issueWalkRun("1"))
	assert.Error(t, issueWalkRun("42"))

	require.NoError(t, issueShowRun("2"))
	assert.Contains(t, stdout(), "Linked:     #1, #3")

	ui.Out.(*bytes.Buffer).Reset()
	require.NoError(t, issueShowRun("1"))
	assert.Contains(t, stdout(), "Linked:     #2\n", "#3 is only reachable through #2")
}

func TestIssueRelated(t *testing.T) {
	testEnv(t)
	fileIssue(t, "Main St", "Pothole", "Roads", 2)

	require.NoError(t, issueRelatedRun("ROADS"))
	require.NoError(t, issueRelatedRun("Parks"))
	assert.Contains(t, stdout(), "Known categories: Roads")
}

func TestIssueVerify(t *testing.T) {
	testEnv(t)
	fileIssue(t, "Main St", "Pothole", "Roads", 2)

	require.NoError(t, issueVerifyRun())
	assert.Contains(t, stdout(), "All indexes agree on 1 issues")
}

func TestParseID(t *testing.T) {
	id, err := parseID(" #12 ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	for _, bad := range []string{"", "0", "-3", "abc", "#"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
