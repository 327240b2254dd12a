package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/civic/internal/models"
)

var baseDate = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func newTestCollection() *Collection {
	return NewCollection(WithClock(func() time.Time { return baseDate }))
}

func mustAdd(t *testing.T, s Store, category string, priority int, date time.Time) *models.Issue {
	t.Helper()
	issue, err := s.AddIssue(models.NewIssue{
		Location:     "Main St",
		Category:     category,
		Description:  "reported by a resident",
		Priority:     priority,
		DateReported: date,
	})
	require.NoError(t, err)
	return issue
}

func ids(issues []*models.Issue) []int64 {
	out := make([]int64, len(issues))
	for i, issue := range issues {
		out[i] = issue.ID
	}
	return out
}

func TestAddIssue_AssignsIDsAndDefaults(t *testing.T) {
	c := newTestCollection()

	a := mustAdd(t, c, "  Roads ", 2, time.Time{})
	b := mustAdd(t, c, "Water", 0, baseDate.AddDate(0, 0, -1))

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, "Roads", a.Category)
	assert.Equal(t, models.IssueStatusPending, a.Status)
	assert.True(t, a.DateReported.Equal(baseDate), "missing date is stamped from the clock")
	assert.Equal(t, 2, c.Len())
	require.NoError(t, c.Verify())
}

func TestAddIssue_RejectsInvalidPayload(t *testing.T) {
	c := newTestCollection()

	tests := []struct {
		name string
		in   models.NewIssue
	}{
		{"missing location", models.NewIssue{Category: "Roads", Description: "x"}},
		{"blank category", models.NewIssue{Location: "Main St", Category: "   ", Description: "x"}},
		{"missing description", models.NewIssue{Location: "Main St", Category: "Roads"}},
		{"negative priority", models.NewIssue{Location: "Main St", Category: "Roads", Description: "x", Priority: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.AddIssue(tt.in)
			assert.ErrorIs(t, err, ErrInvalidIssue)
		})
	}

	_, err := c.AddIssue(models.NewIssue{Location: "Main St", Category: "Roads", Description: "x", Priority: -1})
	assert.ErrorIs(t, err, ErrInvalidPriority, "same sentinel as UpdatePriority")
	_, err = c.AddIssue(models.NewIssue{Location: "Main St", Category: " ", Description: "x"})
	assert.ErrorIs(t, err, ErrInvalidCategory, "same sentinel as UpdateCategory")

	assert.Equal(t, 0, c.Len())
	first := mustAdd(t, c, "Roads", 1, time.Time{})
	assert.Equal(t, int64(1), first.ID, "rejected payloads do not consume ids")
}

func TestRemoveHighestPriority_FIFOTies(t *testing.T) {
	c := newTestCollection()
	for _, p := range []int{2, 3, 1, 3} {
		mustAdd(t, c, "Roads", p, time.Time{})
	}

	var prios []int
	var got []int64
	for {
		issue, ok := c.RemoveHighestPriority()
		if !ok {
			break
		}
		prios = append(prios, issue.Priority)
		got = append(got, issue.ID)
		require.NoError(t, c.Verify())
	}
	assert.Equal(t, []int{3, 3, 2, 1}, prios)
	assert.Equal(t, []int64{2, 4, 1, 3}, got)
	assert.Equal(t, 0, c.Len())
}

func TestGetIssuesSortedByDate(t *testing.T) {
	c := newTestCollection()
	for _, days := range []int{3, 1, 5, 2} {
		mustAdd(t, c, "Roads", 1, baseDate.AddDate(0, 0, days))
	}

	var dates []time.Time
	for _, issue := range c.GetIssuesSortedByDate() {
		dates = append(dates, issue.DateReported)
	}
	assert.Equal(t, []time.Time{
		baseDate.AddDate(0, 0, 1), baseDate.AddDate(0, 0, 2), baseDate.AddDate(0, 0, 3), baseDate.AddDate(0, 0, 5),
	}, dates)
}

func TestGetRelated(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 1, time.Time{})
	b := mustAdd(t, c, "Roads", 1, time.Time{})
	mustAdd(t, c, "Utilities", 1, time.Time{})

	assert.Equal(t, []int64{a.ID, b.ID}, ids(c.GetRelated("Roads")))
	assert.Equal(t, []int64{a.ID, b.ID}, ids(c.GetRelated("roads")))
	assert.Empty(t, c.GetRelated("Water"))
	assert.Equal(t, []string{"Roads", "Utilities"}, c.Categories())
}

func TestRemoveNext_QueueOrder(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 1, baseDate.AddDate(0, 0, 5))
	b := mustAdd(t, c, "Roads", 9, baseDate)

	head, ok := c.PeekNext()
	require.True(t, ok)
	assert.Equal(t, a.ID, head.ID)

	got, ok := c.RemoveNext()
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)

	next, ok := c.GetNextPriorityIssue()
	require.True(t, ok)
	assert.Equal(t, b.ID, next.ID)

	c.RemoveNext()
	_, ok = c.RemoveNext()
	assert.False(t, ok)
	_, ok = c.PeekNext()
	assert.False(t, ok)
	require.NoError(t, c.Verify())
}

func TestEmptyStoreSignals(t *testing.T) {
	c := newTestCollection()

	_, ok := c.RemoveHighestPriority()
	assert.False(t, ok)
	_, ok = c.GetNextPriorityIssue()
	assert.False(t, ok)
	_, ok = c.GetIssue(1)
	assert.False(t, ok)
	assert.Empty(t, c.GetAllIssues())
	assert.Empty(t, c.GetIssuesSortedByDate())
	assert.Empty(t, c.GetIssuesByPriority())
	assert.Empty(t, c.Traverse(1, BreadthFirst))
}

func TestDeleteIssue_RemovesFromEveryIndex(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 5, baseDate)
	b := mustAdd(t, c, "Roads", 1, baseDate)
	_, err := c.LinkIssues(a.ID, b.ID)
	require.NoError(t, err)

	deleted, ok := c.DeleteIssue(a.ID)
	require.True(t, ok)
	assert.Equal(t, a.ID, deleted.ID)
	require.NoError(t, c.Verify())

	assert.Equal(t, []int64{b.ID}, ids(c.GetRelated("Roads")))
	assert.Equal(t, []int64{b.ID}, ids(c.GetIssuesSortedByDate()))
	assert.Empty(t, c.Snapshot().Links)

	next, _ := c.GetNextPriorityIssue()
	assert.Equal(t, b.ID, next.ID)

	_, ok = c.DeleteIssue(a.ID)
	assert.False(t, ok)
}

func TestUpdateStatus(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 1, time.Time{})

	ok, err := c.UpdateStatus(a.ID, models.IssueStatusResolved)
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := c.GetIssue(a.ID)
	assert.Equal(t, models.IssueStatusResolved, got.Status)
	assert.Len(t, c.GetByStatus(models.IssueStatusResolved), 1)
	assert.Empty(t, c.GetByStatus(models.IssueStatusPending))

	ok, err = c.UpdateStatus(99, models.IssueStatusResolved)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.UpdateStatus(a.ID, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdatePriority_Repositions(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 1, time.Time{})
	b := mustAdd(t, c, "Roads", 5, time.Time{})

	ok, err := c.UpdatePriority(a.ID, 9)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.Verify())

	assert.Equal(t, []int64{a.ID, b.ID}, ids(c.GetIssuesByPriority()))

	_, err = c.UpdatePriority(a.ID, -3)
	assert.ErrorIs(t, err, ErrInvalidPriority)
	got, _ := c.GetIssue(a.ID)
	assert.Equal(t, 9, got.Priority, "rejected update changes nothing")

	ok, err = c.UpdatePriority(42, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateCategory_MovesBucket(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 1, time.Time{})

	ok, err := c.UpdateCategory(a.ID, "Water")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, c.Verify())

	assert.Empty(t, c.GetRelated("Roads"))
	assert.Equal(t, []int64{a.ID}, ids(c.GetRelated("water")))
	assert.Equal(t, []string{"Water"}, c.Categories())

	_, err = c.UpdateCategory(a.ID, " ")
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestLinkIssuesAndTraverse(t *testing.T) {
	c := newTestCollection()
	for range 6 {
		mustAdd(t, c, "Roads", 1, time.Time{})
	}
	for _, l := range [][2]int64{{1, 2}, {1, 3}, {2, 4}, {3, 4}, {4, 5}} {
		ok, err := c.LinkIssues(l[0], l[1])
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := c.LinkIssues(2, 1)
	require.NoError(t, err)
	assert.True(t, ok, "relinking is idempotent")
	assert.Len(t, c.Snapshot().Links, 5)

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(c.Traverse(1, BreadthFirst)))
	assert.Equal(t, []int64{1, 2, 4, 3, 5}, ids(c.Traverse(1, DepthFirst)))
	assert.Equal(t, []int64{6}, ids(c.Traverse(6, DepthFirst)))

	assert.Equal(t, []int64{2, 3}, ids(c.GetLinked(1)), "direct links only")
	assert.Equal(t, []int64{2, 3, 5}, ids(c.GetLinked(4)))
	assert.Empty(t, c.GetLinked(6))
	assert.Empty(t, c.GetLinked(77))

	_, err = c.LinkIssues(3, 3)
	assert.ErrorIs(t, err, ErrInvalidLink)

	ok, err = c.LinkIssues(1, 77)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReturnedIssuesAreCopies(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 1, time.Time{})

	a.Priority = 100
	a.Category = "Hacked"
	got, _ := c.GetIssue(a.ID)
	assert.Equal(t, 1, got.Priority)
	assert.Equal(t, "Roads", got.Category)
	require.NoError(t, c.Verify())
}

func TestRebuildPriorityIndex(t *testing.T) {
	c := newTestCollection()
	for _, p := range []int{2, 3, 1, 3} {
		mustAdd(t, c, "Roads", p, time.Time{})
	}
	before := ids(c.GetIssuesByPriority())

	c.RebuildPriorityIndex()
	require.NoError(t, c.Verify())
	assert.Equal(t, before, ids(c.GetIssuesByPriority()))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	c := newTestCollection()
	for i, p := range []int{2, 3, 1, 3} {
		mustAdd(t, c, []string{"Roads", "Water"}[i%2], p, baseDate.AddDate(0, 0, 4-i))
	}
	_, _ = c.LinkIssues(1, 4)
	_, _ = c.UpdateStatus(2, models.IssueStatusInProgress)
	c.DeleteIssue(3)
	snap := c.Snapshot()

	restored := newTestCollection()
	require.NoError(t, restored.Restore(snap))
	require.NoError(t, restored.Verify())

	assert.Equal(t, c.GetAllIssues(), restored.GetAllIssues())
	assert.Equal(t, ids(c.GetIssuesByPriority()), ids(restored.GetIssuesByPriority()))
	assert.Equal(t, ids(c.GetIssuesSortedByDate()), ids(restored.GetIssuesSortedByDate()))
	assert.Equal(t, c.Categories(), restored.Categories())
	assert.Equal(t, snap, restored.Snapshot())

	next := mustAdd(t, restored, "Roads", 1, time.Time{})
	assert.Equal(t, int64(5), next.ID, "id counter survives a restore")
}

func TestRestore_RejectsBadSnapshot(t *testing.T) {
	issue := models.Issue{ID: 1, Category: "Roads", Status: models.IssueStatusPending, DateReported: baseDate}

	tests := []struct {
		name string
		snap Snapshot
		want error
	}{
		{"duplicate id", Snapshot{Issues: []models.Issue{issue, issue}}, ErrInvalidIssue},
		{"zero id", Snapshot{Issues: []models.Issue{{Category: "Roads", Status: models.IssueStatusPending}}}, ErrInvalidIssue},
		{"blank category", Snapshot{Issues: []models.Issue{{ID: 1, Status: models.IssueStatusPending}}}, ErrInvalidCategory},
		{"bad status", Snapshot{Issues: []models.Issue{{ID: 1, Category: "Roads", Status: "done"}}}, ErrInvalidStatus},
		{"negative priority", Snapshot{Issues: []models.Issue{{ID: 1, Category: "Roads", Priority: -1, Status: models.IssueStatusPending}}}, ErrInvalidPriority},
		{"dangling link", Snapshot{Issues: []models.Issue{issue}, Links: []Link{{A: 1, B: 2}}}, ErrInvalidLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCollection()
			kept := mustAdd(t, c, "Water", 1, time.Time{})

			err := c.Restore(tt.snap)
			assert.ErrorIs(t, err, tt.want)
			got, ok := c.GetIssue(kept.ID)
			require.True(t, ok, "failed restore leaves state untouched")
			assert.Equal(t, "Water", got.Category)
		})
	}
}

func TestRestore_NextIDFollowsHighestIssue(t *testing.T) {
	c := newTestCollection()
	require.NoError(t, c.Restore(Snapshot{
		NextID: 2,
		Issues: []models.Issue{{ID: 10, Category: "Roads", Status: models.IssueStatusPending, DateReported: baseDate}},
	}))
	next := mustAdd(t, c, "Roads", 1, time.Time{})
	assert.Equal(t, int64(11), next.ID)
}

func TestVerify_DetectsDrift(t *testing.T) {
	c := newTestCollection()
	a := mustAdd(t, c, "Roads", 1, time.Time{})

	issue, _ := c.issues.Get(a.ID)
	issue.Priority = 7 // bypass the update path
	assert.ErrorIs(t, c.Verify(), ErrInconsistent)

	c.RebuildPriorityIndex()
	require.NoError(t, c.Verify())

	c.byDate.Clear()
	assert.ErrorIs(t, c.Verify(), ErrInconsistent)
}
