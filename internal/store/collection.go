package store

import (
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/joescharf/civic/internal/index"
	"github.com/joescharf/civic/internal/models"
)

// Option configures a Collection or MemoryStore.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *log.Logger
}

// WithClock overrides the clock used to stamp reports filed without a date.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger mutations are reported to at debug level.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Collection is the canonical set of issues plus the three indexes derived
// from it. Every mutation validates its input before touching any structure,
// then updates all of them, so a rejected call changes nothing.
//
// Collection is not safe for concurrent use; MemoryStore wraps it with a lock.
type Collection struct {
	issues     *orderedmap.OrderedMap[int64, *models.Issue] // queue order
	byDate     *index.Tree[time.Time]
	byPriority *index.Heap[int]
	byCategory *index.Graph
	nextID     int64

	now func() time.Time
	log *log.Logger
}

var _ Store = (*Collection)(nil)

// NewCollection returns an empty collection. IDs start at 1.
func NewCollection(opts ...Option) *Collection {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}

	c := &Collection{
		nextID: 1,
		now:    o.now,
		log:    o.logger.WithPrefix("store"),
	}
	c.reset()
	return c
}

func (c *Collection) reset() {
	c.issues = orderedmap.New[int64, *models.Issue]()
	c.byDate = index.NewTree(func(a, b time.Time) int { return a.Compare(b) })
	c.byPriority = index.NewHeap(func(a, b int) bool { return a > b })
	c.byCategory = index.NewGraph()
}

// --- Mutations ---

// AddIssue validates in, assigns the next id, marks it pending, stamps the
// report date if missing and indexes it everywhere.
func (c *Collection) AddIssue(in models.NewIssue) (*models.Issue, error) {
	if in.Priority < 0 {
		return nil, fmt.Errorf("%w: %w: %d is negative", ErrInvalidIssue, ErrInvalidPriority, in.Priority)
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, fmt.Errorf("%w: %w: category is blank", ErrInvalidIssue, ErrInvalidCategory)
	}
	if err := models.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIssue, err)
	}

	date := in.DateReported
	if date.IsZero() {
		date = c.now()
	}

	issue := &models.Issue{
		ID:             c.nextID,
		Category:       strings.TrimSpace(in.Category),
		Priority:       in.Priority,
		Status:         models.IssueStatusPending,
		DateReported:   date.Round(0), // drop the monotonic reading so all keys compare on wall time
		Location:       in.Location,
		Description:    in.Description,
		AttachmentPath: in.AttachmentPath,
	}
	c.nextID++
	c.insert(issue)

	c.log.Debug("issue added", "id", issue.ID, "category", issue.Category, "priority", issue.Priority)
	return issue.Clone(), nil
}

func (c *Collection) insert(issue *models.Issue) {
	c.issues.Set(issue.ID, issue)
	c.byDate.Insert(issue.DateReported, issue.ID)
	c.byPriority.Push(issue.Priority, issue.ID)
	c.byCategory.Add(issue.ID, issue.Category)
}

func (c *Collection) remove(id int64) (*models.Issue, bool) {
	issue, ok := c.issues.Get(id)
	if !ok {
		return nil, false
	}
	c.issues.Delete(id)
	c.byDate.Remove(issue.DateReported, id)
	c.byPriority.Remove(id)
	c.byCategory.Remove(id)
	return issue, true
}

// RemoveHighestPriority extracts the most urgent issue. Equal priorities
// come out oldest id first.
func (c *Collection) RemoveHighestPriority() (*models.Issue, bool) {
	id, ok := c.byPriority.Peek()
	if !ok {
		return nil, false
	}
	issue, _ := c.remove(id)
	c.log.Debug("issue extracted by priority", "id", id, "priority", issue.Priority)
	return issue, true
}

// RemoveNext dequeues the earliest-filed issue still in the store.
func (c *Collection) RemoveNext() (*models.Issue, bool) {
	front := c.issues.Oldest()
	if front == nil {
		return nil, false
	}
	issue, _ := c.remove(front.Key)
	c.log.Debug("issue dequeued", "id", issue.ID)
	return issue, true
}

// DeleteIssue removes an issue by id from every structure.
func (c *Collection) DeleteIssue(id int64) (*models.Issue, bool) {
	issue, ok := c.remove(id)
	if ok {
		c.log.Debug("issue deleted", "id", id)
	}
	return issue, ok
}

// UpdateStatus sets the status of an issue. It returns false if the issue
// does not exist and an error if status is not a known value.
func (c *Collection) UpdateStatus(id int64, status models.IssueStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	issue, ok := c.issues.Get(id)
	if !ok {
		return false, nil
	}
	issue.Status = status
	c.log.Debug("issue status updated", "id", id, "status", status)
	return true, nil
}

// UpdatePriority changes an issue's priority and repositions it in the heap.
func (c *Collection) UpdatePriority(id int64, priority int) (bool, error) {
	if priority < 0 {
		return false, fmt.Errorf("%w: %d is negative", ErrInvalidPriority, priority)
	}
	issue, ok := c.issues.Get(id)
	if !ok {
		return false, nil
	}
	if issue.Priority == priority {
		return true, nil
	}
	c.byPriority.Remove(id)
	issue.Priority = priority
	c.byPriority.Push(priority, id)
	c.log.Debug("issue priority updated", "id", id, "priority", priority)
	return true, nil
}

// UpdateCategory moves an issue to another category bucket.
func (c *Collection) UpdateCategory(id int64, category string) (bool, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return false, fmt.Errorf("%w: category is blank", ErrInvalidCategory)
	}
	issue, ok := c.issues.Get(id)
	if !ok {
		return false, nil
	}
	c.byCategory.Move(id, category)
	issue.Category = category
	c.log.Debug("issue category updated", "id", id, "category", category)
	return true, nil
}

// LinkIssues records that two issues are related. Linking an already linked
// pair is a no-op. It returns false if either issue does not exist.
func (c *Collection) LinkIssues(a, b int64) (bool, error) {
	if a == b {
		return false, fmt.Errorf("%w: issue %d cannot link to itself", ErrInvalidLink, a)
	}
	if !c.byCategory.AddEdge(a, b) {
		return false, nil
	}
	c.log.Debug("issues linked", "a", a, "b", b)
	return true, nil
}

// RebuildPriorityIndex rebuilds the heap from the canonical collection.
func (c *Collection) RebuildPriorityIndex() {
	c.byPriority.Rebuild(c.priorityEntries())
	c.log.Debug("priority index rebuilt", "issues", c.issues.Len())
}

func (c *Collection) priorityEntries() []index.Entry[int] {
	entries := make([]index.Entry[int], 0, c.issues.Len())
	for pair := c.issues.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, index.Entry[int]{Key: pair.Value.Priority, ID: pair.Key})
	}
	return entries
}

// --- Queries ---

// GetIssue returns a copy of the issue with the given id.
func (c *Collection) GetIssue(id int64) (*models.Issue, bool) {
	issue, ok := c.issues.Get(id)
	if !ok {
		return nil, false
	}
	return issue.Clone(), true
}

// GetAllIssues returns every issue in the order it was filed.
func (c *Collection) GetAllIssues() []*models.Issue {
	out := make([]*models.Issue, 0, c.issues.Len())
	for pair := c.issues.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Clone())
	}
	return out
}

// IssuesByDate yields issues by report date, oldest first. Issues reported
// at the same instant come out in filing order.
func (c *Collection) IssuesByDate() iter.Seq[*models.Issue] {
	return c.project(c.byDate.IDs())
}

// GetIssuesSortedByDate returns issues by report date, oldest first.
func (c *Collection) GetIssuesSortedByDate() []*models.Issue {
	return collectIssues(c.IssuesByDate(), c.issues.Len())
}

// GetIssuesByPriority returns issues in extraction order without removing them.
func (c *Collection) GetIssuesByPriority() []*models.Issue {
	return collectIssues(c.project(sliceSeq(c.byPriority.Ordered())), c.issues.Len())
}

// GetByStatus returns the issues with the given status in filing order.
func (c *Collection) GetByStatus(status models.IssueStatus) []*models.Issue {
	return lo.Filter(c.GetAllIssues(), func(issue *models.Issue, _ int) bool {
		return issue.Status == status
	})
}

// GetRelated returns the issues filed under category, matched
// case-insensitively. An unknown category returns an empty result.
func (c *Collection) GetRelated(category string) []*models.Issue {
	return collectIssues(c.project(c.byCategory.Related(category)), c.byCategory.BucketLen(category))
}

// GetNextPriorityIssue returns the most urgent issue without removing it.
func (c *Collection) GetNextPriorityIssue() (*models.Issue, bool) {
	id, ok := c.byPriority.Peek()
	if !ok {
		return nil, false
	}
	return c.GetIssue(id)
}

// PeekNext returns the earliest-filed issue without removing it.
func (c *Collection) PeekNext() (*models.Issue, bool) {
	front := c.issues.Oldest()
	if front == nil {
		return nil, false
	}
	return front.Value.Clone(), true
}

// Traverse walks links outward from start. The start issue comes first; an
// unknown start returns an empty result.
func (c *Collection) Traverse(start int64, order TraversalOrder) []*models.Issue {
	var ids []int64
	switch order {
	case DepthFirst:
		ids = c.byCategory.DFS(start)
	default:
		ids = c.byCategory.BFS(start)
	}
	return collectIssues(c.project(sliceSeq(ids)), len(ids))
}

// GetLinked returns the issues directly linked to id, in the order the
// links were made. Issues reachable only through other issues are left out.
func (c *Collection) GetLinked(id int64) []*models.Issue {
	ids := c.byCategory.Neighbors(id)
	return collectIssues(c.project(sliceSeq(ids)), len(ids))
}

// Categories returns the category names currently in use.
func (c *Collection) Categories() []string {
	return c.byCategory.Categories()
}

// Len returns the number of issues.
func (c *Collection) Len() int {
	return c.issues.Len()
}

func (c *Collection) project(ids iter.Seq[int64]) iter.Seq[*models.Issue] {
	return func(yield func(*models.Issue) bool) {
		for id := range ids {
			issue, ok := c.issues.Get(id)
			if !ok {
				continue
			}
			if !yield(issue.Clone()) {
				return
			}
		}
	}
}

func collectIssues(seq iter.Seq[*models.Issue], capacity int) []*models.Issue {
	out := make([]*models.Issue, 0, capacity)
	for issue := range seq {
		out = append(out, issue)
	}
	return out
}

func sliceSeq(ids []int64) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// --- Lifecycle ---

// Snapshot copies the current state in queue order.
func (c *Collection) Snapshot() Snapshot {
	snap := Snapshot{
		NextID: c.nextID,
		Issues: make([]models.Issue, 0, c.issues.Len()),
	}
	for pair := c.issues.Oldest(); pair != nil; pair = pair.Next() {
		snap.Issues = append(snap.Issues, *pair.Value)
	}
	snap.Links = lo.Map(c.byCategory.Edges(), func(e index.Edge, _ int) Link {
		return Link{A: e.A, B: e.B}
	})
	return snap
}

// Restore replaces the contents with snap. The snapshot is checked in full
// first; on error the collection is left as it was.
func (c *Collection) Restore(snap Snapshot) error {
	nextID, err := checkSnapshot(snap)
	if err != nil {
		return err
	}

	c.reset()
	for i := range snap.Issues {
		issue := snap.Issues[i]
		issue.Category = strings.TrimSpace(issue.Category)
		issue.DateReported = issue.DateReported.Round(0)
		c.issues.Set(issue.ID, &issue)
		c.byDate.Insert(issue.DateReported, issue.ID)
		c.byCategory.Add(issue.ID, issue.Category)
	}
	c.byPriority.Rebuild(c.priorityEntries())
	for _, l := range snap.Links {
		c.byCategory.AddEdge(l.A, l.B)
	}
	c.nextID = nextID

	c.log.Debug("store restored", "issues", len(snap.Issues), "links", len(snap.Links), "next_id", nextID)
	return nil
}

// checkSnapshot validates snap and returns the id counter to resume from.
func checkSnapshot(snap Snapshot) (int64, error) {
	nextID := max(snap.NextID, 1)
	seen := make(map[int64]bool, len(snap.Issues))
	for _, issue := range snap.Issues {
		switch {
		case issue.ID <= 0:
			return 0, fmt.Errorf("%w: issue id %d is not positive", ErrInvalidIssue, issue.ID)
		case seen[issue.ID]:
			return 0, fmt.Errorf("%w: duplicate issue id %d", ErrInvalidIssue, issue.ID)
		case strings.TrimSpace(issue.Category) == "":
			return 0, fmt.Errorf("%w: issue %d has a blank category", ErrInvalidCategory, issue.ID)
		case issue.Priority < 0:
			return 0, fmt.Errorf("%w: issue %d has priority %d", ErrInvalidPriority, issue.ID, issue.Priority)
		case !issue.Status.Valid():
			return 0, fmt.Errorf("%w: issue %d has status %q", ErrInvalidStatus, issue.ID, issue.Status)
		}
		seen[issue.ID] = true
		nextID = max(nextID, issue.ID+1)
	}
	for _, l := range snap.Links {
		if l.A == l.B || !seen[l.A] || !seen[l.B] {
			return 0, fmt.Errorf("%w: link %d-%d", ErrInvalidLink, l.A, l.B)
		}
	}
	return nextID, nil
}

// Verify cross-checks every index against the canonical collection and
// returns an error wrapping ErrInconsistent on the first disagreement.
func (c *Collection) Verify() error {
	n := c.issues.Len()
	if c.byDate.Len() != n || c.byPriority.Len() != n || c.byCategory.Len() != n {
		return fmt.Errorf("%w: %d issues, date index %d, priority index %d, category index %d",
			ErrInconsistent, n, c.byDate.Len(), c.byPriority.Len(), c.byCategory.Len())
	}

	for pair := c.issues.Oldest(); pair != nil; pair = pair.Next() {
		id, issue := pair.Key, pair.Value
		if id != issue.ID {
			return fmt.Errorf("%w: issue %d stored under key %d", ErrInconsistent, issue.ID, id)
		}
		if id >= c.nextID {
			return fmt.Errorf("%w: issue %d is not below the id counter %d", ErrInconsistent, id, c.nextID)
		}
		if !c.byDate.Contains(issue.DateReported, id) {
			return fmt.Errorf("%w: issue %d missing from date index", ErrInconsistent, id)
		}
		if p, ok := c.byPriority.Key(id); !ok || p != issue.Priority {
			return fmt.Errorf("%w: issue %d has priority %d, heap holds %d", ErrInconsistent, id, issue.Priority, p)
		}
		if cat, ok := c.byCategory.CategoryOf(id); !ok || cat != models.NormalizeCategory(issue.Category) {
			return fmt.Errorf("%w: issue %d in category %q, bucket %q", ErrInconsistent, id, issue.Category, cat)
		}
	}

	if err := c.byDate.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	if err := c.byPriority.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInconsistent, err)
	}
	return nil
}
