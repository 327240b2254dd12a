// Package store keeps citizen issue reports in memory behind several
// indexes at once: an insertion-ordered queue, a date-ordered tree, a
// priority heap and a category graph.
package store

import (
	"errors"

	"github.com/joescharf/civic/internal/models"
)

var (
	// ErrInvalidIssue wraps validation failures for an inbound report.
	ErrInvalidIssue = errors.New("invalid issue")
	// ErrInvalidCategory is returned for a blank category.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrInvalidPriority is returned for a negative priority.
	ErrInvalidPriority = errors.New("invalid priority")
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidLink is returned when linking an issue to itself.
	ErrInvalidLink = errors.New("invalid link")
	// ErrInconsistent reports that an index disagrees with the canonical
	// collection. It indicates a bug, never a user error.
	ErrInconsistent = errors.New("index inconsistency")
)

// TraversalOrder selects how linked issues are walked.
type TraversalOrder int

const (
	BreadthFirst TraversalOrder = iota
	DepthFirst
)

// Link is an undirected relation between two issues.
type Link struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

// Snapshot is a point-in-time copy of the store, in queue order.
type Snapshot struct {
	NextID int64          `json:"next_id"`
	Issues []models.Issue `json:"issues"`
	Links  []Link         `json:"links"`
}

// Store is the issue store API shared by concurrent callers.
//
// Lookups by id report absence with a false result rather than an error.
// Errors are reserved for rejected input.
type Store interface {
	// Mutations
	AddIssue(in models.NewIssue) (*models.Issue, error)
	RemoveHighestPriority() (*models.Issue, bool)
	RemoveNext() (*models.Issue, bool)
	DeleteIssue(id int64) (*models.Issue, bool)
	UpdateStatus(id int64, status models.IssueStatus) (bool, error)
	UpdatePriority(id int64, priority int) (bool, error)
	UpdateCategory(id int64, category string) (bool, error)
	LinkIssues(a, b int64) (bool, error)
	RebuildPriorityIndex()

	// Queries
	GetIssue(id int64) (*models.Issue, bool)
	GetAllIssues() []*models.Issue
	GetIssuesSortedByDate() []*models.Issue
	GetIssuesByPriority() []*models.Issue
	GetByStatus(status models.IssueStatus) []*models.Issue
	GetRelated(category string) []*models.Issue
	GetNextPriorityIssue() (*models.Issue, bool)
	PeekNext() (*models.Issue, bool)
	Traverse(start int64, order TraversalOrder) []*models.Issue
	GetLinked(id int64) []*models.Issue
	Categories() []string
	Len() int

	// Lifecycle
	Snapshot() Snapshot
	Restore(snap Snapshot) error
	Verify() error
}
