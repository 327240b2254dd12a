package store

import (
	"sync"

	"github.com/joescharf/civic/internal/models"
)

// MemoryStore is a Collection guarded by a single reader/writer lock.
// Queries share the read lock; every mutation holds the write lock for the
// whole update, so readers never observe one index ahead of another.
type MemoryStore struct {
	mu sync.RWMutex
	c  *Collection
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store safe for concurrent use.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{c: NewCollection(opts...)}
}

func (s *MemoryStore) AddIssue(in models.NewIssue) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.AddIssue(in)
}

func (s *MemoryStore) RemoveHighestPriority() (*models.Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.RemoveHighestPriority()
}

func (s *MemoryStore) RemoveNext() (*models.Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.RemoveNext()
}

func (s *MemoryStore) DeleteIssue(id int64) (*models.Issue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.DeleteIssue(id)
}

func (s *MemoryStore) UpdateStatus(id int64, status models.IssueStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.UpdateStatus(id, status)
}

func (s *MemoryStore) UpdatePriority(id int64, priority int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.UpdatePriority(id, priority)
}

func (s *MemoryStore) UpdateCategory(id int64, category string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.UpdateCategory(id, category)
}

func (s *MemoryStore) LinkIssues(a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.LinkIssues(a, b)
}

func (s *MemoryStore) RebuildPriorityIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.RebuildPriorityIndex()
}

func (s *MemoryStore) GetIssue(id int64) (*models.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetIssue(id)
}

func (s *MemoryStore) GetAllIssues() []*models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetAllIssues()
}

// GetIssuesSortedByDate materializes the date order under the read lock;
// the returned slice is safe to use after other goroutines mutate the store.
func (s *MemoryStore) GetIssuesSortedByDate() []*models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetIssuesSortedByDate()
}

func (s *MemoryStore) GetIssuesByPriority() []*models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetIssuesByPriority()
}

func (s *MemoryStore) GetByStatus(status models.IssueStatus) []*models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetByStatus(status)
}

func (s *MemoryStore) GetRelated(category string) []*models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetRelated(category)
}

func (s *MemoryStore) GetNextPriorityIssue() (*models.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetNextPriorityIssue()
}

func (s *MemoryStore) PeekNext() (*models.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.PeekNext()
}

func (s *MemoryStore) Traverse(start int64, order TraversalOrder) []*models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Traverse(start, order)
}

func (s *MemoryStore) GetLinked(id int64) []*models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.GetLinked(id)
}

func (s *MemoryStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Categories()
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Len()
}

func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Snapshot()
}

func (s *MemoryStore) Restore(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Restore(snap)
}

func (s *MemoryStore) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.c.Verify()
}
