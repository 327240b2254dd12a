// Package requests tracks residents' service requests from intake to
// completion.
package requests

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/joescharf/civic/internal/index"
	"github.com/joescharf/civic/internal/models"
)

// FirstID is the id given to the first request.
const FirstID int64 = 1001

var (
	// ErrInvalidRequest wraps validation failures for an inbound request.
	ErrInvalidRequest = errors.New("invalid service request")
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid request status")
	// ErrInvalidProgress is returned for progress outside 0-100.
	ErrInvalidProgress = errors.New("invalid progress")
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger mutations are reported to.
func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.log = l.WithPrefix("requests") }
}

// WithClock overrides the clock used to stamp new requests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Snapshot is a point-in-time copy of the tracker, in id order.
type Snapshot struct {
	NextID   int64                   `json:"next_id"`
	Requests []models.ServiceRequest `json:"requests"`
}

// Tracker holds service requests indexed by id and, for those still
// pending, by age. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	requests map[int64]*models.ServiceRequest
	byID     *index.Tree[int64]
	waiting  *index.Heap[time.Time] // pending requests, oldest first
	nextID   int64

	now func() time.Time
	log *log.Logger
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		nextID: FirstID,
		now:    time.Now,
		log:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.reset()
	return t
}

func (t *Tracker) reset() {
	t.requests = make(map[int64]*models.ServiceRequest)
	t.byID = index.NewTree(cmp.Compare[int64])
	t.waiting = index.NewHeap(func(a, b time.Time) bool { return a.Before(b) })
}

func (t *Tracker) insert(r *models.ServiceRequest) {
	t.requests[r.ID] = r
	t.byID.Insert(r.ID, r.ID)
	if r.Status == models.RequestStatusPending {
		t.waiting.Push(r.CreatedAt, r.ID)
	}
}

// Create opens a pending request with zero progress.
func (t *Tracker) Create(in models.NewServiceRequest) (*models.ServiceRequest, error) {
	if err := models.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	created := in.CreatedAt
	if created.IsZero() {
		created = t.now()
	}
	r := &models.ServiceRequest{
		ID:          t.nextID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      models.RequestStatusPending,
		Priority:    in.Priority,
		CreatedAt:   created.Round(0),
	}
	t.nextID++
	t.insert(r)

	t.log.Debug("request created", "id", r.ID, "priority", r.Priority)
	return r.Clone(), nil
}

// Len returns the number of requests.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.requests)
}

// Find looks a request up by id.
func (t *Tracker) Find(id int64) (*models.ServiceRequest, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.byID.Find(id); !ok {
		return nil, false
	}
	return t.requests[id].Clone(), true
}

// List returns requests in id order. A non-blank term keeps only those whose
// title or description contains it, ignoring case.
func (t *Tracker) List(term string) []*models.ServiceRequest {
	t.mu.RLock()
	defer t.mu.RUnlock()

	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]*models.ServiceRequest, 0, len(t.requests))
	for id := range t.byID.IDs() {
		r := t.requests[id]
		if term == "" ||
			strings.Contains(strings.ToLower(r.Title), term) ||
			strings.Contains(strings.ToLower(r.Description), term) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ByPriority returns every request sorted by priority, highest first unless
// ascending is set. Equal priorities keep id order.
func (t *Tracker) ByPriority(ascending bool) []*models.ServiceRequest {
	out := t.List("")
	slices.SortStableFunc(out, func(a, b *models.ServiceRequest) int {
		if ascending {
			return cmp.Compare(a.Priority, b.Priority)
		}
		return cmp.Compare(b.Priority, a.Priority)
	})
	return out
}

// Waiting returns the pending requests, oldest first.
func (t *Tracker) Waiting() []*models.ServiceRequest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Map(t.waiting.Ordered(), func(id int64, _ int) *models.ServiceRequest {
		return t.requests[id].Clone()
	})
}

// Oldest returns the longest-waiting pending request.
func (t *Tracker) Oldest() (*models.ServiceRequest, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	id, ok := t.waiting.Peek()
	if !ok {
		return nil, false
	}
	return t.requests[id].Clone(), true
}

// Dequeue takes the longest-waiting pending request off the queue and
// marks it in progress.
func (t *Tracker) Dequeue() (*models.ServiceRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.waiting.Pop()
	if !ok {
		return nil, false
	}
	r := t.requests[id]
	r.Status = models.RequestStatusInProgress
	t.log.Debug("request dequeued", "id", id)
	return r.Clone(), true
}

// UpdateStatus sets status and progress. A request returned to pending
// rejoins the queue; any other status leaves it. It returns false if the
// request does not exist.
func (t *Tracker) UpdateStatus(id int64, status models.RequestStatus, progress int) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if progress < 0 || progress > 100 {
		return false, fmt.Errorf("%w: %d is outside 0-100", ErrInvalidProgress, progress)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.requests[id]
	if !ok {
		return false, nil
	}
	r.Status = status
	r.Progress = progress
	if status == models.RequestStatusPending {
		t.waiting.Push(r.CreatedAt, id)
	} else {
		t.waiting.Remove(id)
	}

	t.log.Debug("request updated", "id", id, "status", status, "progress", progress)
	return true, nil
}

// Snapshot copies every request in id order.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{NextID: t.nextID, Requests: make([]models.ServiceRequest, 0, len(t.requests))}
	for id := range t.byID.IDs() {
		snap.Requests = append(snap.Requests, *t.requests[id])
	}
	return snap
}

// Restore replaces the tracker contents with snap after checking it.
func (t *Tracker) Restore(snap Snapshot) error {
	nextID := max(snap.NextID, FirstID)
	seen := make(map[int64]bool, len(snap.Requests))
	for _, r := range snap.Requests {
		switch {
		case r.ID <= 0 || seen[r.ID]:
			return fmt.Errorf("%w: bad or duplicate id %d", ErrInvalidRequest, r.ID)
		case !r.Status.Valid():
			return fmt.Errorf("%w: request %d has status %q", ErrInvalidStatus, r.ID, r.Status)
		case r.Progress < 0 || r.Progress > 100:
			return fmt.Errorf("%w: request %d has progress %d", ErrInvalidProgress, r.ID, r.Progress)
		}
		seen[r.ID] = true
		nextID = max(nextID, r.ID+1)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.reset()
	for _, r := range snap.Requests {
		r.CreatedAt = r.CreatedAt.Round(0)
		t.insert(&r)
	}
	t.nextID = nextID

	t.log.Debug("requests restored", "requests", len(snap.Requests), "next_id", nextID)
	return nil
}
