// Package events keeps the calendar of municipal community events and the
// recent searches used to recommend them.
package events

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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/samber/lo"

	"github.com/joescharf/civic/internal/index"
	"github.com/joescharf/civic/internal/models"
)

// ErrInvalidEvent wraps validation failures for an inbound event.
var ErrInvalidEvent = errors.New("invalid event")

const (
	DefaultUpcomingDays   = 7
	DefaultRecommendLimit = 3
	DefaultRecentSearches = 5
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger mutations are reported to.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.log = l.WithPrefix("events") }
}

// WithUpcomingDays sets how many days past today count as upcoming.
func WithUpcomingDays(days int) Option {
	return func(m *Manager) {
		if days >= 0 {
			m.upcomingDays = days
		}
	}
}

// WithRecommendLimit caps the number of recommended events.
func WithRecommendLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.recommendLimit = n
		}
	}
}

// WithRecentSearches bounds how many searched categories are remembered.
func WithRecentSearches(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.recentLimit = n
		}
	}
}

// Query filters a search. Zero fields match everything.
type Query struct {
	Category string
	Date     time.Time
}

// Snapshot is a point-in-time copy of the calendar.
type Snapshot struct {
	NextID         int64               `json:"next_id"`
	Events         []models.LocalEvent `json:"events"`
	RecentSearches []string            `json:"recent_searches"` // oldest first
}

// Manager is the event calendar. It is safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	events     map[int64]*models.LocalEvent
	byDate     *index.Tree[time.Time]
	categories map[string]string // normalized -> display name, as first seen
	recent     []string // oldest first, newest last
	nextID     int64

	upcomingDays   int
	recommendLimit int
	recentLimit    int
	log            *log.Logger
}

// NewManager returns an empty calendar.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		nextID:         1,
		upcomingDays:   DefaultUpcomingDays,
		recommendLimit: DefaultRecommendLimit,
		recentLimit:    DefaultRecentSearches,
		log:            log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reset()
	return m
}

func (m *Manager) reset() {
	m.events = make(map[int64]*models.LocalEvent)
	m.byDate = index.NewTree(func(a, b time.Time) int { return a.Compare(b) })
	m.categories = make(map[string]string)
	m.recent = nil
}

// AddEvent validates in and schedules it under the next id.
func (m *Manager) AddEvent(in models.NewEvent) (*models.LocalEvent, error) {
	if err := models.Validate(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := &models.LocalEvent{
		ID:          m.nextID,
		Title:       strings.TrimSpace(in.Title),
		Category:    strings.TrimSpace(in.Category),
		Description: in.Description,
		Date:        in.Date.Round(0),
	}
	m.nextID++
	m.insert(e)

	m.log.Debug("event added", "id", e.ID, "category", e.Category, "date", e.Date.Format(time.DateOnly))
	return e.Clone(), nil
}

func (m *Manager) insert(e *models.LocalEvent) {
	m.events[e.ID] = e
	m.byDate.Insert(e.Date, e.ID)
	key := models.NormalizeCategory(e.Category)
	if _, ok := m.categories[key]; !ok {
		m.categories[key] = e.Category
	}
}

// Len returns the number of scheduled events.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// GetAllEvents returns every event by date, earliest first.
func (m *Manager) GetAllEvents() []*models.LocalEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter(func(*models.LocalEvent) bool { return true })
}

// GetEventsByCategory returns the events in category, matched
// case-insensitively, by date.
func (m *Manager) GetEventsByCategory(category string) []*models.LocalEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter(inCategory(category))
}

// GetCategories returns the distinct event categories, compared without
// case and shown under the first name seen, sorted case-insensitively.
func (m *Manager) GetCategories() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cats := lo.Values(m.categories)
	slices.SortFunc(cats, func(a, b string) int {
		return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return cats
}

// GetUpcomingEvents returns events from the start of today through the end
// of the last day in the upcoming window.
func (m *Manager) GetUpcomingEvents(now time.Time) []*models.LocalEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	from := startOfDay(now)
	until := from.AddDate(0, 0, m.upcomingDays+1)
	return m.filter(func(e *models.LocalEvent) bool {
		return !e.Date.Before(from) && e.Date.Before(until)
	})
}

// Search returns the events matching q by date. A non-blank category is
// remembered as a recent search; once the history is full the oldest entry
// is dropped.
func (m *Manager) Search(q Query) []*models.LocalEvent {
	category := strings.TrimSpace(q.Category)

	m.mu.Lock()
	defer m.mu.Unlock()

	if category != "" {
		m.recent = append(m.recent, category)
		if len(m.recent) > m.recentLimit {
			m.recent = slices.Delete(m.recent, 0, len(m.recent)-m.recentLimit)
		}
		m.log.Debug("search recorded", "category", category)
	}

	return m.filter(func(e *models.LocalEvent) bool {
		if category != "" && !inCategory(category)(e) {
			return false
		}
		return q.Date.IsZero() || sameDay(e.Date, q.Date)
	})
}

// RecentSearches returns the remembered categories, most recent first.
func (m *Manager) RecentSearches() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.recent)
	slices.Reverse(out)
	return out
}

// GetRecommendedEvents suggests events from the most recently searched
// category that have not yet passed. Without a search history it returns
// nothing.
func (m *Manager) GetRecommendedEvents(now time.Time) []*models.LocalEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.recent) == 0 {
		return nil
	}
	last := m.recent[len(m.recent)-1]
	from := startOfDay(now)
	matches := m.filter(func(e *models.LocalEvent) bool {
		return inCategory(last)(e) && !e.Date.Before(from)
	})
	if len(matches) > m.recommendLimit {
		matches = matches[:m.recommendLimit]
	}
	return matches
}

// filter walks the date index and collects copies of matching events.
// Callers must hold the lock.
func (m *Manager) filter(keep func(*models.LocalEvent) bool) []*models.LocalEvent {
	out := make([]*models.LocalEvent, 0)
	for id := range m.byDate.IDs() {
		e := m.events[id]
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Snapshot copies the calendar in date order.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		NextID:         m.nextID,
		Events:         make([]models.LocalEvent, 0, len(m.events)),
		RecentSearches: slices.Clone(m.recent),
	}
	for id := range m.byDate.IDs() {
		snap.Events = append(snap.Events, *m.events[id])
	}
	return snap
}

// Restore replaces the calendar with snap after checking it.
func (m *Manager) Restore(snap Snapshot) error {
	nextID := max(snap.NextID, 1)
	seen := mapset.NewThreadUnsafeSet[int64]()
	for _, e := range snap.Events {
		switch {
		case e.ID <= 0 || seen.Contains(e.ID):
			return fmt.Errorf("%w: bad or duplicate id %d", ErrInvalidEvent, e.ID)
		case strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.Category) == "":
			return fmt.Errorf("%w: event %d is missing a title or category", ErrInvalidEvent, e.ID)
		}
		seen.Add(e.ID)
		nextID = max(nextID, e.ID+1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.reset()
	for _, e := range snap.Events {
		e.Date = e.Date.Round(0)
		m.insert(&e)
	}
	recent := lo.Filter(snap.RecentSearches, func(c string, _ int) bool { return strings.TrimSpace(c) != "" })
	if len(recent) > m.recentLimit {
		recent = recent[len(recent)-m.recentLimit:]
	}
	m.recent = recent
	m.nextID = nextID

	m.log.Debug("events restored", "events", len(snap.Events), "next_id", nextID)
	return nil
}

func inCategory(category string) func(*models.LocalEvent) bool {
	want := models.NormalizeCategory(category)
	return func(e *models.LocalEvent) bool {
		return models.NormalizeCategory(e.Category) == want
	}
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
