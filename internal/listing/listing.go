package listing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace/internal/domain"

	"go.uber.org/zap"
)

// StatusAll disables the status filter.
const StatusAll = "all"

// ErrNotConfirmed is returned by Delete when the confirm callback declines; no request is sent.
var ErrNotConfirmed = errors.New("delete was not confirmed")

// SortDirection orders the visible list when a sort key is set.
type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// ParseDirection accepts asc/desc in any case and defaults to ascending.
func ParseDirection(s string) SortDirection {
	if strings.EqualFold(s, string(Descending)) {
		return Descending
	}
	return Ascending
}

// Source is the backend collaborator a list view reads from and deletes through.
type Source[R domain.Record] interface {
	All(ctx context.Context) ([]R, error)
	Delete(ctx context.Context, id string) error
}

// Confirm asks the user before a destructive request fires.
type Confirm[R domain.Record] func(record R) bool

// ViewState is what a list view should render.
type ViewState int

const (
	StateLoading ViewState = iota
	StateEmpty
	StateReady
	StateError
)

func (s ViewState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	default:
		return "error"
	}
}

// Page is one slice of the visible list.
type Page[R domain.Record] struct {
	Items      []R
	Number     int
	Size       int
	TotalItems int
	TotalPages int
}

// Controller holds a record collection and the transient criteria that derive the visible list.
// After a successful delete the collection is always refetched.
type Controller[R domain.Record] struct {
	source Source[R]
	logger *zap.Logger

	mu       sync.Mutex
	all      []R
	search   string
	status   string
	filters  map[string]string
	sortKey  string
	sortDir  SortDirection
	pageSize int
	expanded map[string]struct{}

	loading bool
	loaded  bool
	lastErr error

	// visible is cached until revision changes.
	revision     uint64
	visible      []R
	visibleAtRev uint64
	cached       bool
}

// New creates a controller with default criteria: empty search, status "all", backend order.
func New[R domain.Record](source Source[R], logger *zap.Logger) *Controller[R] {
	return &Controller[R]{
		source:   source,
		logger:   logger,
		status:   StatusAll,
		filters:  map[string]string{},
		sortDir:  Ascending,
		expanded: map[string]struct{}{},
	}
}

// NewStatic creates a controller over fixed data with no backend.
func NewStatic[R domain.Record](records []R, logger *zap.Logger) *Controller[R] {
	c := New[R](nil, logger)
	c.all = append([]R(nil), records...)
	c.loaded = true
	return c
}

// Load fetches the collection. On failure the previous collection is kept.
func (c *Controller[R]) Load(ctx context.Context) error {
	if c.source == nil {
		return nil
	}

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	records, err := c.source.All(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	if err != nil {
		c.lastErr = err
		c.logger.Warn("Failed to load records", zap.Error(err))
		return err
	}
	c.all = records
	c.loaded = true
	c.lastErr = nil
	c.touch()
	c.logger.Debug("Records loaded", zap.Int("count", len(records)))
	return nil
}

// SetSearch sets the case-insensitive substring matched against each record's search fields.
func (c *Controller[R]) SetSearch(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = term
	c.touch()
}

// SetStatus filters by exact status. "" and StatusAll disable the filter.
func (c *Controller[R]) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if status == "" {
		status = StatusAll
	}
	c.status = status
	c.touch()
}

// SetFilter sets an extra criterion such as category or priority. "" and "all" clear it.
func (c *Controller[R]) SetFilter(field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if value == "" || value == StatusAll {
		delete(c.filters, field)
	} else {
		c.filters[field] = value
	}
	c.touch()
}

// SetSort orders the visible list. An empty key restores backend order.
func (c *Controller[R]) SetSort(key string, dir SortDirection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sortKey = key
	c.sortDir = dir
	c.touch()
}

// SetPageSize enables pagination. Zero shows everything on one page.
func (c *Controller[R]) SetPageSize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if size < 0 {
		size = 0
	}
	c.pageSize = size
}

// ClearFilters resets search, status and extra filters. Sort order is kept.
func (c *Controller[R]) ClearFilters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search = ""
	c.status = StatusAll
	c.filters = map[string]string{}
	c.touch()
}

// All returns a copy of the full collection.
func (c *Controller[R]) All() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]R(nil), c.all...)
}

// Err returns the error of the last failed load, if any.
func (c *Controller[R]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Visible returns the filtered and sorted records. The result is a new slice.
func (c *Controller[R]) Visible() []R {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]R(nil), c.computeVisible()...)
}

// State tells a view whether to show a spinner, a "no results" message, an error or rows.
func (c *Controller[R]) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.loading:
		return StateLoading
	case !c.loaded && c.lastErr != nil:
		return StateError
	case !c.loaded:
		return StateLoading
	case len(c.computeVisible()) == 0:
		return StateEmpty
	default:
		return StateReady
	}
}

// Page returns the n-th page (1-indexed, clamped) of the visible list.
func (c *Controller[R]) Page(n int) Page[R] {
	c.mu.Lock()
	defer c.mu.Unlock()

	visible := c.computeVisible()
	total := len(visible)
	size := c.pageSize
	if size == 0 {
		return Page[R]{
			Items:      append([]R(nil), visible...),
			Number:     1,
			Size:       total,
			TotalItems: total,
			TotalPages: 1,
		}
	}

	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}
	start := (n - 1) * size
	end := start + size
	if end > total {
		end = total
	}
	return Page[R]{
		Items:      append([]R(nil), visible[start:end]...),
		Number:     n,
		Size:       size,
		TotalItems: total,
		TotalPages: pages,
	}
}

// Counts tallies the whole collection by status, ignoring the active filters.
func (c *Controller[R]) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range c.all {
		counts[r.RecordStatus()]++
	}
	return counts
}

// Delete asks confirm, then deletes id through the source and refetches.
// A failed delete leaves the collection untouched.
func (c *Controller[R]) Delete(ctx context.Context, id string, confirm Confirm[R]) error {
	c.mu.Lock()
	record, found := c.find(id)
	c.mu.Unlock()

	if !found {
		return fmt.Errorf("record %s is not in the list", id)
	}
	if confirm == nil || !confirm(record) {
		return ErrNotConfirmed
	}
	if c.source == nil {
		c.removeLocal(id)
		return nil
	}

	if err := c.source.Delete(ctx, id); err != nil {
		c.logger.Warn("Failed to delete record", zap.String("id", id), zap.Error(err))
		return err
	}
	c.logger.Info("Record deleted", zap.String("id", id))

	if err := c.Load(ctx); err != nil {
		// The server confirmed the delete, so dropping the row locally is safe.
		c.logger.Warn("Refetch after delete failed", zap.String("id", id), zap.Error(err))
		c.removeLocal(id)
	}
	return nil
}

// ToggleExpanded flips the expanded state of a parent row. Rows without children never expand.
func (c *Controller[R]) ToggleExpanded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, found := c.find(id)
	if !found {
		return false
	}
	parent, ok := any(record).(domain.Parent)
	if !ok || parent.ChildCount() == 0 {
		return false
	}

	if _, open := c.expanded[id]; open {
		delete(c.expanded, id)
		return false
	}
	c.expanded[id] = struct{}{}
	return true
}

// IsExpanded reports whether the row with id is showing its children.
func (c *Controller[R]) IsExpanded(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, open := c.expanded[id]
	return open
}

// Expandable reports whether a row shows an expand control.
func Expandable(r domain.Record) bool {
	parent, ok := r.(domain.Parent)
	return ok && parent.ChildCount() > 0
}

func (c *Controller[R]) removeLocal(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]R, 0, len(c.all))
	for _, r := range c.all {
		if r.RecordID() != id {
			kept = append(kept, r)
		}
	}
	c.all = kept
	delete(c.expanded, id)
	c.touch()
}

func (c *Controller[R]) find(id string) (R, bool) {
	for _, r := range c.all {
		if r.RecordID() == id {
			return r, true
		}
	}
	var zero R
	return zero, false
}

func (c *Controller[R]) touch() {
	c.revision++
}

// computeVisible must be called with mu held.
func (c *Controller[R]) computeVisible() []R {
	if c.cached && c.visibleAtRev == c.revision {
		return c.visible
	}

	crit := criteria{
		search:  strings.ToLower(c.search),
		status:  c.status,
		filters: c.filters,
	}
	visible := make([]R, 0, len(c.all))
	for _, r := range c.all {
		if crit.matches(r) {
			visible = append(visible, r)
		}
	}

	if c.sortKey != "" {
		key, desc := c.sortKey, c.sortDir == Descending
		sort.SliceStable(visible, func(i, j int) bool {
			a, _ := visible[i].SortValue(key)
			b, _ := visible[j].SortValue(key)
			if desc {
				return compare(b, a) < 0
			}
			return compare(a, b) < 0
		})
	}

	c.visible = visible
	c.visibleAtRev = c.revision
	c.cached = true
	return visible
}

type criteria struct {
	search  string
	status  string
	filters map[string]string
}

func (cr criteria) matches(r domain.Record) bool {
	return cr.matchesSearch(r) && cr.matchesStatus(r) && cr.matchesFilters(r)
}

func (cr criteria) matchesSearch(r domain.Record) bool {
	if cr.search == "" {
		return true
	}
	for _, field := range r.SearchFields() {
		if strings.Contains(strings.ToLower(field), cr.search) {
			return true
		}
	}
	return false
}

func (cr criteria) matchesStatus(r domain.Record) bool {
	return cr.status == StatusAll || r.RecordStatus() == cr.status
}

func (cr criteria) matchesFilters(r domain.Record) bool {
	for field, want := range cr.filters {
		got, ok := r.FilterValue(field)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// compare orders sort values. Missing values sort first; mixed types compare as text.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}

	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
