package coordinator

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cyclescene/cyclescene/internal/metrics"
	"github.com/cyclescene/cyclescene/internal/ride"
)

// SavedStore is the persisted bookmark collection.
type SavedStore interface {
	Upsert(ctx context.Context, records ...ride.Ride) error
	GetAll(ctx context.Context) ([]ride.Ride, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Bookmarks keeps the user's saved rides. It never touches the network and
// is independent of the rides cache. When the store is unavailable changes
// are kept in memory and the state is flagged degraded.
type Bookmarks struct {
	store    SavedStore
	logger   *slog.Logger
	onChange func(State[ride.Ride])
	now      func() time.Time

	mu    sync.Mutex
	state State[ride.Ride]
	index map[string]struct{}
}

func NewBookmarks(store SavedStore, logger *slog.Logger, onChange func(State[ride.Ride])) *Bookmarks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bookmarks{
		store:    store,
		logger:   logger.With("collection", "saved"),
		onChange: onChange,
		now:      time.Now,
		index:    make(map[string]struct{}),
	}
}

// Init loads saved rides from the store.
func (b *Bookmarks) Init(ctx context.Context) State[ride.Ride] {
	return b.reload(ctx, "init")
}

// Reload re-reads the saved rides, picking up changes made by other sessions.
func (b *Bookmarks) Reload(ctx context.Context) State[ride.Ride] {
	return b.reload(ctx, "reload")
}

func (b *Bookmarks) reload(ctx context.Context, op string) State[ride.Ride] {
	saved, err := b.store.GetAll(ctx)
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.logger.Warn("reading saved rides failed", "error", err)
		b.state.Degraded = true
		if b.state.Status == StatusUninitialized {
			b.state.Status = StatusReady
		}
		metrics.SyncOperations.WithLabelValues("saved", op, metrics.ResultDegraded).Inc()
		return b.commitLocked()
	}
	b.state.Status = StatusReady
	b.state.Degraded = false
	b.state.Err = nil
	b.setLocked(saved)
	metrics.SyncOperations.WithLabelValues("saved", op, metrics.ResultOK).Inc()
	return b.commitLocked()
}

// Save bookmarks r. Saving an already saved ride overwrites its copy in
// place.
func (b *Bookmarks) Save(ctx context.Context, r ride.Ride) State[ride.Ride] {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.store.Upsert(ctx, r)
	if err != nil {
		b.logger.Warn("persisting saved ride failed", "ride", r.ID, "error", err)
	}
	b.state.Degraded = err != nil
	// A re-saved ride keeps its place, as the store keeps its row.
	data := slices.Clone(b.state.Data)
	if i := slices.IndexFunc(data, func(x ride.Ride) bool { return x.ID == r.ID }); i >= 0 {
		data[i] = r
	} else {
		data = append(data, r)
	}
	// stable sort keeps insertion order within a date
	slices.SortStableFunc(data, func(x, y ride.Ride) int { return x.Date.Compare(y.Date) })
	b.state.Status = StatusReady
	b.setLocked(data)
	return b.commitLocked()
}

// Remove deletes the bookmark for id. Removing an unknown id is a no-op.
func (b *Bookmarks) Remove(ctx context.Context, id string) State[ride.Ride] {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.store.Delete(ctx, id)
	if err != nil {
		b.logger.Warn("deleting saved ride failed", "ride", id, "error", err)
	}
	b.state.Degraded = err != nil
	b.setLocked(slices.DeleteFunc(slices.Clone(b.state.Data), func(x ride.Ride) bool { return x.ID == id }))
	return b.commitLocked()
}

// ClearAll removes every bookmark.
func (b *Bookmarks) ClearAll(ctx context.Context) State[ride.Ride] {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.store.Clear(ctx)
	if err != nil {
		b.logger.Warn("clearing saved rides failed", "error", err)
	}
	b.state.Degraded = err != nil
	b.setLocked(nil)
	return b.commitLocked()
}

// IsSaved reports whether id is bookmarked.
func (b *Bookmarks) IsSaved(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.index[id]
	return ok
}

func (b *Bookmarks) Snapshot() State[ride.Ride] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.clone()
}

func (b *Bookmarks) setLocked(data []ride.Ride) {
	b.state.Data = data
	clear(b.index)
	for _, r := range data {
		b.index[r.ID] = struct{}{}
	}
}

func (b *Bookmarks) commitLocked() State[ride.Ride] {
	b.state.UpdatedAt = b.now()
	st := b.state.clone()
	if b.onChange != nil {
		b.onChange(st.clone())
	}
	return st
}
