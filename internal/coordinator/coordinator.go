// Package coordinator governs the index build lifecycle: Empty -> Building ->
// Ready -> Building -> ... with at most one build in flight, one-deep
// coalescing of newer store versions, and an atomically swapped immutable
// snapshot. Queries issued during a rebuild are served the previous Ready
// snapshot, never a partial one.
package coordinator

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentic-research/weft/internal/dataset"
	"github.com/agentic-research/weft/internal/index"
)

// State of the coordinator's lifecycle machine.
type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// BuildFunc builds a snapshot from one consistent dataset view. It must not
// return nil; an internal fault is expressed as a panic, which the
// coordinator recovers and reports while retaining the previous snapshot.
type BuildFunc func(dataset.View) *index.Snapshot

// Coordinator owns the single mutable reference of the system: which
// snapshot is current. Everything else it touches is immutable.
type Coordinator struct {
	store *dataset.Store
	build BuildFunc
	log   *slog.Logger

	current atomic.Pointer[index.Snapshot]

	mu        sync.Mutex
	cond      *sync.Cond
	building  bool
	pending   bool
	target    uint64 // store version the in-flight build reads from
	attempted uint64 // last store version a build was started for
	lastErr   error
}

func New(store *dataset.Store, build BuildFunc, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{store: store, build: build, log: log}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Trigger requests a rebuild from the store's current state. If a build is
// already in flight, the request is coalesced: at most one follow-up build is
// scheduled no matter how many versions arrive mid-build, and a request for
// the in-flight target version is a no-op.
func (c *Coordinator) Trigger() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.building {
		if c.store.Version() > c.target {
			c.pending = true
		}
		return
	}
	c.startLocked()
}

// startLocked begins a background build unless this store version was already
// attempted. A failed build is not retried against unchanged input — it would
// fail identically; the next Put produces a new version and a fresh attempt.
func (c *Coordinator) startLocked() {
	view := c.store.Snapshot()
	if view.Version == c.attempted {
		return
	}
	c.building = true
	c.target = view.Version
	c.attempted = view.Version
	go c.run(view)
}

func (c *Coordinator) run(view dataset.View) {
	snap, err := c.runBuild(view)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err
		c.log.Error("index build failed, previous snapshot retained",
			"version", view.Version, "err", err)
	} else {
		// The one atomic swap: readers see either the old snapshot whole or
		// the new one whole.
		c.current.Store(snap)
		c.lastErr = nil
	}
	c.building = false
	if c.pending {
		c.pending = false
		c.startLocked()
	}
	c.cond.Broadcast()
	c.mu.Unlock()
}

func (c *Coordinator) runBuild(view dataset.View) (snap *index.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build panic: %v", r)
		}
	}()
	snap = c.build(view)
	if snap == nil {
		return nil, fmt.Errorf("build returned nil snapshot")
	}
	return snap, nil
}

// Current returns the latest fully-built snapshot, or nil before the first
// successful build. Callers hold the returned snapshot for the whole query.
func (c *Coordinator) Current() *index.Snapshot {
	return c.current.Load()
}

// Wait blocks until no build is in flight or scheduled. Intended for
// one-shot CLI use and tests; serving paths never wait.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	for c.building {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// Status is the observability view of the coordinator. Callers must not make
// correctness decisions from it.
type Status struct {
	State           string          `json:"state"`
	StoreVersion    uint64          `json:"store_version"`
	SnapshotVersion uint64          `json:"snapshot_version"`
	BuiltAt         time.Time       `json:"built_at,omitzero"`
	Warnings        []index.Warning `json:"warnings,omitempty"`
	Stats           *index.Stats    `json:"stats,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	building := c.building
	lastErr := c.lastErr
	c.mu.Unlock()

	st := Status{StoreVersion: c.store.Version()}
	snap := c.current.Load()
	switch {
	case building:
		st.State = StateBuilding.String()
	case snap != nil:
		st.State = StateReady.String()
	default:
		st.State = StateEmpty.String()
	}
	if snap != nil {
		st.SnapshotVersion = snap.Version
		st.BuiltAt = snap.BuiltAt
		st.Warnings = snap.Warnings
		st.Stats = &snap.Stats
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	return st
}
