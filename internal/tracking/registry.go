package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/autoaim/internal/enemy"
	"github.com/banshee-data/autoaim/internal/monitoring"
	"github.com/banshee-data/autoaim/internal/timeutil"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownEnemy is returned when a lookup names an enemy the registry
// was not built with.
var ErrUnknownEnemy = errors.New("unknown enemy")

// Registry holds one Tracker per enemy. Its set of trackers is fixed at
// construction; trackers are never created on demand.
type Registry struct {
	clock    timeutil.Clock
	ids      []enemy.ID
	trackers map[enemy.ID]*Tracker
}

// NewRegistry creates a tracker for every id. A nil clock uses the real
// clock; nil metrics disables them.
func NewRegistry(ids []enemy.ID, cfg TrackerConfig, clock timeutil.Clock, metrics *monitoring.Metrics) (*Registry, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	r := &Registry{
		clock:    clock,
		trackers: make(map[enemy.ID]*Tracker, len(ids)),
	}
	for _, id := range ids {
		if _, dup := r.trackers[id]; dup {
			return nil, fmt.Errorf("duplicate enemy %s", id)
		}
		t, err := NewTracker(id, cfg, clock)
		if err != nil {
			return nil, err
		}
		t.SetMetrics(metrics)
		r.trackers[id] = t
		r.ids = append(r.ids, id)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

// IDs returns the registered enemies in roster order.
func (r *Registry) IDs() []enemy.ID {
	out := make([]enemy.ID, len(r.ids))
	copy(out, r.ids)
	return out
}

// Get returns the tracker for id.
func (r *Registry) Get(id enemy.ID) (*Tracker, error) {
	t, ok := r.trackers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnemy, id)
	}
	return t, nil
}

// Snapshots returns the latest published estimate of every tracker.
func (r *Registry) Snapshots() map[enemy.ID]Snapshot {
	out := make(map[enemy.ID]Snapshot, len(r.ids))
	for _, id := range r.ids {
		out[id] = r.trackers[id].Snapshot()
	}
	return out
}

// StepAll runs one cycle on every tracker in parallel, all at the same
// timestamp. Enemies absent from observations step with no observation.
// An observation for an unregistered enemy fails the whole call before any
// tracker is stepped.
func (r *Registry) StepAll(ctx context.Context, observations map[enemy.ID]*enemy.Observation) (map[enemy.ID]Snapshot, error) {
	for id := range observations {
		if _, ok := r.trackers[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEnemy, id)
		}
	}

	now := r.clock.Now()
	results := make([]Snapshot, len(r.ids))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range r.ids {
		i, t, obs := i, r.trackers[id], observations[id]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = t.StepAt(now, obs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[enemy.ID]Snapshot, len(results))
	for i, id := range r.ids {
		out[id] = results[i]
	}
	return out, nil
}

// ApplyTuning pushes cfg to every tracker.
func (r *Registry) ApplyTuning(cfg TrackerConfig) error {
	for _, id := range r.ids {
		if err := r.trackers[id].ApplyTuning(cfg); err != nil {
			return err
		}
	}
	return nil
}
