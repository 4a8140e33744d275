package tracking

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/autoaim/internal/enemy"
	"github.com/banshee-data/autoaim/internal/eskf"
	"github.com/banshee-data/autoaim/internal/lifecycle"
	"github.com/banshee-data/autoaim/internal/monitoring"
	"github.com/banshee-data/autoaim/internal/timeutil"
	"github.com/google/uuid"
)

// Engagement summarizes the lifecycle for fire control.
type Engagement int

const (
	// Hold: no usable estimate.
	Hold Engagement = iota
	// TrackOnly: keep the gimbal on the estimate but do not fire.
	TrackOnly
	// Fire: steady track.
	Fire
)

func (e Engagement) String() string {
	switch e {
	case Hold:
		return "hold"
	case TrackOnly:
		return "track_only"
	case Fire:
		return "fire"
	default:
		return fmt.Sprintf("engagement(%d)", int(e))
	}
}

// EngagementFor maps a lifecycle state to an engagement decision.
func EngagementFor(s lifecycle.State) Engagement {
	switch s.Phase {
	case lifecycle.Track:
		if s.Jump {
			return TrackOnly
		}
		return Fire
	case lifecycle.Lost, lifecycle.Recovery, lifecycle.Switching:
		return TrackOnly
	default:
		return Hold
	}
}

// Snapshot is the estimate published at the end of a cycle.
type Snapshot struct {
	ID        enemy.ID
	Session   uuid.UUID // changes on every WakeUp, uuid.Nil before the first
	Cycle     uint64
	At        time.Time
	Nominal   enemy.Nominal
	State     lifecycle.State
	Status    Engagement
	Plate     int  // index of the tracked plate within the layout
	Observed  bool // whether this cycle carried an observation
	Switched  bool // whether this cycle switched plates
	Corrected int  // filter corrections applied this cycle
	Skipped   int  // filter corrections skipped this cycle
}

// AimPoint returns the tracked plate position after lead seconds.
func (s Snapshot) AimPoint(lead float64) (x, y, z float64) {
	return s.Nominal.AimPoint(lead)
}

// Tracker estimates one enemy's motion. Step must not be called
// concurrently with itself; Snapshot may be called from any goroutine.
type Tracker struct {
	stepMu sync.Mutex // serializes Step and ApplyTuning

	id     enemy.ID
	layout enemy.Layout
	clock  timeutil.Clock

	cfg     TrackerConfig
	noise   noise
	rebuild bool // config changed; rebuild the filter on next WakeUp

	filter *eskf.Filter[enemy.Nominal, lifecycle.Phase]
	model  enemy.Model

	nominal  enemy.Nominal
	previous enemy.Nominal
	state    lifecycle.State
	plate    int
	plates   []enemy.PlateGeometry // per-plate radius/height memory
	session  uuid.UUID
	cycle    uint64
	advanced time.Time // when the estimate was last seeded or propagated

	metrics *monitoring.Metrics

	mu        sync.RWMutex
	published Snapshot
}

// NewTracker creates a tracker for id in the Init phase.
func NewTracker(id enemy.ID, cfg TrackerConfig, clock timeutil.Clock) (*Tracker, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %v", enemy.ErrUnknownID, id)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("tracker %s: %w", id, err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	n := cfg.noise()
	f, err := eskf.New[enemy.Nominal, lifecycle.Phase](n.p0, n.q, n.r, cfg.CycleDt)
	if err != nil {
		return nil, fmt.Errorf("tracker %s: %w", id, err)
	}

	t := &Tracker{
		id:      id,
		layout:  enemy.LayoutFor(id),
		clock:   clock,
		cfg:     cfg,
		noise:   n,
		filter:  f,
		nominal: enemy.PriorNominal(),
		state:   lifecycle.Initial(),
	}
	t.resetPlates()
	t.published = t.snapshot(time.Time{}, false, false, 0, 0)
	return t, nil
}

// SetMetrics attaches prometheus metrics. Nil disables them.
func (t *Tracker) SetMetrics(m *monitoring.Metrics) {
	t.stepMu.Lock()
	defer t.stepMu.Unlock()
	t.metrics = m
}

// ID returns the tracked enemy.
func (t *Tracker) ID() enemy.ID { return t.id }

// Layout returns the enemy's plate layout.
func (t *Tracker) Layout() enemy.Layout { return t.layout }

// Snapshot returns the estimate published by the last completed cycle.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.published
}

// ApplyTuning replaces the tracker configuration between cycles. Noise and
// time step take effect immediately; the initial covariance on the next
// WakeUp.
func (t *Tracker) ApplyTuning(cfg TrackerConfig) error {
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("tracker %s: %w", t.id, err)
	}
	t.stepMu.Lock()
	defer t.stepMu.Unlock()

	t.cfg = cfg
	t.noise = cfg.noise()
	t.rebuild = true
	// Dimensions were checked by validate.
	_ = t.filter.SetQ(t.noise.q)
	_ = t.filter.SetR(t.noise.r)
	_ = t.filter.SetDt(cfg.CycleDt)
	return nil
}

// Step runs one cycle at the clock's current time. obs is nil when no plate
// of this enemy was seen.
func (t *Tracker) Step(obs *enemy.Observation) Snapshot {
	return t.StepAt(t.clock.Now(), obs)
}

// StepAt runs one cycle at now.
func (t *Tracker) StepAt(now time.Time, obs *enemy.Observation) Snapshot {
	t.stepMu.Lock()
	defer t.stepMu.Unlock()
	start := time.Now()

	observed := obs != nil
	if observed && !obs.Valid() {
		monitoring.Warnf("tracker %s: dropping non-finite observation %+v", t.id, *obs)
		observed = false
	}

	t.previous = t.nominal
	work := t.nominal
	if observed {
		work.Theta = rebranch(work.Theta, obs.BearingDeg)
		work.ArmorYaw = rebranch(work.ArmorYaw, obs.PlateYawDeg)
	}

	next := lifecycle.Next(t.state, observed, now, t.cfg.LostTimeout)
	dt := t.stepDt(now)

	switched := false
	if observed && (next.Phase == lifecycle.Track || next.Phase == lifecycle.Recovery) {
		switched = t.checkSwitch(&work, obs, dt)
		// Only Track carries jump into Switching.
		next.Jump = switched && next.Phase == lifecycle.Track
	}

	var corrected, skipped int
	correct := func() {
		if t.filter.Update(t.model, &work, obs.Vector(), next.Phase) {
			corrected++
			return
		}
		skipped++
		t.metrics.IncSkippedUpdate(t.id.String())
	}

	switch next.Phase {
	case lifecycle.WakeUp:
		t.wake(&work, obs)

	case lifecycle.Track:
		if !observed {
			// Only reachable straight out of Switching.
			t.predict(&work, next.Phase, dt, false)
			break
		}
		t.predict(&work, next.Phase, dt, true)
		correct()

		// Zero-horizon pass at default noise.
		_ = t.filter.SetDt(0)
		t.filter.Predict(t.model, &work, nil, next.Phase)
		correct()
		_ = t.filter.SetDt(t.cfg.CycleDt)

	case lifecycle.Recovery:
		t.predict(&work, next.Phase, dt, true)
		correct()

	case lifecycle.Lost:
		t.predict(&work, next.Phase, dt, false)
	}
	if next.Phase == lifecycle.WakeUp || next.Phase.Filtering() {
		t.advanced = now
	}

	if corrected > 0 {
		work.ArmorR = math.Min(math.Max(work.ArmorR, t.cfg.MinArmorRadiusMM), t.cfg.MaxArmorRadiusMM)
	}

	if next.Phase != t.state.Phase {
		monitoring.Logf("tracker %s: %s -> %s", t.id, t.state, next)
		t.metrics.ObserveTransition(t.id.String(), t.state.Phase.String(), next.Phase.String())
	}

	t.nominal = work
	t.state = next
	t.cycle++
	snap := t.snapshot(now, observed, switched, corrected, skipped)

	t.mu.Lock()
	t.published = snap
	t.mu.Unlock()

	t.metrics.ObserveCycle(t.id.String(), next.Phase.String(), time.Since(start))
	return snap
}

// predict runs the covariance prediction and propagates the nominal state
// over dt seconds, optionally with widened process noise. The filter is left
// at the configured cycle time and default noise.
func (t *Tracker) predict(work *enemy.Nominal, phase lifecycle.Phase, dt float64, widened bool) {
	if widened {
		_ = t.filter.SetQ(t.noise.qWide)
		defer func() { _ = t.filter.SetQ(t.noise.q) }()
	}
	_ = t.filter.SetDt(dt)
	defer func() { _ = t.filter.SetDt(t.cfg.CycleDt) }()
	t.filter.Predict(t.model, work, nil, phase)
	t.model.Propagate(work, dt, nil, phase)
}

// stepDt is the prediction horizon for a cycle at now: the time since the
// estimate was last advanced, capped at the lost timeout. Callers whose
// timestamps do not advance get the configured cycle time.
func (t *Tracker) stepDt(now time.Time) float64 {
	if t.advanced.IsZero() {
		return t.cfg.CycleDt
	}
	elapsed := now.Sub(t.advanced)
	if elapsed <= 0 {
		return t.cfg.CycleDt
	}
	if elapsed > t.cfg.LostTimeout {
		elapsed = t.cfg.LostTimeout
	}
	return elapsed.Seconds()
}

// wake seeds the estimate from the first observation after sleeping.
func (t *Tracker) wake(work *enemy.Nominal, obs *enemy.Observation) {
	*work = enemy.Nominal{
		Theta:       obs.BearingDeg,
		Distance:    obs.DistanceMM,
		ArmorYaw:    obs.PlateYawDeg,
		ArmorR:      t.layout.Plate.RadiusMM,
		ArmorHeight: obs.PlateHeightMM,
	}
	t.resetPlates()
	t.session = uuid.New()

	if t.rebuild {
		f, err := eskf.New[enemy.Nominal, lifecycle.Phase](t.noise.p0, t.noise.q, t.noise.r, t.cfg.CycleDt)
		if err != nil {
			monitoring.Warnf("tracker %s: keeping previous filter: %v", t.id, err)
		} else {
			t.filter = f
		}
		t.rebuild = false
	}
	t.filter.Reset()
}

// checkSwitch projects the tracked plate yaw dt seconds ahead and compares
// it with the observed yaw. When the observation has left the hysteresis
// band and sits closer to a neighbouring plate, the neighbour becomes the
// tracked plate. It reports whether a switch happened.
func (t *Tracker) checkSwitch(work *enemy.Nominal, obs *enemy.Observation, dt float64) bool {
	current := work.ArmorYaw + work.VSpin*dt
	if !t.cfg.SwitchBands.ShouldSwitch(current, obs.PlateYawDeg, work.VSpin, t.cfg.CycleDt) {
		return false
	}
	target, step := enemy.NextPlate(current, obs.PlateYawDeg, t.layout)
	if step == 0 {
		return false
	}

	t.plates[t.plate] = enemy.PlateGeometry{RadiusMM: work.ArmorR, HeightMM: work.ArmorHeight}
	n := len(t.plates)
	t.plate = ((t.plate+step)%n + n) % n
	work.ArmorR = t.plates[t.plate].RadiusMM
	work.ArmorHeight = t.plates[t.plate].HeightMM
	// Shift by whole plates; predict carries the yaw on to the target.
	work.ArmorYaw += float64(step) * t.layout.SpacingDeg()

	monitoring.Logf("tracker %s: plate switch %.1f -> %.1f (plate %d, spin %.1f deg/s)",
		t.id, current, target, t.plate, work.VSpin)
	t.metrics.IncSwitch(t.id.String())
	return true
}

func (t *Tracker) resetPlates() {
	t.plate = 0
	t.plates = make([]enemy.PlateGeometry, t.layout.PlateCount())
	for i := range t.plates {
		t.plates[i] = t.layout.Plate
	}
}

func (t *Tracker) snapshot(now time.Time, observed, switched bool, corrected, skipped int) Snapshot {
	return Snapshot{
		ID:        t.id,
		Session:   t.session,
		Cycle:     t.cycle,
		At:        now,
		Nominal:   t.nominal,
		State:     t.state,
		Status:    EngagementFor(t.state),
		Plate:     t.plate,
		Observed:  observed,
		Switched:  switched,
		Corrected: corrected,
		Skipped:   skipped,
	}
}

// rebranch moves stored by whole turns onto the 360° branch of measured,
// keeping the wrapped difference between them.
func rebranch(stored, measured float64) float64 {
	return stored + 360*math.Round((measured-stored)/360)
}
