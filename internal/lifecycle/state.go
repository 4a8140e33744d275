// Package lifecycle holds the per-enemy tracking lifecycle: the small state
// machine that decides, once per detection cycle, whether the filter
// predicts, corrects, freezes or resets.
package lifecycle

import (
	"fmt"
	"time"
)

// Phase enumerates the lifecycle states.
type Phase int

const (
	Init Phase = iota
	Sleep
	WakeUp
	Track
	Switching
	Lost
	Recovery
)

var phaseNames = [...]string{
	Init:      "init",
	Sleep:     "sleep",
	WakeUp:    "wakeup",
	Track:     "track",
	Switching: "switching",
	Lost:      "lost",
	Recovery:  "recovery",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Phases lists every phase in declaration order.
func Phases() []Phase {
	return []Phase{Init, Sleep, WakeUp, Track, Switching, Lost, Recovery}
}

// Filtering reports whether the motion model is active in this phase.
// Init, Sleep, WakeUp and Switching leave the filter inert.
func (p Phase) Filtering() bool {
	switch p {
	case Track, Lost, Recovery:
		return true
	default:
		return false
	}
}

// State is a tagged lifecycle value. Jump is meaningful only in Track and
// LostSince only in Lost.
type State struct {
	Phase     Phase
	Jump      bool
	LostSince time.Time
}

// Initial returns the state every tracker starts in.
func Initial() State { return State{Phase: Init} }

// TrackState returns Track with the given jump flag.
func TrackState(jump bool) State { return State{Phase: Track, Jump: jump} }

// LostState returns Lost timestamped at since.
func LostState(since time.Time) State { return State{Phase: Lost, LostSince: since} }

func (s State) String() string {
	switch s.Phase {
	case Track:
		return fmt.Sprintf("track{jump:%t}", s.Jump)
	case Lost:
		return fmt.Sprintf("lost{since:%s}", s.LostSince.Format(time.RFC3339Nano))
	default:
		return s.Phase.String()
	}
}

// Next advances the machine by one detection cycle. observed reports whether
// an observation arrived this cycle, now is the cycle timestamp and timeout
// bounds how long Lost may persist before falling back to Sleep.
func Next(cur State, observed bool, now time.Time, timeout time.Duration) State {
	switch cur.Phase {
	case Init, Sleep:
		if observed {
			return State{Phase: WakeUp}
		}
		return State{Phase: Sleep}

	case WakeUp, Recovery:
		if observed {
			return TrackState(false)
		}
		return LostState(now)

	case Track:
		// Loss wins over a pending jump.
		if !observed {
			return LostState(now)
		}
		if cur.Jump {
			return State{Phase: Switching}
		}
		return TrackState(false)

	case Switching:
		return TrackState(false)

	case Lost:
		if observed {
			return State{Phase: Recovery}
		}
		if now.Sub(cur.LostSince) > timeout {
			return State{Phase: Sleep}
		}
		return cur
	}
	return Initial()
}
