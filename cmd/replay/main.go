// Command replay runs the enemy trackers offline over a synthetic spinning
// unit or a recorded JSON-lines observation log, optionally recording every
// estimate to sqlite and rendering trace plots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/autoaim/internal/enemy"
	"github.com/banshee-data/autoaim/internal/simulate"
	"github.com/banshee-data/autoaim/internal/units"
	"github.com/banshee-data/autoaim/internal/version"
)

var (
	tuningPath = flag.String("tuning", "", "Tuning JSON file (built-in defaults when empty)")
	logPath    = flag.String("log", "", "JSON-lines observation log to replay instead of a synthetic scenario")
	dumpLog    = flag.String("dump-log", "", "Write the synthetic scenario's observations to this JSON-lines file")
	dbPath     = flag.String("db", "", "Record estimates to this sqlite database")
	runName    = flag.String("name", "replay", "Run name stored with the recording")
	plotDir    = flag.String("plots", "", "Write PNG trace plots into this directory")
	htmlDir    = flag.String("html", "", "Write interactive HTML trace pages into this directory")
	metrics    = flag.Bool("metrics", false, "Print tracker metrics after the run")
	showVer    = flag.Bool("version", false, "Print the version and exit")

	enemyName = flag.String("enemy", "Infantry3", "Synthetic unit identity (name or robot number)")
	cycles    = flag.Int("cycles", 300, "Synthetic cycles to generate")
	cycleDt   = flag.Duration("dt", 10*time.Millisecond, "Synthetic cycle period")
	angleUnit = flag.String("angle-units", units.Deg, "Units of -bearing, -bearing-rate and -spin ("+units.GetValidUnitsString()+")")
	bearing   = flag.Float64("bearing", 0, "Synthetic centre bearing")
	bearingV  = flag.Float64("bearing-rate", 0, "Synthetic centre bearing rate, per second")
	distance  = flag.Float64("distance", 3000, "Synthetic centre distance, mm")
	distanceV = flag.Float64("distance-rate", 0, "Synthetic centre distance rate, mm/s")
	spin      = flag.Float64("spin", 180, "Synthetic spin rate, per second")
	height    = flag.Float64("height", 10, "Synthetic plate height, mm")
	dropouts  = flag.String("dropouts", "", "Synthetic dropout windows as from-to cycle ranges, e.g. 40-45,100-160")
	noiseDeg  = flag.Float64("noise-deg", 0, "Std dev added to observed bearing and plate yaw, deg")
	noiseMM   = flag.Float64("noise-mm", 0, "Std dev added to observed distance and height, mm")
	seed      = flag.Int64("seed", 1, "Noise seed")
)

type options struct {
	tuningPath   string
	logPath      string
	dumpLog      string
	dbPath       string
	runName      string
	plotDir      string
	htmlDir      string
	printMetrics bool
	scenario     simulate.Scenario
}

func optionsFromFlags() (options, error) {
	o := options{
		tuningPath:   *tuningPath,
		logPath:      *logPath,
		dumpLog:      *dumpLog,
		dbPath:       *dbPath,
		runName:      *runName,
		plotDir:      *plotDir,
		htmlDir:      *htmlDir,
		printMetrics: *metrics,
	}
	if o.logPath != "" {
		return o, nil
	}

	id, err := enemy.ParseID(*enemyName)
	if err != nil {
		return o, err
	}
	windows, err := parseDropouts(*dropouts)
	if err != nil {
		return o, err
	}
	if *cycles <= 0 {
		return o, fmt.Errorf("cycles must be positive, got %d", *cycles)
	}
	if *cycleDt <= 0 {
		return o, fmt.Errorf("dt must be positive, got %s", *cycleDt)
	}
	if !units.IsValid(*angleUnit) {
		return o, fmt.Errorf("invalid angle units %q, want one of: %s", *angleUnit, units.GetValidUnitsString())
	}
	o.scenario = simulate.Scenario{
		Unit: simulate.Unit{
			ID:           id,
			ThetaDeg:     units.ToDegrees(*bearing, *angleUnit),
			ThetaRateDps: units.ToDegrees(*bearingV, *angleUnit),
			DistanceMM:   *distance,
			DistanceRate: *distanceV,
			SpinDps:      units.ToDegrees(*spin, *angleUnit),
			HeightMM:     *height,
		},
		Dt:       *cycleDt,
		Cycles:   *cycles,
		Dropouts: windows,
		Noise: simulate.Noise{
			BearingDeg:    *noiseDeg,
			DistanceMM:    *noiseMM,
			PlateYawDeg:   *noiseDeg,
			PlateHeightMM: *noiseMM,
		},
		Seed: *seed,
	}
	return o, nil
}

// parseDropouts parses "a-b,c-d" into inclusive cycle windows. A bare
// number is a single-cycle window.
func parseDropouts(s string) ([]simulate.Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []simulate.Window
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		from, to, found := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return nil, fmt.Errorf("invalid dropout %q: %w", part, err)
		}
		b := a
		if found {
			if b, err = strconv.Atoi(strings.TrimSpace(to)); err != nil {
				return nil, fmt.Errorf("invalid dropout %q: %w", part, err)
			}
		}
		if a < 0 || b < a {
			return nil, fmt.Errorf("invalid dropout %q: want 0 <= from <= to", part)
		}
		out = append(out, simulate.Window{From: a, To: b})
	}
	return out, nil
}

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}

	o, err := optionsFromFlags()
	if err != nil {
		log.Fatalf("replay: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		log.Fatalf("replay: %v", err)
	}
}
