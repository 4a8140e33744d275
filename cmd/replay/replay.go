package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/autoaim/internal/config"
	"github.com/banshee-data/autoaim/internal/db"
	"github.com/banshee-data/autoaim/internal/enemy"
	"github.com/banshee-data/autoaim/internal/monitoring"
	"github.com/banshee-data/autoaim/internal/simulate"
	"github.com/banshee-data/autoaim/internal/timeutil"
	"github.com/banshee-data/autoaim/internal/tracking"
	"github.com/banshee-data/autoaim/internal/units"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// cycleInput is everything the registry sees in one cycle.
type cycleInput struct {
	cycle  int
	offset time.Duration
	obs    map[enemy.ID]*enemy.Observation
	truth  map[enemy.ID]*simulate.Truth
}

func inputsFromFrames(id enemy.ID, frames []simulate.Frame) []cycleInput {
	out := make([]cycleInput, len(frames))
	for i, f := range frames {
		truth := f.Truth
		out[i] = cycleInput{
			cycle:  f.Cycle,
			offset: f.Offset,
			obs:    map[enemy.ID]*enemy.Observation{},
			truth:  map[enemy.ID]*simulate.Truth{id: &truth},
		}
		if f.Observation != nil {
			out[i].obs[id] = f.Observation
		}
	}
	return out
}

// inputsFromRecords groups log records by cycle. Cycles must not go back in
// time and an enemy may appear at most once per cycle.
func inputsFromRecords(recs []simulate.Record) ([]cycleInput, error) {
	byCycle := map[int]*cycleInput{}
	for _, r := range recs {
		id, err := enemy.ParseID(r.Enemy)
		if err != nil {
			return nil, err
		}
		in, ok := byCycle[r.Cycle]
		if !ok {
			in = &cycleInput{
				cycle:  r.Cycle,
				offset: time.Duration(r.OffsetNanos),
				obs:    map[enemy.ID]*enemy.Observation{},
				truth:  map[enemy.ID]*simulate.Truth{},
			}
			byCycle[r.Cycle] = in
		} else if in.offset != time.Duration(r.OffsetNanos) {
			return nil, fmt.Errorf("cycle %d: conflicting offsets %d and %d", r.Cycle, in.offset, r.OffsetNanos)
		}
		if _, dup := in.obs[id]; dup {
			return nil, fmt.Errorf("cycle %d: duplicate record for %s", r.Cycle, id)
		}
		if _, dup := in.truth[id]; dup {
			return nil, fmt.Errorf("cycle %d: duplicate record for %s", r.Cycle, id)
		}
		if r.Observation != nil {
			in.obs[id] = r.Observation
		}
		if r.Truth != nil {
			in.truth[id] = r.Truth
		} else if r.Observation == nil {
			// An explicit absence still claims the slot.
			in.truth[id] = nil
		}
	}

	out := make([]cycleInput, 0, len(byCycle))
	for _, in := range byCycle {
		out = append(out, *in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].cycle < out[j].cycle })
	for i := 1; i < len(out); i++ {
		if out[i].offset < out[i-1].offset {
			return nil, fmt.Errorf("cycle %d: offset goes back in time", out[i].cycle)
		}
	}
	return out, nil
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func loadInputs(o options) ([]cycleInput, string, error) {
	if o.logPath != "" {
		f, err := os.Open(o.logPath)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		recs, err := simulate.ReadLog(f)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", o.logPath, err)
		}
		inputs, err := inputsFromRecords(recs)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", o.logPath, err)
		}
		return inputs, "log", nil
	}

	frames := o.scenario.Frames()
	if o.dumpLog != "" {
		f, err := os.Create(o.dumpLog)
		if err != nil {
			return nil, "", err
		}
		if err := simulate.WriteLog(f, o.scenario.Unit.ID, frames); err != nil {
			f.Close()
			return nil, "", err
		}
		if err := f.Close(); err != nil {
			return nil, "", err
		}
	}
	return inputsFromFrames(o.scenario.Unit.ID, frames), "scenario", nil
}

// summary is the per-enemy outcome of a run.
type summary struct {
	final    tracking.Snapshot
	observed int
	switches int
	sessions map[uuid.UUID]struct{}
}

func run(ctx context.Context, o options, out io.Writer) error {
	tuning, err := loadTuning(o.tuningPath)
	if err != nil {
		return err
	}
	cfg := tracking.TrackerConfigFromTuning(tuning)

	inputs, source, err := loadInputs(o)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	clock := timeutil.NewManualClock(start)
	reg := prometheus.NewRegistry()
	registry, err := tracking.NewRegistry(enemy.Roster(), cfg, clock, monitoring.NewMetrics(reg))
	if err != nil {
		return err
	}

	var (
		recorder *db.DB
		dbRun    db.Run
	)
	if o.dbPath != "" {
		if recorder, err = db.NewDB(o.dbPath); err != nil {
			return err
		}
		defer recorder.Close()
		raw, err := json.Marshal(tuning)
		if err != nil {
			return err
		}
		if dbRun, err = recorder.StartRun(o.runName, source, start, raw); err != nil {
			return err
		}
		monitoring.Logf("recording run %s to %s", dbRun.ID, o.dbPath)
	}

	summaries := map[enemy.ID]*summary{}
	plotters := map[enemy.ID]*monitoring.TracePlotter{}
	for _, in := range inputs {
		clock.Set(start.Add(in.offset))
		snaps, err := registry.StepAll(ctx, in.obs)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", in.cycle, err)
		}

		ordered := make([]tracking.Snapshot, 0, len(snaps))
		for _, id := range registry.IDs() {
			ordered = append(ordered, snaps[id])
		}
		if recorder != nil {
			if err := recorder.RecordSnapshots(dbRun.ID, ordered); err != nil {
				return err
			}
		}

		for _, s := range ordered {
			_, hasTruth := in.truth[s.ID]
			sum := summaries[s.ID]
			if sum == nil {
				if !s.Observed && !hasTruth {
					continue
				}
				sum = &summary{sessions: map[uuid.UUID]struct{}{}}
				summaries[s.ID] = sum
				plotters[s.ID] = monitoring.NewTracePlotter(s.ID.String())
			}
			sum.final = s
			if s.Observed {
				sum.observed++
			}
			if s.Switched {
				sum.switches++
			}
			if s.Session != uuid.Nil {
				sum.sessions[s.Session] = struct{}{}
			}
			plotters[s.ID].Add(traceSample(in, s))
		}
	}

	if err := writePlots(o, plotters); err != nil {
		return err
	}
	writeSummary(out, len(inputs), summaries)
	if o.printMetrics {
		mfs, err := reg.Gather()
		if err != nil {
			return err
		}
		for _, mf := range mfs {
			if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
				return err
			}
		}
	}
	return nil
}

func traceSample(in cycleInput, s tracking.Snapshot) monitoring.TraceSample {
	sample := monitoring.TraceSample{
		Cycle:    in.cycle,
		Phase:    s.State.Phase.String(),
		Observed: s.Observed,
		Estimate: monitoring.TraceValues{
			ThetaDeg:    s.Nominal.Theta,
			DistanceMM:  s.Nominal.Distance,
			ArmorYawDeg: units.WrapDeg180(s.Nominal.ArmorYaw),
			SpinDps:     s.Nominal.VSpin,
		},
	}
	if t := in.truth[s.ID]; t != nil {
		sample.Truth = &monitoring.TraceValues{
			ThetaDeg:    t.ThetaDeg,
			DistanceMM:  t.DistanceMM,
			ArmorYawDeg: t.PlateYawDeg,
			SpinDps:     t.SpinDps,
		}
	}
	return sample
}

func sortedIDs[V any](m map[enemy.ID]V) []enemy.ID {
	ids := make([]enemy.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func writePlots(o options, plotters map[enemy.ID]*monitoring.TracePlotter) error {
	for _, id := range sortedIDs(plotters) {
		tp := plotters[id]
		if o.plotDir != "" {
			paths, err := tp.SavePNG(filepath.Join(o.plotDir, id.String()))
			if err != nil {
				return err
			}
			monitoring.Logf("%s: wrote %d plots", id, len(paths))
		}
		if o.htmlDir != "" {
			if err := writeHTML(filepath.Join(o.htmlDir, id.String()+".html"), tp); err != nil {
				return fmt.Errorf("render %s: %w", id, err)
			}
		}
	}
	return nil
}

func writeHTML(path string, tp *monitoring.TracePlotter) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tp.RenderHTML(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeSummary(out io.Writer, cycles int, summaries map[enemy.ID]*summary) {
	fmt.Fprintf(out, "replayed %d cycles\n", cycles)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENEMY\tOBSERVED\tPHASE\tSTATUS\tSESSIONS\tSWITCHES\tV_SPIN\tARMOR_R")
	for _, id := range sortedIDs(summaries) {
		s := summaries[id]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\t%.1f\t%.1f\n",
			id, s.observed, s.final.State.Phase, s.final.Status, len(s.sessions), s.switches,
			s.final.Nominal.VSpin, s.final.Nominal.ArmorR)
	}
	w.Flush()
}
