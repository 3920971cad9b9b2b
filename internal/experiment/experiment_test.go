package experiment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"cohesivm/internal/database"
	"cohesivm/internal/datastream"
	"cohesivm/internal/device"
	"cohesivm/internal/dimensions"
	"cohesivm/internal/experiment"
	"cohesivm/internal/iface"
	"cohesivm/internal/testsupport"
)

func newExperiment(t *testing.T, db *database.Database, m *testsupport.StubMeasurement) *experiment.Experiment {
	t.Helper()
	e, err := experiment.New(experiment.Params{
		Database:     db,
		Device:       device.NewSimulated(1e3, 1e-9),
		Measurement:  m,
		Interface:    iface.NewTrivialHILO(dimensions.NewRectangle(1, 1, "cm"), nil),
		SampleID:     "S1",
		SettleDelay:  -1,
		AbortTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func waitState(t *testing.T, e *experiment.Experiment, want experiment.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if e.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state stuck at %s, want %s", e.State(), want)
}

func TestCompatibilityGating(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	_ = ctx

	contact := iface.NewTrivialHILO(nil, nil)
	base := experiment.Params{
		Database:    db,
		Device:      device.NewSimulated(1e3, 1e-9),
		Measurement: &testsupport.StubMeasurement{},
		Interface:   contact,
		SampleID:    "S1",
	}

	t.Run("interface type mismatch", func(t *testing.T) {
		p := base
		p.Measurement = &testsupport.StubMeasurement{Interface: iface.Type("FOUR-POINT")}
		if _, err := experiment.New(p); !errors.Is(err, experiment.ErrCompatibility) {
			t.Fatalf("expected ErrCompatibility, got %v", err)
		}
	})
	t.Run("too few channels", func(t *testing.T) {
		p := base
		p.Device = testsupport.ChannellessDevice{}
		if _, err := experiment.New(p); !errors.Is(err, experiment.ErrCompatibility) {
			t.Fatalf("expected ErrCompatibility, got %v", err)
		}
	})
	t.Run("capability mismatch", func(t *testing.T) {
		p := base
		p.Device = testsupport.VoltmeterDevice{}
		if _, err := experiment.New(p); !errors.Is(err, experiment.ErrCompatibility) {
			t.Fatalf("expected ErrCompatibility, got %v", err)
		}
	})
	t.Run("unknown pixel", func(t *testing.T) {
		p := base
		p.Pixels = []string{"7"}
		if _, err := experiment.New(p); !errors.Is(err, experiment.ErrCompatibility) {
			t.Fatalf("expected ErrCompatibility, got %v", err)
		}
	})
	t.Run("valid combination", func(t *testing.T) {
		if _, err := experiment.New(base); err != nil {
			t.Fatalf("valid combination rejected: %v", err)
		}
	})
}

func TestStateMachineLegality(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	e := newExperiment(t, db, &testsupport.StubMeasurement{})

	if e.State() != experiment.Initial {
		t.Fatalf("fresh experiment in %s", e.State())
	}
	if e.CurrentPixelIndex() != experiment.PixelNotStarted {
		t.Fatalf("fresh index %d", e.CurrentPixelIndex())
	}

	// Illegal from INITIAL.
	if err := e.Start(ctx); !errors.Is(err, experiment.ErrState) {
		t.Fatalf("start from INITIAL: %v", err)
	}
	if err := e.Abort(ctx); !errors.Is(err, experiment.ErrState) {
		t.Fatalf("abort from INITIAL: %v", err)
	}
	if e.State() != experiment.Initial {
		t.Fatalf("state changed by rejected action: %s", e.State())
	}

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if e.State() != experiment.Ready {
		t.Fatalf("state after setup: %s", e.State())
	}

	// Illegal from READY.
	if err := e.Setup(ctx); !errors.Is(err, experiment.ErrState) {
		t.Fatalf("setup from READY: %v", err)
	}
	if e.State() != experiment.Ready {
		t.Fatalf("state changed by rejected setup: %s", e.State())
	}

	// Illegal during RUNNING.
	blocker := &testsupport.StubMeasurement{Block: true}
	running := newExperiment(t, db, blocker)
	if err := running.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := running.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, tc := range []struct {
		name string
		call func() error
	}{
		{"setup", func() error { return running.Setup(ctx) }},
		{"start", func() error { return running.Start(ctx) }},
		{"preview", func() error { return running.Preview(ctx, "0") }},
	} {
		if err := tc.call(); !errors.Is(err, experiment.ErrState) {
			t.Fatalf("%s during RUNNING: %v", tc.name, err)
		}
		if running.State() != experiment.Running {
			t.Fatalf("state changed by rejected %s: %s", tc.name, running.State())
		}
	}
	if err := running.Abort(ctx); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	// Illegal from ABORTED.
	if err := running.Start(ctx); !errors.Is(err, experiment.ErrState) {
		t.Fatalf("start from ABORTED: %v", err)
	}
}

func TestEndToEndRun(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	stub := &testsupport.StubMeasurement{Rows: [][]float64{{0.0, 0.0}}}
	e := newExperiment(t, db, stub)

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	path := e.DatasetPath()
	if path == "" {
		t.Fatal("no dataset path after setup")
	}
	if e.RunID() == "" {
		t.Fatal("no run id after setup")
	}

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitState(t, e, experiment.Finished)

	if e.CurrentPixelIndex() != 1 {
		t.Fatalf("index after run %d, want pixel count 1", e.CurrentPixelIndex())
	}
	if e.Crashed() {
		t.Fatal("clean run reported as crashed")
	}

	results, err := db.LoadData(ctx, path, "0")
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	if results[0].Len() != 1 || results[0].Rows[0][0] != 0.0 || results[0].Rows[0][1] != 0.0 {
		t.Fatalf("unexpected persisted rows %v", results[0].Rows)
	}
}

func TestSetupAfterFinishedRegistersFreshDataset(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	e := newExperiment(t, db, &testsupport.StubMeasurement{Rows: [][]float64{{1, 2}}})

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	first := e.DatasetPath()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitState(t, e, experiment.Finished)

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("second Setup: %v", err)
	}
	second := e.DatasetPath()
	if second == first {
		t.Fatal("second setup reused the dataset path")
	}
	if _, err := db.LoadData(ctx, first, "0"); err != nil {
		t.Fatalf("first dataset lost: %v", err)
	}
}

func TestAbortBeforeWrite(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	e := newExperiment(t, db, &testsupport.StubMeasurement{})

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := e.Abort(ctx); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if e.State() != experiment.Initial {
		t.Fatalf("state after rollback: %s", e.State())
	}
	if e.DatasetPath() != "" {
		t.Fatal("dataset path survived rollback")
	}
	paths, err := db.FilterBySampleID(ctx, "S1")
	if err != nil {
		t.Fatalf("FilterBySampleID: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("rolled back dataset still indexed: %v", paths)
	}
}

func TestAbortDuringRun(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	e := newExperiment(t, db, &testsupport.StubMeasurement{Block: true})

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Wait for the worker to be inside the measurement.
	deadline := time.Now().Add(5 * time.Second)
	for e.CurrentPixelIndex() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	if err := e.Abort(ctx); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("abort took %v", elapsed)
	}
	if e.State() != experiment.Aborted {
		t.Fatalf("state after abort: %s", e.State())
	}
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("worker did not exit: %v", err)
	}
	if e.Crashed() {
		t.Fatal("requested abort flagged as crash")
	}
}

func TestWorkerCrashSurfacesAsAbortedWithFlag(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	e := newExperiment(t, db, &testsupport.StubMeasurement{PanicMessage: "hardware gone"})

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitState(t, e, experiment.Aborted)
	if !e.Crashed() {
		t.Fatal("crash flag not set")
	}
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	relay := datastream.NewBuffer()
	e, err := experiment.New(experiment.Params{
		Database:    db,
		Device:      device.NewSimulated(1e3, 1e-9),
		Measurement: &testsupport.StubMeasurement{Rows: [][]float64{{0.5, 1e-3}}},
		Interface:   iface.NewTrivialHILO(nil, nil),
		SampleID:    "S1",
		Relay:       relay,
		SettleDelay: -1,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := e.Preview(ctx, "9"); !errors.Is(err, experiment.ErrCompatibility) {
		t.Fatalf("unknown pixel: %v", err)
	}

	if err := e.Preview(ctx, "0"); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitState(t, e, experiment.Initial)
	if e.CurrentPixelIndex() != experiment.PixelNotStarted {
		t.Fatalf("index after preview from INITIAL %d", e.CurrentPixelIndex())
	}

	point, ok := relay.TryNext()
	if !ok {
		t.Fatal("preview published nothing")
	}
	if point.Pixel != "0" || point.Values[0] != 0.5 {
		t.Fatalf("unexpected preview datapoint %+v", point)
	}

	// Nothing persisted.
	paths, err := db.FilterBySampleID(ctx, "S1")
	if err != nil {
		t.Fatalf("FilterBySampleID: %v", err)
	}
	if len(paths) != 0 {
		t.Fatalf("preview persisted a dataset: %v", paths)
	}
}

func TestPreviewFromReadyReturnsToReady(t *testing.T) {
	ctx := context.Background()
	db := testsupport.MustOpenDatabase(t)
	e := newExperiment(t, db, &testsupport.StubMeasurement{Rows: [][]float64{{1, 1}}})

	if err := e.Setup(ctx); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := e.Preview(ctx, "0"); err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitState(t, e, experiment.Ready)
	if e.CurrentPixelIndex() != experiment.PixelNotStarted {
		t.Fatalf("index after preview %d", e.CurrentPixelIndex())
	}
	if err := e.Start(ctx); err != nil {
		t.Fatalf("run after preview: %v", err)
	}
	if err := e.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitState(t, e, experiment.Finished)
}
