// Package experiment orchestrates a measurement campaign: it validates the
// collaborator combination, registers datasets, and walks the selected pixels
// through a worker goroutine while the controller polls progress lock-free.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cohesivm/internal/database"
	"cohesivm/internal/datastream"
	"cohesivm/internal/device"
	"cohesivm/internal/iface"
	"cohesivm/internal/logging"
	"cohesivm/internal/measure"
	"cohesivm/internal/metadata"
)

// ErrState marks an action that is illegal in the current lifecycle state.
var ErrState = errors.New("state error")

const (
	defaultSettleDelay  = 500 * time.Millisecond
	defaultAbortTimeout = 5 * time.Second
)

// Params is the construction input for an Experiment.
type Params struct {
	Database    *database.Database
	Device      device.Device
	Measurement measure.Measurement
	Interface   iface.Interface
	SampleID    string

	// Pixels selects which interface pixels to measure, in order. Empty
	// means all pixels of the interface.
	Pixels []string
	// Relay receives datapoints during runs and previews. Nil means the
	// discarding Null relay.
	Relay datastream.Relay
	// DCMI seeds the descriptive metadata fields, usually from config.
	DCMI metadata.DCMI
	// SettleDelay is the wait between routing a pixel and measuring it,
	// so contact bounce has died down. Zero means the 500 ms default;
	// negative disables the wait.
	SettleDelay time.Duration
	// AbortTimeout bounds how long Abort waits for the worker to exit.
	AbortTimeout time.Duration
	Logger       *slog.Logger
}

// Experiment is the orchestration state machine. Construction validates
// compatibility eagerly; all further errors surface from the action methods.
type Experiment struct {
	db          *database.Database
	dev         device.Device
	measurement measure.Measurement
	contact     iface.Interface
	sampleID    string
	pixels      []string
	relay       datastream.Relay
	dcmi        metadata.DCMI
	settleDelay time.Duration
	abortWait   time.Duration
	logger      *slog.Logger

	state      atomic.Int32
	pixelIndex atomic.Int32
	crashed    atomic.Bool

	mu          sync.Mutex // serializes control actions
	datasetPath string
	runID       string
	cancel      context.CancelFunc
	done        chan struct{}
}

// New validates the parameters and the collaborator compatibility. A failed
// check returns ErrCompatibility and no Experiment exists afterwards.
func New(p Params) (*Experiment, error) {
	if p.Database == nil || p.Device == nil || p.Measurement == nil || p.Interface == nil {
		return nil, fmt.Errorf("%w: database, device, measurement and interface are required", ErrCompatibility)
	}
	if p.SampleID == "" {
		return nil, fmt.Errorf("%w: sample id must not be empty", ErrCompatibility)
	}
	pixels := p.Pixels
	if len(pixels) == 0 {
		pixels = p.Interface.Pixels()
	}
	if err := checkCompatibility(p.Measurement, p.Device, p.Interface, pixels); err != nil {
		return nil, err
	}

	relay := p.Relay
	if relay == nil {
		relay = datastream.Null{}
	}
	settle := p.SettleDelay
	switch {
	case settle == 0:
		settle = defaultSettleDelay
	case settle < 0:
		settle = 0
	}
	abortWait := p.AbortTimeout
	if abortWait <= 0 {
		abortWait = defaultAbortTimeout
	}

	e := &Experiment{
		db:          p.Database,
		dev:         p.Device,
		measurement: p.Measurement,
		contact:     p.Interface,
		sampleID:    p.SampleID,
		pixels:      append([]string(nil), pixels...),
		relay:       relay,
		dcmi:        p.DCMI,
		settleDelay: settle,
		abortWait:   abortWait,
		logger:      logging.NewComponentLogger(p.Logger, "experiment"),
	}
	e.state.Store(int32(Initial))
	e.pixelIndex.Store(PixelNotStarted)
	return e, nil
}

// State returns the current lifecycle state. Lock-free.
func (e *Experiment) State() State { return State(e.state.Load()) }

// CurrentPixelIndex returns the index of the pixel in flight, or a sentinel
// (PixelNotStarted, PixelIdle). After a completed run it holds the pixel
// count. Lock-free.
func (e *Experiment) CurrentPixelIndex() int { return int(e.pixelIndex.Load()) }

// Crashed reports whether the last run ended through a worker failure rather
// than a completed loop or an abort request.
func (e *Experiment) Crashed() bool { return e.crashed.Load() }

// Pixels returns the selected pixel ids in measurement order.
func (e *Experiment) Pixels() []string { return append([]string(nil), e.pixels...) }

// DatasetPath returns the dataset registered by the last Setup, or "".
func (e *Experiment) DatasetPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.datasetPath
}

// RunID returns the correlation id of the current campaign, assigned at Setup.
func (e *Experiment) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}

// Setup registers a fresh dataset and arms the experiment. Legal from
// INITIAL, FINISHED and ABORTED; a repeated Setup never touches earlier
// datasets.
func (e *Experiment) Setup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch s := e.State(); s {
	case Initial, Finished, Aborted:
	default:
		return stateError("setup", s)
	}

	m, err := e.buildMetadata()
	if err != nil {
		return err
	}
	path, err := e.db.InitializeDataset(ctx, m)
	if err != nil {
		return err
	}

	e.datasetPath = path
	e.runID = uuid.NewString()
	e.crashed.Store(false)
	e.pixelIndex.Store(PixelNotStarted)
	e.state.Store(int32(Ready))
	e.logger.Info("experiment armed",
		logging.String("run_id", e.runID),
		logging.String("dataset", path),
		logging.String("sample_id", e.sampleID),
		logging.Int("pixels", len(e.pixels)),
	)
	return nil
}

// Start spawns the worker and returns immediately. Legal from READY. The
// worker inherits ctx, so cancelling it has the same effect as Abort on the
// in-flight measurement.
func (e *Experiment) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s := e.State(); s != Ready {
		return stateError("start", s)
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.state.Store(int32(Running))
	e.logger.Info("run started", logging.String("run_id", e.runID))
	go e.runLoop(runCtx, cancel, e.datasetPath, e.done)
	return nil
}

// Abort stops the campaign. From READY it rolls back the empty dataset and
// returns to INITIAL; from RUNNING it cancels the worker and the state
// becomes ABORTED unconditionally. Pixels already persisted stay in the
// store.
func (e *Experiment) Abort(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch s := e.State(); s {
	case Ready:
		if err := e.db.DeleteDataset(ctx, e.datasetPath); err != nil {
			return err
		}
		e.logger.Info("setup rolled back",
			logging.String("run_id", e.runID),
			logging.String("dataset", e.datasetPath),
		)
		e.datasetPath = ""
		e.pixelIndex.Store(PixelNotStarted)
		e.state.Store(int32(Initial))
		return nil
	case Running:
		if !e.state.CompareAndSwap(int32(Running), int32(Aborted)) {
			return stateError("abort", e.State())
		}
		e.cancel()
		select {
		case <-e.done:
		case <-time.After(e.abortWait):
			e.logger.Warn("worker did not exit before abort timeout",
				logging.String("run_id", e.runID),
				logging.Duration("timeout", e.abortWait),
			)
		}
		e.logger.Info("run aborted", logging.String("run_id", e.runID))
		return nil
	default:
		return stateError("abort", s)
	}
}

// Preview measures a single pixel without persisting anything; datapoints go
// to the relay only. Legal from every state except RUNNING. The state is
// RUNNING while the preview executes and returns to READY if the experiment
// was armed, otherwise to INITIAL.
func (e *Experiment) Preview(ctx context.Context, pixel string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prior := e.State()
	if prior == Running {
		return stateError("preview", prior)
	}
	if !containsPixel(e.contact.Pixels(), pixel) {
		return fmt.Errorf("%w: pixel %q is not available on interface %s",
			ErrCompatibility, pixel, e.contact.Name())
	}

	restore := Initial
	if prior == Ready {
		restore = Ready
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.pixelIndex.Store(PixelIdle)
	e.state.Store(int32(Running))
	e.logger.Info("preview started", logging.String("pixel", pixel))
	go e.previewLoop(runCtx, cancel, pixel, restore, e.done)
	return nil
}

// Wait blocks until the current worker (run or preview) has exited.
func (e *Experiment) Wait(ctx context.Context) error {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Experiment) runLoop(ctx context.Context, cancel context.CancelFunc, path string, done chan struct{}) {
	defer close(done)
	defer cancel()

	var err error
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			e.logger.Error("worker panic", logging.Any("panic", r))
		}
		e.reconcile(err, panicked)
	}()

	for i, pixel := range e.pixels {
		if err = e.contact.SelectPixel(ctx, pixel); err != nil {
			err = fmt.Errorf("select pixel %s: %w", pixel, err)
			return
		}
		if err = e.settle(ctx); err != nil {
			return
		}
		e.pixelIndex.Store(int32(i))
		e.logger.Debug("pixel in flight",
			logging.String("run_id", e.runID),
			logging.String("pixel", pixel),
			logging.Int("index", i),
		)

		var result measure.Result
		result, err = e.measurement.Run(ctx, e.dev, pixelRelay{relay: e.relay, pixel: pixel})
		if err != nil {
			err = fmt.Errorf("measure pixel %s: %w", pixel, err)
			return
		}
		if err = e.db.SaveData(ctx, result, path, pixel); err != nil {
			return
		}
		// Completion marker for progress observers: no values.
		e.relay.Publish(datastream.Datapoint{Pixel: pixel})
	}

	e.pixelIndex.Store(int32(len(e.pixels)))
	e.state.CompareAndSwap(int32(Running), int32(Finished))
	e.logger.Info("run finished", logging.String("run_id", e.runID))
}

func (e *Experiment) previewLoop(ctx context.Context, cancel context.CancelFunc, pixel string, restore State, done chan struct{}) {
	defer close(done)
	defer cancel()

	var err error
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("preview panic", logging.Any("panic", r))
		}
		if e.state.CompareAndSwap(int32(Running), int32(restore)) {
			e.pixelIndex.Store(PixelNotStarted)
		}
		if err != nil {
			e.logger.Warn("preview failed", logging.String("pixel", pixel), logging.Error(err))
		}
	}()

	if err = e.contact.SelectPixel(ctx, pixel); err != nil {
		return
	}
	if err = e.settle(ctx); err != nil {
		return
	}
	_, err = e.measurement.Run(ctx, e.dev, pixelRelay{relay: e.relay, pixel: pixel})
}

// reconcile maps a worker failure onto the state machine. The CAS can only
// succeed when no abort was issued, so its success distinguishes a crash
// (context still live) from cancellation.
func (e *Experiment) reconcile(err error, panicked bool) {
	if err == nil && !panicked {
		return
	}
	if e.state.CompareAndSwap(int32(Running), int32(Aborted)) {
		if panicked || !errors.Is(err, context.Canceled) {
			e.crashed.Store(true)
			e.logger.Error("worker crashed",
				logging.String("run_id", e.runID),
				logging.Error(err),
			)
		}
	}
}

func (e *Experiment) settle(ctx context.Context) error {
	if e.settleDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Experiment) buildMetadata() (*metadata.Metadata, error) {
	channels := e.dev.Channels()
	names := make([]string, len(channels))
	settings := make([]metadata.Settings, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name()
		settings[i] = ch.Settings()
	}

	layout := e.contact.Layout()
	shapes := e.contact.PixelDimensions()
	positions := make(map[string][2]float64, len(e.pixels))
	dims := make(map[string]string, len(e.pixels))
	for _, pixel := range e.pixels {
		positions[pixel] = layout[pixel]
		if shape, ok := shapes[pixel]; ok {
			dims[pixel] = shape.String()
		}
	}

	return metadata.New(metadata.Params{
		Measurement:      e.measurement.Name(),
		Settings:         e.measurement.Settings(),
		SampleID:         e.sampleID,
		Device:           e.dev.Name(),
		Channels:         names,
		ChannelSettings:  settings,
		Interface:        e.contact.Name(),
		SampleDimensions: e.contact.SampleDimensions().String(),
		PixelIDs:         e.pixels,
		PixelPositions:   positions,
		PixelDimensions:  dims,
		DCMI:             e.dcmi,
	})
}

// pixelRelay tags published datapoints with the pixel in flight.
type pixelRelay struct {
	relay datastream.Relay
	pixel string
}

func (r pixelRelay) Publish(point datastream.Datapoint) {
	point.Pixel = r.pixel
	r.relay.Publish(point)
}

func stateError(action string, state State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrState, action, state)
}
