// Package service provides the frame loop that drives an effect chain.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/tejashwikalptaru/avscore/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/effect"
	"github.com/tejashwikalptaru/avscore/internal/expr"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

// statsWindow is the number of frames the rolling averages cover.
const statsWindow = 60

// Config holds the engine settings.
type Config struct {
	Width  int
	Height int

	// TargetFrameRate is the pacing target in frames per second
	TargetFrameRate float64

	// MaxActiveNodes is applied to chains installed without a limit of their own. 0 means no limit.
	MaxActiveNodes int

	// AudioSensitivity multiplies bass, mid and treb before they are bound
	AudioSensitivity float64

	// BestEffort drops whole frames when the loop falls behind by more than one frame budget
	BestEffort bool

	// ParamQueueSize bounds the parameter edit queue
	ParamQueueSize int

	// PerfInterval is the number of frames between PerfUpdated events
	PerfInterval int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Width:            640,
		Height:           480,
		TargetFrameRate:  60,
		AudioSensitivity: 1,
		ParamQueueSize:   256,
		PerfInterval:     statsWindow,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.TargetFrameRate <= 0 {
		c.TargetFrameRate = def.TargetFrameRate
	}
	if c.AudioSensitivity <= 0 {
		c.AudioSensitivity = def.AudioSensitivity
	}
	if c.ParamQueueSize <= 0 {
		c.ParamQueueSize = def.ParamQueueSize
	}
	if c.PerfInterval <= 0 {
		c.PerfInterval = def.PerfInterval
	}
	return c
}

// edit is a queued parameter or enable change.
type edit struct {
	nodeID  string
	key     string
	value   domain.ParamValue
	enabled *bool
}

// ExecutionEngine runs the frame loop: it pulls audio snapshots, binds the
// frame variables, applies the chain and hands each frame to the sink.
//
// The loop goroutine exclusively owns the framebuffer and the variable
// environment. Other goroutines interact through UpdateChain, Resize and the
// parameter edit queue, all of which take effect at a frame boundary.
// All exported methods are thread-safe.
type ExecutionEngine struct {
	// Dependencies (injected)
	logger *slog.Logger
	source ports.AudioFeatureSource
	sink   ports.FrameSink
	bus    ports.EventBus
	events *eventbus.Queue

	cfg   Config
	edits chan edit

	// State
	mu          sync.Mutex
	state       domain.EngineState
	chain       *effect.Chain
	nextChain   *effect.Chain
	nextWidth   int
	nextHeight  int
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
	stats       domain.PerfStats
	nodeFailure uint64
}

// NewExecutionEngine creates a stopped engine. The bus may be nil.
// Missing source or sink are reported by Start as a FatalEngineError.
func NewExecutionEngine(
	cfg Config,
	source ports.AudioFeatureSource,
	sink ports.FrameSink,
	bus ports.EventBus,
	logger *slog.Logger,
) *ExecutionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	done := make(chan struct{})
	close(done)

	e := &ExecutionEngine{
		logger: logger.With(slog.String("component", "engine")),
		source: source,
		sink:   sink,
		bus:    bus,
		events: eventbus.NewQueue(bus, 0),
		cfg:    cfg,
		edits:  make(chan edit, cfg.ParamQueueSize),
		state:  domain.StateStopped,
		done:   done,
	}
	e.installChain(effect.NewChain(cfg.Width, cfg.Height))

	e.logger.Debug("execution engine initialized",
		slog.Int("width", cfg.Width),
		slog.Int("height", cfg.Height),
		slog.Float64("target_fps", cfg.TargetFrameRate))
	return e
}

// Start begins the frame loop. It is a no-op while the engine is running.
// The loop stops when ctx is cancelled, on Stop, or on a fatal error.
func (e *ExecutionEngine) Start(ctx context.Context) error {
	e.mu.Lock()

	switch e.state {
	case domain.StateRunning, domain.StateStarting:
		e.mu.Unlock()
		return nil
	case domain.StateStopping:
		e.mu.Unlock()
		return domain.ErrEngineRunning
	}

	if e.source == nil || e.sink == nil {
		fatal := domain.NewFatalEngineError("start", "audio source and frame sink are required", nil)
		e.err = fatal
		e.mu.Unlock()
		e.logger.Error("engine cannot start", slog.Any("error", fatal))
		return fatal
	}

	e.state = domain.StateStarting

	width, height := e.cfg.Width, e.cfg.Height
	if e.nextWidth > 0 {
		width, height = e.nextWidth, e.nextHeight
		e.cfg.Width, e.cfg.Height = width, height
		e.nextWidth, e.nextHeight = 0, 0
	}
	fb, err := domain.NewFramebuffer(width, height)
	if err != nil {
		fatal := domain.NewFatalEngineError("start", "cannot allocate framebuffer", err)
		e.err = fatal
		e.state = domain.StateStopped
		e.mu.Unlock()
		return fatal
	}
	if next := e.nextChain; next != nil {
		e.swapChainLocked(next)
	}
	chain := e.chain
	if w, h := chain.Size(); w != width || h != height {
		if err := chain.Resize(width, height); err != nil {
			e.logger.Warn("chain resize reported errors", slog.Any("error", err))
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	rt := newRuntime(fb, chain)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.err = nil
	e.stats = domain.PerfStats{}
	e.nodeFailure = 0
	e.state = domain.StateRunning
	done := e.done
	e.mu.Unlock()

	e.logger.Info("engine started",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("nodes", chain.Len()))
	if e.bus != nil {
		e.bus.Publish(domain.NewEngineStartedEvent(width, height, e.cfg.TargetFrameRate))
	}

	go e.run(loopCtx, rt, done)
	return nil
}

// Stop cancels the loop and blocks until it exited. It returns the fatal
// error that stopped the loop, if any. Stop must not be called from inside
// FrameSink.Present or an event handler; use RequestStop there.
func (e *ExecutionEngine) Stop() error {
	e.RequestStop()
	return e.Wait()
}

// Close stops the loop and disposes the active and pending chains.
// The engine is left with an empty chain and can be started again.
func (e *ExecutionEngine) Close() error {
	err := e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if next := e.nextChain; next != nil && next != e.chain {
		_ = next.Close()
	}
	if cerr := e.chain.Close(); cerr != nil && err == nil {
		err = cerr
	}
	e.installChain(effect.NewChain(e.cfg.Width, e.cfg.Height))
	return err
}

// RequestStop cancels the loop without waiting for it.
// The frame in flight is either delivered completely or discarded.
func (e *ExecutionEngine) RequestStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == domain.StateRunning {
		e.state = domain.StateStopping
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// Wait blocks until the loop exited and returns its fatal error, if any.
func (e *ExecutionEngine) Wait() error {
	<-e.Done()
	return e.Err()
}

// Done returns a channel that is closed when the loop is not running.
func (e *ExecutionEngine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Err returns the fatal error of the last run, or nil.
func (e *ExecutionEngine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// State returns the lifecycle state.
func (e *ExecutionEngine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns a copy of the performance counters.
func (e *ExecutionEngine) Stats() domain.PerfStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Size returns the framebuffer size frames are produced at.
func (e *ExecutionEngine) Size() (width, height int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nextWidth > 0 {
		return e.nextWidth, e.nextHeight
	}
	return e.cfg.Width, e.cfg.Height
}

// Chain returns the chain that is active or about to become active.
func (e *ExecutionEngine) Chain() *effect.Chain {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.nextChain != nil {
		return e.nextChain
	}
	return e.chain
}

// UpdateChain replaces the active chain at the next frame boundary.
// The engine takes ownership of chain and closes the chain it replaces.
// The variable environment starts fresh with the new chain.
func (e *ExecutionEngine) UpdateChain(chain *effect.Chain) error {
	if chain == nil {
		return domain.NewValidationError("chain", "nil", "chain must not be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if prev := e.nextChain; prev != nil && prev != chain && prev != e.chain {
		_ = prev.Close()
	}
	if e.state == domain.StateStopped {
		e.nextChain = nil
		e.swapChainLocked(chain)
		return nil
	}
	e.nextChain = chain
	return nil
}

// Resize changes the framebuffer size at the next frame boundary.
// Every node of the chain is re-initialized once with the new size.
func (e *ExecutionEngine) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", domain.ErrInvalidDimensions, width, height)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextWidth, e.nextHeight = width, height
	return nil
}

// SubmitParamChange queues a parameter edit for the next frame boundary.
// It returns domain.ErrQueueFull instead of blocking when the queue is full.
func (e *ExecutionEngine) SubmitParamChange(nodeID, key string, value domain.ParamValue) error {
	return e.submit(edit{nodeID: nodeID, key: key, value: value})
}

// SubmitEnable queues an enable or disable for the next frame boundary.
func (e *ExecutionEngine) SubmitEnable(nodeID string, enabled bool) error {
	return e.submit(edit{nodeID: nodeID, enabled: &enabled})
}

func (e *ExecutionEngine) submit(ed edit) error {
	select {
	case e.edits <- ed:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// swapChainLocked makes chain the active chain. Must be called with lock held
// and only while no frame is in flight.
func (e *ExecutionEngine) swapChainLocked(chain *effect.Chain) {
	if old := e.chain; old != nil && old != chain {
		if err := old.Close(); err != nil {
			e.logger.Warn("closing replaced chain", slog.Any("error", err))
		}
	}
	e.installChain(chain)
}

func (e *ExecutionEngine) installChain(chain *effect.Chain) {
	if e.cfg.MaxActiveNodes > 0 {
		chain.SetMaxActiveNodes(e.cfg.MaxActiveNodes)
	}
	chain.SetFailureHandler(e.onNodeFailure)
	e.chain = chain
	e.nextChain = nil
}

// onNodeFailure runs on the loop goroutine during Apply.
func (e *ExecutionEngine) onNodeFailure(err *domain.NodeProcessingError) {
	e.mu.Lock()
	e.nodeFailure++
	e.mu.Unlock()
	if e.events.Wants(domain.EventNodeFailed) {
		e.events.Push(domain.NewNodeFailedEvent(err))
	}
}

// runtime is the state owned by the loop goroutine.
type runtime struct {
	fb    *domain.Framebuffer
	chain *effect.Chain
	env   *expr.Env
	vars  bindings

	snapshot *domain.AudioFeatureSnapshot
	prevBeat bool
	index    uint64

	startedAt time.Time
	lastStart time.Time
	next      time.Time

	work   rolling
	period rolling
}

func newRuntime(fb *domain.Framebuffer, chain *effect.Chain) *runtime {
	rt := &runtime{
		fb:       fb,
		chain:    chain,
		snapshot: domain.EmptySnapshot(0, 0),
	}
	rt.resetEnv()
	return rt
}

// resetEnv creates a fresh environment and rebinds every frame global.
func (rt *runtime) resetEnv() {
	rt.env = expr.NewEnv()
	rt.vars = newBindings(rt.env)
	rt.vars.bindArrays(rt.env, rt.snapshot)
}

// bindings caches the environment slots the loop writes every frame.
type bindings struct {
	time, frame, bpm, beat *float64
	bass, mid, treb, rms   *float64
	dt, w, h               *float64
	spec, wave             []*float64
}

func newBindings(env *expr.Env) bindings {
	return bindings{
		time:  env.Slot("time"),
		frame: env.Slot("frame"),
		bpm:   env.Slot("bpm"),
		beat:  env.Slot("beat"),
		bass:  env.Slot("bass"),
		mid:   env.Slot("mid"),
		treb:  env.Slot("treb"),
		rms:   env.Slot("rms"),
		dt:    env.Slot("dt"),
		w:     env.Slot("w"),
		h:     env.Slot("h"),
	}
}

// bindArrays allocates spec0.. and wave0.. slots for the snapshot's shape.
func (b *bindings) bindArrays(env *expr.Env, snap *domain.AudioFeatureSnapshot) {
	for i := len(snap.Spectrum); i < len(b.spec); i++ {
		env.Delete("spec" + strconv.Itoa(i))
	}
	for i := len(snap.Waveform); i < len(b.wave); i++ {
		env.Delete("wave" + strconv.Itoa(i))
	}
	b.spec = slots(env, "spec", len(snap.Spectrum))
	b.wave = slots(env, "wave", len(snap.Waveform))
}

func slots(env *expr.Env, prefix string, n int) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = env.Slot(prefix + strconv.Itoa(i))
	}
	return out
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// run is the frame loop goroutine.
func (e *ExecutionEngine) run(ctx context.Context, rt *runtime, done chan struct{}) {
	var fatal *domain.FatalEngineError

	defer func() {
		if r := recover(); r != nil {
			fatal = domain.NewFatalEngineError("loop", fmt.Sprintf("panic: %v", r), nil)
		}
		e.finish(rt, fatal, done)
	}()

	rt.startedAt = time.Now()
	rt.lastStart = rt.startedAt
	rt.next = rt.startedAt

	for {
		// Cancellation is checked at the top of every iteration
		if ctx.Err() != nil {
			return
		}
		if fatal = e.frame(ctx, rt); fatal != nil {
			return
		}
		if !e.pace(ctx, rt) {
			return
		}
	}
}

// frame produces and presents one frame. It returns a non-nil error only for
// fatal conditions.
func (e *ExecutionEngine) frame(ctx context.Context, rt *runtime) *domain.FatalEngineError {
	// 1. Frame start
	start := time.Now()
	delta := start.Sub(rt.lastStart)
	if rt.index == 0 {
		delta = 0
	}
	rt.lastStart = start

	if fatal := e.boundary(rt); fatal != nil {
		return fatal
	}

	// 2. Newest snapshot, or the previous one
	if snap := e.source.TryGetLatest(); snap != nil {
		if !snap.SameShape(rt.snapshot) {
			e.reshape(rt, snap)
		}
		rt.snapshot = snap
	}
	snap := rt.snapshot

	// 3. Frame globals
	bass, mid, treb := snap.Bands()
	sens := e.cfg.AudioSensitivity
	bass, mid, treb = bass*sens, mid*sens, treb*sens

	// 4. Beat edge
	edge := snap.Beat && !rt.prevBeat
	rt.prevBeat = snap.Beat

	elapsed := start.Sub(rt.startedAt)
	v := &rt.vars
	*v.time = elapsed.Seconds()
	*v.frame = float64(rt.index)
	*v.bpm = snap.BPM
	*v.beat = boolValue(edge)
	*v.bass, *v.mid, *v.treb = bass, mid, treb
	*v.rms = snap.RMS
	*v.dt = delta.Seconds()
	*v.w, *v.h = float64(rt.fb.Width), float64(rt.fb.Height)
	for i, slot := range v.spec {
		*slot = snap.Spectrum[i]
	}
	for i, slot := range v.wave {
		*slot = snap.Waveform[i]
	}

	if edge && e.events.Wants(domain.EventBeatDetected) {
		e.events.Push(domain.NewBeatDetectedEvent(rt.index, snap.BPM))
	}

	// 5. Apply
	rt.chain.Apply(rt.fb, &effect.Frame{
		Index:    rt.index,
		Time:     elapsed.Seconds(),
		Delta:    delta.Seconds(),
		Snapshot: snap,
		Env:      rt.env,
		Beat:     edge,
		Bass:     bass,
		Mid:      mid,
		Treb:     treb,
	})
	if err := rt.fb.Validate(); err != nil {
		return domain.NewFatalEngineError("apply", "framebuffer invariant violated", err)
	}

	// A stop requested during Apply discards the frame
	if ctx.Err() != nil {
		e.events.Flush()
		return nil
	}

	// 6. Present
	rt.work.add(time.Since(start))
	if rt.index > 0 {
		rt.period.add(delta)
	}
	info := domain.FrameInfo{
		Index: rt.index,
		Time:  elapsed,
		Delta: delta,
		FPS:   rt.period.rate(),
	}
	if err := e.sink.Present(rt.fb, info); err != nil {
		if errors.Is(err, domain.ErrResourceExhausted) {
			return domain.NewFatalEngineError("present", "frame sink exhausted", err)
		}
		if errors.Is(err, domain.ErrSinkClosed) {
			e.logger.Info("frame sink closed", slog.Uint64("frame", rt.index))
			e.RequestStop()
			return nil
		}
		e.logger.Warn("frame sink failed",
			slog.Uint64("frame", rt.index),
			slog.Any("error", err))
	}

	e.publishFrame(rt, info, time.Since(start))

	// 8. Next frame
	rt.index++
	return nil
}

// boundary applies the changes other goroutines queued since the last frame.
func (e *ExecutionEngine) boundary(rt *runtime) *domain.FatalEngineError {
	e.mu.Lock()
	next := e.nextChain
	width, height := e.nextWidth, e.nextHeight
	if next != nil {
		e.swapChainLocked(next)
	}
	if width > 0 {
		e.cfg.Width, e.cfg.Height = width, height
		e.nextWidth, e.nextHeight = 0, 0
	}
	e.mu.Unlock()

	if next != nil {
		rt.chain = next
		if w, h := next.Size(); w != rt.fb.Width || h != rt.fb.Height {
			if err := next.Resize(rt.fb.Width, rt.fb.Height); err != nil {
				e.logger.Warn("chain resize reported errors", slog.Any("error", err))
			}
		}
		rt.resetEnv()
		rt.prevBeat = false
		e.logger.Info("chain swapped", slog.Int("nodes", next.Len()), slog.Uint64("frame", rt.index))
		if e.events.Wants(domain.EventChainSwapped) {
			e.events.Push(domain.NewChainSwappedEvent(next.Len(), rt.index))
		}
	}

	if width > 0 && (width != rt.fb.Width || height != rt.fb.Height) {
		if err := rt.fb.Resize(width, height); err != nil {
			return domain.NewFatalEngineError("resize", "cannot resize framebuffer", err)
		}
		if err := rt.chain.Resize(width, height); err != nil {
			e.logger.Warn("chain resize reported errors", slog.Any("error", err))
		}
		e.logger.Info("engine resized", slog.Int("width", width), slog.Int("height", height))
		if e.events.Wants(domain.EventEngineResized) {
			e.events.Push(domain.NewEngineResizedEvent(width, height))
		}
	}

	e.drainEdits(rt)
	return nil
}

func (e *ExecutionEngine) drainEdits(rt *runtime) {
	for {
		select {
		case ed := <-e.edits:
			var err error
			if ed.enabled != nil {
				err = rt.chain.SetEnabled(ed.nodeID, *ed.enabled)
			} else {
				err = rt.chain.SetParam(ed.nodeID, ed.key, ed.value)
			}
			if err != nil {
				e.logger.Warn("parameter edit rejected",
					slog.String("node_id", ed.nodeID),
					slog.String("key", ed.key),
					slog.Any("error", err))
				if e.events.Wants(domain.EventParamRejected) {
					e.events.Push(domain.NewParamRejectedEvent(ed.nodeID, ed.key, err))
				}
			}
		default:
			return
		}
	}
}

// reshape treats a change of the snapshot array lengths as a resize notification.
func (e *ExecutionEngine) reshape(rt *runtime, snap *domain.AudioFeatureSnapshot) {
	initial := len(rt.snapshot.Spectrum) == 0 && len(rt.snapshot.Waveform) == 0 && rt.index == 0
	rt.vars.bindArrays(rt.env, snap)
	if initial {
		return
	}
	e.logger.Info("audio shape changed",
		slog.Int("spectrum", len(snap.Spectrum)),
		slog.Int("waveform", len(snap.Waveform)))
	if err := rt.chain.Resize(rt.fb.Width, rt.fb.Height); err != nil {
		e.logger.Warn("chain re-initialization reported errors", slog.Any("error", err))
	}
}

// publishFrame updates the counters and flushes the events raised during the frame.
func (e *ExecutionEngine) publishFrame(rt *runtime, info domain.FrameInfo, took time.Duration) {
	e.mu.Lock()
	e.stats.Frames++
	e.stats.LastFrameTime = took
	e.stats.AverageFrameTime = rt.work.mean()
	e.stats.FPS = info.FPS
	e.stats.NodeFailures = e.nodeFailure
	stats := e.stats
	e.mu.Unlock()

	if e.events.Wants(domain.EventFramePresented) {
		e.events.Push(domain.NewFramePresentedEvent(info))
	}
	if stats.Frames%uint64(e.cfg.PerfInterval) == 0 && e.events.Wants(domain.EventPerfUpdated) {
		e.events.Push(domain.NewPerfUpdatedEvent(stats))
	}
	e.events.Flush()
}

// pace waits out the rest of the frame budget. It returns false when the
// context was cancelled while waiting.
func (e *ExecutionEngine) pace(ctx context.Context, rt *runtime) bool {
	budget := time.Duration(float64(time.Second) / e.cfg.TargetFrameRate)
	now := time.Now()

	var wait time.Duration
	if e.cfg.BestEffort {
		rt.next = rt.next.Add(budget)
		if behind := now.Sub(rt.next); behind > budget {
			skipped := uint64(behind / budget)
			rt.next = rt.next.Add(time.Duration(skipped) * budget)
			e.mu.Lock()
			e.stats.Dropped += skipped
			e.mu.Unlock()
		}
		wait = rt.next.Sub(now)
	} else {
		wait = budget - now.Sub(rt.lastStart)
	}

	if wait <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// finish runs once when the loop exits.
func (e *ExecutionEngine) finish(rt *runtime, fatal *domain.FatalEngineError, done chan struct{}) {
	e.events.Flush()

	e.mu.Lock()
	e.state = domain.StateStopped
	if fatal != nil {
		e.err = fatal
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	frames := e.stats.Frames
	e.mu.Unlock()

	if fatal != nil {
		e.logger.Error("engine stopped on fatal error",
			slog.Uint64("frame", rt.index),
			slog.Any("error", fatal))
		if e.bus != nil {
			e.bus.Publish(domain.NewEngineFatalEvent(fatal, rt.index))
		}
	} else {
		e.logger.Info("engine stopped", slog.Uint64("frames", frames))
	}
	if e.bus != nil {
		var err error
		if fatal != nil {
			err = fatal
		}
		e.bus.Publish(domain.NewEngineStoppedEvent(frames, err))
	}
	close(done)
}

// rolling keeps the last statsWindow durations.
type rolling struct {
	samples [statsWindow]time.Duration
	n       int
	pos     int
	sum     time.Duration
}

func (r *rolling) add(d time.Duration) {
	if r.n == statsWindow {
		r.sum -= r.samples[r.pos]
	} else {
		r.n++
	}
	r.samples[r.pos] = d
	r.sum += d
	r.pos = (r.pos + 1) % statsWindow
}

func (r *rolling) mean() time.Duration {
	if r.n == 0 {
		return 0
	}
	return r.sum / time.Duration(r.n)
}

// rate returns the per-second rate of the mean duration.
func (r *rolling) rate() float64 {
	m := r.mean()
	if m <= 0 {
		return 0
	}
	return float64(time.Second) / float64(m)
}
