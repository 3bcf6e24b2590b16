package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/avscore/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/avscore/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/effect"
	"github.com/tejashwikalptaru/avscore/internal/logger"
	"github.com/tejashwikalptaru/avscore/internal/ports"
	"github.com/tejashwikalptaru/avscore/internal/testutil"
)

// stubNode records what the engine hands to a node.
type stubNode struct {
	effect.Base

	inits   [][2]int
	closed  int
	process func(fb *domain.Framebuffer, frame *effect.Frame) error
}

func newStub(id string, process func(fb *domain.Framebuffer, frame *effect.Frame) error) *stubNode {
	return &stubNode{
		Base: effect.NewBase(id, "stub", "Stub", []domain.ParamSpec{{
			Key:     "gain",
			Kind:    domain.KindNumber,
			Min:     0,
			Max:     10,
			Default: domain.NumberParam(1),
		}}),
		process: process,
	}
}

func (p *stubNode) Initialize(width, height int) error {
	if err := p.Base.Initialize(width, height); err != nil {
		return err
	}
	p.inits = append(p.inits, [2]int{width, height})
	return nil
}

func (p *stubNode) Process(fb *domain.Framebuffer, frame *effect.Frame) error {
	if p.process != nil {
		return p.process(fb, frame)
	}
	return nil
}

func (p *stubNode) Close() error {
	p.closed++
	return nil
}

// Helper to create a fast engine
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 4
	cfg.Height = 4
	cfg.TargetFrameRate = 1000
	return cfg
}

func chainOf(t *testing.T, nodes ...effect.Node) *effect.Chain {
	t.Helper()
	chain := effect.NewChain(0, 0, effect.WithLogger(logger.NewTestLogger()))
	for _, node := range nodes {
		require.NoError(t, chain.AddNode(node))
	}
	return chain
}

// stopAt returns a sink that calls record for each frame and stops the engine after frame last.
func stopAt(engine **ExecutionEngine, last uint64, record func(fb *domain.Framebuffer, info domain.FrameInfo)) ports.FrameSink {
	return ports.FrameSinkFunc(func(fb *domain.Framebuffer, info domain.FrameInfo) error {
		if record != nil {
			record(fb, info)
		}
		if info.Index == last {
			(*engine).RequestStop()
		}
		return nil
	})
}

func runUntilStopped(t *testing.T, engine *ExecutionEngine) {
	t.Helper()
	require.NoError(t, engine.Start(context.Background()))
	select {
	case <-engine.Done():
	case <-time.After(5 * time.Second):
		engine.RequestStop()
		t.Fatal("engine did not stop")
	}
}

func TestExecutionEngine_PresentsFramesInOrder(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	var engine *ExecutionEngine
	var indices []uint64
	sink := stopAt(&engine, 9, func(_ *domain.Framebuffer, info domain.FrameInfo) {
		indices = append(indices, info.Index)
	})
	engine = NewExecutionEngine(testConfig(), mock.NewSource(), sink, nil, logger.NewTestLogger())

	runUntilStopped(t, engine)

	assert.NoError(t, engine.Wait())
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, indices)
	assert.Equal(t, domain.StateStopped, engine.State())
	assert.Equal(t, uint64(10), engine.Stats().Frames)
}

func TestExecutionEngine_BeatRisingEdgeFiresOnce(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	source := mock.NewSource()
	source.PushBeats(8, 8, false, true, true, true, false)

	var beats []bool
	var beatVars []float64
	stub := newStub("stub", func(_ *domain.Framebuffer, frame *effect.Frame) error {
		beats = append(beats, frame.Beat)
		beatVars = append(beatVars, frame.Env.Get("beat"))
		return nil
	})

	bus := eventbus.NewSyncEventBus(logger.NewTestLogger())
	var events []domain.BeatDetectedEvent
	bus.Subscribe(domain.EventBeatDetected, func(e domain.Event) {
		events = append(events, e.(domain.BeatDetectedEvent))
	})

	var engine *ExecutionEngine
	engine = NewExecutionEngine(testConfig(), source, stopAt(&engine, 5, nil), bus, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, stub)))

	runUntilStopped(t, engine)

	assert.Equal(t, []bool{false, true, false, false, false, false}, beats)
	assert.Equal(t, []float64{0, 1, 0, 0, 0, 0}, beatVars)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].FrameIndex)
}

func TestExecutionEngine_FailingNodeNeverStopsTheLoop(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	const frames = 20
	failing := newStub("broken", func(*domain.Framebuffer, *effect.Frame) error {
		return errors.New("always fails")
	})
	panicking := newStub("panics", func(*domain.Framebuffer, *effect.Frame) error {
		panic("boom")
	})
	working := newStub("working", func(fb *domain.Framebuffer, _ *effect.Frame) error {
		for i := 0; i < len(fb.Pix); i += 4 {
			fb.Pix[i]++
		}
		return nil
	})

	log, rec := logger.NewRecorder()
	chain := effect.NewChain(0, 0, effect.WithLogger(log))
	require.NoError(t, chain.AddNode(failing))
	require.NoError(t, chain.AddNode(working))
	require.NoError(t, chain.AddNode(panicking))

	bus := eventbus.NewSyncEventBus(nil)
	failed := 0
	bus.Subscribe(domain.EventNodeFailed, func(domain.Event) { failed++ })

	var engine *ExecutionEngine
	var reds []uint8
	sink := stopAt(&engine, frames-1, func(fb *domain.Framebuffer, _ domain.FrameInfo) {
		reds = append(reds, fb.Pix[0])
	})
	engine = NewExecutionEngine(testConfig(), mock.NewSource(), sink, bus, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chain))

	runUntilStopped(t, engine)

	require.NoError(t, engine.Err())
	require.Len(t, reds, frames)
	for i, red := range reds {
		assert.Equal(t, uint8(i+1), red, "working node applied on frame %d", i)
	}
	assert.Equal(t, 2*frames, rec.Count("node failed"))
	assert.Equal(t, 2*frames, failed)
	assert.Equal(t, uint64(2*frames), engine.Stats().NodeFailures)
}

func TestExecutionEngine_EventsPublishedAfterPresent(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	source := mock.NewSource()
	source.PushBeats(0, 0, false, true)

	var order []string
	bus := eventbus.NewSyncEventBus(nil)
	bus.Subscribe(domain.EventFramePresented, func(e domain.Event) {
		order = append(order, fmt.Sprintf("presented %d", e.(domain.FramePresentedEvent).Info.Index))
	})
	bus.Subscribe(domain.EventBeatDetected, func(e domain.Event) {
		order = append(order, fmt.Sprintf("beat %d", e.(domain.BeatDetectedEvent).FrameIndex))
	})

	var engine *ExecutionEngine
	sink := stopAt(&engine, 2, func(_ *domain.Framebuffer, info domain.FrameInfo) {
		order = append(order, fmt.Sprintf("present %d", info.Index))
	})
	engine = NewExecutionEngine(testConfig(), source, sink, bus, logger.NewTestLogger())

	runUntilStopped(t, engine)

	assert.Equal(t, []string{
		"present 0", "presented 0",
		"present 1", "beat 1", "presented 1",
		"present 2", "presented 2",
	}, order)
}

func TestExecutionEngine_ResizeAtFrameBoundary(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	stub := newStub("stub", nil)
	bus := eventbus.NewSyncEventBus(nil)
	resized := 0
	bus.Subscribe(domain.EventEngineResized, func(domain.Event) { resized++ })

	var engine *ExecutionEngine
	var sizes [][2]int
	sink := stopAt(&engine, 5, func(fb *domain.Framebuffer, info domain.FrameInfo) {
		sizes = append(sizes, [2]int{fb.Width, fb.Height})
		if info.Index == 2 {
			assert.NoError(t, engine.Resize(8, 6))
		}
	})
	engine = NewExecutionEngine(testConfig(), mock.NewSource(), sink, bus, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, stub)))

	runUntilStopped(t, engine)

	assert.Equal(t, [][2]int{{4, 4}, {4, 4}, {4, 4}, {8, 6}, {8, 6}, {8, 6}}, sizes)
	assert.Equal(t, [][2]int{{4, 4}, {8, 6}}, stub.inits, "one Initialize per resize")
	assert.Equal(t, 1, resized)

	w, h := engine.Size()
	assert.Equal(t, [2]int{8, 6}, [2]int{w, h})
	assert.ErrorIs(t, engine.Resize(0, 3), domain.ErrInvalidDimensions)
}

func TestExecutionEngine_SnapshotShapeChangeReinitializes(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	wide := domain.EmptySnapshot(8, 8)
	wide.Spectrum[2] = 0.5
	wide.Waveform[7] = -0.25
	source := mock.NewSource(domain.EmptySnapshot(4, 4), wide)

	var spec2, wave7 []float64
	var hasSpec7 []bool
	stub := newStub("stub", func(_ *domain.Framebuffer, frame *effect.Frame) error {
		spec2 = append(spec2, frame.Env.Get("spec2"))
		wave7 = append(wave7, frame.Env.Get("wave7"))
		hasSpec7 = append(hasSpec7, frame.Env.Has("spec7"))
		return nil
	})

	var engine *ExecutionEngine
	engine = NewExecutionEngine(testConfig(), source, stopAt(&engine, 2, nil), nil, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, stub)))

	runUntilStopped(t, engine)

	assert.Equal(t, [][2]int{{4, 4}, {4, 4}}, stub.inits)
	assert.Equal(t, []bool{false, true, true}, hasSpec7)
	assert.Equal(t, []float64{0, 0.5, 0.5}, spec2)
	assert.Equal(t, []float64{0, -0.25, -0.25}, wave7)
}

func TestExecutionEngine_SensitivityScalesBands(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	snap := domain.EmptySnapshot(512, 0)
	for i := range snap.Spectrum {
		snap.Spectrum[i] = 0.25
	}
	var bass []float64
	stub := newStub("stub", func(_ *domain.Framebuffer, frame *effect.Frame) error {
		bass = append(bass, frame.Env.Get("bass"), frame.Bass)
		return nil
	})

	cfg := testConfig()
	cfg.AudioSensitivity = 2
	var engine *ExecutionEngine
	engine = NewExecutionEngine(cfg, mock.NewSource(snap), stopAt(&engine, 0, nil), nil, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, stub)))

	runUntilStopped(t, engine)

	// band mean 0.25 scaled by 2
	require.Len(t, bass, 2)
	assert.InDelta(t, 0.5, bass[0], 1e-9)
	assert.InDelta(t, 0.5, bass[1], 1e-9)
}

func TestExecutionEngine_FatalSinkError(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	bus := eventbus.NewSyncEventBus(nil)
	var fatalEvents []domain.EngineFatalEvent
	var stopped []domain.EngineStoppedEvent
	bus.Subscribe(domain.EventEngineFatal, func(e domain.Event) {
		fatalEvents = append(fatalEvents, e.(domain.EngineFatalEvent))
	})
	bus.Subscribe(domain.EventEngineStopped, func(e domain.Event) {
		stopped = append(stopped, e.(domain.EngineStoppedEvent))
	})

	calls := 0
	sink := ports.FrameSinkFunc(func(_ *domain.Framebuffer, info domain.FrameInfo) error {
		calls++
		switch info.Index {
		case 1:
			return errors.New("transient")
		case 3:
			return fmt.Errorf("upload texture: %w", domain.ErrResourceExhausted)
		}
		return nil
	})
	engine := NewExecutionEngine(testConfig(), mock.NewSource(), sink, bus, logger.NewTestLogger())

	runUntilStopped(t, engine)

	err := engine.Wait()
	var fatal *domain.FatalEngineError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "present", fatal.Op)
	assert.ErrorIs(t, err, domain.ErrResourceExhausted)
	assert.Equal(t, 4, calls, "a transient sink error does not stop the loop")
	assert.Equal(t, uint64(3), engine.Stats().Frames)

	require.Len(t, fatalEvents, 1)
	assert.Equal(t, uint64(3), fatalEvents[0].FrameIndex)
	require.Len(t, stopped, 1)
	assert.Error(t, stopped[0].Err)
}

func TestExecutionEngine_StartRequiresCollaborators(t *testing.T) {
	engine := NewExecutionEngine(testConfig(), mock.NewSource(), nil, nil, logger.NewTestLogger())

	err := engine.Start(context.Background())
	var fatal *domain.FatalEngineError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "start", fatal.Op)
	assert.Equal(t, domain.StateStopped, engine.State())
	assert.ErrorAs(t, engine.Err(), &fatal)

	engine = NewExecutionEngine(testConfig(), nil, ports.FrameSinkFunc(func(*domain.Framebuffer, domain.FrameInfo) error { return nil }), nil, nil)
	assert.Error(t, engine.Start(context.Background()))
}

func TestExecutionEngine_StartIsIdempotent(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	cfg := testConfig()
	cfg.TargetFrameRate = 60
	sink := ports.FrameSinkFunc(func(*domain.Framebuffer, domain.FrameInfo) error { return nil })
	engine := NewExecutionEngine(cfg, mock.NewSource(), sink, nil, logger.NewTestLogger())

	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.Start(context.Background()))
	assert.Equal(t, domain.StateRunning, engine.State())

	assert.NoError(t, engine.Stop())
	assert.NoError(t, engine.Stop())
	assert.Equal(t, domain.StateStopped, engine.State())

	// Restart after a stop
	require.NoError(t, engine.Start(context.Background()))
	assert.NoError(t, engine.Stop())
}

func TestExecutionEngine_ContextCancellation(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	presented := make(chan struct{}, 1)
	sink := ports.FrameSinkFunc(func(*domain.Framebuffer, domain.FrameInfo) error {
		select {
		case presented <- struct{}{}:
		default:
		}
		return nil
	})
	engine := NewExecutionEngine(testConfig(), mock.NewSource(), sink, nil, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, engine.Start(ctx))
	<-presented
	cancel()

	assert.NoError(t, engine.Wait())
	assert.Equal(t, domain.StateStopped, engine.State())
}

func TestExecutionEngine_ParamQueue(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	var gains []float64
	var stub *stubNode
	stub = newStub("stub", func(_ *domain.Framebuffer, _ *effect.Frame) error {
		gains = append(gains, stub.Number("gain"))
		return nil
	})

	bus := eventbus.NewSyncEventBus(nil)
	var rejected []domain.ParamRejectedEvent
	bus.Subscribe(domain.EventParamRejected, func(e domain.Event) {
		rejected = append(rejected, e.(domain.ParamRejectedEvent))
	})

	cfg := testConfig()
	cfg.ParamQueueSize = 2
	var engine *ExecutionEngine
	sink := stopAt(&engine, 2, func(_ *domain.Framebuffer, info domain.FrameInfo) {
		if info.Index == 0 {
			assert.NoError(t, engine.SubmitEnable("stub", false))
		}
	})
	engine = NewExecutionEngine(cfg, mock.NewSource(), sink, bus, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, stub)))

	require.NoError(t, engine.SubmitParamChange("stub", "gain", domain.NumberParam(5)))
	require.NoError(t, engine.SubmitParamChange("ghost", "gain", domain.NumberParam(5)))
	assert.ErrorIs(t, engine.SubmitParamChange("stub", "gain", domain.NumberParam(6)), domain.ErrQueueFull)

	runUntilStopped(t, engine)

	assert.Equal(t, []float64{5}, gains, "edits land before frame 0 and the disable before frame 1")
	require.Len(t, rejected, 1)
	assert.Equal(t, "ghost", rejected[0].NodeID)
	assert.ErrorIs(t, rejected[0].Err, domain.ErrNodeNotFound)
}

func TestExecutionEngine_UpdateChainSwapsAtFrameBoundary(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	var firstFrames, secondFrames []uint64
	first := newStub("first", func(_ *domain.Framebuffer, frame *effect.Frame) error {
		firstFrames = append(firstFrames, frame.Index)
		frame.Env.Set("persist", 1)
		return nil
	})
	var sawPersist []bool
	second := newStub("second", func(_ *domain.Framebuffer, frame *effect.Frame) error {
		secondFrames = append(secondFrames, frame.Index)
		sawPersist = append(sawPersist, frame.Env.Has("persist"))
		return nil
	})
	replacement := chainOf(t, second)

	bus := eventbus.NewSyncEventBus(nil)
	var swaps []domain.ChainSwappedEvent
	bus.Subscribe(domain.EventChainSwapped, func(e domain.Event) {
		swaps = append(swaps, e.(domain.ChainSwappedEvent))
	})

	var engine *ExecutionEngine
	sink := stopAt(&engine, 4, func(_ *domain.Framebuffer, info domain.FrameInfo) {
		if info.Index == 1 {
			assert.NoError(t, engine.UpdateChain(replacement))
		}
	})
	engine = NewExecutionEngine(testConfig(), mock.NewSource(), sink, bus, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, first)))

	runUntilStopped(t, engine)

	assert.Equal(t, []uint64{0, 1}, firstFrames)
	assert.Equal(t, []uint64{2, 3, 4}, secondFrames)
	assert.Equal(t, []bool{false, false, false}, sawPersist, "the environment starts fresh")
	assert.Equal(t, 1, first.closed, "the replaced chain is closed")
	assert.Equal(t, [][2]int{{4, 4}}, second.inits)
	require.Len(t, swaps, 1)
	assert.Equal(t, uint64(2), swaps[0].FrameIndex)
	assert.Same(t, replacement, engine.Chain())

	assert.Error(t, engine.UpdateChain(nil))
}

func TestExecutionEngine_BestEffortDropsFrames(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	slow := newStub("slow", func(*domain.Framebuffer, *effect.Frame) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})

	cfg := testConfig()
	cfg.BestEffort = true
	var engine *ExecutionEngine
	var indices []uint64
	sink := stopAt(&engine, 2, func(_ *domain.Framebuffer, info domain.FrameInfo) {
		indices = append(indices, info.Index)
	})
	engine = NewExecutionEngine(cfg, mock.NewSource(), sink, nil, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, slow)))

	runUntilStopped(t, engine)

	assert.Equal(t, []uint64{0, 1, 2}, indices, "delivered frames keep consecutive indices")
	assert.Positive(t, engine.Stats().Dropped)
}

func TestExecutionEngine_Stats(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	var engine *ExecutionEngine
	var fps []float64
	sink := stopAt(&engine, 4, func(_ *domain.Framebuffer, info domain.FrameInfo) {
		fps = append(fps, info.FPS)
	})

	cfg := testConfig()
	cfg.PerfInterval = 5
	bus := eventbus.NewSyncEventBus(nil)
	var perf []domain.PerfStats
	bus.Subscribe(domain.EventPerfUpdated, func(e domain.Event) {
		perf = append(perf, e.(domain.PerfUpdatedEvent).Stats)
	})

	engine = NewExecutionEngine(cfg, mock.NewSource(), sink, bus, logger.NewTestLogger())
	runUntilStopped(t, engine)

	stats := engine.Stats()
	assert.Equal(t, uint64(5), stats.Frames)
	assert.Positive(t, stats.FPS)
	assert.LessOrEqual(t, stats.AverageFrameTime, time.Second)
	assert.Zero(t, fps[0], "no rate before the second frame")
	assert.Positive(t, fps[4])
	require.Len(t, perf, 1)
	assert.Equal(t, uint64(5), perf[0].Frames)
}

func TestRolling(t *testing.T) {
	var r rolling
	assert.Zero(t, r.mean())
	assert.Zero(t, r.rate())

	for i := 0; i < statsWindow; i++ {
		r.add(10 * time.Millisecond)
	}
	assert.Equal(t, 10*time.Millisecond, r.mean())
	assert.InDelta(t, 100.0, r.rate(), 1e-9)

	for i := 0; i < statsWindow; i++ {
		r.add(20 * time.Millisecond)
	}
	assert.Equal(t, 20*time.Millisecond, r.mean(), "old samples leave the window")
}

func TestExecutionEngine_ClosedSinkStopsGracefully(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	presented := 0
	sink := ports.FrameSinkFunc(func(_ *domain.Framebuffer, info domain.FrameInfo) error {
		if info.Index == 3 {
			return domain.ErrSinkClosed
		}
		presented++
		return nil
	})
	engine := NewExecutionEngine(testConfig(), mock.NewSource(), sink, nil, logger.NewTestLogger())

	runUntilStopped(t, engine)

	assert.NoError(t, engine.Err())
	assert.Equal(t, 3, presented)
	assert.Equal(t, domain.StateStopped, engine.State())
}

func TestExecutionEngine_CloseDisposesChains(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	active := newStub("active", nil)
	pending := newStub("pending", nil)

	var engine *ExecutionEngine
	sink := stopAt(&engine, 1, nil)
	engine = NewExecutionEngine(testConfig(), mock.NewSource(), sink, nil, logger.NewTestLogger())
	require.NoError(t, engine.UpdateChain(chainOf(t, active)))
	runUntilStopped(t, engine)

	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.UpdateChain(chainOf(t, pending)))
	require.NoError(t, engine.Close())

	assert.Equal(t, domain.StateStopped, engine.State())
	assert.Equal(t, 1, active.closed)
	assert.Equal(t, 1, pending.closed)
	assert.Equal(t, 0, engine.Chain().Len())
}
