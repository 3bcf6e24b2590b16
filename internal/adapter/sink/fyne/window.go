package fyne

import (
	"fmt"
	"log/slog"

	fyneapp "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/tejashwikalptaru/avscore/internal/domain"
	"github.com/tejashwikalptaru/avscore/internal/ports"
)

// Window hosts a Preview with a status line fed by engine events.
type Window struct {
	logger  *slog.Logger
	window  fyneapp.Window
	preview *Preview
	status  *widget.Label
	bus     ports.EventBus
	subs    []domain.SubscriptionID
}

// NewWindow creates the preview window. Closing it closes the preview,
// which makes the engine stop at the next frame.
func NewWindow(app fyneapp.App, title string, width, height int, bus ports.EventBus, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Window{
		logger:  logger.With(slog.String("component", "preview")),
		window:  app.NewWindow(title),
		preview: NewPreview(),
		status:  widget.NewLabel("waiting for frames"),
		bus:     bus,
	}

	w.window.SetContent(container.NewBorder(nil, w.status, nil, nil, w.preview))
	w.window.Resize(fyneapp.NewSize(float32(width), float32(height)))
	w.window.SetOnClosed(func() {
		_ = w.preview.Close()
		w.unsubscribe()
	})

	if bus != nil {
		w.subs = append(w.subs,
			bus.Subscribe(domain.EventPerfUpdated, w.onPerf),
			bus.Subscribe(domain.EventEngineFatal, w.onFatal),
			bus.Subscribe(domain.EventChainSwapped, w.onSwap),
		)
	}
	return w
}

// Preview returns the sink to hand to the engine.
func (w *Window) Preview() *Preview {
	return w.preview
}

// Show displays the window.
func (w *Window) Show() {
	w.window.Show()
}

// Close closes the window.
func (w *Window) Close() {
	w.window.Close()
}

// Status returns the current status line text.
func (w *Window) Status() string {
	return w.status.Text
}

func (w *Window) onPerf(event domain.Event) {
	stats := event.(domain.PerfUpdatedEvent).Stats
	text := fmt.Sprintf("%.1f fps | %s/frame | %d frames | %d dropped | %d node failures",
		stats.FPS, stats.AverageFrameTime, stats.Frames, stats.Dropped, stats.NodeFailures)
	fyneapp.Do(func() { w.status.SetText(text) })
}

func (w *Window) onFatal(event domain.Event) {
	fatal := event.(domain.EngineFatalEvent)
	w.logger.Error("engine stopped", slog.Any("error", fatal.Err))
	text := "stopped: " + fatal.Err.Error()
	fyneapp.Do(func() { w.status.SetText(text) })
}

func (w *Window) onSwap(event domain.Event) {
	swapped := event.(domain.ChainSwappedEvent)
	text := fmt.Sprintf("chain loaded: %d nodes", swapped.NodeCount)
	fyneapp.Do(func() { w.status.SetText(text) })
}

func (w *Window) unsubscribe() {
	if w.bus == nil {
		return
	}
	for _, id := range w.subs {
		w.bus.Unsubscribe(id)
	}
	w.subs = nil
}
