// Package mapview defines the map surface the session draws on and Canvas, an
// in-process surface that records layer state and an event log.
package mapview

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/workout-journal/internal/models"
)

// DefaultZoom is the zoom level used when centering on a position or workout.
const DefaultZoom = 13

// Handle identifies a layer added to a surface. The zero Handle is never issued.
type Handle uint64

// Surface is the map the session and replay scheduler draw on.
type Surface interface {
	SetView(center models.Coords, zoom int)
	AddMarker(at models.Coords, popup string) Handle
	RemoveLayer(h Handle)
	DrawPolyline(path []models.Coords) Handle
	PanTo(at models.Coords)
}

type LayerKind string

const (
	LayerMarker   LayerKind = "marker"
	LayerPolyline LayerKind = "polyline"
)

// Layer is a live marker or polyline.
type Layer struct {
	Handle Handle          `json:"handle"`
	Kind   LayerKind       `json:"kind"`
	Path   []models.Coords `json:"path"`
	Popup  string          `json:"popup,omitempty"`
}

type EventKind string

const (
	EventSetView      EventKind = "set_view"
	EventAddMarker    EventKind = "add_marker"
	EventRemoveLayer  EventKind = "remove_layer"
	EventDrawPolyline EventKind = "draw_polyline"
	EventPanTo        EventKind = "pan_to"
)

// Event is one call made against the canvas.
type Event struct {
	Seq    uint64          `json:"seq"`
	Kind   EventKind       `json:"kind"`
	At     time.Time       `json:"at"`
	Handle Handle          `json:"handle,omitempty"`
	Path   []models.Coords `json:"path,omitempty"`
	Zoom   int             `json:"zoom,omitempty"`
	Popup  string          `json:"popup,omitempty"`
}

// View is the current map viewport. Initialized stays false until the first SetView.
type View struct {
	Center      models.Coords `json:"center"`
	Zoom        int           `json:"zoom"`
	Initialized bool          `json:"initialized"`
}

// Snapshot is the canvas state served at GET /map.
type Snapshot struct {
	View   View    `json:"view"`
	Layers []Layer `json:"layers"`
	Events []Event `json:"events"`
}

type Option func(*Canvas)

// WithEventLimit keeps at most n events in the log (default 256).
func WithEventLimit(n int) Option {
	return func(c *Canvas) {
		if n > 0 {
			c.maxEvents = n
		}
	}
}

// WithEventHook calls fn after every event, outside the canvas lock.
func WithEventHook(fn func(Event)) Option {
	return func(c *Canvas) { c.onEvent = fn }
}

// Canvas is a concurrency-safe Surface kept in memory.
type Canvas struct {
	mu        sync.Mutex
	logger    *zap.Logger
	seq       uint64
	next      Handle
	view      View
	layers    map[Handle]Layer
	order     []Handle
	events    []Event
	maxEvents int
	onEvent   func(Event)
}

func NewCanvas(logger *zap.Logger, opts ...Option) *Canvas {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Canvas{
		logger:    logger,
		layers:    make(map[Handle]Layer),
		maxEvents: 256,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Canvas) SetView(center models.Coords, zoom int) {
	c.mu.Lock()
	c.view = View{Center: center, Zoom: zoom, Initialized: true}
	ev := c.recordLocked(Event{Kind: EventSetView, Path: []models.Coords{center}, Zoom: zoom})
	c.mu.Unlock()

	c.logger.Debug("map view set", zap.String("center", center.String()), zap.Int("zoom", zoom))
	c.emit(ev)
}

func (c *Canvas) AddMarker(at models.Coords, popup string) Handle {
	c.mu.Lock()
	h := c.addLayerLocked(LayerMarker, []models.Coords{at}, popup)
	ev := c.recordLocked(Event{Kind: EventAddMarker, Handle: h, Path: []models.Coords{at}, Popup: popup})
	c.mu.Unlock()

	c.logger.Debug("marker added", zap.Uint64("handle", uint64(h)), zap.String("at", at.String()))
	c.emit(ev)
	return h
}

func (c *Canvas) DrawPolyline(path []models.Coords) Handle {
	cp := append([]models.Coords(nil), path...)

	c.mu.Lock()
	h := c.addLayerLocked(LayerPolyline, cp, "")
	ev := c.recordLocked(Event{Kind: EventDrawPolyline, Handle: h, Path: cp})
	c.mu.Unlock()

	c.logger.Debug("polyline drawn", zap.Uint64("handle", uint64(h)), zap.Int("points", len(cp)))
	c.emit(ev)
	return h
}

// RemoveLayer removes h. Unknown or already-removed handles are ignored.
func (c *Canvas) RemoveLayer(h Handle) {
	c.mu.Lock()
	if _, ok := c.layers[h]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.layers, h)
	for i, o := range c.order {
		if o == h {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	ev := c.recordLocked(Event{Kind: EventRemoveLayer, Handle: h})
	c.mu.Unlock()

	c.logger.Debug("layer removed", zap.Uint64("handle", uint64(h)))
	c.emit(ev)
}

func (c *Canvas) PanTo(at models.Coords) {
	c.mu.Lock()
	c.view.Center = at
	ev := c.recordLocked(Event{Kind: EventPanTo, Path: []models.Coords{at}})
	c.mu.Unlock()

	c.logger.Debug("map panned", zap.String("to", at.String()))
	c.emit(ev)
}

// View returns the current viewport.
func (c *Canvas) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Layers returns live layers of kind (all kinds when kind is empty) in insertion order.
func (c *Canvas) Layers(kind LayerKind) []Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layersLocked(kind)
}

// Events returns a copy of the event log, oldest first.
func (c *Canvas) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *Canvas) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		View:   c.view,
		Layers: c.layersLocked(""),
		Events: append([]Event{}, c.events...),
	}
}

func (c *Canvas) layersLocked(kind LayerKind) []Layer {
	out := make([]Layer, 0, len(c.order))
	for _, h := range c.order {
		l := c.layers[h]
		if kind == "" || l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

func (c *Canvas) addLayerLocked(kind LayerKind, path []models.Coords, popup string) Handle {
	c.next++
	h := c.next
	c.layers[h] = Layer{Handle: h, Kind: kind, Path: path, Popup: popup}
	c.order = append(c.order, h)
	return h
}

func (c *Canvas) recordLocked(ev Event) Event {
	c.seq++
	ev.Seq = c.seq
	ev.At = time.Now()
	c.events = append(c.events, ev)
	if over := len(c.events) - c.maxEvents; over > 0 {
		c.events = append(c.events[:0], c.events[over:]...)
	}
	return ev
}

func (c *Canvas) emit(ev Event) {
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

// PopupContent renders the marker popup for w.
func PopupContent(w models.Workout) string {
	if w.Type() == models.TypeRunning {
		return "🏃‍♂️ " + w.Description()
	}
	return "🚴‍♀️ " + w.Description()
}
