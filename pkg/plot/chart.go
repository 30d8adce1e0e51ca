package plot

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/raykavin/kagiline/pkg/feed"
	"github.com/raykavin/kagiline/pkg/kagi"
	"github.com/raykavin/kagiline/pkg/logger"
	"github.com/samber/lo"
)

//go:embed assets
var staticFiles embed.FS

const defaultMaxShapes = 5000

// Chart renders kagi segments as coloured lines and serves them over HTTP.
// It is safe for concurrent use.
type Chart struct {
	sync.Mutex
	port          int
	debug         bool
	maxShapes     int
	staleAfter    time.Duration
	theme         Theme
	shapes        map[string][]Shape
	markers       map[string][]Marker
	lastUpdate    time.Time
	scriptContent string
	indexHTML     *template.Template
	hub           *WebSocketHub
	server        *http.Server
	log           logger.Logger
}

type Option func(*Chart)

func WithPort(port int) Option {
	return func(chart *Chart) {
		chart.port = port
	}
}

// WithDebug serves the chart script without minification
func WithDebug() Option {
	return func(chart *Chart) {
		chart.debug = true
	}
}

// WithMaxShapes bounds how many lines are kept per pair
func WithMaxShapes(n int) Option {
	return func(chart *Chart) {
		chart.maxShapes = n
	}
}

// WithStaleAfter makes /health fail when nothing was drawn for d
func WithStaleAfter(d time.Duration) Option {
	return func(chart *Chart) {
		chart.staleAfter = d
	}
}

func WithTheme(theme Theme) Option {
	return func(chart *Chart) {
		chart.theme = theme
	}
}

func NewChart(log logger.Logger, options ...Option) (*Chart, error) {
	chart := &Chart{
		port:      8080,
		maxShapes: defaultMaxShapes,
		theme:     DefaultTheme,
		shapes:    make(map[string][]Shape),
		markers:   make(map[string][]Marker),
		log:       log,
	}
	for _, option := range options {
		option(chart)
	}

	var err error
	chart.indexHTML, err = template.ParseFS(staticFiles, "assets/chart.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart template: %w", err)
	}

	chartJS, err := staticFiles.ReadFile("assets/chart.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read chart.js: %w", err)
	}

	transpiled := api.Transform(string(chartJS), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifySyntax:      !chart.debug,
		MinifyIdentifiers: !chart.debug,
		MinifyWhitespace:  !chart.debug,
	})
	if len(transpiled.Errors) > 0 {
		return nil, fmt.Errorf("chart script failed with: %v", transpiled.Errors)
	}
	chart.scriptContent = string(transpiled.Code)
	chart.hub = NewWebSocketHub(log, chart)

	return chart, nil
}

// OnEvent draws a segment. It is meant to be subscribed to a feed.Feed.
func (c *Chart) OnEvent(event feed.Event) {
	shape, marker := c.render(event.Segment)

	c.Lock()
	if shape != nil {
		shapes := append(c.shapes[event.Pair], *shape)
		if c.maxShapes > 0 && len(shapes) > c.maxShapes {
			shapes = shapes[len(shapes)-c.maxShapes:]
		}
		c.shapes[event.Pair] = shapes
	}
	if marker != nil {
		markers := append(c.markers[event.Pair], *marker)
		if oldest := c.oldestShape(event.Pair); !oldest.IsZero() {
			markers = lo.Filter(markers, func(m Marker, _ int) bool {
				return !m.Time.Before(oldest)
			})
		}
		c.markers[event.Pair] = markers
	}
	c.lastUpdate = time.Now()
	c.Unlock()

	c.hub.Broadcast(event.Pair, shape, marker)
}

func (c *Chart) oldestShape(pair string) time.Time {
	if shapes := c.shapes[pair]; len(shapes) > 0 {
		return shapes[0].StartX
	}
	return time.Time{}
}

// render maps a segment to a line, or a style change to a marker
func (c *Chart) render(segment kagi.Segment) (*Shape, *Marker) {
	if segment.Kind == kagi.KindStyleChange {
		return nil, &Marker{
			Time:  segment.To.Time,
			Price: segment.To.Price.InexactFloat64(),
			Style: segment.Style,
			Color: c.theme.color(segment.Style),
		}
	}

	return &Shape{
		StartX: segment.From.Time,
		EndX:   segment.To.Time,
		StartY: segment.From.Price.InexactFloat64(),
		EndY:   segment.To.Price.InexactFloat64(),
		Color:  c.theme.color(segment.Style),
		Width:  c.theme.width(segment.Style),
		Name:   segment.Style.String(),
	}, nil
}

// Pairs lists the pairs drawn so far
func (c *Chart) Pairs() []string {
	c.Lock()
	defer c.Unlock()

	pairs := lo.Keys(c.shapes)
	sort.Strings(pairs)
	return pairs
}

func (c *Chart) data(pair string) pairData {
	c.Lock()
	defer c.Unlock()

	return pairData{
		Pair:    pair,
		Shapes:  append([]Shape(nil), c.shapes[pair]...),
		Markers: append([]Marker(nil), c.markers[pair]...),
	}
}

// Handler returns the HTTP routes of the chart
func (c *Chart) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/assets/", http.FileServer(http.FS(staticFiles)))
	mux.HandleFunc("/assets/chart.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, c.scriptContent)
	})
	mux.HandleFunc("/health", c.handleHealth)
	mux.HandleFunc("/history", c.handleHistory)
	mux.HandleFunc("/data", c.handleData)
	mux.HandleFunc("/ws", c.hub.HandleWebSocket)
	mux.HandleFunc("/", c.handleIndex)
	return mux
}

// Start serves the chart until Shutdown is called
func (c *Chart) Start() error {
	c.Lock()
	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.port),
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := c.server
	c.Unlock()

	c.log.Infof("chart available at http://localhost:%d", c.port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *Chart) Shutdown(ctx context.Context) error {
	c.hub.Close()

	c.Lock()
	server := c.server
	c.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
