// Package session wires the parameter store, one synchronizer per model and
// the view selector into the unit the TUI drives.
//
// The session subscribes to the store. Every parameter change queues a
// pending fetch, which the caller drains with Take, runs with Fetch (on any
// goroutine) and hands back to Apply on its event loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/san-kum/cmbview/internal/artifact"
	"github.com/san-kum/cmbview/internal/config"
	"github.com/san-kum/cmbview/internal/layout"
	"github.com/san-kum/cmbview/internal/metrics"
	"github.com/san-kum/cmbview/internal/param"
	"github.com/san-kum/cmbview/internal/view"
)

type Session struct {
	catalog  config.Catalog
	store    *param.Store
	syncs    map[string]*artifact.Synchronizer
	selector *view.Selector
	log      logr.Logger

	mu      sync.Mutex
	queue   []artifact.Pending
	started bool
}

type options struct {
	log     logr.Logger
	metrics *metrics.Fetch
	initial view.Kind
	window  int
}

type Option func(*options)

func WithLogger(log logr.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *metrics.Fetch) Option {
	return func(o *options) { o.metrics = m }
}

func WithInitialView(k view.Kind) Option {
	return func(o *options) { o.initial = k }
}

func WithLatencyWindow(n int) Option {
	return func(o *options) { o.window = n }
}

// New builds a session over cat. Every view must have a model in the
// catalog.
func New(cat config.Catalog, fetcher artifact.Fetcher, storage *artifact.Storage, opts ...Option) (*Session, error) {
	o := options{log: logr.Discard(), initial: view.Default, window: 60}
	for _, opt := range opts {
		opt(&o)
	}
	if err := config.Validate(cat); err != nil {
		return nil, err
	}
	for _, k := range view.All() {
		if _, ok := cat.Get(k.Model()); !ok {
			return nil, fmt.Errorf("%w: no model for view %s", config.ErrInvalidCatalog, k)
		}
	}

	s := &Session{
		catalog:  cat,
		store:    param.NewStore(cat...),
		syncs:    make(map[string]*artifact.Synchronizer, len(cat)),
		selector: view.NewSelector(),
		log:      o.log,
	}
	s.selector.Select(o.initial)
	for _, m := range cat {
		s.syncs[m.Name] = artifact.New(m.Name, fetcher, storage,
			artifact.WithLogger(o.log.WithName("sync")),
			artifact.WithMetrics(o.metrics),
			artifact.WithLatencyWindow(o.window),
		)
	}
	s.store.Subscribe(s)
	return s, nil
}

// ParametersChanged queues a fetch for the new snapshot.
func (s *Session) ParametersChanged(model string, snapshot param.Set) {
	sy, ok := s.syncs[model]
	if !ok {
		return
	}
	p := sy.Trigger(snapshot)
	s.mu.Lock()
	s.queue = append(s.queue, p)
	s.mu.Unlock()
}

// Start queues the initial fetch of every model, including parameterless
// ones. Later calls do nothing.
func (s *Session) Start() []artifact.Pending {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	for _, name := range s.store.Models() {
		set, _ := s.store.Get(name)
		s.ParametersChanged(name, set)
	}
	s.log.Info("session started", "models", s.store.Models())
	return s.Take()
}

// Take drains the queued fetches in trigger order.
func (s *Session) Take() []artifact.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

func (s *Session) Update(model, name string, value float64) bool {
	_, ok := s.store.Update(model, name, value)
	return ok
}

// Nudge moves a parameter by whole slider steps. It reports the new value
// and whether anything changed.
func (s *Session) Nudge(model, name string, steps int) (float64, bool) {
	return s.adjust(model, name, func(r param.Range[float64], v float64) float64 {
		return layout.Nudge(r, v, steps)
	})
}

// SetToBound moves a parameter to its range minimum or maximum.
func (s *Session) SetToBound(model, name string, upper bool) (float64, bool) {
	return s.adjust(model, name, func(r param.Range[float64], v float64) float64 {
		if upper {
			return r.Max
		}
		return r.Min
	})
}

func (s *Session) adjust(model, name string, fn func(param.Range[float64], float64) float64) (float64, bool) {
	set, ok := s.store.Get(model)
	if !ok {
		return 0, false
	}
	cur, ok := set.Get(name)
	if !ok {
		return 0, false
	}
	ranges, _ := s.store.Ranges(model)
	next := fn(ranges[name], cur)
	if next == cur {
		return cur, false
	}
	return next, s.Update(model, name, next)
}

// Reset restores a model's defaults. An unchanged set issues no fetch.
func (s *Session) Reset(model string) bool {
	m, ok := s.catalog.Get(model)
	if !ok {
		return false
	}
	cur, _ := s.store.Get(model)
	if cur.Equal(m.Defaults()) {
		return false
	}
	return s.store.Reset(model)
}

func (s *Session) Fetch(ctx context.Context, p artifact.Pending) artifact.Result {
	sy, ok := s.syncs[p.Model]
	if !ok {
		return artifact.Result{Model: p.Model, Generation: p.Generation, Err: fmt.Errorf("session: unknown model %q", p.Model)}
	}
	return sy.Fetch(ctx, p)
}

func (s *Session) Apply(r artifact.Result) artifact.Outcome {
	sy, ok := s.syncs[r.Model]
	if !ok {
		return artifact.Stale
	}
	return sy.Apply(r)
}

func (s *Session) Params(model string) param.Set {
	set, _ := s.store.Get(model)
	return set
}

// Layout lays out model's current parameters.
func (s *Session) Layout(model string) layout.Columns[float64] {
	set, _ := s.store.Get(model)
	ranges, _ := s.store.Ranges(model)
	return layout.ForSet(set, ranges)
}

func (s *Session) Model(name string) (param.Model, bool) { return s.catalog.Get(name) }

func (s *Session) Synchronizer(model string) *artifact.Synchronizer { return s.syncs[model] }

func (s *Session) Selector() *view.Selector { return s.selector }

func (s *Session) Store() *param.Store { return s.store }

// Close releases every model's current image.
func (s *Session) Close() error {
	var errs []error
	for _, name := range s.store.Models() {
		if err := s.syncs[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	s.log.Info("session closed")
	return errors.Join(errs...)
}
