package artifact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/san-kum/cmbview/internal/metrics"
	"github.com/san-kum/cmbview/internal/param"
	"github.com/san-kum/cmbview/internal/render"
)

// Fetcher retrieves the rendered image for a model and parameter set.
type Fetcher interface {
	Fetch(ctx context.Context, model string, set param.Set) (render.Image, error)
}

type FetcherFunc func(ctx context.Context, model string, set param.Set) (render.Image, error)

func (f FetcherFunc) Fetch(ctx context.Context, model string, set param.Set) (render.Image, error) {
	return f(ctx, model, set)
}

// Pending is an issued fetch waiting to run.
type Pending struct {
	Model      string
	Generation uint64
	Params     param.Set
	Issued     time.Time
}

// Result is the outcome of running a Pending fetch; it has not been applied.
type Result struct {
	Model      string
	Generation uint64
	Params     param.Set
	Image      render.Image
	Err        error
	Elapsed    time.Duration
}

type Outcome int

const (
	Applied Outcome = iota
	Stale
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return metrics.OutcomeApplied
	case Stale:
		return metrics.OutcomeStale
	default:
		return metrics.OutcomeFailed
	}
}

type Stats struct {
	Issued  uint64
	Applied uint64
	Stale   uint64
	Failed  uint64
}

// Synchronizer keeps one model's displayed image in step with its latest
// parameter set. Trigger and Apply run on the event loop; Fetch may run on
// any goroutine.
//
// Each Trigger issues a new generation token. Apply accepts a result only
// when its token is the latest one issued, so out-of-order and superseded
// responses are dropped on arrival.
type Synchronizer struct {
	model   string
	fetcher Fetcher
	storage *Storage
	log     logr.Logger
	metrics *metrics.Fetch
	now     func() time.Time

	mu      sync.Mutex
	gen     uint64
	applied uint64
	current *Resource
	lastErr error
	stats   Stats
	latency *metrics.Latency
	closed  bool
}

type Option func(*Synchronizer)

func WithLogger(log logr.Logger) Option {
	return func(s *Synchronizer) { s.log = log }
}

func WithMetrics(m *metrics.Fetch) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func WithLatencyWindow(n int) Option {
	return func(s *Synchronizer) { s.latency = metrics.NewLatency(n) }
}

func New(model string, fetcher Fetcher, storage *Storage, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		model:   model,
		fetcher: fetcher,
		storage: storage,
		log:     logr.Discard(),
		now:     time.Now,
	}
	s.latency = metrics.NewLatency(60)
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithValues("model", model)
	return s
}

func (s *Synchronizer) Model() string { return s.model }

// Trigger issues a new generation for set. Any outstanding fetch is
// superseded from this point on.
func (s *Synchronizer) Trigger(set param.Set) Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.stats.Issued++
	s.metrics.Started(s.model)
	s.log.V(1).Info("fetch issued", "generation", s.gen, "params", set.String())
	return Pending{Model: s.model, Generation: s.gen, Params: set.Clone(), Issued: s.now()}
}

// Fetch runs p against the rendering service. It reads no mutable state.
func (s *Synchronizer) Fetch(ctx context.Context, p Pending) Result {
	start := s.now()
	img, err := s.fetcher.Fetch(ctx, p.Model, p.Params)
	return Result{
		Model:      p.Model,
		Generation: p.Generation,
		Params:     p.Params,
		Image:      img,
		Err:        err,
		Elapsed:    s.now().Sub(start),
	}
}

// Apply publishes r if it answers the latest trigger. A failed fetch leaves
// the current resource in place.
func (s *Synchronizer) Apply(r Result) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || r.Generation != s.gen || r.Generation <= s.applied {
		s.stats.Stale++
		s.metrics.Finished(s.model, metrics.OutcomeStale, r.Elapsed)
		s.log.V(1).Info("fetch superseded", "generation", r.Generation, "latest", s.gen)
		return Stale
	}
	s.applied = r.Generation

	if r.Err != nil {
		return s.fail(r, r.Err)
	}

	res, err := s.storage.Write(s.model, r.Generation, r.Image)
	if err != nil {
		return s.fail(r, err)
	}

	prev := s.current
	s.current = res
	s.lastErr = nil
	s.stats.Applied++
	s.latency.Observe(r.Elapsed)
	s.metrics.Finished(s.model, metrics.OutcomeApplied, r.Elapsed)
	s.metrics.SetLive(s.model, 1)

	if prev != nil {
		if err := prev.Release(); err != nil {
			s.log.Error(err, "release superseded image", "generation", prev.Generation)
		}
	}
	s.log.V(1).Info("image applied", "generation", r.Generation, "bytes", res.Size, "elapsed", r.Elapsed)
	return Applied
}

func (s *Synchronizer) fail(r Result, err error) Outcome {
	s.lastErr = err
	s.stats.Failed++
	s.latency.Observe(r.Elapsed)
	s.metrics.Finished(s.model, metrics.OutcomeFailed, r.Elapsed)
	s.log.Error(err, "fetch failed, keeping previous image", "generation", r.Generation)
	return Failed
}

// Sync issues, runs and applies one fetch in sequence.
func (s *Synchronizer) Sync(ctx context.Context, set param.Set) (*Resource, error) {
	r := s.Fetch(ctx, s.Trigger(set))
	switch s.Apply(r) {
	case Applied:
		return s.Current(), nil
	case Failed:
		return nil, s.LastError()
	default:
		if s.Closed() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("%w: generation %d", ErrSuperseded, r.Generation)
	}
}

func (s *Synchronizer) Current() *Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Outstanding reports whether the latest trigger is still unanswered.
func (s *Synchronizer) Outstanding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied < s.gen
}

func (s *Synchronizer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Latency returns recent round trip times in milliseconds, oldest first.
func (s *Synchronizer) Latency() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency.Samples()
}

// LatencySummary returns the window mean and the newest round trip time in
// milliseconds.
func (s *Synchronizer) LatencySummary() (mean, last float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latency.Value(), s.latency.Last()
}

func (s *Synchronizer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the held resource. Results arriving later are discarded.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.current == nil {
		return nil
	}
	err := s.current.Release()
	s.current = nil
	s.metrics.SetLive(s.model, 0)
	return err
}
