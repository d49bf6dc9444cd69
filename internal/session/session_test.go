package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/san-kum/cmbview/internal/artifact"
	"github.com/san-kum/cmbview/internal/config"
	"github.com/san-kum/cmbview/internal/param"
	"github.com/san-kum/cmbview/internal/render"
	"github.com/san-kum/cmbview/internal/view"
)

var png = []byte("\x89PNG\r\n\x1a\n")

type fakeService struct {
	mu       sync.Mutex
	requests []string
	fail     map[string]bool
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.RequestURI())
	fail := f.fail[r.URL.Path]
	f.mu.Unlock()

	if fail {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(append(png, []byte(r.URL.RawQuery)...))
}

func (f *fakeService) count(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r == uri {
			n++
		}
	}
	return n
}

func newSession(t *testing.T) (*Session, *fakeService) {
	t.Helper()
	svc := &fakeService{fail: map[string]bool{}}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	client, err := render.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	storage := artifact.NewStorage(t.TempDir())
	if err := storage.Init(); err != nil {
		t.Fatalf("storage: %v", err)
	}
	s, err := New(config.DefaultCatalog(), client, storage, WithLogger(testr.New(t)))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, svc
}

// drain runs every queued fetch in trigger order and applies it.
func drain(s *Session, pending []artifact.Pending) []artifact.Outcome {
	var out []artifact.Outcome
	for _, p := range pending {
		out = append(out, s.Apply(s.Fetch(context.Background(), p)))
	}
	return out
}

func TestStartFetchesEveryModelOnce(t *testing.T) {
	s, svc := newSession(t)

	pending := s.Start()
	if len(pending) != 3 {
		t.Fatalf("expected 3 initial fetches, got %d", len(pending))
	}
	for _, o := range drain(s, pending) {
		if o != artifact.Applied {
			t.Errorf("expected applied, got %s", o)
		}
	}
	if again := s.Start(); len(again) != 0 {
		t.Errorf("expected second start to be a no-op, got %d fetches", len(again))
	}

	if n := svc.count("/api/standard"); n != 1 {
		t.Errorf("expected exactly one standard fetch, got %d", n)
	}
	if s.Synchronizer("standard").Current() == nil {
		t.Error("expected standard image after start")
	}
	if s.Selector().Active() != view.Starobinsky {
		t.Errorf("expected starobinsky view, got %s", s.Selector().Active())
	}
}

func TestHilltopSliderMove(t *testing.T) {
	s, svc := newSession(t)
	drain(s, s.Start())
	before := s.Synchronizer("hilltop").Current()

	if !s.Update("hilltop", "mu", 15.0) {
		t.Fatal("expected update to succeed")
	}
	pending := s.Take()
	if len(pending) != 1 {
		t.Fatalf("expected 1 queued fetch, got %d", len(pending))
	}
	if o := drain(s, pending); o[0] != artifact.Applied {
		t.Fatalf("expected applied, got %s", o[0])
	}

	if n := svc.count("/api/hilltop?amp=4700&mu=15&v=1.8&p=3.2&phi=0.37"); n != 1 {
		t.Errorf("expected one request with mu=15, got %d (all: %v)", n, svc.requests)
	}
	after := s.Synchronizer("hilltop").Current()
	if after == before {
		t.Error("expected a new image")
	}
	if !before.Released() {
		t.Error("expected previous image to be released")
	}
}

func TestStarobinskyFailureKeepsImage(t *testing.T) {
	s, svc := newSession(t)
	drain(s, s.Start())
	prev := s.Synchronizer("starobinsky").Current()

	svc.mu.Lock()
	svc.fail["/api/starobinsky"] = true
	svc.mu.Unlock()

	s.Update("starobinsky", "phase", 5.0)
	if o := drain(s, s.Take()); o[0] != artifact.Failed {
		t.Fatalf("expected failed, got %s", o[0])
	}

	sy := s.Synchronizer("starobinsky")
	if sy.Current() != prev || prev.Released() {
		t.Error("expected previous starobinsky image to stay visible")
	}
	if !errors.Is(sy.LastError(), render.ErrStatus) {
		t.Errorf("expected status error, got %v", sy.LastError())
	}
}

func TestOutOfOrderAcrossDrag(t *testing.T) {
	s, _ := newSession(t)
	drain(s, s.Start())

	s.Update("hilltop", "mu", 14)
	s.Update("hilltop", "mu", 15)
	pending := s.Take()
	if len(pending) != 2 {
		t.Fatalf("expected 2 queued fetches, got %d", len(pending))
	}

	r1 := s.Fetch(context.Background(), pending[0])
	r2 := s.Fetch(context.Background(), pending[1])
	if o := s.Apply(r2); o != artifact.Applied {
		t.Errorf("expected newer result applied, got %s", o)
	}
	if o := s.Apply(r1); o != artifact.Stale {
		t.Errorf("expected older result stale, got %s", o)
	}

	data, err := s.Synchronizer("hilltop").Current().Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data[len(png):]); got != "amp=4700&mu=15&v=1.8&p=3.2&phi=0.37" {
		t.Errorf("expected mu=15 image, got %s", got)
	}
}

func TestNudgeAndBounds(t *testing.T) {
	s, _ := newSession(t)
	s.Start()

	v, ok := s.Nudge("hilltop", "phi", 3)
	if !ok || v != 0.4 {
		t.Errorf("expected phi 0.4, got %v (%v)", v, ok)
	}
	if _, ok := s.SetToBound("hilltop", "amp", true); !ok {
		t.Error("expected amp to move to max")
	}
	if v, ok := s.SetToBound("hilltop", "amp", true); ok || v != 10000 {
		t.Errorf("expected no change at max, got %v (%v)", v, ok)
	}
	if len(s.Take()) != 2 {
		t.Error("expected one fetch per effective change")
	}

	if _, ok := s.Nudge("standard", "amp", 1); ok {
		t.Error("expected nudge on parameterless model to fail")
	}
}

func TestResetAndLayout(t *testing.T) {
	s, _ := newSession(t)
	s.Start()

	if s.Reset("hilltop") {
		t.Error("expected reset at defaults to be a no-op")
	}
	s.Update("hilltop", "v", 2.0)
	s.Take()
	if !s.Reset("hilltop") {
		t.Error("expected reset to succeed")
	}
	if len(s.Take()) != 1 {
		t.Error("expected reset to queue one fetch")
	}
	if v, _ := s.Params("hilltop").Get("v"); v != 1.8 {
		t.Errorf("expected v back to 1.8, got %v", v)
	}

	cols := s.Layout("hilltop")
	if len(cols.Left) != 3 || len(cols.Right) != 2 {
		t.Errorf("unexpected layout %d/%d", len(cols.Left), len(cols.Right))
	}
	if s.Layout("standard").Len() != 0 {
		t.Error("expected empty standard layout")
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	s, _ := newSession(t)
	drain(s, s.Start())

	var held []*artifact.Resource
	for _, name := range []string{"standard", "hilltop", "starobinsky"} {
		held = append(held, s.Synchronizer(name).Current())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	for _, r := range held {
		if !r.Released() {
			t.Errorf("expected %s released", r)
		}
	}
}

func TestNewRequiresEveryView(t *testing.T) {
	cat := config.Catalog{{Name: "hilltop", Params: []param.Definition{
		{Name: "amp", Default: 1, Range: param.Range[float64]{Min: 0, Max: 2, Step: 1}},
	}}}
	_, err := New(cat, nil, artifact.NewStorage(t.TempDir()))
	if !errors.Is(err, config.ErrInvalidCatalog) {
		t.Errorf("expected invalid catalog, got %v", err)
	}
}
