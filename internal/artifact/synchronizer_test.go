package artifact_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/cmbview/internal/artifact"
	"github.com/san-kum/cmbview/internal/metrics"
	"github.com/san-kum/cmbview/internal/param"
	"github.com/san-kum/cmbview/internal/render"
)

// imageFor renders a fake body that names the parameters it was built from.
func imageFor(set param.Set) render.Image {
	return render.Image{Data: []byte(set.String()), ContentType: "image/png"}
}

func echoFetcher() artifact.FetcherFunc {
	return func(ctx context.Context, model string, set param.Set) (render.Image, error) {
		return imageFor(set), nil
	}
}

func muSet(mu float64) param.Set {
	return param.NewSet(
		param.Entry[float64]{Name: "amp", Value: 4700},
		param.Entry[float64]{Name: "mu", Value: mu},
	)
}

func currentBody(s *artifact.Synchronizer) string {
	res := s.Current()
	Expect(res).NotTo(BeNil())
	data, err := res.Bytes()
	Expect(err).NotTo(HaveOccurred())
	return string(data)
}

var _ = Describe("Synchronizer", func() {
	var (
		storage *artifact.Storage
		reg     *prometheus.Registry
		fm      *metrics.Fetch
	)

	BeforeEach(func() {
		dir, err := os.MkdirTemp("", "cmbview-artifact")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)

		storage = artifact.NewStorage(dir)
		Expect(storage.Init()).To(Succeed())
		reg = prometheus.NewRegistry()
		fm = metrics.NewFetch(reg)
	})

	Context("when responses arrive out of order", func() {
		It("keeps the newer image", func() {
			s := artifact.New("hilltop", echoFetcher(), storage, artifact.WithMetrics(fm))

			p1 := s.Trigger(muSet(13.5))
			p2 := s.Trigger(muSet(15))
			r1 := s.Fetch(context.Background(), p1)
			r2 := s.Fetch(context.Background(), p2)

			Expect(s.Apply(r2)).To(Equal(artifact.Applied))
			Expect(s.Apply(r1)).To(Equal(artifact.Stale))

			Expect(s.Current().Generation).To(Equal(p2.Generation))
			Expect(currentBody(s)).To(Equal("amp=4700 mu=15"))
			Expect(s.Stats()).To(Equal(artifact.Stats{Issued: 2, Applied: 1, Stale: 1}))
			Expect(testutil.ToFloat64(fm.Results("hilltop", metrics.OutcomeStale))).To(Equal(1.0))
		})
	})

	Context("when a superseded response arrives first", func() {
		It("discards it and waits for the latest", func() {
			s := artifact.New("hilltop", echoFetcher(), storage)

			p1 := s.Trigger(muSet(13.5))
			p2 := s.Trigger(muSet(15))

			Expect(s.Apply(s.Fetch(context.Background(), p1))).To(Equal(artifact.Stale))
			Expect(s.Current()).To(BeNil())
			Expect(s.Outstanding()).To(BeTrue())

			Expect(s.Apply(s.Fetch(context.Background(), p2))).To(Equal(artifact.Applied))
			Expect(s.Outstanding()).To(BeFalse())
		})
	})

	Context("when fetches run concurrently", func() {
		It("applies by trigger recency, not arrival", func() {
			gates := map[float64]chan struct{}{
				13.5: make(chan struct{}),
				15:   make(chan struct{}),
			}
			gated := artifact.FetcherFunc(func(ctx context.Context, model string, set param.Set) (render.Image, error) {
				mu, _ := set.Get("mu")
				<-gates[mu]
				return imageFor(set), nil
			})
			s := artifact.New("starobinsky", gated, storage)

			arrivals := make(chan artifact.Result, 2)
			for _, p := range []artifact.Pending{s.Trigger(muSet(13.5)), s.Trigger(muSet(15))} {
				go func(p artifact.Pending) { arrivals <- s.Fetch(context.Background(), p) }(p)
			}

			close(gates[15])
			first := <-arrivals
			close(gates[13.5])
			second := <-arrivals

			Expect(s.Apply(first)).To(Equal(artifact.Applied))
			Expect(s.Apply(second)).To(Equal(artifact.Stale))
			Expect(currentBody(s)).To(Equal("amp=4700 mu=15"))
		})
	})

	Context("when the rendering service fails", func() {
		It("keeps the previous image visible", func() {
			fail := false
			f := artifact.FetcherFunc(func(ctx context.Context, model string, set param.Set) (render.Image, error) {
				if fail {
					return render.Image{}, &render.FetchError{Model: model, StatusCode: 500, Wrapped: render.ErrStatus}
				}
				return imageFor(set), nil
			})
			s := artifact.New("starobinsky", f, storage, artifact.WithLogger(logr.Discard()))

			first, err := s.Sync(context.Background(), muSet(4))
			Expect(err).NotTo(HaveOccurred())

			fail = true
			_, err = s.Sync(context.Background(), muSet(5))
			Expect(err).To(MatchError(render.ErrStatus))

			Expect(s.Current()).To(BeIdenticalTo(first))
			Expect(first.Released()).To(BeFalse())
			Expect(currentBody(s)).To(Equal("amp=4700 mu=4"))
			Expect(s.LastError()).To(MatchError(render.ErrStatus))
		})

		It("clears the error once a fetch succeeds again", func() {
			calls := 0
			f := artifact.FetcherFunc(func(ctx context.Context, model string, set param.Set) (render.Image, error) {
				calls++
				if calls == 1 {
					return render.Image{}, errors.New("connection refused")
				}
				return imageFor(set), nil
			})
			s := artifact.New("hilltop", f, storage)

			_, err := s.Sync(context.Background(), muSet(12))
			Expect(err).To(HaveOccurred())
			Expect(s.Current()).To(BeNil())

			_, err = s.Sync(context.Background(), muSet(12))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.LastError()).NotTo(HaveOccurred())
		})
	})

	Context("when parameters change many times", func() {
		It("holds at most one resource", func() {
			s := artifact.New("hilltop", echoFetcher(), storage, artifact.WithMetrics(fm))

			var held []*artifact.Resource
			for i := 0; i < 25; i++ {
				res, err := s.Sync(context.Background(), muSet(10+float64(i)/10))
				Expect(err).NotTo(HaveOccurred())
				held = append(held, res)
				Expect(storage.Live()).To(Equal(1))
			}

			for _, res := range held[:len(held)-1] {
				Expect(res.Released()).To(BeTrue())
				_, err := os.Stat(res.Path)
				Expect(os.IsNotExist(err)).To(BeTrue())
			}
			entries, err := os.ReadDir(storage.Dir())
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("releases the last resource on close", func() {
			s := artifact.New("hilltop", echoFetcher(), storage, artifact.WithMetrics(fm))
			res, err := s.Sync(context.Background(), muSet(11))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Close()).To(Succeed())
			Expect(s.Close()).To(Succeed())
			Expect(res.Released()).To(BeTrue())
			Expect(s.Current()).To(BeNil())
			Expect(storage.Live()).To(Equal(0))
			Expect(testutil.ToFloat64(fm.Live("hilltop"))).To(Equal(0.0))
		})

		It("discards results that arrive after close", func() {
			s := artifact.New("hilltop", echoFetcher(), storage)
			p := s.Trigger(muSet(11))
			Expect(s.Close()).To(Succeed())

			Expect(s.Apply(s.Fetch(context.Background(), p))).To(Equal(artifact.Stale))
			Expect(storage.Live()).To(Equal(0))

			_, err := s.Sync(context.Background(), muSet(12))
			Expect(err).To(MatchError(artifact.ErrClosed))
		})
	})

	Context("with an injected clock", func() {
		It("stamps requests and measures round trips with it", func() {
			t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			ticks := 0
			clock := func() time.Time {
				ticks++
				return t0.Add(time.Duration(ticks-1) * 250 * time.Millisecond)
			}
			s := artifact.New("hilltop", echoFetcher(), storage, artifact.WithClock(clock))

			p := s.Trigger(muSet(14))
			Expect(p.Issued).To(Equal(t0))

			r := s.Fetch(context.Background(), p)
			Expect(r.Elapsed).To(Equal(250 * time.Millisecond))
			Expect(s.Apply(r)).To(Equal(artifact.Applied))

			mean, last := s.LatencySummary()
			Expect(mean).To(BeNumerically("~", 250, 1e-9))
			Expect(last).To(BeNumerically("~", 250, 1e-9))
		})
	})

	Context("with a parameterless model", func() {
		It("fetches once with an empty set", func() {
			var calls []string
			f := artifact.FetcherFunc(func(ctx context.Context, model string, set param.Set) (render.Image, error) {
				calls = append(calls, fmt.Sprintf("%s?%s", model, render.Query(set)))
				return render.Image{Data: []byte("std"), ContentType: "image/png"}, nil
			})
			s := artifact.New("standard", f, storage)

			_, err := s.Sync(context.Background(), param.Set{})
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).To(Equal([]string{"standard?"}))
		})
	})

	Context("when storage cannot be written", func() {
		It("reports a failure and keeps the current image", func() {
			s := artifact.New("hilltop", echoFetcher(), storage)
			first, err := s.Sync(context.Background(), muSet(11))
			Expect(err).NotTo(HaveOccurred())

			Expect(os.RemoveAll(storage.Dir())).To(Succeed())
			_, err = s.Sync(context.Background(), muSet(12))
			Expect(err).To(HaveOccurred())
			Expect(s.Current()).To(BeIdenticalTo(first))
		})
	})
})
