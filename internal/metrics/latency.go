package metrics

import "time"

// Latency keeps the most recent round trip times of one model, oldest first.
type Latency struct {
	size    int
	samples []float64
}

func NewLatency(size int) *Latency {
	if size < 1 {
		size = 1
	}
	return &Latency{size: size, samples: make([]float64, 0, size)}
}

func (l *Latency) Observe(d time.Duration) {
	l.samples = append(l.samples, float64(d)/float64(time.Millisecond))
	if len(l.samples) > l.size {
		l.samples = l.samples[1:]
	}
}

// Value is the mean of the window in milliseconds.
func (l *Latency) Value() float64 {
	if len(l.samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range l.samples {
		sum += s
	}
	return sum / float64(len(l.samples))
}

// Last is the newest sample in milliseconds.
func (l *Latency) Last() float64 {
	if len(l.samples) == 0 {
		return 0
	}
	return l.samples[len(l.samples)-1]
}

func (l *Latency) Samples() []float64 {
	out := make([]float64, len(l.samples))
	copy(out, l.samples)
	return out
}
