package window

import "time"

// Sample is one entry of a Window. A sample without a value marks an event
// (for example a request start); a sample with a value carries a measurement.
type Sample struct {
	At       time.Time
	Value    float64
	HasValue bool
}

// Window is a time-ordered sequence of samples bounded by a trailing width.
// It is not safe for concurrent use.
type Window struct {
	width   time.Duration
	samples []Sample
	head    int
	count   int64
}

// New creates a Window retaining samples for the given width.
func New(width time.Duration) *Window {
	return &Window{width: width}
}

// Width returns the trailing duration covered by the window.
func (w *Window) Width() time.Duration {
	return w.width
}

// Mark appends a valueless sample at now.
func (w *Window) Mark(now time.Time) {
	w.append(Sample{At: now}, now)
}

// Record appends a sample carrying value at now.
func (w *Window) Record(now time.Time, value float64) {
	w.append(Sample{At: now, Value: value, HasValue: true}, now)
}

func (w *Window) append(s Sample, now time.Time) {
	w.evict(now)
	w.samples = append(w.samples, s)
	w.count++
}

// evict drops the expired prefix. Samples at exactly now-width are kept.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.width)

	for w.head < len(w.samples) && w.samples[w.head].At.Before(cutoff) {
		w.samples[w.head] = Sample{}
		w.head++
	}

	// Compact once the dead prefix dominates the backing array.
	if w.head > 0 && w.head >= len(w.samples)/2 {
		n := copy(w.samples, w.samples[w.head:])
		w.samples = w.samples[:n]
		w.head = 0
	}
}

// Retained returns a copy of the samples currently in the window, oldest first.
func (w *Window) Retained() []Sample {
	live := w.samples[w.head:]
	out := make([]Sample, len(live))
	copy(out, live)
	return out
}

// Values returns the values of the retained samples that carry one.
func (w *Window) Values() []float64 {
	values := make([]float64, 0, len(w.samples)-w.head)
	for _, s := range w.samples[w.head:] {
		if s.HasValue {
			values = append(values, s.Value)
		}
	}
	return values
}

// Len returns the number of retained samples.
func (w *Window) Len() int {
	return len(w.samples) - w.head
}

// Count returns the number of samples ever appended, evicted ones included.
func (w *Window) Count() int64 {
	return w.count
}
