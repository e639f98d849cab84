package metrics

import (
	"math"
	"time"

	"github.com/angeloszaimis/gstats/internal/window"
)

// Kind tells Collect which window a measurement belongs to.
type Kind int

const (
	Started Kind = iota
	Finished
)

func (k Kind) String() string {
	switch k {
	case Started:
		return "started"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Snapshot is the aggregated view of one namespace.
//
// Started and Finished are lifetime counts. Processing is their difference and
// therefore only approximates the number of in-flight requests: it is not
// bounded by the window, unlike ProcessingTime which only covers the retained
// finished latencies.
type Snapshot struct {
	Started        int64          `json:"started"`
	Finished       int64          `json:"finished"`
	Processing     int64          `json:"processing"`
	ProcessingTime ProcessingTime `json:"processing_time"`
}

// ProcessingTime holds the mean and population standard deviation of the
// finished latencies, in milliseconds.
type ProcessingTime struct {
	Avg float64 `json:"avg"`
	Std float64 `json:"std"`
}

// Report maps namespaces to their snapshots. It is the document returned to
// control queries.
type Report map[string]Snapshot

type series struct {
	started  *window.Window
	finished *window.Window
}

// Store keeps a started and a finished window per namespace.
// It is owned by a single goroutine and does no locking of its own.
type Store struct {
	width  time.Duration
	now    func() time.Time
	series map[string]*series
}

// NewStore creates a Store whose windows cover the given width. A nil clock
// defaults to time.Now.
func NewStore(width time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}

	return &Store{
		width:  width,
		now:    now,
		series: make(map[string]*series),
	}
}

// Collect records a measurement for namespace, creating it on first use.
// The latency is ignored for Started measurements.
func (s *Store) Collect(namespace string, kind Kind, latency float64) {
	sr, ok := s.series[namespace]
	if !ok {
		sr = &series{
			started:  window.New(s.width),
			finished: window.New(s.width),
		}
		s.series[namespace] = sr
	}

	now := s.now()
	switch kind {
	case Started:
		sr.started.Mark(now)
	case Finished:
		sr.finished.Record(now, latency)
	}
}

// Assemble computes a snapshot for every known namespace.
func (s *Store) Assemble() Report {
	report := make(Report, len(s.series))

	for namespace, sr := range s.series {
		started := sr.started.Count()
		finished := sr.finished.Count()
		avg, std := meanStd(sr.finished.Values())

		report[namespace] = Snapshot{
			Started:        started,
			Finished:       finished,
			Processing:     started - finished,
			ProcessingTime: ProcessingTime{Avg: avg, Std: std},
		}
	}

	return report
}

// Reset drops every namespace.
func (s *Store) Reset() {
	s.series = make(map[string]*series)
}

// Namespaces returns the number of namespaces seen since the last reset.
func (s *Store) Namespaces() int {
	return len(s.series)
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	n := float64(len(values))

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	return mean, math.Sqrt(sq / n)
}
