// Package circuitbreaker keeps a failing collector from stalling request
// handling. Trackers consult a breaker per collector endpoint before dialing;
// while the breaker is open, measurements are dropped immediately instead of
// waiting on connection timeouts.
//
// States:
//
//   - CLOSED: sends go through
//   - OPEN: the endpoint failed repeatedly, sends are dropped
//   - HALF-OPEN: one trial send decides whether to close again
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(3, 5*time.Second)
//	cb := registry.GetBreaker("ws://127.0.0.1:2345/ingest")
//	if cb.Allow() {
//	    if err := send(); err != nil {
//	        cb.RecordFailure()
//	    } else {
//	        cb.RecordSuccess()
//	    }
//	}
package circuitbreaker
