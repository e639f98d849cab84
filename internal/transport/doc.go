// Package transport carries measurements and control commands between
// trackers and the collector over WebSocket.
//
// The collector exposes two endpoints, each on its own listener:
//
//	ws://<ingest_address>/ingest    JSON IngestMessage frames, replies OK or ERROR
//	ws://<control_address>/control  QUERY or GET, replies the JSON report or ERROR
//
// Every exchange is a single request frame followed by a single reply frame
// on a long-lived connection. Client pools those connections per endpoint,
// bounds every exchange by a deadline and stops dialing an endpoint whose
// circuit breaker is open.
package transport
