// Package tracker is the hook a server calls around each request. Start
// records when a request began and End reports its elapsed time to the
// collector. Delivery is best effort: a failing collector never blocks or
// fails the request being measured.
package tracker
