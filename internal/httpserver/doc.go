// Package httpserver runs the ingest, control and status listeners.
package httpserver
