// Package handler implements the HTTP status surface of the collector:
// the /_status relay and the address allow-list that guards it.
package handler
