// gstats collects request-latency statistics for worker-based servers.
//
// Usage:
//
//	# Run the collector daemon
//	gstats collectd --config config/config.yaml
//
//	# Print the current report, or one field of it
//	gstats ctl query
//	gstats ctl query --format yaml --path my_app.processing_time
//
//	# Reset or stop the running collector
//	gstats ctl reset
//	gstats ctl stop
//
//	# Serve /_status against a remote collector
//	gstats status
//
//	# Generate synthetic traffic
//	gstats traffic --workers 10 --requests 100
package main

func main() {
	Execute()
}
