// Package metrics implements the statistics collector daemon.
//
// A [Store] keeps, per namespace, a window of request starts and a window of
// finished-request latencies. A [Collector] owns the store and runs the event
// loop that feeds it. The loop waits on three channels:
//   - ingest: measurements sent by trackers, each acknowledged with "OK"
//   - control: QUERY (or the legacy GET) returns the JSON report
//   - signal: relayed OS signal numbers; SIGHUP resets, SIGTERM/SIGQUIT/SIGINT stop
//
// Every channel that is ready is serviced once per iteration, in that order.
// A terminate signal stops the loop immediately and anything still waiting is
// answered with [ErrStopped].
//
// Example usage:
//
//	collector := metrics.NewCollector(metrics.NewStore(time.Minute, nil), logger)
//	collector.Start(ctx)
//
//	sigs := make(chan os.Signal, 1)
//	signal.Notify(sigs, metrics.Signals...)
//	go metrics.RelaySignals(ctx, sigs, collector, logger)
//
//	collector.Ingest(ctx, metrics.StartedMessage("my_app"))
//	body, _ := collector.Query(ctx)
//
// The report is shaped as:
//
//	{"my_app": {"started": 1, "finished": 0, "processing": 1,
//	            "processing_time": {"avg": 0, "std": 0}}}
//
// [Exporter] republishes the same report in the Prometheus exposition format.
package metrics
