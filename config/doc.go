// Package config loads the collector, status relay and tracker settings from
// an optional YAML file and GSTATS_* environment variables, and validates them.
//
// Example config.yaml:
//
//	server:
//	  environment: prod
//	collector:
//	  ingest_address: "127.0.0.1:2345"
//	  control_address: "127.0.0.1:2346"
//	  window: "60s"
//	status:
//	  address: "127.0.0.1:8090"
//	  allowed_addresses: ["127.0.0.1", "10.0.0.0/8"]
//	tracker:
//	  collector_address: "127.0.0.1:2345"
//	  prefix: my_app
//	  ack_timeout: "250ms"
//	logging:
//	  level: info
package config
