// Package telemetry is the reference metrics sink: counters for
// deduplicated decryption/verification errors, cache hit/miss gauges,
// batch-loader queue depth, and mutation latency histograms.
//
// Each Sink owns its own prometheus registry rather than using the
// global default one, since multiple SDK instances must be isolated from
// each other (registering the same metric name twice on the default
// registry panics).
package telemetry
