// Package metrics defines the sinks recording search progress. A sink must
// record progress reports; round and result recording are optional
// interfaces checked at run time. Sinks are created from configuration by
// name through NewMetricsSink, which wraps several of them in a MultiSink.
package metrics
