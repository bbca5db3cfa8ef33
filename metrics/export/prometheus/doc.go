// Package prometheus renders saasAuth engine metrics in the Prometheus text
// exposition format. Counters are named saasauth_*_total and the identity
// resolution histogram is saasauth_resolve_latency_seconds.
//
// Nothing is registered globally; callers mount [Exporter.Handler].
package prometheus
