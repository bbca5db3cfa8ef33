// Package otel publishes saasAuth engine metrics through an OpenTelemetry
// Meter.
//
// Every engine counter becomes an Int64ObservableCounter and every histogram
// bucket an Int64ObservableGauge. One callback reads the engine snapshot per
// collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider (callers supply the Meter).
//   - Mutate engine state.
package otel
