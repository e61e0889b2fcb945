/*
Package observability wires the engine's lifecycle hooks to Prometheus and
configures OpenTelemetry tracing.

The engine opens one span per run and one per node through the global tracer;
InitTracer installs an OTLP/HTTP exporter behind it. Metrics are recorded by
hooks, so an engine without them pays nothing.
*/
package observability
