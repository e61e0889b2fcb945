/*
Package domain contains the core models of the Autonoma diagnostics workflow.

It defines the run record threaded through the pipeline, the partial updates
nodes return, and the engine vocabulary (node identifiers, severities,
lifecycle events). The package is kept pure and free of I/O so that every
adapter and node can depend on it.

# Key Entities

  - State: the per-run record (telemetry, diagnosis, transcript, booking).
  - Update: the partial record a node returns; merged by Merge.
  - NodeID: the closed set of pipeline steps, including the START and END markers.
  - Insight / AuditRecord: records published to analytics and audit sinks.
*/
package domain
