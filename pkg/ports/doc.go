/*
Package ports defines the driven ports (interfaces) of the Autonoma engine.

These interfaces decouple the pipeline from its collaborators, so that nodes
can be tested with fakes and deployed against real LLMs, service centers and
storage backends.

# Key Interfaces

  - TextGenerator: produces conversational replies (LLM boundary).
  - Scheduler: lists and books service-center slots.
  - TelemetrySource: a lazy, restartable stream of telemetry samples.
  - AuditSink: receives every transition-guard decision.
  - InsightSink / InsightStore: receive and list root-cause insights.
  - RunStore: persists the latest record per vehicle.
  - DistributedLocker: serializes runs for a vehicle across replicas.
*/
package ports
