/*
Package autonoma is a guarded workflow engine for vehicle diagnostics.

A run threads one record through a fixed pipeline of nodes (data analysis,
diagnosis, customer engagement, scheduling, root-cause analysis). Each node
returns a partial update that the engine merges into the record, and every
step-to-step transition is checked against an allow-list before it
executes. Collaborator failures (text generation, scheduling) degrade to
fallbacks inside the nodes, so a run always ends with a usable record.

# Designs

Two orchestration designs ship with the engine:

  - deterministic: templated alerts, automatic booking of urgent cases and
    root-cause analysis for critical ones.
  - conversational: generated replies, booking on request.

# Usage

	eng, err := autonoma.New(
		autonoma.WithScheduler(scheduling.NewServiceCenter()),
		autonoma.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	state, err := eng.Diagnose(ctx, "EV-1", domain.Sample{
		domain.SensorBatteryTemperature: 75,
	})
	if err != nil {
		log.Fatal(err) // only on cancellation
	}
	fmt.Println(state.Diagnosis, state.Severity, state.BookingID)

A chat turn continues a stored record:

	state, err = eng.Chat(ctx, state, "Book the slot for 12/7/2025 at 9:30 AM")
*/
package autonoma
