package autonoma_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/autonoma-fleet/autonoma"
	"github.com/autonoma-fleet/autonoma/pkg/adapters/scheduling"
	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// Example runs the deterministic design on an overheating battery.
func Example() {
	eng, err := autonoma.New(
		autonoma.WithScheduler(scheduling.NewServiceCenter()),
		autonoma.WithClock(func() time.Time { return time.Date(2025, 12, 6, 14, 5, 0, 0, time.UTC) }),
	)
	if err != nil {
		log.Fatal(err)
	}

	state, err := eng.Diagnose(context.Background(), "EV-1", domain.Sample{
		domain.SensorBatteryTemperature: 75,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(state.Severity)
	fmt.Println(state.Path)
	fmt.Println(state.Messages[0].Content)
	// Output:
	// Critical
	// [data_analysis diagnosis customer_engagement scheduling rca]
	// [14:05] 🛑 WARNING: CRITICAL: Thermal Runaway Risk. Coolant pump failure inferred.. Please stop vehicle safely and contact support.
}

// ExampleEngine_Chat books a slot from a chat message, without a text generator.
func ExampleEngine_Chat() {
	eng, err := autonoma.New(
		autonoma.WithScheduler(scheduling.NewServiceCenter()),
		autonoma.WithClock(func() time.Time { return time.Date(2025, 12, 6, 14, 5, 0, 0, time.UTC) }),
	)
	if err != nil {
		log.Fatal(err)
	}

	record := domain.NewState("EV-1", domain.Sample{domain.SensorBatteryTemperature: 50})
	state, err := eng.Chat(context.Background(), record, "book the slot for 12/8/2025 at 1:00 PM")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(state.BookingID != "")
	fmt.Println(state.Path)
	// Output:
	// true
	// [data_analysis diagnosis customer_engagement scheduling]
}
