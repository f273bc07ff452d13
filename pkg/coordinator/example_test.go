package coordinator_test

import (
	"context"
	"fmt"
	"os"

	"github.com/bft-labs/groupcast/pkg/coordinator"
)

// ExampleNew demonstrates how to embed a coordinator in your application.
func ExampleNew() {
	dir, err := os.MkdirTemp("", "groupcast-example")
	if err != nil {
		fmt.Printf("failed to create dir: %v\n", err)
		return
	}
	defer os.RemoveAll(dir)

	cfg := coordinator.Config{
		ListenAddr: "127.0.0.1:0",
		Threshold:  30,
		LogDir:     dir,
	}

	c, err := coordinator.New(cfg)
	if err != nil {
		fmt.Printf("failed to create coordinator: %v\n", err)
		return
	}

	// Start serving (non-blocking)
	if err := c.Start(context.Background()); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}

	status := c.Status()
	fmt.Printf("Status is valid: %v\n", status == coordinator.StateStarting || status == coordinator.StateRunning)

	// Stop gracefully (offline logs are kept)
	_ = c.Stop()
	fmt.Printf("Stopped: %v\n", c.Status() == coordinator.StateStopped)

	// Output:
	// Status is valid: true
	// Stopped: true
}

// Example_withEventHandler demonstrates how to receive coordinator events.
func Example_withEventHandler() {
	handler := &myEventHandler{}

	c, err := coordinator.New(coordinator.Config{ListenAddr: ":5000"},
		coordinator.WithEventHandler(handler))
	if err != nil {
		fmt.Printf("failed to create coordinator: %v\n", err)
		return
	}

	_ = c // Start, Stop...
}

// myEventHandler implements coordinator.EventHandler for event notifications.
type myEventHandler struct {
	coordinator.BaseEventHandler // Embed for no-op defaults
}

func (h *myEventHandler) OnSessionStateChange(event coordinator.SessionStateEvent) {
	fmt.Printf("participant %d: %s -> %s\n", event.ParticipantID, event.Previous, event.Current)
}

func (h *myEventHandler) OnReplay(event coordinator.ReplayEvent) {
	fmt.Printf("participant %d: replayed %d of %d buffered messages\n",
		event.ParticipantID, event.Replayed, event.Buffered)
}

// Example_withCustomLogger demonstrates injecting a custom logger.
func Example_withCustomLogger() {
	logger := &customLogger{}

	c, err := coordinator.New(coordinator.Config{ListenAddr: ":5000"},
		coordinator.WithLogger(logger))
	if err != nil {
		fmt.Printf("failed to create coordinator: %v\n", err)
		return
	}

	_ = c
}

// customLogger implements coordinator.Logger.
type customLogger struct{}

func (l *customLogger) Debug(msg string, fields ...coordinator.LogField) {
	fmt.Printf("[DEBUG] %s\n", msg)
}

func (l *customLogger) Info(msg string, fields ...coordinator.LogField) {
	fmt.Printf("[INFO] %s\n", msg)
}

func (l *customLogger) Warn(msg string, fields ...coordinator.LogField) {
	fmt.Printf("[WARN] %s\n", msg)
}

func (l *customLogger) Error(msg string, fields ...coordinator.LogField) {
	fmt.Printf("[ERROR] %s\n", msg)
}

// ExampleCoordinator_SetThreshold demonstrates changing the replay window
// of a running coordinator.
func ExampleCoordinator_SetThreshold() {
	c, _ := coordinator.New(coordinator.Config{ListenAddr: ":5000", Threshold: 30})

	c.SetThreshold(120)
	fmt.Println(c.Threshold())

	c.SetThreshold(-5)
	fmt.Println(c.Threshold())

	// Output:
	// 120
	// 0
}
