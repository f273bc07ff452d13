// Package coordinator provides an embeddable group-communication coordinator.
//
// Participants register over a small TCP control plane and receive every
// multicast message on a listener of their own. While a participant is
// disconnected its messages are appended to an offline log; on reconnect the
// coordinator replays the part of that log that falls inside the replay
// threshold and then resumes live delivery.
//
// # Basic Usage
//
//	cfg := coordinator.Config{
//	    ListenAddr: ":5000",
//	    Threshold:  30,
//	    LogDir:     "/var/lib/groupcast",
//	}
//
//	c, err := coordinator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := c.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Configuration
//
// All [Config] fields have defaults set via [Config.SetDefaults]. The
// threshold can be changed while running with [Coordinator.SetThreshold].
//
// # Persistence
//
// Each participant's offline log is a storage<ID>.txt file in LogDir. After
// every command the registry is saved to registry.json in StateDir and it is
// restored on the next Start, so a participant that was offline when the
// coordinator stopped can still reconnect and receive its buffered messages.
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it via
// [WithEventHandler]. Session events are delivered from the session workers
// and must return quickly.
//
// # Plugins
//
// Plugins are initialized in order on Start and shut down in reverse order
// on Stop. A plugin that also implements [EventHandler] receives events:
//
//	c, err := coordinator.New(cfg,
//	    coordinator.WithPlugin(metrics.New(metrics.DefaultConfig())),
//	    coordinator.WithPlugin(configwatcher.New(configwatcher.DefaultConfig())),
//	)
//
// # Lifecycle States
//
// A Coordinator is in one of [StateStopped], [StateStarting],
// [StateRunning], [StateStopping], or [StateCrashed]. Use
// [Coordinator.Status] to query it.
package coordinator
