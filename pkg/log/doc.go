// Package log is the structured logger shared by the coordinator, the
// participant library and the plugins.
//
// Components log through the Logger interface with typed fields, so the
// coordinator can run under zerolog in the CLIs and silently in tests.
//
// A coordinator session scopes its records to one participant:
//
//	base := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())
//	sessionLog := base.With(log.Int32("participant_id", 3))
//	sessionLog.Info("replayed offline messages",
//		log.Int("messages", 2),
//		log.Duration("outage", 4*time.Second))
//
// Delivery failures carry the error and the endpoint that refused the push:
//
//	sessionLog.Warn("push failed", log.String("endpoint", "127.0.0.1:6003"), log.Err(err))
//
// NewNoopLogger discards everything and is the default when no logger is
// passed to coordinator.New.
package log
