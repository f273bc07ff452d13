// Package domain contains the core domain entities and value objects for groupcast.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (sockets, file system, logging) and
// contains only the participant model and its rules.
//
// # Entities
//
//   - [SessionState]: Online, Offline or Deregistered
//   - [Endpoint]: the routable address a participant listens on for pushes
//   - [LogEntry]: one message buffered while a participant is offline
//   - [Command]: one decoded control-plane request
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Testable without mocks or external systems
package domain
